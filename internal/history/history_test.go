package history

import (
	"context"
	"testing"

	"github.com/pageguard/pageguard/internal/analysis"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := analysis.SafeResult("https://first.test", "nothing to see")
	second := analysis.SafeResult("https://second.test", "phishing page")
	second.RiskScore = 91
	second.IsSafe = false
	second.IsPhishing = true

	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, second); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Most recent first.
	if entries[0].URL != "https://second.test" {
		t.Errorf("first entry = %q", entries[0].URL)
	}
	if entries[0].RiskScore != 91 || entries[0].IsSafe || !entries[0].IsPhishing {
		t.Errorf("entry fields: %+v", entries[0])
	}
	if entries[1].URL != "https://first.test" || !entries[1].IsSafe {
		t.Errorf("second entry: %+v", entries[1])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, analysis.SafeResult("https://a.test", "ok")); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestOpenWithoutCreateFailsWhenMissing(t *testing.T) {
	_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}
