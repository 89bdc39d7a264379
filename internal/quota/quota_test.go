package quota

import (
	"testing"
	"time"
)

func newTestLimiter(analyzeLimit, breachLimit int) (*Limiter, *time.Time) {
	l := New(map[Class]int{
		ClassAnalyze: analyzeLimit,
		ClassBreach:  breachLimit,
	})
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAllowDeniesAtLimit(t *testing.T) {
	l, _ := newTestLimiter(3, 1)

	for i := 0; i < 3; i++ {
		if !l.Allow("default", ClassAnalyze) {
			t.Fatalf("call %d should be allowed", i+1)
		}
		l.Increment("default", ClassAnalyze)
	}

	if l.Allow("default", ClassAnalyze) {
		t.Error("4th call within the day should be denied")
	}
}

func TestAllowDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(1, 1)

	for i := 0; i < 5; i++ {
		if !l.Allow("default", ClassAnalyze) {
			t.Fatal("Allow must not consume budget by itself")
		}
	}
	if got := l.Used("default", ClassAnalyze); got != 0 {
		t.Errorf("used = %d after Allow-only calls", got)
	}
}

func TestDateRolloverResetsCounts(t *testing.T) {
	l, clock := newTestLimiter(2, 1)

	l.Increment("default", ClassAnalyze)
	l.Increment("default", ClassAnalyze)
	if l.Allow("default", ClassAnalyze) {
		t.Fatal("should be exhausted before rollover")
	}

	*clock = clock.Add(24 * time.Hour)

	if !l.Allow("default", ClassAnalyze) {
		t.Error("client should be admitted again after the date changes")
	}
	if got := l.Used("default", ClassAnalyze); got != 0 {
		t.Errorf("used = %d after rollover, want 0", got)
	}
}

func TestClassesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(5, 1)

	l.Increment("default", ClassBreach)
	if l.Allow("default", ClassBreach) {
		t.Error("breach budget should be exhausted")
	}
	if !l.Allow("default", ClassAnalyze) {
		t.Error("analyze budget must be unaffected by breach usage")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 1)

	l.Increment("alice", ClassAnalyze)
	if l.Allow("alice", ClassAnalyze) {
		t.Error("alice should be exhausted")
	}
	if !l.Allow("bob", ClassAnalyze) {
		t.Error("bob must have an independent budget")
	}
}

func TestUnknownClassAdmitsNothing(t *testing.T) {
	l, _ := newTestLimiter(1, 1)

	if l.Allow("default", Class("mystery")) {
		t.Error("unconfigured class must deny")
	}
	if got := l.Limit(Class("mystery")); got != 0 {
		t.Errorf("limit = %d", got)
	}
}
