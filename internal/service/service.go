// Package service hosts the two orchestrators behind the HTTP layer:
// page analysis (cache, quota, model call, fail-open fallback) and
// email breach checks (quota, lookup chain). All shared state is held
// by explicitly constructed dependencies so tests can build independent
// instances.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pageguard/pageguard/internal/analysis"
	"github.com/pageguard/pageguard/internal/audit"
	"github.com/pageguard/pageguard/internal/breach"
	"github.com/pageguard/pageguard/internal/cache"
	"github.com/pageguard/pageguard/internal/history"
	"github.com/pageguard/pageguard/internal/quota"
)

// DefaultClientID is the quota bucket used when the edge supplies no
// client identity.
const DefaultClientID = "default"

// errExcerptLimit bounds how much backend error text leaks into a
// user-visible fallback summary.
const errExcerptLimit = 100

// Analyzer is the threat-model client surface the service needs.
type Analyzer interface {
	Analyze(ctx context.Context, sig analysis.PageSignal) (analysis.Result, error)
	TestConnectivity(ctx context.Context) bool
}

// BreachChecker is the breach-lookup chain surface the service needs.
type BreachChecker interface {
	Lookup(ctx context.Context, email string) breach.Result
}

// Dependencies wires a Service. History and Audit are optional.
type Dependencies struct {
	Cache    *cache.Cache
	Quota    *quota.Limiter
	Analyzer Analyzer
	Breach   BreachChecker
	History  *history.Store
	Audit    *audit.Emitter
}

// Service coordinates the request-orchestration layer.
type Service struct {
	cache    *cache.Cache
	quota    *quota.Limiter
	analyzer Analyzer
	breach   BreachChecker
	history  *history.Store
	audit    *audit.Emitter
}

// New builds a Service from its dependencies.
func New(deps Dependencies) *Service {
	return &Service{
		cache:    deps.Cache,
		quota:    deps.Quota,
		analyzer: deps.Analyzer,
		breach:   deps.Breach,
		history:  deps.History,
		audit:    deps.Audit,
	}
}

// AnalyzePage runs one page analysis for clientID.
//
// Order matters: the cache is consulted before the quota so a repeat
// scan is never charged, and the quota is only incremented after the
// backend succeeds so a failed call is never billed. Backend failures
// fail open into a zero-risk result; only quota exhaustion surfaces as
// an error.
func (s *Service) AnalyzePage(ctx context.Context, clientID string, sig analysis.PageSignal) (analysis.Result, error) {
	if clientID == "" {
		clientID = DefaultClientID
	}

	if res, ok := s.cache.Get(sig.URL); ok {
		s.emit(audit.OpAnalyze, audit.DecisionCacheHit, clientID, sig.URL, res.RiskScore, "")
		return res, nil
	}

	if !s.quota.Allow(clientID, quota.ClassAnalyze) {
		s.emit(audit.OpAnalyze, audit.DecisionQuotaBlocked, clientID, sig.URL, 0, "")
		return analysis.Result{}, &QuotaExceededError{
			Class: quota.ClassAnalyze,
			Limit: s.quota.Limit(quota.ClassAnalyze),
		}
	}

	res, err := s.analyzer.Analyze(ctx, sig)
	if err != nil {
		// The backend being down must never block the user or read as
		// danger. The failed attempt is not cached and not charged.
		log.Printf("analysis failed url=%s: %v", sig.URL, err)
		s.emit(audit.OpAnalyze, audit.DecisionFallback, clientID, sig.URL, 0, analysis.Truncate(err.Error(), errExcerptLimit))
		return analysis.SafeResult(sig.URL,
			fmt.Sprintf("Analysis temporarily unavailable: %s", analysis.Truncate(err.Error(), errExcerptLimit))), nil
	}

	s.cache.Put(sig.URL, res)
	s.quota.Increment(clientID, quota.ClassAnalyze)

	if s.history != nil {
		if err := s.history.Record(ctx, res); err != nil {
			log.Printf("history record failed url=%s: %v", sig.URL, err)
		}
	}
	s.emit(audit.OpAnalyze, audit.DecisionServed, clientID, sig.URL, res.RiskScore, "")

	return res, nil
}

// CheckEmailBreaches runs one breach check for clientID. The check is
// charged on any outcome once admitted, including diagnostic results,
// and results are never cached: breach status changes over time and the
// chain already understands upstream rate limits.
func (s *Service) CheckEmailBreaches(ctx context.Context, clientID, email string) (breach.Result, error) {
	if clientID == "" {
		clientID = DefaultClientID
	}

	if !strings.Contains(email, "@") {
		return breach.Result{}, ErrInvalidEmail
	}

	if !s.quota.Allow(clientID, quota.ClassBreach) {
		s.emit(audit.OpBreach, audit.DecisionQuotaBlocked, clientID, audit.MaskEmail(email), 0, "")
		return breach.Result{}, &QuotaExceededError{
			Class: quota.ClassBreach,
			Limit: s.quota.Limit(quota.ClassBreach),
		}
	}
	s.quota.Increment(clientID, quota.ClassBreach)

	res := s.breach.Lookup(ctx, email)
	s.emit(audit.OpBreach, audit.DecisionServed, clientID, audit.MaskEmail(res.Email), 0, "")

	return res, nil
}

// TestConnectivity reports whether the analysis backend is usable.
// Never cached, never charged.
func (s *Service) TestConnectivity(ctx context.Context) bool {
	return s.analyzer.TestConnectivity(ctx)
}

// RecentScans returns the newest recorded analyses.
func (s *Service) RecentScans(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Recent(ctx, limit)
}

func (s *Service) emit(op string, decision audit.Decision, clientID, subject string, riskScore int, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(&audit.Event{
		Operation: op,
		Decision:  decision,
		ClientID:  clientID,
		Subject:   subject,
		RiskScore: riskScore,
		Detail:    detail,
	})
}
