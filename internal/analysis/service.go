package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tuning-backend/internal/feedback"
	"tuning-backend/internal/proposals"
	"tuning-backend/internal/shared/metrics"
	"tuning-backend/internal/shared/telemetry"
	"tuning-backend/internal/shared/timewindow"
)

const defaultTimeout = 2 * time.Minute

// RunRequest asks for one analysis of a profile's feedback window.
type RunRequest struct {
	ProfileID string
	Window    timewindow.Window
	DryRun    bool
	CreatedBy string
}

// RunResult carries the created proposal. Proposal is nil when the analyzer
// had nothing to say or the window held no feedback.
type RunResult struct {
	Proposal *proposals.Proposal
	Reason   string
}

// ReasonNoProposal is reported when no proposal was created.
const ReasonNoProposal = "NoProposal"

// Service runs the analyzer and stores its output as a pending proposal.
type Service struct {
	Feedback  *feedback.Service
	Proposals *proposals.Service
	Analyzer  Analyzer
	Timeout   time.Duration

	guard *flightGuard
	now   func() time.Time
}

// NewService constructs a Service. A nil analyzer falls back to PlaceholderAnalyzer.
func NewService(fb *feedback.Service, ps *proposals.Service, a Analyzer, timeout time.Duration) *Service {
	if a == nil {
		a = PlaceholderAnalyzer{}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		Feedback:  fb,
		Proposals: ps,
		Analyzer:  a,
		Timeout:   timeout,
		guard:     newFlightGuard(),
		now:       time.Now,
	}
}

// Run validates the window, loads feedback, calls the analyzer and persists
// at most one proposal.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := req.Window.Validate(); err != nil {
		return RunResult{}, err
	}
	req.ProfileID = strings.TrimSpace(req.ProfileID)
	if req.ProfileID == "" {
		return RunResult{}, fmt.Errorf("%w: profileId is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return RunResult{}, fmt.Errorf("%w: createdBy is required", ErrInvalidInput)
	}
	w := req.Window.UTC()

	release, ok := s.guard.tryAcquire(req.ProfileID + "|" + w.Key())
	if !ok {
		metrics.ObserveAnalysis(0, metrics.OutcomeInFlight)
		telemetry.Warn("analysis.in_flight", map[string]any{
			"profile_id": req.ProfileID,
			"window":     w.Key(),
		})
		return RunResult{}, ErrAnalysisInFlight
	}
	defer release()

	start := s.now()
	res, err := s.run(ctx, req, w)
	elapsed := s.now().Sub(start)
	switch {
	case err != nil:
		metrics.ObserveAnalysis(elapsed, metrics.OutcomeError)
		telemetry.Error("analysis.failed", map[string]any{
			"profile_id": req.ProfileID,
			"window":     w.Key(),
			"error":      err.Error(),
		})
	case res.Proposal == nil:
		metrics.ObserveAnalysis(elapsed, metrics.OutcomeNoProposal)
		telemetry.Info("analysis.no_proposal", map[string]any{
			"profile_id": req.ProfileID,
			"window":     w.Key(),
		})
	default:
		metrics.ObserveAnalysis(elapsed, metrics.OutcomeProposal)
		telemetry.Info("analysis.proposal", map[string]any{
			"profile_id":      req.ProfileID,
			"proposal_id":     res.Proposal.ID,
			"recommendations": len(res.Proposal.Recommendations),
			"duration_ms":     elapsed.Milliseconds(),
		})
	}
	return res, err
}

func (s *Service) run(ctx context.Context, req RunRequest, w timewindow.Window) (RunResult, error) {
	batch, err := s.Feedback.Window(ctx, w)
	if err != nil {
		return RunResult{}, fmt.Errorf("load feedback: %w", err)
	}
	if batch.Empty() {
		return RunResult{Reason: ReasonNoProposal}, nil
	}
	agg := feedback.Rollup(batch)

	actx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	out, err := s.Analyzer.Analyze(actx, Input{
		ProfileID:   req.ProfileID,
		WindowFrom:  w.From,
		WindowTo:    w.To,
		Aggregate:   agg,
		Feedback:    batch.Items,
		Refinements: batch.Refinements,
	})
	if err == nil && actx.Err() != nil {
		// A late answer after the deadline is discarded.
		err = actx.Err()
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return RunResult{}, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded):
			return RunResult{}, fmt.Errorf("%w after %s", ErrAnalysisTimeout, s.Timeout)
		default:
			return RunResult{}, fmt.Errorf("%w: %v", ErrAnalyzer, err)
		}
	}
	if out == nil {
		return RunResult{Reason: ReasonNoProposal}, nil
	}

	p, err := s.Proposals.Create(ctx, proposals.Proposal{
		ProfileID:       req.ProfileID,
		Recommendations: out.Recommendations,
		Metrics:         mergeMetrics(agg.AsMetrics(), out.Metrics),
		GovernanceLinks: out.GovernanceLinks,
		WindowStart:     w.From,
		WindowEnd:       w.To,
		DryRun:          req.DryRun,
		CreatedBy:       req.CreatedBy,
	})
	if errors.Is(err, proposals.ErrInvalidRecommendation) {
		return RunResult{}, fmt.Errorf("%w: %w", ErrAnalyzer, err)
	}
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Proposal: &p}, nil
}

// mergeMetrics overlays the rollup onto the analyzer's own figures; rollup
// values win on a name clash.
func mergeMetrics(rollup, analyzer map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rollup)+len(analyzer))
	for k, v := range analyzer {
		out[k] = v
	}
	for k, v := range rollup {
		out[k] = v
	}
	return out
}
