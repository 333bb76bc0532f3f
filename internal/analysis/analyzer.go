// Package analysis turns a window of reviewer feedback into at most one
// tuning proposal by calling an external analyzer.
package analysis

import (
	"context"
	"errors"
	"time"

	"tuning-backend/internal/feedback"
	"tuning-backend/internal/proposals"
)

// Input is everything the analyzer sees for one run.
type Input struct {
	ProfileID   string                `json:"profileId"`
	WindowFrom  time.Time             `json:"windowFrom"`
	WindowTo    time.Time             `json:"windowTo"`
	Aggregate   feedback.Aggregate    `json:"aggregate"`
	Feedback    []feedback.Item       `json:"feedback"`
	Refinements []feedback.Refinement `json:"refinements"`
}

// Output is the analyzer's answer. A nil *Output means it had nothing to propose.
type Output struct {
	Recommendations []proposals.Recommendation `json:"recommendations"`
	Metrics         map[string]float64         `json:"metrics"`
	GovernanceLinks []string                   `json:"governanceLinks"`
}

// Analyzer produces recommendations from feedback.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (*Output, error)
}

// ErrAnalyzerNotConfigured is returned by the placeholder analyzer.
var ErrAnalyzerNotConfigured = errors.New("analyzer not configured")

// PlaceholderAnalyzer is used when no ANALYZER_URL is set.
type PlaceholderAnalyzer struct{}

// Analyze returns ErrAnalyzerNotConfigured.
func (PlaceholderAnalyzer) Analyze(ctx context.Context, in Input) (*Output, error) {
	_ = ctx
	_ = in
	return nil, ErrAnalyzerNotConfigured
}
