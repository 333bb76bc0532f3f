package analysis

import "errors"

var (
	// ErrAnalysisInFlight is returned when the same profile and window is already running.
	ErrAnalysisInFlight = errors.New("analysis in flight")
	// ErrAnalysisTimeout is returned when the analyzer misses its deadline.
	ErrAnalysisTimeout = errors.New("analysis timed out")
	// ErrAnalyzer wraps any other analyzer failure.
	ErrAnalyzer = errors.New("analyzer error")
	// ErrInvalidInput covers missing profile or creator.
	ErrInvalidInput = errors.New("invalid input")
)
