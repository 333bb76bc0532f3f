package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxAnalyzerResponseBytes = 4 << 20

// HTTPAnalyzer POSTs the input as JSON to an analyzer service. A 204 response
// or a JSON null body means no proposal.
type HTTPAnalyzer struct {
	url        string
	httpClient *http.Client
}

// NewHTTPAnalyzer constructs an HTTPAnalyzer. The per-run deadline comes from
// the caller's context; timeout only bounds a single HTTP exchange.
func NewHTTPAnalyzer(url string, timeout time.Duration) (*HTTPAnalyzer, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ANALYZER_URL is required")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPAnalyzer{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, in Input) (*Output, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode analyzer input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalyzerResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("analyzer read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("analyzer status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out *Output
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("analyzer response parse: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Analyzer = (*HTTPAnalyzer)(nil)
