package workerproc

import (
	"context"
	"errors"
	"testing"
	"time"

	"tuning-backend/internal/analysis"
	"tuning-backend/internal/proposals"
	"tuning-backend/internal/queue"
)

var (
	from = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	to   = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

type fakeRunner struct {
	res  analysis.RunResult
	err  error
	reqs []analysis.RunRequest
}

func (f *fakeRunner) Run(ctx context.Context, req analysis.RunRequest) (analysis.RunResult, error) {
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestParseMessage(t *testing.T) {
	valid := queue.Message{Type: queue.TypeImportCompleted, ImportID: "imp-1", WindowFrom: from, WindowTo: to, RequestID: "req-1"}

	msg, meta, err := ParseMessage(encode(t, valid))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.ImportID != "imp-1" || !msg.WindowFrom.Equal(from) {
		t.Fatalf("unexpected message %+v", msg)
	}
	if meta.BodyLen == 0 || len(meta.BodySHA) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}

	missingID := valid
	missingID.ImportID = ""
	reversed := valid
	reversed.WindowFrom, reversed.WindowTo = to, from
	wrongType := valid
	wrongType.Type = "import.deleted"

	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: "  "},
		{name: "bad json", body: "{bad-json"},
		{name: "missing import id", body: encode(t, missingID)},
		{name: "reversed window", body: encode(t, reversed)},
		{name: "wrong type", body: encode(t, wrongType)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMessage(tt.body)
			if err == nil {
				t.Fatal("expected error")
			}
			if !Unrecoverable(err) {
				t.Fatalf("expected unrecoverable error, got %T %v", err, err)
			}
		})
	}

	_, _, err = ParseMessage(encode(t, missingID))
	if !errors.Is(err, queue.ErrMissingImportID) {
		t.Fatalf("expected ErrMissingImportID, got %v", err)
	}
}

func TestHandleMessageOutcomes(t *testing.T) {
	msg := queue.Message{ImportID: "imp-1", WindowFrom: from, WindowTo: to, RequestID: "req-1"}
	tests := []struct {
		name        string
		runner      *fakeRunner
		want        Outcome
		wantErr     bool
		unrecoverable bool
	}{
		{name: "proposal", runner: &fakeRunner{res: analysis.RunResult{Proposal: &proposals.Proposal{ID: "p1"}}}, want: OutcomeProposal},
		{name: "no proposal", runner: &fakeRunner{res: analysis.RunResult{Reason: analysis.ReasonNoProposal}}, want: OutcomeNoProposal},
		{name: "in flight is acked", runner: &fakeRunner{err: analysis.ErrAnalysisInFlight}, want: OutcomeInFlight},
		{name: "analyzer failure retries", runner: &fakeRunner{err: analysis.ErrAnalyzer}, wantErr: true},
		{name: "bad input is dropped", runner: &fakeRunner{err: analysis.ErrInvalidInput}, wantErr: true, unrecoverable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Processor{Runner: tt.runner, DefaultProfileID: "default"}
			got, err := p.HandleMessage(context.Background(), msg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if Unrecoverable(err) != tt.unrecoverable {
					t.Fatalf("Unrecoverable(%v) = %v", err, !tt.unrecoverable)
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleMessage: %v", err)
			}
			if got != tt.want {
				t.Fatalf("outcome = %q, want %q", got, tt.want)
			}
			req := tt.runner.reqs[0]
			if req.ProfileID != "default" || req.CreatedBy != WorkerActor || !req.Window.To.Equal(to) {
				t.Fatalf("unexpected run request %+v", req)
			}
		})
	}
}

func TestHandleMessageUsesMessageProfile(t *testing.T) {
	runner := &fakeRunner{}
	p := &Processor{Runner: runner, DefaultProfileID: "default"}
	if _, err := p.HandleMessage(context.Background(), queue.Message{ImportID: "imp-1", ProfileID: "support", WindowFrom: from, WindowTo: to}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if runner.reqs[0].ProfileID != "support" {
		t.Fatalf("expected message profile, got %q", runner.reqs[0].ProfileID)
	}
}

func TestHandleMessageWithoutRunner(t *testing.T) {
	var p *Processor
	if _, err := p.HandleMessage(context.Background(), queue.Message{ImportID: "imp-1"}); err == nil {
		t.Fatal("expected error")
	}
}
