// Package workerproc turns post-import queue messages into analysis runs.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"tuning-backend/internal/analysis"
	"tuning-backend/internal/queue"
	"tuning-backend/internal/shared/timewindow"
)

// WorkerActor is recorded as createdBy on proposals the worker creates.
const WorkerActor = "system:import-worker"

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrInvalidMessage indicates a well-formed payload the worker cannot act on.
type ErrInvalidMessage struct {
	Meta      MessageMeta
	ImportID  string
	RequestID string
	Err       error
}

func (e ErrInvalidMessage) Error() string { return "invalid message: " + e.Err.Error() }

func (e ErrInvalidMessage) Unwrap() error { return e.Err }

// ErrProcess indicates processing failed after successful parsing. The
// message should be left on the queue for redelivery.
type ErrProcess struct {
	ImportID  string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process import"
	}
	return "process import: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never succeed.
func Unrecoverable(err error) bool {
	var empty ErrEmptyBody
	var decode ErrDecode
	var invalid ErrInvalidMessage
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &invalid)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if err := msg.Validate(); err != nil {
		return msg, meta, ErrInvalidMessage{Meta: meta, RequestID: msg.RequestID, Err: err}
	}
	if msg.Type != "" && msg.Type != queue.TypeImportCompleted {
		return msg, meta, ErrInvalidMessage{Meta: meta, ImportID: msg.ImportID, RequestID: msg.RequestID, Err: errors.New("unexpected type " + msg.Type)}
	}
	w := timewindow.Window{From: msg.WindowFrom, To: msg.WindowTo}
	if err := w.Validate(); err != nil {
		return msg, meta, ErrInvalidMessage{Meta: meta, ImportID: msg.ImportID, RequestID: msg.RequestID, Err: err}
	}
	return msg, meta, nil
}

// Runner is the analysis entry point the worker drives.
type Runner interface {
	Run(ctx context.Context, req analysis.RunRequest) (analysis.RunResult, error)
}

// Outcome describes how a handled message ended.
type Outcome string

const (
	OutcomeProposal   Outcome = "proposal"
	OutcomeNoProposal Outcome = "no_proposal"
	OutcomeInFlight   Outcome = "in_flight"
)

// Processor runs analysis for completed imports.
type Processor struct {
	Runner           Runner
	DefaultProfileID string
}

// HandleMessage runs analysis for msg. A concurrent run for the same profile
// and window already covers the import, so in-flight is reported as success.
func (p *Processor) HandleMessage(ctx context.Context, msg queue.Message) (Outcome, error) {
	if p == nil || p.Runner == nil {
		return "", errors.New("analysis service not configured")
	}
	profileID := strings.TrimSpace(msg.ProfileID)
	if profileID == "" {
		profileID = p.DefaultProfileID
	}

	res, err := p.Runner.Run(ctx, analysis.RunRequest{
		ProfileID: profileID,
		Window:    timewindow.Window{From: msg.WindowFrom, To: msg.WindowTo},
		CreatedBy: WorkerActor,
	})
	switch {
	case errors.Is(err, analysis.ErrAnalysisInFlight):
		return OutcomeInFlight, nil
	case errors.Is(err, timewindow.ErrInvalidWindow), errors.Is(err, analysis.ErrInvalidInput):
		return "", ErrInvalidMessage{ImportID: msg.ImportID, RequestID: msg.RequestID, Err: err}
	case err != nil:
		return "", ErrProcess{ImportID: msg.ImportID, RequestID: msg.RequestID, Err: err}
	case res.Proposal == nil:
		return OutcomeNoProposal, nil
	default:
		return OutcomeProposal, nil
	}
}
