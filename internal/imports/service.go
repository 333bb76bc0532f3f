package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"tuning-backend/internal/feedback"
	"tuning-backend/internal/queue"
	"tuning-backend/internal/shared/metrics"
	"tuning-backend/internal/shared/storage/object"
	"tuning-backend/internal/shared/telemetry"
	"tuning-backend/internal/shared/util"
)

const (
	storagePrefix    = "imports"
	defaultFilename  = "import.txt"
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service registers conversational exports exactly once per normalized content.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	// Publisher is optional; when set, completed imports are announced on it.
	Publisher        queue.Client
	MaxBytes         int64
	DefaultProfileID string
	Now              func() time.Time
	NewID            func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Submit registers, stores and extracts one export. A repeat of already
// imported content fails with *DuplicateError before anything is stored.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Record, error) {
	if len(bytes.TrimSpace(req.Content)) == 0 {
		return Record{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if s.MaxBytes > 0 && int64(len(req.Content)) > s.MaxBytes {
		return Record{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(req.Content), s.MaxBytes)
	}
	filename := defaultFilename
	if strings.TrimSpace(req.Filename) != "" {
		sanitized, err := util.SanitizeFileName(req.Filename)
		if err != nil {
			return Record{}, fmt.Errorf("%w: invalid filename", ErrInvalidInput)
		}
		filename = sanitized
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return Record{}, fmt.Errorf("%w: createdBy is required", ErrInvalidInput)
	}

	now := s.now()
	rec := Record{
		ID:                 s.newID(),
		Filename:           filename,
		Source:             strings.TrimSpace(req.Source),
		ContentFingerprint: Fingerprint(req.Content),
		Status:             StatusPending,
		CreatedBy:          req.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Repo.Insert(ctx, rec); err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			metrics.IncImport(metrics.OutcomeDuplicate)
			telemetry.Warn("import.duplicate", map[string]any{
				"fingerprint":  rec.ContentFingerprint,
				"existing_id":  dup.Existing.ID,
				"created_by":   req.CreatedBy,
				"content_size": len(req.Content),
			})
		}
		return Record{}, err
	}
	if err := s.Repo.MarkProcessing(ctx, rec.ID, s.now()); err != nil {
		return s.fail(ctx, rec, fmt.Errorf("mark processing: %w", err))
	}

	key := path.Join(storagePrefix, rec.ID, filename)
	if _, err := s.Store.Put(ctx, key, "application/octet-stream", bytes.NewReader(req.Content)); err != nil {
		return s.fail(ctx, rec, fmt.Errorf("store content: %w", err))
	}

	extraction, err := Extract(rec.ID, req.Content, now, s.newID)
	if err != nil {
		return s.fail(ctx, rec, err)
	}

	completed, err := s.Repo.Complete(ctx, rec.ID, Completion{
		StorageKey:    key,
		Conversations: extraction.Conversations,
		Messages:      extraction.Messages,
		Batch:         extraction.Batch,
	}, s.now())
	if err != nil {
		return s.fail(ctx, rec, fmt.Errorf("persist feedback: %w", err))
	}

	metrics.IncImport(metrics.OutcomeCompleted)
	telemetry.Info("import.completed", map[string]any{
		"import_id":      completed.ID,
		"conversations":  completed.Conversations,
		"messages":       completed.Messages,
		"feedback_items": completed.FeedbackItems,
		"refinements":    completed.Refinements,
	})
	s.publish(ctx, completed, extraction.Batch)
	return completed, nil
}

// fail records the terminal failure even when the request context is done, so
// an interrupted import never keeps its fingerprint in processing.
func (s *Service) fail(ctx context.Context, rec Record, cause error) (Record, error) {
	metrics.IncImport(metrics.OutcomeFailed)
	failed, err := s.Repo.Fail(context.WithoutCancel(ctx), rec.ID, cause.Error(), s.now())
	if err != nil {
		telemetry.Error("import.fail_update", map[string]any{"import_id": rec.ID, "error": err.Error(), "cause": cause.Error()})
		return Record{}, errors.Join(cause, err)
	}
	telemetry.Warn("import.failed", map[string]any{"import_id": rec.ID, "error": cause.Error()})
	return failed, &FailedError{Record: failed, Err: cause}
}

// publish announces the import for post-import analysis over the time span its
// rows cover. Failures are logged; the import itself already committed.
func (s *Service) publish(ctx context.Context, rec Record, b feedback.Batch) {
	if s.Publisher == nil {
		return
	}
	from, to := span(b, rec.CreatedAt)
	msg := queue.Message{
		Type:       queue.TypeImportCompleted,
		ImportID:   rec.ID,
		ProfileID:  s.DefaultProfileID,
		WindowFrom: from,
		WindowTo:   to,
		EnqueuedAt: s.now().Format(time.RFC3339),
		Version:    queue.CurrentVersion,
	}
	if err := s.Publisher.Send(ctx, msg); err != nil {
		telemetry.Error("import.publish_failed", map[string]any{"import_id": rec.ID, "error": err.Error()})
	}
}

func span(b feedback.Batch, fallback time.Time) (time.Time, time.Time) {
	var from, to time.Time
	widen := func(t time.Time) {
		if from.IsZero() || t.Before(from) {
			from = t
		}
		if to.IsZero() || t.After(to) {
			to = t
		}
	}
	for _, it := range b.Items {
		widen(it.OccurredAt)
	}
	for _, rf := range b.Refinements {
		widen(rf.OccurredAt)
	}
	if from.IsZero() {
		return fallback, fallback
	}
	return from, to
}

// Get returns a live import record.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

// List returns live imports newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.List(ctx, limit, offset)
}

// Delete soft-deletes an import. Its fingerprint becomes free and its rows no
// longer count toward aggregates.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	if err := s.Repo.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	telemetry.Info("import.deleted", map[string]any{"import_id": id, "actor": actor})
	return nil
}
