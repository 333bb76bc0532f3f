package imports

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"tuning-backend/internal/feedback"
	"tuning-backend/internal/queue"
	"tuning-backend/internal/shared/storage/object/local"
	"tuning-backend/internal/shared/timewindow"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (p *recordingPublisher) Send(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type serviceFixture struct {
	svc       *Service
	repo      *MemoryRepo
	feedback  *feedback.MemoryStore
	store     *local.Store
	publisher *recordingPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	fb := feedback.NewMemoryStore()
	repo := NewMemoryRepo(fb)
	store := local.New(t.TempDir())
	pub := &recordingPublisher{}
	return &serviceFixture{
		svc: &Service{
			Repo:             repo,
			Store:            store,
			Publisher:        pub,
			MaxBytes:         1 << 20,
			DefaultProfileID: "default",
			Now:              func() time.Time { return importedAt },
			NewID:            seqIDs(),
		},
		repo:      repo,
		feedback:  fb,
		store:     store,
		publisher: pub,
	}
}

func TestSubmitDuplicateAfterNormalization(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, SubmitRequest{Content: []byte("hello world"), Filename: "a.txt", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if first.Status != StatusCompleted || first.Messages != 1 {
		t.Fatalf("unexpected first record %+v", first)
	}

	_, err = f.svc.Submit(ctx, SubmitRequest{Content: []byte("hello   world"), Filename: "b.txt", CreatedBy: "u2"})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate import, got %v", err)
	}
	if dup.Existing.ID != first.ID || dup.Existing.Status != StatusCompleted {
		t.Fatalf("duplicate should reference first record, got %+v", dup.Existing)
	}

	list, _ := f.svc.List(ctx, 0, 0)
	if len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}
}

func TestSubmitConcurrentDuplicatesOneWins(t *testing.T) {
	f := newServiceFixture(t)
	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), SubmitRequest{Content: []byte("same body"), CreatedBy: "u"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dups int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateImport):
			dups++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || dups != 5 {
		t.Fatalf("ok=%d dups=%d", ok, dups)
	}
}

func TestSubmitStoresContentAndFeedback(t *testing.T) {
	f := newServiceFixture(t)
	rec, err := f.svc.Submit(context.Background(), SubmitRequest{Content: []byte(exportJSON), Filename: "export.json", Source: "chat", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.FeedbackItems != 2 || rec.Refinements != 1 || rec.StorageKey != "imports/"+rec.ID+"/export.json" {
		t.Fatalf("unexpected record %+v", rec)
	}

	body, err := f.store.Open(context.Background(), rec.StorageKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()
	raw, _ := io.ReadAll(body)
	if string(raw) != exportJSON {
		t.Fatalf("stored blob differs from submitted content")
	}

	w := timewindow.Window{From: importedAt.AddDate(0, 0, -30), To: importedAt}
	batch, err := f.feedback.ListWindow(context.Background(), w)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Items) != 2 || len(batch.Refinements) != 1 {
		t.Fatalf("feedback rows not visible: %+v", batch)
	}

	if len(f.publisher.msgs) != 1 {
		t.Fatalf("expected one published message, got %d", len(f.publisher.msgs))
	}
	msg := f.publisher.msgs[0]
	if msg.ImportID != rec.ID || msg.ProfileID != "default" || msg.Type != queue.TypeImportCompleted {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.WindowFrom.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) || !msg.WindowTo.Equal(importedAt) {
		t.Fatalf("unexpected window %s..%s", msg.WindowFrom, msg.WindowTo)
	}
}

func TestSubmitMalformedExportFails(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Submit(context.Background(), SubmitRequest{Content: []byte(`{"conversations": [`), CreatedBy: "u1"})
	var failed *FailedError
	if !errors.As(err, &failed) || !errors.Is(err, ErrImportFailed) || !errors.Is(err, ErrMalformedExport) {
		t.Fatalf("expected failed import, got %v", err)
	}
	if failed.Record.Status != StatusFailed || failed.Record.ErrorMessage == "" {
		t.Fatalf("unexpected failed record %+v", failed.Record)
	}
	if len(f.publisher.msgs) != 0 {
		t.Fatalf("failed import must not be published")
	}

	// A failed record still holds its fingerprint.
	_, err = f.svc.Submit(context.Background(), SubmitRequest{Content: []byte(`{"conversations":  [`), CreatedBy: "u1"})
	if !errors.Is(err, ErrDuplicateImport) {
		t.Fatalf("expected duplicate of failed import, got %v", err)
	}
}

// cancellingStore simulates a client that goes away while the blob is written.
type cancellingStore struct {
	cancel context.CancelFunc
}

func (s cancellingStore) Put(ctx context.Context, _ string, _ string, _ io.Reader) (int64, error) {
	s.cancel()
	return 0, ctx.Err()
}

func (s cancellingStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not stored")
}

func TestSubmitCancelledMidImportEndsFailed(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.Store = cancellingStore{cancel: cancel}

	_, err := f.svc.Submit(ctx, SubmitRequest{Content: []byte(exportJSON), CreatedBy: "u1"})
	var failed *FailedError
	if !errors.As(err, &failed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected failed import wrapping cancellation, got %v", err)
	}
	got, err := f.repo.Get(context.Background(), failed.Record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if len(f.publisher.msgs) != 0 {
		t.Fatalf("cancelled import must not be published")
	}
}

// stuckRepo refuses the pending to processing transition.
type stuckRepo struct {
	*MemoryRepo
}

func (stuckRepo) MarkProcessing(context.Context, string, time.Time) error {
	return errors.New("connection reset")
}

func TestSubmitMarkProcessingErrorEndsFailed(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.Repo = stuckRepo{f.repo}

	_, err := f.svc.Submit(context.Background(), SubmitRequest{Content: []byte("body"), CreatedBy: "u1"})
	var failed *FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected failed import, got %v", err)
	}
	if failed.Record.Status != StatusFailed || !strings.Contains(failed.Record.ErrorMessage, "mark processing") {
		t.Fatalf("unexpected record %+v", failed.Record)
	}
	if failed.Record.ID != "row-1" {
		t.Fatalf("record id should come from NewID, got %q", failed.Record.ID)
	}
}

func TestSubmitPublishFailureDoesNotFailImport(t *testing.T) {
	f := newServiceFixture(t)
	f.publisher.err = errors.New("queue down")
	rec, err := f.svc.Submit(context.Background(), SubmitRequest{Content: []byte("text"), CreatedBy: "u1"})
	if err != nil || rec.Status != StatusCompleted {
		t.Fatalf("Submit: %+v, %v", rec, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newServiceFixture(t)
	tests := []struct {
		name string
		req  SubmitRequest
		want error
	}{
		{name: "empty", req: SubmitRequest{Content: []byte("   "), CreatedBy: "u"}, want: ErrInvalidInput},
		{name: "traversal filename", req: SubmitRequest{Content: []byte("x"), Filename: "../x", CreatedBy: "u"}, want: ErrInvalidInput},
		{name: "no creator", req: SubmitRequest{Content: []byte("x")}, want: ErrInvalidInput},
		{name: "too large", req: SubmitRequest{Content: []byte(strings.Repeat("a", 2<<20)), CreatedBy: "u"}, want: ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Submit(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDeleteReleasesFingerprintAndHidesRows(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	rec, err := f.svc.Submit(ctx, SubmitRequest{Content: []byte(exportJSON), CreatedBy: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, rec.ID, "admin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted record still visible: %v", err)
	}
	if err := f.svc.Delete(ctx, rec.ID, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}

	batch, _ := f.feedback.ListWindow(ctx, timewindow.Window{From: importedAt.AddDate(-1, 0, 0), To: importedAt})
	if !batch.Empty() {
		t.Fatalf("rows of deleted import still aggregated: %+v", batch)
	}

	again, err := f.svc.Submit(ctx, SubmitRequest{Content: []byte(exportJSON), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("resubmit after delete: %v", err)
	}
	if again.ID == rec.ID {
		t.Fatalf("resubmission must create a new record")
	}
}

func TestMemoryRepoStatusGuards(t *testing.T) {
	repo := NewMemoryRepo(feedback.NewMemoryStore())
	ctx := context.Background()
	rec := Record{ID: "i1", ContentFingerprint: "f", Status: StatusPending, CreatedAt: importedAt}
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Complete(ctx, "i1", Completion{}, importedAt); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("complete from pending should fail, got %v", err)
	}
	if err := repo.MarkProcessing(ctx, "i1", importedAt); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Complete(ctx, "i1", Completion{Conversations: 1}, importedAt); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Fail(ctx, "i1", "late", importedAt); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("completed record must not fail, got %v", err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
