package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"bills-backend/internal/queue"
)

type fakeStore struct {
	saveErr error
	saved   []string
	deleted []string
}

func (f *fakeStore) Save(ctx context.Context, userID, fileName string, r io.Reader) (string, int64, string, error) {
	if f.saveErr != nil {
		return "", 0, "", f.saveErr
	}
	n, _ := io.Copy(io.Discard, r)
	key := "uploads/" + userID + "/" + fileName
	f.saved = append(f.saved, key)
	return key, n, "application/octet-stream", nil
}

func (f *fakeStore) SaveWithKey(ctx context.Context, storageKey, contentType string, r io.Reader) (int64, error) {
	return io.Copy(io.Discard, r)
}

func (f *fakeStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeStore) Delete(ctx context.Context, storageKey string) error {
	f.deleted = append(f.deleted, storageKey)
	return nil
}

type fakeQueue struct {
	sent []queue.Message
	err  error
}

func (f *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type failingRepo struct {
	*MemoryRepo
}

func (r *failingRepo) Create(ctx context.Context, job Job) error {
	return errors.New("insert failed")
}

func TestUploadEnqueuesJob(t *testing.T) {
	repo := NewMemoryRepo()
	store := &fakeStore{}
	q := &fakeQueue{}
	svc := &Service{Repo: repo, Store: store, Queue: q}

	ctx := WithRequestID(context.Background(), "req-42")
	job, err := svc.Upload(ctx, "user-1", "bill.pdf", strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusInQueue {
		t.Fatalf("status = %q", job.Status)
	}
	if job.OriginalSize != int64(len("%PDF-1.4 data")) {
		t.Fatalf("size = %d", job.OriginalSize)
	}

	stored, err := repo.GetByID(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.StorageKey == "" {
		t.Fatal("storage key missing")
	}

	if len(q.sent) != 1 {
		t.Fatalf("sent = %+v", q.sent)
	}
	msg := q.sent[0]
	if msg.JobID != job.ID || msg.RequestID != "req-42" || msg.Version != 1 {
		t.Fatalf("message = %+v", msg)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo(), Store: &fakeStore{}, Queue: &fakeQueue{}}

	cases := []struct {
		name     string
		fileName string
	}{
		{"empty name", "   "},
		{"no extension", "invoice"},
		{"executable", "invoice.exe"},
		{"spreadsheet", "invoice.xlsx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), "user-1", tc.fileName, strings.NewReader("x"))
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestUploadAcceptsImages(t *testing.T) {
	for _, name := range []string{"page.png", "page.jpg", "scan.JPEG"} {
		svc := &Service{Repo: NewMemoryRepo(), Store: &fakeStore{}, Queue: &fakeQueue{}}
		if _, err := svc.Upload(context.Background(), "user-1", name, strings.NewReader("x")); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestUploadCleansUpOnCreateFailure(t *testing.T) {
	store := &fakeStore{}
	svc := &Service{Repo: &failingRepo{NewMemoryRepo()}, Store: store, Queue: &fakeQueue{}}

	_, err := svc.Upload(context.Background(), "user-1", "bill.pdf", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error")
	}
	// The orphaned object must be removed.
	if len(store.deleted) != 1 || store.deleted[0] != store.saved[0] {
		t.Fatalf("deleted = %v, saved = %v", store.deleted, store.saved)
	}
}

func TestUploadStoreFailure(t *testing.T) {
	svc := &Service{
		Repo:  NewMemoryRepo(),
		Store: &fakeStore{saveErr: errors.New("disk full")},
		Queue: &fakeQueue{},
	}
	if _, err := svc.Upload(context.Background(), "user-1", "bill.pdf", strings.NewReader("x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestUploadToleratesEnqueueFailure(t *testing.T) {
	repo := NewMemoryRepo()
	svc := &Service{Repo: repo, Store: &fakeStore{}, Queue: &fakeQueue{err: errors.New("sqs down")}}

	job, err := svc.Upload(context.Background(), "user-1", "bill.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("enqueue failure must not fail the upload: %v", err)
	}
	// The job stays in_queue for a later retry.
	stored, _ := repo.GetByID(context.Background(), "user-1", job.ID)
	if stored.Status != StatusInQueue {
		t.Fatalf("status = %q", stored.Status)
	}
}

type inlineProcessor struct {
	done chan string
}

func (p *inlineProcessor) ProcessJob(ctx context.Context, jobID string) error {
	p.done <- jobID
	return nil
}

func TestUploadProcessesInlineWithoutQueue(t *testing.T) {
	proc := &inlineProcessor{done: make(chan string, 1)}
	svc := &Service{Repo: NewMemoryRepo(), Store: &fakeStore{}, Processor: proc}

	job, err := svc.Upload(context.Background(), "user-1", "bill.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-proc.done:
		if got != job.ID {
			t.Fatalf("processed %q, want %q", got, job.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("processor was not invoked")
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	_, err := svc.List(context.Background(), "user-1", "done", 10, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	repo.Create(context.Background(), Job{ID: "j1", UserID: "user-1", Status: StatusProcessed, CreatedAt: now.Add(-time.Hour)})
	repo.Create(context.Background(), Job{ID: "j2", UserID: "user-1", Status: StatusError, CreatedAt: now})
	repo.Create(context.Background(), Job{ID: "j3", UserID: "user-2", Status: StatusError, CreatedAt: now})

	svc := &Service{Repo: repo}
	jobs, err := svc.List(context.Background(), "user-1", StatusError, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "j2" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestRetryRequeuesAndDispatches(t *testing.T) {
	repo := NewMemoryRepo()
	q := &fakeQueue{}
	failedAt := time.Now().UTC()
	repo.Create(context.Background(), Job{ID: "j1", UserID: "user-1", Status: StatusError, CreatedAt: failedAt.Add(-time.Minute)})
	repo.MarkError(context.Background(), "j1", "render failed", failedAt)

	svc := &Service{Repo: repo, Store: &fakeStore{}, Queue: q}
	job, err := svc.Retry(context.Background(), "j1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != StatusInQueue || job.ErrorMessage != "" || job.FailedAt != nil {
		t.Fatalf("job = %+v", job)
	}
	if len(q.sent) != 1 || q.sent[0].JobID != "j1" {
		t.Fatalf("sent = %+v", q.sent)
	}
}

func TestRetryUnknownJob(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo(), Store: &fakeStore{}, Queue: &fakeQueue{}}
	if _, err := svc.Retry(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
