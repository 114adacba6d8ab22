package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"bills-backend/internal/jobs"
	"bills-backend/internal/pages"
	"bills-backend/internal/render"
)

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Save(ctx context.Context, userId, fileName string, r io.Reader) (string, int64, string, error) {
	data, _ := io.ReadAll(r)
	key := "u/" + fileName
	f.objects[key] = data
	return key, int64(len(data)), "application/octet-stream", nil
}

func (f *fakeStore) SaveWithKey(ctx context.Context, storageKey, contentType string, r io.Reader) (int64, error) {
	data, _ := io.ReadAll(r)
	f.objects[storageKey] = data
	return int64(len(data)), nil
}

func (f *fakeStore) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	data, ok := f.objects[storageKey]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, storageKey string) error {
	delete(f.objects, storageKey)
	return nil
}

type fakeConverter struct {
	pages []render.PageImage
	err   error
}

func (f *fakeConverter) Pages(ctx context.Context, src []byte, fileName string) ([]render.PageImage, error) {
	return f.pages, f.err
}

type scriptedLLM struct {
	labels   []string
	payloads []string
	calls    int
}

func (s *scriptedLLM) ClassifyPage(ctx context.Context, image []byte) (string, error) {
	label := s.labels[s.calls]
	return label, nil
}

func (s *scriptedLLM) ExtractPage(ctx context.Context, image []byte, docType string) (json.RawMessage, error) {
	payload := s.payloads[s.calls]
	s.calls++
	if payload == "FAIL" {
		return nil, errors.New("extraction blew up")
	}
	return json.RawMessage(payload), nil
}

func (s *scriptedLLM) Complete(ctx context.Context, system, user string, maxTokens int) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func setup(t *testing.T, conv render.Converter, llm *scriptedLLM) (*Orchestrator, *jobs.MemoryRepo, *pages.MemoryRepo, *fakeStore) {
	t.Helper()
	jobRepo := jobs.NewMemoryRepo()
	pageRepo := pages.NewMemoryRepo()
	store := newFakeStore()
	o := &Orchestrator{
		Jobs:   jobRepo,
		Pages:  &pages.Extractor{LLM: llm, Repo: pageRepo, Store: store},
		Store:  store,
		Render: conv,
	}
	return o, jobRepo, pageRepo, store
}

func seedJob(t *testing.T, repo *jobs.MemoryRepo, store *fakeStore) jobs.Job {
	t.Helper()
	key, _, _, err := store.Save(context.Background(), "user-1", "bill.pdf", strings.NewReader("pdfbytes"))
	if err != nil {
		t.Fatal(err)
	}
	job := jobs.Job{
		ID:         "job-1",
		UserID:     "user-1",
		FileName:   "bill.pdf",
		Status:     jobs.StatusInQueue,
		StorageKey: key,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestProcessJobTwoPages(t *testing.T) {
	llm := &scriptedLLM{
		labels: []string{"bill", "eway bill"},
		payloads: []string{
			`{"po_number":"PO-2024-7","items":[{"name":"cement","qty":2}]}`,
			`{"eway_bill_number":"EWB001"}`,
		},
	}
	conv := &fakeConverter{pages: []render.PageImage{
		{Number: 1, PNG: []byte("p1")},
		{Number: 2, PNG: []byte("p2")},
	}}
	o, jobRepo, pageRepo, store := setup(t, conv, llm)
	seedJob(t, jobRepo, store)

	if err := o.ProcessJob(context.Background(), "job-1"); err != nil {
		t.Fatal(err)
	}

	job, err := jobRepo.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != jobs.StatusProcessed {
		t.Fatalf("status = %q", job.Status)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("unexpected error summary: %q", job.ErrorMessage)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Fatalf("timestamps not set: %+v", job)
	}

	docs, err := pageRepo.ListByJob(context.Background(), "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d", len(docs))
	}
	if docs[0].DocType != pages.TypeBill || docs[0].PONumber != "PO-2024-7" {
		t.Fatalf("page 1 = %+v", docs[0])
	}
	if docs[1].DocType != pages.TypeEwayBill {
		t.Fatalf("page 2 = %+v", docs[1])
	}
}

func TestProcessJobPageFailureContinues(t *testing.T) {
	llm := &scriptedLLM{
		labels:   []string{"bill", "bill"},
		payloads: []string{"FAIL", `{"items":[{"name":"sand"}]}`},
	}
	conv := &fakeConverter{pages: []render.PageImage{
		{Number: 1, PNG: []byte("p1")},
		{Number: 2, PNG: []byte("p2")},
	}}
	o, jobRepo, pageRepo, store := setup(t, conv, llm)
	seedJob(t, jobRepo, store)

	if err := o.ProcessJob(context.Background(), "job-1"); err != nil {
		t.Fatal(err)
	}

	job, _ := jobRepo.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusProcessed {
		t.Fatalf("status = %q", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "page 1") {
		t.Fatalf("error summary = %q", job.ErrorMessage)
	}

	docs, _ := pageRepo.ListByJob(context.Background(), "job-1")
	if len(docs) != 2 {
		t.Fatalf("both pages must have documents, got %d", len(docs))
	}
	if docs[0].Status != pages.StatusUnknown {
		t.Fatalf("failed page = %+v", docs[0])
	}
	if docs[1].Status != pages.StatusDraftPending {
		t.Fatalf("good page = %+v", docs[1])
	}
}

func TestProcessJobRenderFailureFailsJob(t *testing.T) {
	conv := &fakeConverter{err: errors.New("corrupt pdf")}
	o, jobRepo, _, store := setup(t, conv, &scriptedLLM{})
	seedJob(t, jobRepo, store)

	if err := o.ProcessJob(context.Background(), "job-1"); err == nil {
		t.Fatal("expected error")
	}

	job, _ := jobRepo.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusError {
		t.Fatalf("status = %q", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "render pages") {
		t.Fatalf("error = %q", job.ErrorMessage)
	}
	if job.FailedAt == nil {
		t.Fatal("failedAt not set")
	}
}

func TestProcessJobMissingStorageKey(t *testing.T) {
	o, jobRepo, _, _ := setup(t, &fakeConverter{}, &scriptedLLM{})
	jobRepo.Create(context.Background(), jobs.Job{ID: "job-x", UserID: "u", Status: jobs.StatusInQueue})

	if err := o.ProcessJob(context.Background(), "job-x"); err == nil {
		t.Fatal("expected error")
	}
	job, _ := jobRepo.Get(context.Background(), "job-x")
	if job.Status != jobs.StatusError {
		t.Fatalf("status = %q", job.Status)
	}
}

func TestProcessJobUnknownJob(t *testing.T) {
	o, _, _, _ := setup(t, &fakeConverter{}, &scriptedLLM{})
	err := o.ProcessJob(context.Background(), "ghost")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
