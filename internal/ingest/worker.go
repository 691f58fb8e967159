package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/nanny/internal/storage"
)

// JobTypeExtract is the job that turns an uploaded document into plain text.
const JobTypeExtract = "document_extract"

// JobStore abstracts the job queue and document operations the worker needs.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) (bool, error)
	GetDocument(ctx context.Context, id string) (storage.Document, error)
	MarkDocumentProcessed(ctx context.Context, id, content string) error
	MarkDocumentFailed(ctx context.Context, id, errMsg string) error
}

// SubmitStore is what Submit needs to register an upload.
type SubmitStore interface {
	CreateDocument(ctx context.Context, d storage.Document) error
	EnqueueJob(ctx context.Context, job storage.Job) error
	MarkDocumentFailed(ctx context.Context, id, errMsg string) error
}

// Submit records doc as uploading and queues it for extraction. doc.ID is
// assigned when empty. If the job cannot be queued the document is marked
// failed so it does not stay uploading forever.
func Submit(ctx context.Context, store SubmitStore, doc storage.Document) (storage.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Status = storage.DocumentUploading
	if err := store.CreateDocument(ctx, doc); err != nil {
		return storage.Document{}, fmt.Errorf("saving document: %w", err)
	}

	payload, err := json.Marshal(extractPayload{DocumentID: doc.ID})
	if err != nil {
		return storage.Document{}, fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobTypeExtract,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(ctx, job); err != nil {
		if markErr := store.MarkDocumentFailed(ctx, doc.ID, "could not queue extraction"); markErr != nil {
			slog.Error("ingest: marking unqueued document failed", "document_id", doc.ID, "error", markErr)
		}
		return storage.Document{}, fmt.Errorf("enqueuing extract job: %w", err)
	}
	return doc, nil
}

// Worker processes document_extract jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	extractor *Extractor
	poll      time.Duration
	pollers   int
	logger    *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0 it defaults to 500ms;
// if pollers is <= 0 a single poller is used.
func NewWorker(store JobStore, extractor *Extractor, pollInterval time.Duration, pollers int) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if pollers <= 0 {
		pollers = 1
	}
	if extractor == nil {
		extractor = NewExtractor(nil)
	}
	return &Worker{
		store:     store,
		extractor: extractor,
		poll:      pollInterval,
		pollers:   pollers,
		logger:    slog.Default().With("component", "ingest"),
	}
}

// Run polls for jobs with the configured number of pollers until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for i := range w.pollers {
		g.Go(func() error {
			w.pollLoop(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) pollLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "poller", id, "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single extract job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobTypeExtract})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	docID, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "document_id", docID, "error", err)
		exhausted, failErr := w.store.FailJob(ctx, job.ID, err.Error())
		if failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
			return true, nil
		}
		if exhausted && docID != "" {
			if err := w.store.MarkDocumentFailed(ctx, docID, err.Error()); err != nil && !errors.Is(err, storage.ErrNotFound) {
				w.logger.Error("failed to mark document as failed", "document_id", docID, "error", err)
			}
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("document processed", "document_id", docID)
	return true, nil
}

type extractPayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload extractPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return payload.DocumentID, fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	content, err := w.extractor.Extract(ctx, doc)
	if err != nil {
		return doc.ID, err
	}

	if err := w.store.MarkDocumentProcessed(ctx, doc.ID, content); err != nil {
		return doc.ID, fmt.Errorf("saving extracted content: %w", err)
	}
	return doc.ID, nil
}
