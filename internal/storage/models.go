package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document lifecycle states. Only processed documents feed the corpus.
const (
	DocumentUploading = "uploading"
	DocumentProcessed = "processed"
	DocumentError     = "error"
)

// Document kinds accepted for upload.
const (
	KindText = "text"
	KindURL  = "url"
	KindPDF  = "pdf"
)

type Document struct {
	ID        string
	Title     string
	Kind      string
	Source    string // URL for KindURL, original filename for KindPDF
	Raw       []byte // unprocessed upload payload, cleared once processed
	Content   string // extracted plain text
	Status    string
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}
