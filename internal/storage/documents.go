package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const documentColumns = `id, title, kind, source, content, status, last_error, created_at, updated_at`

// CreateDocument inserts a new document. Status defaults to uploading.
func (s *Store) CreateDocument(ctx context.Context, d Document) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.Status == "" {
		d.Status = DocumentUploading
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, kind, source, raw, content, status, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Kind, d.Source, d.Raw, d.Content, d.Status, d.LastError,
		formatTime(d.CreatedAt), formatTime(now),
	)
	return err
}

// GetDocument returns the document with its raw payload.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+`, raw FROM documents WHERE id = ?`, id)
	var d Document
	if err := scanDocument(row, &d, &d.Raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return d, nil
}

// ListDocuments returns documents newest first without raw payloads.
func (s *Store) ListDocuments(ctx context.Context, limit, offset int) ([]Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`, limit, offset)
}

// ListDocumentsByStatus returns documents in the given status, oldest first.
func (s *Store) ListDocumentsByStatus(ctx context.Context, status string) ([]Document, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE status = ? ORDER BY created_at ASC, id ASC`, status)
}

// MarkDocumentProcessed stores extracted content and drops the raw payload.
func (s *Store) MarkDocumentProcessed(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET content = ?, raw = NULL, status = ?, last_error = '', updated_at = ?
		WHERE id = ?`, content, DocumentProcessed, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkDocumentFailed moves a document to the error state.
func (s *Store) MarkDocumentFailed(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		DocumentError, errMsg, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner, d *Document, extra ...any) error {
	var createdAt, updatedAt string
	dest := []any{&d.ID, &d.Title, &d.Kind, &d.Source, &d.Content, &d.Status, &d.LastError, &createdAt, &updatedAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	var err error
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return fmt.Errorf("document %s: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return fmt.Errorf("document %s: %w", d.ID, err)
	}
	return nil
}
