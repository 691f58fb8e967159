// Package knowledge supplies the reference corpus the assistant answers from.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/nanny/internal/storage"
)

const documentSeparator = "\n\n---\n\n"

// Document is a processed reference document.
type Document struct {
	Title   string
	Content string
}

// Source fetches the processed reference documents.
type Source interface {
	FetchKnowledgeDocuments(ctx context.Context) ([]Document, error)
}

// BuildCorpus renders docs as one text, skipping documents with no content.
func BuildCorpus(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		content := strings.TrimSpace(d.Content)
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Title: %s\n\nContent:\n%s", strings.TrimSpace(d.Title), content))
	}
	return strings.Join(parts, documentSeparator)
}

// StaticSource serves a fixed set of documents.
type StaticSource []Document

func (s StaticSource) FetchKnowledgeDocuments(context.Context) ([]Document, error) {
	return s, nil
}

// DocumentLister is the subset of storage.Store used by StoreSource.
type DocumentLister interface {
	ListDocumentsByStatus(ctx context.Context, status string) ([]storage.Document, error)
}

// StoreSource reads processed documents from the SQLite store.
type StoreSource struct {
	store DocumentLister
}

func NewStoreSource(store DocumentLister) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) FetchKnowledgeDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.store.ListDocumentsByStatus(ctx, storage.DocumentProcessed)
	if err != nil {
		return nil, fmt.Errorf("listing processed documents: %w", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, Document{Title: r.Title, Content: r.Content})
	}
	return docs, nil
}
