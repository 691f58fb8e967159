package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/nanny/internal/ingest"
	"github.com/kalambet/nanny/internal/storage"
)

type DocumentRequest struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Content  string `json:"content"` // plain text, or base64 for pdf
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type DocumentView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Source    string    `json:"source,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newDocumentView(d storage.Document) DocumentView {
	return DocumentView{
		ID:        d.ID,
		Title:     d.Title,
		Type:      d.Kind,
		Source:    d.Source,
		Status:    d.Status,
		Error:     d.LastError,
		Length:    len(d.Content),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// documentFromRequest validates an upload and builds the document to store.
func documentFromRequest(req DocumentRequest) (storage.Document, error) {
	doc := storage.Document{Title: strings.TrimSpace(req.Title), Kind: req.Type}
	if doc.Kind == "" {
		doc.Kind = storage.KindText
	}

	switch doc.Kind {
	case storage.KindText:
		if strings.TrimSpace(req.Content) == "" {
			return doc, errors.New("content is required")
		}
		doc.Raw = []byte(req.Content)
	case storage.KindURL:
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return doc, errors.New("url must be an absolute http or https URL")
		}
		doc.Source = u.String()
		if doc.Title == "" {
			doc.Title = doc.Source
		}
	case storage.KindPDF:
		if req.Content == "" {
			return doc, errors.New("content is required")
		}
		raw, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return doc, errors.New("invalid base64 content")
		}
		doc.Raw = raw
		doc.Source = req.Filename
		if doc.Title == "" {
			doc.Title = strings.TrimSuffix(req.Filename, ".pdf")
		}
	default:
		return doc, errors.New("type must be one of text, url, pdf")
	}

	if doc.Title == "" {
		doc.Title = "Untitled"
	}
	return doc, nil
}

func handleCreateDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		doc, err := documentFromRequest(req)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		doc, err = ingest.Submit(r.Context(), deps.Documents, doc)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store document: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     doc.ID,
			"status": doc.Status,
		})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		docs, err := deps.Documents.ListDocuments(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}

		views := make([]DocumentView, 0, len(docs))
		for _, d := range docs {
			views = append(views, newDocumentView(d))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Documents.GetDocument(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, newDocumentView(doc))
	}
}

func handleDeleteDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Documents.DeleteDocument(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
