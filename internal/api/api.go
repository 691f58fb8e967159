package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/nanny/internal/chat"
	"github.com/kalambet/nanny/internal/history"
	"github.com/kalambet/nanny/internal/llm"
	"github.com/kalambet/nanny/internal/pipeline"
	"github.com/kalambet/nanny/internal/storage"
)

const (
	maxRequestBodySize  = 1 << 20  // 1MB
	maxDocumentBodySize = 10 << 20 // 10MB
)

// ChatService runs one conversational turn.
type ChatService interface {
	Send(ctx context.Context, conversationID, text string) (chat.Exchange, error)
}

// Responder answers stateless requests on the OpenAI-compatible endpoint.
type Responder interface {
	Respond(ctx context.Context, message string, history []llm.Message) (string, pipeline.ResponseMetadata)
	State() pipeline.State
	Strategies() []string
}

// ConversationStore is the subset of *history.Store the API exposes.
type ConversationStore interface {
	List(ctx context.Context) []history.Conversation
	Get(ctx context.Context, id string) (history.Conversation, bool)
	Delete(ctx context.Context, id string)
	Clear(ctx context.Context)
}

// DocumentStore is the subset of *storage.Store used for uploads.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d storage.Document) error
	EnqueueJob(ctx context.Context, job storage.Job) error
	MarkDocumentFailed(ctx context.Context, id, errMsg string) error
	GetDocument(ctx context.Context, id string) (storage.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]storage.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type Deps struct {
	Chat           ChatService
	Responder      Responder
	Conversations  ConversationStore
	Documents      DocumentStore
	Model          string   // reported by /v1/chat/completions
	AllowedOrigins []string // CORS origins; empty allows none
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth(deps))

	r.Post("/chat", handleChat(deps))
	r.Post("/v1/chat/completions", handleChatCompletions(deps))

	r.Get("/conversations", handleListConversations(deps))
	r.Delete("/conversations", handleClearConversations(deps))
	r.Get("/conversations/{id}", handleGetConversation(deps))
	r.Delete("/conversations/{id}", handleDeleteConversation(deps))

	r.Post("/documents", handleCreateDocument(deps))
	r.Get("/documents", handleListDocuments(deps))
	r.Get("/documents/{id}", handleGetDocument(deps))
	r.Delete("/documents/{id}", handleDeleteDocument(deps))

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"state":      deps.Responder.State(),
			"strategies": deps.Responder.Strategies(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
