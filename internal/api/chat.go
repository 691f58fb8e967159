package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/nanny/internal/chat"
	"github.com/kalambet/nanny/internal/history"
	"github.com/kalambet/nanny/internal/llm"
	"github.com/kalambet/nanny/internal/pipeline"
)

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type ChatResponse struct {
	ConversationID string                    `json:"conversation_id"`
	Reply          string                    `json:"reply"`
	Conversation   history.Conversation      `json:"conversation"`
	Metadata       pipeline.ResponseMetadata `json:"metadata"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		ex, err := deps.Chat.Send(r.Context(), req.ConversationID, req.Message)
		if errors.Is(err, chat.ErrEmptyMessage) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "chat failed: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, ChatResponse{
			ConversationID: ex.Conversation.ID,
			Reply:          ex.Reply.Content,
			Conversation:   ex.Conversation,
			Metadata:       ex.Metadata,
		})
	}
}

// handleChatCompletions answers OpenAI-style requests statelessly: the last
// user message is the question and earlier turns are its history.
func handleChatCompletions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req llm.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Stream {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "streaming is not supported")
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		last := -1
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == llm.RoleUser {
				last = i
				break
			}
		}
		if last < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one user message is required")
			return
		}

		var turns []llm.Message
		for _, m := range req.Messages[:last] {
			if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
				turns = append(turns, m)
			}
		}

		reply, meta := deps.Responder.Respond(r.Context(), req.Messages[last].Content, turns)
		slog.Debug("completion answered",
			"strategy", meta.Strategy,
			"fallbacks", len(meta.Fallbacks),
			"duration_ms", meta.DurationMs,
		)

		model := req.Model
		if model == "" {
			model = deps.Model
		}
		writeJSON(w, http.StatusOK, llm.ChatResponse{
			ID:      "chatcmpl-" + uuid.NewString(),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []llm.Choice{{
				Index:        0,
				Message:      llm.Message{Role: llm.RoleAssistant, Content: reply},
				FinishReason: "stop",
			}},
		})
	}
}

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Conversations.List(r.Context()))
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := deps.Conversations.Get(r.Context(), chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleDeleteConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := deps.Conversations.Get(r.Context(), id); !ok {
			httpError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		deps.Conversations.Delete(r.Context(), id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleClearConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Conversations.Clear(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}
