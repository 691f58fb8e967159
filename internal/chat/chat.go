// Package chat runs a single conversational turn: it records the user's
// message, asks the responder for a reply and saves the conversation.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/nanny/internal/history"
	"github.com/kalambet/nanny/internal/llm"
	"github.com/kalambet/nanny/internal/pipeline"
)

// ErrEmptyMessage is returned when the user's message is blank.
var ErrEmptyMessage = errors.New("message is empty")

// Responder produces a reply for a message given the earlier turns.
type Responder interface {
	Respond(ctx context.Context, message string, history []llm.Message) (string, pipeline.ResponseMetadata)
}

// ConversationStore is the subset of *history.Store the service needs.
type ConversationStore interface {
	Get(ctx context.Context, id string) (history.Conversation, bool)
	Save(ctx context.Context, c history.Conversation)
}

// Exchange is the outcome of one turn.
type Exchange struct {
	Conversation history.Conversation
	Reply        history.Message
	Metadata     pipeline.ResponseMetadata
}

type Service struct {
	responder Responder
	store     ConversationStore
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	locks map[string]*convLock
}

// convLock serializes turns on one conversation. refs counts the callers
// holding or waiting for it so the entry can be dropped when idle.
type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(responder Responder, store ConversationStore) *Service {
	return &Service{
		responder: responder,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		locks:     make(map[string]*convLock),
	}
}

// lock blocks until the caller owns conversation id and returns the release
// func. Turns on different conversations proceed in parallel.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &convLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// Send appends text to the conversation identified by conversationID and
// the assistant's reply after it. A new conversation is started when
// conversationID is empty or unknown. Concurrent sends to the same
// conversation run one after another so no turn is lost.
func (s *Service) Send(ctx context.Context, conversationID, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}
	if conversationID != "" {
		defer s.lock(conversationID)()
	}

	now := s.now()
	conv, ok := s.store.Get(ctx, conversationID)
	if conversationID == "" || !ok {
		conv = history.Conversation{
			ID:        s.newID(),
			Title:     history.Title(text),
			CreatedAt: now,
		}
	}

	prior := toLLMMessages(conv.Messages)
	conv.Messages = append(conv.Messages, history.Message{
		ID:        s.newID(),
		Content:   text,
		IsUser:    true,
		Timestamp: now,
	})

	reply, meta := s.responder.Respond(ctx, text, prior)

	answer := history.Message{
		ID:        s.newID(),
		Content:   reply,
		Timestamp: s.now(),
	}
	conv.Messages = append(conv.Messages, answer)
	conv.UpdatedAt = answer.Timestamp
	s.store.Save(ctx, conv)

	return Exchange{Conversation: conv, Reply: answer, Metadata: meta}, nil
}

func toLLMMessages(msgs []history.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleAssistant
		if m.IsUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
