// Package history persists conversations under a single namespaced key.
// Storage failures are logged and never surface to callers.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kalambet/nanny/internal/storage"
)

const (
	// StorageKey is the key holding the serialized conversation list.
	StorageKey = "nanny.conversations"
	// MaxConversations is how many of the most recently updated
	// conversations are kept.
	MaxConversations = 50

	titleRunes = 30
)

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KV is the persistence backend, satisfied by *storage.Store.
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// Store is the conversation store.
type Store struct {
	kv KV
	mu sync.Mutex
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// List returns all conversations, most recently updated first. It returns
// an empty list when nothing is stored or storage fails.
func (s *Store) List(ctx context.Context) []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the conversation with id.
func (s *Store) Get(ctx context.Context, id string) (Conversation, bool) {
	for _, c := range s.List(ctx) {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Save inserts c or replaces the conversation with the same ID, then keeps
// only the MaxConversations most recently updated.
func (s *Store) Save(ctx context.Context, c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load(ctx)
	out := make([]Conversation, 0, len(all)+1)
	out = append(out, c)
	for _, existing := range all {
		if existing.ID != c.ID {
			out = append(out, existing)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > MaxConversations {
		out = out[:MaxConversations]
	}
	s.store(ctx, out)
}

// Delete removes the conversation with id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load(ctx)
	out := all[:0]
	for _, c := range all {
		if c.ID != id {
			out = append(out, c)
		}
	}
	if len(out) == len(all) {
		return
	}
	s.store(ctx, out)
}

// Clear removes every conversation.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.DeleteValue(ctx, StorageKey); err != nil {
		slog.Warn("history: clearing conversations failed", "error", err)
	}
}

func (s *Store) load(ctx context.Context) []Conversation {
	raw, err := s.kv.GetValue(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []Conversation{}
	}
	if err != nil {
		slog.Warn("history: loading conversations failed", "error", err)
		return []Conversation{}
	}
	var list []Conversation
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		slog.Warn("history: stored conversations are corrupt, ignoring them", "error", err)
		return []Conversation{}
	}
	return list
}

func (s *Store) store(ctx context.Context, list []Conversation) {
	data, err := json.Marshal(list)
	if err != nil {
		slog.Warn("history: encoding conversations failed", "error", err)
		return
	}
	if err := s.kv.SetValue(ctx, StorageKey, string(data)); err != nil {
		slog.Warn("history: saving conversations failed", "error", err)
	}
}

// Title derives a conversation title from its first message: the first 30
// characters, with "..." appended when the message is longer.
func Title(firstMessage string) string {
	if utf8.RuneCountInString(firstMessage) <= titleRunes {
		return firstMessage
	}
	return string([]rune(firstMessage)[:titleRunes]) + "..."
}
