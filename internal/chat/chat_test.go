package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/nanny/internal/history"
	"github.com/kalambet/nanny/internal/llm"
	"github.com/kalambet/nanny/internal/pipeline"
	"github.com/kalambet/nanny/internal/storage"
)

type recordingResponder struct {
	reply    string
	messages []string
	history  [][]llm.Message
}

func (r *recordingResponder) Respond(_ context.Context, message string, h []llm.Message) (string, pipeline.ResponseMetadata) {
	r.messages = append(r.messages, message)
	r.history = append(r.history, h)
	return r.reply, pipeline.ResponseMetadata{Strategy: pipeline.StrategyRelevance}
}

func newTestService(t *testing.T, resp Responder) (*Service, *history.Store) {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hs := history.NewStore(st)
	svc := NewService(resp, hs)

	var n int
	clock := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, hs
}

func TestSendStartsConversation(t *testing.T) {
	resp := &recordingResponder{reply: "Offer fluids and watch for warning signs."}
	svc, hs := newTestService(t, resp)
	ctx := context.Background()

	ex, err := svc.Send(ctx, "", "  My baby has a fever since last night, what should I do?  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	c := ex.Conversation
	if c.ID != "id-1" {
		t.Errorf("conversation ID = %q, want id-1", c.ID)
	}
	if c.Title != "My baby has a fever since last..." {
		t.Errorf("Title = %q", c.Title)
	}
	if len(c.Messages) != 2 || !c.Messages[0].IsUser || c.Messages[1].IsUser {
		t.Fatalf("messages = %+v, want user then assistant", c.Messages)
	}
	if c.Messages[0].Content != "My baby has a fever since last night, what should I do?" {
		t.Errorf("user message not trimmed: %q", c.Messages[0].Content)
	}
	if ex.Reply.Content != resp.reply || c.Messages[1].Content != resp.reply {
		t.Errorf("reply = %q", ex.Reply.Content)
	}
	if !c.UpdatedAt.Equal(ex.Reply.Timestamp) {
		t.Errorf("UpdatedAt = %v, want reply timestamp %v", c.UpdatedAt, ex.Reply.Timestamp)
	}
	if ex.Metadata.Strategy != pipeline.StrategyRelevance {
		t.Errorf("Metadata.Strategy = %q", ex.Metadata.Strategy)
	}
	if len(resp.history[0]) != 0 {
		t.Errorf("first turn history = %+v, want empty", resp.history[0])
	}

	saved, ok := hs.Get(ctx, c.ID)
	if !ok || len(saved.Messages) != 2 {
		t.Errorf("saved conversation = %+v, %v", saved, ok)
	}
}

func TestSendContinuesConversation(t *testing.T) {
	resp := &recordingResponder{reply: "A reply long enough to keep."}
	svc, hs := newTestService(t, resp)
	ctx := context.Background()

	first, err := svc.Send(ctx, "", "How often should a newborn feed?")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Send(ctx, first.Conversation.ID, "And at night?")
	if err != nil {
		t.Fatal(err)
	}

	if second.Conversation.ID != first.Conversation.ID {
		t.Errorf("conversation ID changed: %q -> %q", first.Conversation.ID, second.Conversation.ID)
	}
	if second.Conversation.Title != "How often should a newborn fee..." {
		t.Errorf("Title = %q, want title from first message", second.Conversation.Title)
	}
	if len(second.Conversation.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(second.Conversation.Messages))
	}

	h := resp.history[1]
	if len(h) != 2 || h[0].Role != llm.RoleUser || h[1].Role != llm.RoleAssistant {
		t.Errorf("history passed to responder = %+v", h)
	}
	if h[0].Content != "How often should a newborn feed?" {
		t.Errorf("history[0] = %q", h[0].Content)
	}

	if got := hs.List(ctx); len(got) != 1 {
		t.Errorf("stored conversations = %d, want 1", len(got))
	}
}

func TestSendUnknownConversationStartsNew(t *testing.T) {
	svc, _ := newTestService(t, &recordingResponder{reply: "ok"})

	ex, err := svc.Send(context.Background(), "missing", "Is it normal for babies to sneeze a lot?")
	if err != nil {
		t.Fatal(err)
	}
	if ex.Conversation.ID == "missing" {
		t.Error("unknown conversation ID was reused")
	}
	if len(ex.Conversation.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(ex.Conversation.Messages))
	}
}

func TestSendEmptyMessage(t *testing.T) {
	resp := &recordingResponder{reply: "unused"}
	svc, hs := newTestService(t, resp)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.Send(context.Background(), "", text)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", text, err)
		}
	}
	if len(resp.messages) != 0 {
		t.Errorf("responder called %d times, want 0", len(resp.messages))
	}
	if got := hs.List(context.Background()); len(got) != 0 {
		t.Errorf("stored conversations = %d, want 0", len(got))
	}
}

// lockedResponder is safe for concurrent use and records how much history
// each turn saw.
type lockedResponder struct {
	mu    sync.Mutex
	seen  []int
	reply string
}

func (r *lockedResponder) Respond(_ context.Context, _ string, h []llm.Message) (string, pipeline.ResponseMetadata) {
	time.Sleep(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, len(h))
	return r.reply, pipeline.ResponseMetadata{Strategy: pipeline.StrategySupportive}
}

func TestSendConcurrentTurnsOnSameConversation(t *testing.T) {
	resp := &lockedResponder{reply: "You are doing great."}
	svc, hs := newTestService(t, resp)
	var idMu sync.Mutex
	var n int
	svc.newID = func() string {
		idMu.Lock()
		defer idMu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
	svc.now = func() time.Time { return time.Now().UTC() }
	ctx := context.Background()

	first, err := svc.Send(ctx, "", "My baby cries every evening")
	if err != nil {
		t.Fatal(err)
	}
	id := first.Conversation.ID

	const turns = 8
	var wg sync.WaitGroup
	for i := range turns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Send(ctx, id, fmt.Sprintf("follow-up %d", i)); err != nil {
				t.Errorf("Send: %v", err)
			}
		}()
	}
	wg.Wait()

	saved, ok := hs.Get(ctx, id)
	if !ok {
		t.Fatal("conversation not saved")
	}
	if want := 2 * (turns + 1); len(saved.Messages) != want {
		t.Errorf("messages = %d, want %d", len(saved.Messages), want)
	}
	seen := map[int]bool{}
	for _, h := range resp.seen {
		if seen[h] {
			t.Errorf("two turns saw the same %d-message history", h)
		}
		seen[h] = true
	}
	if len(svc.locks) != 0 {
		t.Errorf("conversation locks left behind: %d", len(svc.locks))
	}
}
