package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/nanny/internal/composer"
	"github.com/kalambet/nanny/internal/knowledge"
	"github.com/kalambet/nanny/internal/llm"
)

const feverSentence = "Babies under 3 months with fever above 38°C need prompt medical evaluation"

var testCorpus = knowledge.StaticSource{
	{Title: "Fever", Content: feverSentence + ". The prevalence of febrile seizures is 3 % of children."},
	{Title: "Feeding", Content: "Offer the breast or bottle more often when your baby is unwell. " +
		"Place your baby on their back to sleep in a crib without pillows."},
}

const longReply = "Keep your baby comfortable, offer fluids often and call your pediatrician if the fever persists."

// --- mock completer ---

type mockCompleter struct {
	reply  string
	err    error
	calls  int
	system string
	msgs   []llm.Message
}

func (m *mockCompleter) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	m.calls++
	m.system = systemPrompt
	m.msgs = messages
	return m.reply, m.err
}

// --- failing and panicking sources ---

type errSource struct{}

func (errSource) FetchKnowledgeDocuments(context.Context) ([]knowledge.Document, error) {
	return nil, errors.New("database is locked")
}

type panicSource struct{}

func (panicSource) FetchKnowledgeDocuments(context.Context) ([]knowledge.Document, error) {
	panic("boom")
}

func newResponder(src knowledge.Source, c Completer) *Responder {
	return NewResponder(src, c, composer.New(composer.StyleWarm), Options{})
}

func TestEmptyCorpus(t *testing.T) {
	for _, c := range []Completer{nil, &mockCompleter{reply: longReply}} {
		r := newResponder(knowledge.StaticSource{{Title: "Blank", Content: "  "}}, c)
		reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
		if reply != composer.NoReferenceMessage {
			t.Errorf("state %s: reply = %q, want the no-reference message", r.State(), reply)
		}
		if !meta.CorpusEmpty || meta.Strategy != StrategyNoReference {
			t.Errorf("state %s: meta = %+v", r.State(), meta)
		}
		if m, ok := c.(*mockCompleter); ok && m.calls != 0 {
			t.Errorf("language model called %d times with an empty corpus", m.calls)
		}
	}
}

func TestCorpusFilteredToNothing(t *testing.T) {
	src := knowledge.StaticSource{{Title: "Rare", Content: "Encephalopathy occurs... rarely. Short one."}}
	m := &mockCompleter{reply: longReply}
	r := newResponder(src, m)
	reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
	if m.calls != 0 {
		t.Errorf("language model called %d times without reference material", m.calls)
	}
	if reply != composer.NoReferenceMessage {
		t.Errorf("reply = %q, want the no-reference message", reply)
	}
	if !meta.CorpusEmpty || meta.Strategy != StrategyNoReference {
		t.Errorf("meta = %+v", meta)
	}
}

func TestFetchErrorTreatedAsEmpty(t *testing.T) {
	r := newResponder(errSource{}, nil)
	if got := r.GenerateResponse(context.Background(), "my baby has a fever", nil); got != composer.NoReferenceMessage {
		t.Errorf("reply = %q, want the no-reference message", got)
	}
}

func TestPanicRecovered(t *testing.T) {
	r := newResponder(panicSource{}, nil)
	reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
	if reply != composer.ErrorMessage || meta.Strategy != StrategyError {
		t.Errorf("reply = %q, strategy = %q", reply, meta.Strategy)
	}
}

func TestLanguageModelReply(t *testing.T) {
	m := &mockCompleter{reply: "  " + longReply + "\n"}
	r := newResponder(testCorpus, m)

	reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
	if reply != longReply {
		t.Errorf("reply = %q, want the model reply", reply)
	}
	if meta.Strategy != StrategyLanguageModel {
		t.Errorf("strategy = %q", meta.Strategy)
	}
	if !strings.Contains(m.system, feverSentence) {
		t.Error("system prompt does not embed the reference material")
	}
	if strings.Contains(m.system, "prevalence") {
		t.Error("system prompt embeds denylisted text")
	}
	if len(m.msgs) != 1 || m.msgs[0].Role != llm.RoleUser || m.msgs[0].Content != "my baby has a fever" {
		t.Errorf("messages = %+v", m.msgs)
	}
}

func TestLanguageModelHistoryWindow(t *testing.T) {
	m := &mockCompleter{reply: longReply}
	r := newResponder(testCorpus, m)

	var history []llm.Message
	for i := range 6 {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: string(rune('a' + i))})
	}

	r.GenerateResponse(context.Background(), "and now?", history)
	if len(m.msgs) != 5 {
		t.Fatalf("sent %d messages, want 4 history turns plus the question", len(m.msgs))
	}
	if m.msgs[0].Content != "c" || m.msgs[3].Content != "f" || m.msgs[4].Content != "and now?" {
		t.Errorf("messages = %+v", m.msgs)
	}
}

func TestUnauthorizedFallsBack(t *testing.T) {
	m := &mockCompleter{err: &llm.StatusError{Code: 401, Body: "invalid api key"}}
	r := newResponder(testCorpus, m)

	reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
	if !strings.Contains(reply, feverSentence) {
		t.Errorf("reply does not contain the fever guidance:\n%s", reply)
	}
	for _, leak := range []string{"401", "invalid api key", "unauthorized", "error"} {
		if strings.Contains(strings.ToLower(reply), leak) {
			t.Errorf("reply leaks %q:\n%s", leak, reply)
		}
	}
	if meta.Strategy != StrategyRelevance {
		t.Errorf("strategy = %q, want %q", meta.Strategy, StrategyRelevance)
	}
	if len(meta.Fallbacks) != 1 || meta.Fallbacks[0] != StrategyLanguageModel {
		t.Errorf("fallbacks = %v", meta.Fallbacks)
	}
	if m.calls != 1 {
		t.Errorf("language model called %d times, want 1", m.calls)
	}
}

func TestShortReplyFallsBack(t *testing.T) {
	r := newResponder(testCorpus, &mockCompleter{reply: "Call a doctor."})

	reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
	if meta.Strategy == StrategyLanguageModel || reply == "Call a doctor." {
		t.Errorf("short model reply accepted: %q", reply)
	}
}

func TestGreetingWithoutCredential(t *testing.T) {
	r := newResponder(testCorpus, nil)
	want := composer.New(composer.StyleWarm).Greeting()

	for _, msg := range []string{"oi", "Hello there, how are you doing?"} {
		reply, meta := r.Respond(context.Background(), msg, nil)
		if reply != want || meta.Strategy != StrategyGreeting {
			t.Errorf("Respond(%q) = %q via %q, want greeting", msg, reply, meta.Strategy)
		}
	}
}

func TestRelevanceWithoutCredential(t *testing.T) {
	r := newResponder(testCorpus, nil)
	reply, meta := r.Respond(context.Background(), "my baby has a fever", nil)
	if meta.Strategy != StrategyRelevance {
		t.Errorf("strategy = %q, want relevance", meta.Strategy)
	}
	if !strings.Contains(reply, feverSentence) {
		t.Errorf("reply does not contain the fever guidance:\n%s", reply)
	}
}

func TestBroadTopicFallback(t *testing.T) {
	r := newResponder(testCorpus, nil)
	reply, meta := r.Respond(context.Background(), "she won't eat anything", nil)
	if meta.Strategy != StrategyBroadTopic {
		t.Errorf("strategy = %q, want broad-topic", meta.Strategy)
	}
	if !strings.Contains(reply, "Offer the breast or bottle") {
		t.Errorf("reply missing feeding guidance:\n%s", reply)
	}
}

func TestSupportiveFallback(t *testing.T) {
	r := newResponder(testCorpus, nil)
	reply, meta := r.Respond(context.Background(), "tell me about quantum physics", nil)
	if meta.Strategy != StrategySupportive {
		t.Errorf("strategy = %q, want supportive", meta.Strategy)
	}
	if reply != composer.New(composer.StyleWarm).Supportive("tell me about quantum physics") {
		t.Errorf("reply = %q", reply)
	}
}

func TestNeverEmpty(t *testing.T) {
	sources := []knowledge.Source{testCorpus, knowledge.StaticSource{}, errSource{}}
	completers := []Completer{nil, &mockCompleter{err: errors.New("dial tcp: connection refused")}, &mockCompleter{reply: ""}}
	messages := []string{"", "oi", "my baby has a fever", "???", strings.Repeat("why ", 200)}

	for _, src := range sources {
		for _, c := range completers {
			r := newResponder(src, c)
			for _, msg := range messages {
				if got := r.GenerateResponse(context.Background(), msg, nil); strings.TrimSpace(got) == "" {
					t.Errorf("empty reply for %q", msg)
				}
			}
		}
	}
}

func TestStrategyOrder(t *testing.T) {
	with := newResponder(testCorpus, &mockCompleter{})
	want := []string{StrategyLanguageModel, StrategyGreeting, StrategyRelevance, StrategyBroadTopic, StrategySupportive}
	if got := with.Strategies(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Strategies() = %v, want %v", got, want)
	}
	if with.State() != StateHasCredential {
		t.Errorf("State() = %q", with.State())
	}

	without := newResponder(testCorpus, nil)
	if got := without.Strategies(); got[0] != StrategyGreeting || len(got) != 4 {
		t.Errorf("Strategies() = %v, want local strategies only", got)
	}
	if without.State() != StateNoCredential {
		t.Errorf("State() = %q", without.State())
	}
}
