// Package pipeline produces a reply for every user message, preferring a
// grounded language-model answer and falling back through local strategies
// that never fail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/nanny/internal/composer"
	"github.com/kalambet/nanny/internal/keywords"
	"github.com/kalambet/nanny/internal/knowledge"
	"github.com/kalambet/nanny/internal/llm"
	"github.com/kalambet/nanny/internal/search"
	"github.com/kalambet/nanny/internal/textnorm"
)

const (
	defaultHistoryTurns  = 4
	defaultMinReplyRunes = 50
)

// Strategy names reported in ResponseMetadata.
const (
	StrategyLanguageModel = "language-model"
	StrategyGreeting      = "greeting"
	StrategyRelevance     = "relevance"
	StrategyBroadTopic    = "broad-topic"
	StrategySupportive    = "supportive"
	StrategyNoReference   = "no-reference"
	StrategyError         = "error"
)

var (
	// ErrEmptyCorpus means no processed reference material was available.
	ErrEmptyCorpus = errors.New("no reference material")
	// ErrDegenerateResponse means the language model answered with too
	// little text to be useful.
	ErrDegenerateResponse = errors.New("language model reply too short")

	errNoMatch = errors.New("no match")
)

// Completer is the language-model collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error)
}

// State tells whether a language-model credential is configured.
type State string

const (
	StateNoCredential  State = "no-credential"
	StateHasCredential State = "has-credential"
)

// ResponseMetadata captures diagnostic information about one reply.
type ResponseMetadata struct {
	Strategy    string `json:"strategy"`
	CorpusEmpty bool   `json:"corpus_empty"`
	// Fallbacks lists strategies that failed before Strategy succeeded.
	Fallbacks  []string `json:"fallbacks,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Options tunes a Responder. Zero values use defaults.
type Options struct {
	// HistoryTurns is how many prior messages are sent to the language model.
	HistoryTurns int
	// MinReplyRunes is the shortest language-model reply accepted.
	MinReplyRunes int
}

type exchange struct {
	message string
	history []llm.Message
	corpus  string
}

type strategy struct {
	name string
	run  func(ctx context.Context, x *exchange) (string, error)
}

// Responder turns a user message into a reply.
type Responder struct {
	source     knowledge.Source
	completer  Completer
	composer   *composer.Composer
	opts       Options
	strategies []strategy
}

// NewResponder wires the collaborators. A nil completer means no credential
// is configured and only local strategies run.
func NewResponder(source knowledge.Source, completer Completer, comp *composer.Composer, opts Options) *Responder {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = defaultHistoryTurns
	}
	if opts.MinReplyRunes <= 0 {
		opts.MinReplyRunes = defaultMinReplyRunes
	}
	if comp == nil {
		comp = composer.New(composer.StyleWarm)
	}
	r := &Responder{
		source:    source,
		completer: completer,
		composer:  comp,
		opts:      opts,
	}
	if completer != nil {
		r.strategies = append(r.strategies, strategy{StrategyLanguageModel, r.tryLanguageModel})
	}
	r.strategies = append(r.strategies,
		strategy{StrategyGreeting, r.tryGreeting},
		strategy{StrategyRelevance, r.tryRelevanceMatch},
		strategy{StrategyBroadTopic, r.tryBroadTopicMatch},
		strategy{StrategySupportive, r.useSupportiveTemplate},
	)
	return r
}

// State reports whether a language model is available.
func (r *Responder) State() State {
	if r.completer == nil {
		return StateNoCredential
	}
	return StateHasCredential
}

// Strategies returns the strategy names in the order they are tried.
func (r *Responder) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.name
	}
	return names
}

// GenerateResponse returns a non-empty reply for message. history holds the
// earlier turns of the conversation, oldest first.
func (r *Responder) GenerateResponse(ctx context.Context, message string, history []llm.Message) string {
	reply, _ := r.Respond(ctx, message, history)
	return reply
}

// Respond is GenerateResponse with diagnostics. It never fails: collaborator
// errors are logged and the next strategy is tried.
func (r *Responder) Respond(ctx context.Context, message string, history []llm.Message) (reply string, meta ResponseMetadata) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("responder: panic while generating reply", "panic", p)
			reply = composer.ErrorMessage
			meta.Strategy = StrategyError
		}
		meta.DurationMs = time.Since(start).Milliseconds()
	}()

	docs, err := r.source.FetchKnowledgeDocuments(ctx)
	if err != nil {
		slog.Warn("responder: fetching reference documents failed", "error", err)
		docs = nil
	}
	// A corpus whose every sentence is filtered out grounds nothing either.
	corpus := textnorm.Normalize(knowledge.BuildCorpus(docs))
	if strings.TrimSpace(corpus) == "" {
		slog.Debug("responder: answering without reference material", "reason", ErrEmptyCorpus, "documents", len(docs))
		meta.CorpusEmpty = true
		meta.Strategy = StrategyNoReference
		return composer.NoReferenceMessage, meta
	}

	x := &exchange{
		message: strings.TrimSpace(message),
		history: history,
		corpus:  corpus,
	}

	for _, s := range r.strategies {
		out, err := s.run(ctx, x)
		if err == nil && strings.TrimSpace(out) != "" {
			meta.Strategy = s.name
			slog.Debug("responder: reply ready",
				"strategy", s.name,
				"fallbacks", len(meta.Fallbacks),
			)
			return out, meta
		}
		if err != nil && !errors.Is(err, errNoMatch) {
			meta.Fallbacks = append(meta.Fallbacks, s.name)
		}
	}

	// Only reachable if the supportive template itself is empty.
	meta.Strategy = StrategyError
	return composer.ErrorMessage, meta
}

func (r *Responder) tryLanguageModel(ctx context.Context, x *exchange) (string, error) {
	history := x.history
	if len(history) > r.opts.HistoryTurns {
		history = history[len(history)-r.opts.HistoryTurns:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: x.message})

	reply, err := r.completer.Complete(ctx, r.composer.SystemPrompt(x.corpus), msgs)
	if err != nil {
		if errors.Is(err, llm.ErrUnauthorized) {
			slog.Warn("responder: language model rejected the credential, using local composer", "error", err)
		} else {
			slog.Warn("responder: language model request failed, using local composer", "error", err)
		}
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if n := utf8.RuneCountInString(reply); n < r.opts.MinReplyRunes {
		slog.Warn("responder: discarding short language model reply", "runes", n)
		return "", fmt.Errorf("%w: %d runes", ErrDegenerateResponse, n)
	}
	return reply, nil
}

func (r *Responder) tryGreeting(_ context.Context, x *exchange) (string, error) {
	if keywords.IsGreeting(x.message) && !keywords.HasDomainTerm(x.message) {
		return r.composer.Greeting(), nil
	}
	return "", errNoMatch
}

func (r *Responder) tryRelevanceMatch(_ context.Context, x *exchange) (string, error) {
	sentences := search.Relevant(x.corpus, keywords.Extract(x.message), x.message)
	return r.compose(x.message, sentences)
}

func (r *Responder) tryBroadTopicMatch(_ context.Context, x *exchange) (string, error) {
	return r.compose(x.message, search.Broad(x.corpus, x.message))
}

func (r *Responder) useSupportiveTemplate(_ context.Context, x *exchange) (string, error) {
	return r.composer.Supportive(x.message), nil
}

func (r *Responder) compose(message string, sentences []string) (string, error) {
	if len(sentences) == 0 {
		return "", errNoMatch
	}
	reply, ok := r.composer.Compose(message, sentences)
	if !ok {
		return "", errNoMatch
	}
	return reply, nil
}
