// Package search selects the corpus sentences most relevant to a message.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/kalambet/nanny/internal/textnorm"
)

// MaxResults bounds every search result.
const MaxResults = 2

const (
	fallbackWordRunes     = 3
	minTopicSentenceRunes = 15
)

// Topic is a broad caregiving subject with the word prefixes that signal it.
type Topic struct {
	Name  string
	Terms []string
}

// Topics is checked in order; the first topic the message mentions wins.
var Topics = []Topic{
	{"feeding", []string{"aliment", "comer", "come", "leite", "papinha", "mamad", "amament", "feed", "milk", "breast", "bottle", "eat", "food", "formula"}},
	{"sleep", []string{"sono", "dorm", "noite", "soneca", "sleep", "nap", "night"}},
	{"health", []string{"febre", "tosse", "gripe", "resfri", "doente", "vômit", "diarr", "fever", "cough", "flu", "cold", "sick", "vomit"}},
	{"care", []string{"banho", "fralda", "higiene", "bath", "diaper", "hygiene"}},
	{"development", []string{"cresc", "peso", "altura", "grow", "weight", "height"}},
}

// Relevant returns up to MaxResults valid corpus sentences containing the
// given keywords, in keyword order and then corpus order. When no keyword
// matches, the message's words longer than three characters are tried
// instead.
func Relevant(corpus string, keywords []string, message string) []string {
	sentences := candidates(corpus, 0)
	if len(sentences) == 0 {
		return nil
	}

	if found := containing(sentences, keywords); len(found) > 0 {
		return found
	}

	var words []string
	for _, w := range textnorm.Tokens(message) {
		if utf8.RuneCountInString(w) > fallbackWordRunes {
			words = append(words, w)
		}
	}
	return containing(sentences, words)
}

// DetectTopic returns the first topic message mentions.
func DetectTopic(message string) (Topic, bool) {
	tokens := textnorm.Tokens(message)
	for _, topic := range Topics {
		if anyPrefix(tokens, topic.Terms) {
			return topic, true
		}
	}
	return Topic{}, false
}

// Broad returns up to MaxResults corpus sentences about the message's topic.
func Broad(corpus, message string) []string {
	topic, ok := DetectTopic(message)
	if !ok {
		return nil
	}

	var out []string
	for _, s := range candidates(corpus, minTopicSentenceRunes) {
		if anyPrefix(textnorm.Tokens(s), topic.Terms) {
			out = append(out, s)
			if len(out) == MaxResults {
				break
			}
		}
	}
	return out
}

func candidates(corpus string, minRunes int) []string {
	var out []string
	for _, s := range textnorm.SplitSentences(corpus) {
		if utf8.RuneCountInString(s) > minRunes && textnorm.ValidSentence(s) {
			out = append(out, s)
		}
	}
	return out
}

func containing(sentences, terms []string) []string {
	var out []string
	seen := make(map[int]bool)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		for i, s := range sentences {
			if seen[i] || !strings.Contains(strings.ToLower(s), term) {
				continue
			}
			seen[i] = true
			out = append(out, s)
			if len(out) == MaxResults {
				return out
			}
		}
	}
	return out
}

func anyPrefix(tokens, prefixes []string) bool {
	for _, tok := range tokens {
		for _, p := range prefixes {
			if strings.HasPrefix(tok, p) {
				return true
			}
		}
	}
	return false
}
