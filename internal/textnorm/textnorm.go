// Package textnorm turns raw reference documents into short, plain,
// caregiver-safe sentences.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minSentenceRunes = 20
	maxSentenceRunes = 200
)

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]+|\n\s*\n`)
	whitespace     = regexp.MustCompile(`\s+`)
	spaceBeforeDot = regexp.MustCompile(`\s+([.,;:!?])`)
	danglingPunct  = regexp.MustCompile(`[,;:]+([.!?])`)
	redactions     = compileRedactions()
)

func compileRedactions() []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, r := range Denylist {
		if r.Redact {
			out = append(out, regexp.MustCompile(`(?:` + r.Pattern.String() + `)[^.!?\n]*`))
		}
	}
	return out
}

// Normalize strips document scaffolding, redacts clinical clauses and keeps
// only valid sentences, each terminated by a period and separated by a
// single space. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	text := raw
	for _, m := range markers {
		text = m.ReplaceAllString(text, "")
	}
	text = redact(text)

	var kept []string
	for _, s := range SplitSentences(text) {
		if ValidSentence(s) {
			kept = append(kept, s)
		}
	}
	return Join(kept)
}

// SplitSentences splits text on terminal punctuation and paragraph breaks.
// Pieces are trimmed and internal whitespace is collapsed; empty pieces are
// dropped.
func SplitSentences(text string) []string {
	var out []string
	for _, p := range sentenceSplit.Split(text, -1) {
		p = collapse(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Join renders sentences as a single paragraph.
func Join(sentences []string) string {
	if len(sentences) == 0 {
		return ""
	}
	return strings.Join(sentences, ". ") + "."
}

// ValidSentence reports whether s is short enough to be readable, long
// enough to carry information, matches no denylist rule and has either a
// predicate or a caregiving noun.
func ValidSentence(s string) bool {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n <= minSentenceRunes || n >= maxSentenceRunes {
		return false
	}
	if Rejected(s) {
		return false
	}
	return hasStructure(s)
}

// Rejected reports whether s matches any denylist rule.
func Rejected(s string) bool {
	return MatchingRule(s) != ""
}

// MatchingRule returns the name of the first denylist rule matching s, or "".
func MatchingRule(s string) string {
	for _, r := range Denylist {
		if r.Pattern.MatchString(s) {
			return r.Name
		}
	}
	return ""
}

// Simplify rewrites formal terms into plain language and redacts clinical
// clauses.
func Simplify(s string) string {
	for _, r := range Simplifications {
		with := r.With
		s = r.Pattern.ReplaceAllStringFunc(s, func(match string) string {
			return matchCase(match, with)
		})
	}
	s = redact(s)
	s = spaceBeforeDot.ReplaceAllString(collapse(s), "$1")
	return danglingPunct.ReplaceAllString(s, "$1")
}

// Tokens lowercases s and splits it into words. Hyphenated words stay whole.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func hasStructure(s string) bool {
	for _, tok := range Tokens(s) {
		if verbs[tok] {
			return true
		}
		for _, stem := range domainStems {
			if strings.HasPrefix(tok, stem) {
				return true
			}
		}
	}
	return false
}

func redact(text string) string {
	for _, re := range redactions {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func matchCase(match, with string) string {
	first, _ := utf8.DecodeRuneInString(match)
	if !unicode.IsUpper(first) {
		return with
	}
	r, size := utf8.DecodeRuneInString(with)
	return string(unicode.ToUpper(r)) + with[size:]
}
