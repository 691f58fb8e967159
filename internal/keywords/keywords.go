// Package keywords pulls caregiving vocabulary out of a user message and
// classifies its intent and tone.
package keywords

import (
	"strings"
	"unicode/utf8"

	"github.com/kalambet/nanny/internal/textnorm"
)

// Specific caregiving vocabulary. Matching is by substring in either
// direction, so stems such as "amament" also match.
var vocabulary = []string{
	"fever", "febre", "temperature", "temperatura",
	"feed", "feeding", "breastfeed", "breast", "amament", "amamentação", "milk", "leite",
	"bottle", "mamadeira", "formula",
	"sleep", "sono", "dormir", "nap", "soneca", "night", "noite",
	"colic", "cólica", "cry", "crying", "choro", "chorar",
	"pain", "dor", "diaper", "fralda", "rash", "assadura", "poop", "cocô", "pee", "xixi",
	"vaccine", "vacina", "weight", "peso", "height", "altura", "growth", "crescimento",
	"food", "comida", "solids", "papinha", "alimentação",
	"teeth", "teething", "dente", "dentição", "bath", "banho", "hygiene", "higiene",
	"cough", "tosse", "flu", "gripe", "cold", "resfriado", "vomit", "vômito", "diarrhea", "diarreia",
	"skin", "pele", "allergy", "alergia", "doctor", "médico", "pediatrician", "pediatra",
}

// Who the message is about. These rank after specific vocabulary.
var subjects = []string{
	"baby", "bebê", "bebe", "child", "criança", "newborn", "recém-nascido", "infant", "toddler",
}

var emotionalTerms = []string{
	"tired", "exhausted", "cansada", "cansado", "exausta", "exausto",
	"worried", "anxious", "scared", "preocupada", "preocupado", "ansiosa", "ansioso", "medo",
	"guilt", "guilty", "culpa", "culpada",
	"overwhelmed", "sobrecarregada", "desesperada", "alone", "sozinha",
}

// Extract returns an ordered, de-duplicated list of relevant terms from
// message: specific vocabulary first, then subject nouns, then any other
// word longer than four characters.
func Extract(message string) []string {
	words := textnorm.Tokens(message)

	var specific, subject, long []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		switch {
		case matchesAny(w, vocabulary) || matchesAny(w, emotionalTerms):
			specific = append(specific, w)
		case matchesAny(w, subjects):
			subject = append(subject, w)
		}
	}
	for _, w := range words {
		if utf8.RuneCountInString(w) > 4 {
			long = append(long, w)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]string{specific, subject, long} {
		for _, w := range group {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}

// HasDomainTerm reports whether message mentions any caregiving vocabulary,
// subject noun or emotional term.
func HasDomainTerm(message string) bool {
	for _, w := range textnorm.Tokens(message) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if matchesAny(w, vocabulary) || matchesAny(w, subjects) || matchesAny(w, emotionalTerms) {
			return true
		}
	}
	return false
}

// matchesAny reports whether word contains a term, or a term contains word.
// The second direction needs at least four characters so that function
// words like "com" or "has" do not match.
func matchesAny(word string, terms []string) bool {
	reverse := utf8.RuneCountInString(word) >= 4
	for _, t := range terms {
		if strings.Contains(word, t) || (reverse && strings.Contains(t, word)) {
			return true
		}
	}
	return false
}
