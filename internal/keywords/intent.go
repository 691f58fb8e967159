package keywords

import (
	"strings"
	"unicode/utf8"

	"github.com/kalambet/nanny/internal/textnorm"
)

// Emotion is the caregiver's apparent state.
type Emotion string

const (
	EmotionNormal      Emotion = "normal"
	EmotionAnxious     Emotion = "anxious"
	EmotionExhausted   Emotion = "exhausted"
	EmotionFirstTime   Emotion = "first-time"
	EmotionOverwhelmed Emotion = "overwhelmed"
)

const shortMessageRunes = 10

var greetingWords = map[string]bool{
	"oi": true, "olá": true, "ola": true, "hello": true, "hi": true, "hey": true,
}

var greetingPhrases = []string{
	"bom dia", "boa tarde", "boa noite", "good morning", "good afternoon", "good evening",
}

// Checked in order; the first matching state wins.
var emotionCues = []struct {
	emotion Emotion
	cues    []string
}{
	{EmotionOverwhelmed, []string{"overwhelmed", "can't cope", "cannot cope", "desesperada", "não aguento", "sobrecarregada"}},
	{EmotionAnxious, []string{"worried", "anxious", "scared", "afraid", "panic", "preocupada", "preocupado", "ansiosa", "ansioso", "medo", "nervosa"}},
	{EmotionExhausted, []string{"tired", "exhausted", "no sleep", "haven't slept", "cansada", "cansado", "exausta", "exausto", "sem dormir"}},
	{EmotionFirstTime, []string{"first time", "first-time", "first baby", "new mom", "new dad", "new parent", "primeira vez", "primeiro filho", "mãe de primeira"}},
}

// IsGreeting reports whether message is a greeting or too short to carry a
// question.
func IsGreeting(message string) bool {
	trimmed := strings.TrimSpace(message)
	if utf8.RuneCountInString(trimmed) < shortMessageRunes {
		return true
	}
	for _, w := range textnorm.Tokens(trimmed) {
		if greetingWords[w] {
			return true
		}
	}
	lower := strings.ToLower(trimmed)
	for _, p := range greetingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DetectEmotion classifies the tone of message.
func DetectEmotion(message string) Emotion {
	lower := strings.ToLower(message)
	for _, ec := range emotionCues {
		for _, cue := range ec.cues {
			if strings.Contains(lower, cue) {
				return ec.emotion
			}
		}
	}
	return EmotionNormal
}
