// Package composer turns matched reference sentences into a caregiver
// facing reply, and supplies fixed replies for greetings, unsupported
// questions and system states.
package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/nanny/internal/keywords"
	"github.com/kalambet/nanny/internal/textnorm"
)

// Style selects the tone of every composed reply.
type Style string

const (
	StyleWarm     Style = "persona-warm"
	StyleClinical Style = "neutral-clinical"
	StyleTerse    Style = "terse"
)

const (
	defaultMinLength        = 20
	defaultMaxContextTokens = 6000
	minSentenceRunes        = 10
)

// ParseStyle validates a configured style name.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleWarm, StyleClinical, StyleTerse:
		return Style(s), nil
	case "":
		return StyleWarm, nil
	}
	return "", fmt.Errorf("unknown response style %q (want %s, %s or %s)", s, StyleWarm, StyleClinical, StyleTerse)
}

// Composer renders replies in a fixed Style.
type Composer struct {
	Style Style
	// MinLength is the shortest cleaned information block worth showing.
	MinLength int
	// MaxContextTokens bounds the reference material in SystemPrompt.
	MaxContextTokens int
}

// New creates a Composer. An empty style means StyleWarm.
func New(style Style) *Composer {
	if style == "" {
		style = StyleWarm
	}
	return &Composer{
		Style:            style,
		MinLength:        defaultMinLength,
		MaxContextTokens: defaultMaxContextTokens,
	}
}

// Format simplifies each sentence, drops fragments and anything still on
// the denylist, and joins the rest into one paragraph.
func (c *Composer) Format(sentences []string) string {
	var kept []string
	for _, s := range sentences {
		s = strings.TrimRight(textnorm.Simplify(s), ".!?,;: ")
		if utf8.RuneCountInString(s) <= minSentenceRunes || textnorm.Rejected(s) {
			continue
		}
		kept = append(kept, s)
	}
	return textnorm.Join(kept)
}

// Compose wraps the matched sentences for message in the style's framing
// and safety footer. It reports false when the cleaned information is too
// thin to show, in which case the caller should fall back to a template.
func (c *Composer) Compose(message string, sentences []string) (string, bool) {
	info := c.Format(sentences)
	if utf8.RuneCountInString(info) < c.MinLength {
		return "", false
	}

	t := c.templates()
	frame := frameFor(message, t.frames)

	var sb strings.Builder
	if frame.intro != "" {
		sb.WriteString(frame.intro)
		sb.WriteString("\n\n")
	}
	sb.WriteString(info)
	if frame.tip != "" {
		sb.WriteString("\n\n")
		sb.WriteString(frame.tip)
	}
	sb.WriteString("\n\n")
	sb.WriteString(t.footer)
	return sb.String(), true
}

// Supportive returns a reply for questions the reference material does not
// cover, adapted to the caregiver's apparent state.
func (c *Composer) Supportive(message string) string {
	t := c.templates()
	if reply, ok := t.supportive[keywords.DetectEmotion(message)]; ok {
		return reply
	}
	return t.supportive[keywords.EmotionNormal]
}

// Greeting returns the reply to a greeting.
func (c *Composer) Greeting() string {
	return c.templates().greeting
}

func (c *Composer) templates() styleTemplates {
	if t, ok := templatesByStyle[c.Style]; ok {
		return t
	}
	return templatesByStyle[StyleWarm]
}

func frameFor(message string, frames []frame) frame {
	lower := strings.ToLower(message)
	for _, f := range frames {
		for _, cue := range f.cues {
			if strings.Contains(lower, cue) {
				return f
			}
		}
	}
	return frames[len(frames)-1]
}
