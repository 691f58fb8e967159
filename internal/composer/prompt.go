package composer

import (
	"strings"

	"github.com/kalambet/nanny/internal/textnorm"
)

var toneByStyle = map[Style]string{
	StyleWarm:     "Speak like a caring, experienced nanny. Be warm and encouraging, use simple everyday words, and acknowledge the caregiver's feelings.",
	StyleClinical: "Use a neutral, factual tone with plain words.",
	StyleTerse:    "Answer in as few sentences as possible.",
}

const promptRules = `Rules:
- Answer only with information from the reference material below.
- If the reference material does not cover the question, say you don't have that information and suggest talking to a pediatrician.
- Never mention documents, files, sources or "reference material" in your answer.
- Never give medication doses or diagnoses.
- For anything serious or urgent, always tell the caregiver to seek in-person care right away.
- Keep answers short, in short paragraphs, and reply in the caregiver's language.`

// SystemPrompt builds the language-model instructions for corpus, keeping
// as many leading sentences of corpus as fit in MaxContextTokens.
func (c *Composer) SystemPrompt(corpus string) string {
	var sb strings.Builder
	sb.WriteString("You are Nanny, an assistant that supports parents and caregivers of babies and young children. ")
	sb.WriteString(toneByStyle[c.templateStyle()])
	sb.WriteString("\n\n")
	sb.WriteString(promptRules)

	header := "\n\n[Reference Material]\n"
	remaining := c.MaxContextTokens - EstimateTokens(sb.String()) - EstimateTokens(header)

	var kept []string
	for _, s := range textnorm.SplitSentences(corpus) {
		tokens := EstimateTokens(s) + 1
		if tokens > remaining {
			break
		}
		kept = append(kept, s)
		remaining -= tokens
	}
	if len(kept) > 0 {
		sb.WriteString(header)
		sb.WriteString(textnorm.Join(kept))
	}
	return sb.String()
}

func (c *Composer) templateStyle() Style {
	if _, ok := toneByStyle[c.Style]; ok {
		return c.Style
	}
	return StyleWarm
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
