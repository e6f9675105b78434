package translator

import (
	"fmt"
	"strings"
)

// GlossaryPair pins the translation of one source term.
type GlossaryPair struct {
	Original   string
	Translated string
}

// Request is everything the model sees for one retranslation.
type Request struct {
	OriginalText       string
	CurrentTranslation string
	Feedback           string
	SelectedText       string
	Glossary           []GlossaryPair
}

const systemPrompt = `You are a professional literary translator producing Korean translations.
Revise the current translation of the chapter according to the reviewer feedback.
Keep every glossary term exactly as given. Preserve paragraph breaks.
Respond with JSON only: {"translation": "<full revised chapter translation>"}`

func buildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("## Original text\n")
	b.WriteString(strings.TrimSpace(req.OriginalText))
	b.WriteString("\n\n## Current translation\n")
	b.WriteString(strings.TrimSpace(req.CurrentTranslation))
	b.WriteString("\n\n## Feedback\n")
	b.WriteString(strings.TrimSpace(req.Feedback))
	if selected := strings.TrimSpace(req.SelectedText); selected != "" {
		b.WriteString("\n\n## Focus on this passage (return the full chapter anyway)\n")
		b.WriteString(selected)
	}
	if len(req.Glossary) > 0 {
		b.WriteString("\n\n## Glossary\n")
		for _, pair := range req.Glossary {
			fmt.Fprintf(&b, "- %s => %s\n", pair.Original, pair.Translated)
		}
	}
	return b.String()
}
