package textgen

import (
	"context"
	"strings"
)

// Cleaner removes disfluencies from a raw transcript while preserving
// the speaker's manner and language.
type Cleaner struct {
	gen Generator
}

func NewCleaner(gen Generator) *Cleaner {
	return &Cleaner{gen: gen}
}

const cleanerPromptEN = `You clean up dictated text. Remove hesitations (uh, um, er), ` +
	`repetitions, and self-corrections, keeping only the final intended wording. ` +
	`Preserve the speaker's tone, vocabulary, and language exactly. Never translate. ` +
	`Respond with the cleaned text only, no commentary.`

const cleanerPromptPT = `Você limpa texto ditado. Remova hesitações (ã, é, hum), ` +
	`repetições e autocorreções, mantendo apenas a formulação final pretendida. ` +
	`Preserve o tom, o vocabulário e o idioma do falante exatamente. Nunca traduza. ` +
	`Responda apenas com o texto limpo, sem comentários.`

// Clean returns the cleaned transcript. An empty response is a valid,
// if degenerate, outcome and is returned as an empty string.
func (c *Cleaner) Clean(ctx context.Context, raw, lang string) (string, error) {
	prompt := cleanerPromptEN
	if lang == "pt" {
		prompt = cleanerPromptPT
	}

	out, err := c.gen.Generate(ctx, prompt, raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
