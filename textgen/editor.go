package textgen

import (
	"context"
	"strings"
)

// Editor applies a spoken instruction to previously captured text.
type Editor struct {
	gen Generator
}

func NewEditor(gen Generator) *Editor {
	return &Editor{gen: gen}
}

const editorPromptEN = `You edit text according to an instruction. Apply the instruction ` +
	`to the given text and respond with the edited text only: no commentary, no ` +
	`explanations, no quotes around the result. Preserve useful formatting such as ` +
	`line breaks and lists. Respond in English unless the instruction says otherwise.`

const editorPromptPT = `Você edita texto conforme uma instrução. Aplique a instrução ao ` +
	`texto fornecido e responda apenas com o texto editado: sem comentários, sem ` +
	`explicações, sem aspas ao redor do resultado. Preserve formatação útil como ` +
	`quebras de linha e listas. Responda em português, a menos que a instrução diga o contrário.`

// Apply returns the edited text, trimmed. An empty response is returned
// as an empty string; the pipeline decides whether that is an error.
func (e *Editor) Apply(ctx context.Context, instruction, base, lang string) (string, error) {
	prompt := editorPromptEN
	if lang == "pt" {
		prompt = editorPromptPT
	}

	user := "Instruction: " + strings.TrimSpace(instruction) + "\n\nText:\n" + base

	out, err := e.gen.Generate(ctx, prompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
