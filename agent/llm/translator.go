package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-guildbot/agent/contract"
)

var _ contractx.Translator = (*Translator)(nil)

// Translator asks a chat completion model for a plain translation.
type Translator struct {
	client      *openaisdk.Client
	model       string
	prompt      string
	temperature float64
}

func NewTranslator(client *openaisdk.Client, model string, prompt string, temperature float32) (*Translator, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: translator model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: translator", contractx.ErrPromptMissing)
	}
	return &Translator{
		client:      client,
		model:       strings.TrimSpace(model),
		prompt:      prompt,
		temperature: float64(temperature),
	}, nil
}

func (t *Translator) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	text = strings.TrimSpace(text)
	targetLanguage = strings.TrimSpace(targetLanguage)
	if text == "" || targetLanguage == "" {
		return "", fmt.Errorf("%w: text and target language are required", contractx.ErrValidation)
	}

	resp, err := t.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: t.model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(t.prompt),
			openaisdk.UserMessage("Target language: " + targetLanguage + "\n\n" + text),
		},
		Temperature: openaisdk.Float(t.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: translate: %w", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: translate: no choices returned", contractx.ErrModelInvoke)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%w: translate: empty completion", contractx.ErrModelInvoke)
	}
	log.Debug().
		Str("model", t.model).
		Str("target_language", targetLanguage).
		Int("input_chars", len(text)).
		Msg("text translated")
	return out, nil
}
