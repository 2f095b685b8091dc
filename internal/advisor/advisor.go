// Package advisor generates farming advice, translations and voice-note
// transcripts through the Gemini API.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"wa_farm_advisor_bot/internal/config"
	"wa_farm_advisor_bot/internal/directory"
	"wa_farm_advisor_bot/internal/logging"
	"wa_farm_advisor_bot/internal/weather"
)

const generateTimeout = 30 * time.Second

// TextModel captures the generation call the client depends on, satisfied by
// *genai.GenerativeModel and stubbed in tests.
type TextModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client wraps the Gemini model for advisory, translation and transcription.
type Client struct {
	client *genai.Client
	model  TextModel
	logger *logrus.Entry
}

// NewClient initializes the Gemini client and configures the model.
func NewClient(ctx context.Context, cfg config.Config, logger *logrus.Entry) (*Client, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.SetTemperature(0.7)
	model.SetTopP(0.9)

	return &Client{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Close releases the underlying Gemini client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Advise turns a weather snapshot into short farming advice in the target
// language.
func (c *Client) Advise(ctx context.Context, snapshot weather.Snapshot, lang directory.Language) (string, error) {
	prompt := fmt.Sprintf(
		"You are an agricultural advisor for smallholder farmers. Current weather in %s: %.1f°C, %s, wind %.1f m/s, humidity %d%%. "+
			"Give 2-3 short, practical farming tips for these conditions. Reply in %s. Plain text only, no markdown.",
		snapshot.City, snapshot.TempC, snapshot.Description, snapshot.WindSpeed, snapshot.Humidity, lang.Name(),
	)

	return c.generate(ctx, "advise", genai.Text(prompt))
}

// Translate renders the text in the target language. English is a no-op.
func (c *Client) Translate(ctx context.Context, text string, lang directory.Language) (string, error) {
	if lang == directory.LanguageEnglish {
		return text, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following message to %s. Keep numbers, units and formatting intact. Reply with the translation only.\n\n%s",
		lang.Name(), text,
	)

	return c.generate(ctx, "translate", genai.Text(prompt))
}

// Converse produces a short conversational reply to a transcribed voice note.
func (c *Client) Converse(ctx context.Context, transcript string, lang directory.Language) (string, error) {
	prompt := fmt.Sprintf(
		"You are a friendly farming assistant on WhatsApp. A farmer sent this voice message: %q. "+
			"Reply helpfully in 2-3 sentences, in %s. Plain text only.",
		transcript, lang.Name(),
	)

	return c.generate(ctx, "converse", genai.Text(prompt))
}

// Transcribe converts voice-note audio to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("audio is required")
	}

	return c.generate(ctx, "transcribe",
		genai.Text("Transcribe this voice message. Reply with the transcript only."),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
}

func (c *Client) generate(ctx context.Context, operation string, parts ...genai.Part) (string, error) {
	if c == nil || c.model == nil {
		return "", errors.New("advisor client is not initialized")
	}
	if ctx == nil {
		return "", errors.New("context is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := c.model.GenerateContent(callCtx, parts...)
	if err != nil {
		return "", fmt.Errorf("%s: generate content: %w", operation, err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", operation, err)
	}

	c.logger.WithFields(logging.Fields{
		"event":     "gemini_generate",
		"operation": operation,
		"chars":     len(text),
	}).Debug("generated text")

	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("no content parts in response")
	}

	text, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected part type %T", candidate.Content.Parts[0])
	}

	trimmed := strings.TrimSpace(string(text))
	if trimmed == "" {
		return "", errors.New("empty text in response")
	}

	return trimmed, nil
}
