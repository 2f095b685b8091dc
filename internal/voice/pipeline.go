// Package voice turns inbound voice notes into spoken (or textual) replies:
// speech-to-text, a generated reply, then text-to-speech.
package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/directory"
	"wa_farm_advisor_bot/internal/logging"
)

// Transcriber converts voice-note audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Generator produces the conversational reply to a transcript.
type Generator interface {
	Converse(ctx context.Context, transcript string, lang directory.Language) (string, error)
}

// Synthesizer converts reply text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Store persists synthesized audio and returns a publicly reachable URL.
type Store interface {
	Save(audio []byte) (string, error)
}

// Result is the pipeline outcome. MediaURL is empty when synthesis is
// unavailable and the reply degrades to text.
type Result struct {
	Text     string
	MediaURL string
}

// Pipeline chains the three voice stages. Synthesizer may be nil, in which
// case replies degrade to text-only results.
type Pipeline struct {
	transcriber Transcriber
	generator   Generator
	synthesizer Synthesizer
	store       Store
	logger      *logrus.Entry
}

// NewPipeline constructs the voice pipeline.
func NewPipeline(transcriber Transcriber, generator Generator, synthesizer Synthesizer, store Store, logger *logrus.Entry) *Pipeline {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Pipeline{
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		store:       store,
		logger:      logger,
	}
}

// Reply runs the pipeline over one voice note. Any stage failure aborts with
// the error; the dispatcher converts that into a fixed apology reply.
func (p *Pipeline) Reply(ctx context.Context, audio []byte, mimeType string, lang directory.Language) (Result, error) {
	if p == nil || p.transcriber == nil || p.generator == nil {
		return Result{}, errors.New("voice pipeline is not initialized")
	}
	if ctx == nil {
		return Result{}, errors.New("context is required")
	}
	if len(audio) == 0 {
		return Result{}, errors.New("audio is required")
	}

	transcript, err := p.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}

	replyText, err := p.generator.Converse(ctx, transcript, lang)
	if err != nil {
		return Result{}, fmt.Errorf("generate reply: %w", err)
	}

	if p.synthesizer == nil || p.store == nil {
		p.logger.WithField("event", "voice_text_fallback").Debug("synthesis unavailable, replying with text")
		return Result{Text: replyText}, nil
	}

	replyAudio, err := p.synthesizer.Synthesize(ctx, replyText)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize: %w", err)
	}

	mediaURL, err := p.store.Save(replyAudio)
	if err != nil {
		return Result{}, fmt.Errorf("store audio: %w", err)
	}

	p.logger.WithFields(logging.Fields{
		"event":     "voice_reply",
		"media_url": mediaURL,
	}).Debug("synthesized voice reply")

	return Result{Text: replyText, MediaURL: mediaURL}, nil
}
