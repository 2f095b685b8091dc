package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const synthesizeTimeout = 30 * time.Second

// HTTPSynthesizer posts reply text to a text-to-speech endpoint and returns
// the audio bytes it answers with.
type HTTPSynthesizer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPSynthesizer constructs a synthesizer for the given endpoint.
func NewHTTPSynthesizer(endpoint string) (*HTTPSynthesizer, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("tts endpoint is required")
	}

	return &HTTPSynthesizer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: synthesizeTimeout,
		},
	}, nil
}

// Synthesize converts text to audio.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s == nil || s.httpClient == nil {
		return nil, errors.New("synthesizer is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}

	form := url.Values{}
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts error: %d %s", resp.StatusCode, resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("tts returned no audio")
	}

	return audio, nil
}
