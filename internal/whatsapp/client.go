// Package whatsapp hosts the Twilio-backed WhatsApp channel: the outbound
// REST client and the inbound webhook server.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/config"
	"wa_farm_advisor_bot/internal/logging"
)

const (
	messagesEndpoint = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"
	sendTimeout      = 15 * time.Second

	// WhatsApp text messages cap out around 4096 characters.
	maxBodyLength = 4000
)

// Client sends WhatsApp messages through the Twilio REST API.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	endpoint   string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient constructs a Twilio WhatsApp client from configuration.
func NewClient(cfg config.Config, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TwilioAccountSID) == "" {
		return nil, errors.New("twilio account sid is required")
	}
	if strings.TrimSpace(cfg.TwilioAuthToken) == "" {
		return nil, errors.New("twilio auth token is required")
	}
	if strings.TrimSpace(cfg.TwilioWhatsAppFrom) == "" {
		return nil, errors.New("twilio whatsapp sender is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		fromNumber: cfg.TwilioWhatsAppFrom,
		endpoint:   fmt.Sprintf(messagesEndpoint, cfg.TwilioAccountSID),
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
		logger: logger,
	}, nil
}

// Send delivers a text message to the recipient.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("message body is required")
	}

	if len(body) > maxBodyLength {
		body = truncateBody(body) + "\n\n... (truncated)"
	}

	form := url.Values{}
	form.Set("From", c.fromNumber)
	form.Set("To", NormalizeNumber(to))
	form.Set("Body", body)

	return c.post(ctx, form)
}

// SendMedia delivers a media message referencing a publicly reachable URL.
func (c *Client) SendMedia(ctx context.Context, to, mediaURL string) error {
	if strings.TrimSpace(mediaURL) == "" {
		return errors.New("media url is required")
	}

	form := url.Values{}
	form.Set("From", c.fromNumber)
	form.Set("To", NormalizeNumber(to))
	form.Set("MediaUrl", mediaURL)

	return c.post(ctx, form)
}

// FetchMedia downloads provider-hosted inbound media, returning the bytes and
// content type. Twilio media URLs require the account credentials.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if c == nil || c.httpClient == nil {
		return nil, "", errors.New("whatsapp client is not initialized")
	}
	if ctx == nil {
		return nil, "", errors.New("context is required")
	}
	if strings.TrimSpace(mediaURL) == "" {
		return nil, "", errors.New("media url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build media request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch media: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) post(ctx context.Context, form url.Values) error {
	if c == nil || c.httpClient == nil {
		return errors.New("whatsapp client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio send failed: %d %s: %s", resp.StatusCode, resp.Status, strings.TrimSpace(string(body)))
	}

	c.logger.WithFields(logging.Fields{
		"event": "whatsapp_sent",
		"to":    form.Get("To"),
	}).Debug("delivered outbound message")

	return nil
}

// truncateBody cuts the body at maxBodyLength, backing up to a rune boundary
// so Devanagari replies never end in a split multi-byte sequence.
func truncateBody(body string) string {
	cut := maxBodyLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// NormalizeNumber ensures the whatsapp: prefix Twilio expects.
func NormalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return number
	}
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}
