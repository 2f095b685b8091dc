package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/logging"
)

const (
	readHeaderTimeout = 2 * time.Second

	// twimlAck is the synchronous acknowledgement Twilio expects; replies go
	// out through the REST client instead, so the ack body stays empty.
	twimlAck = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// Message is one inbound WhatsApp message event.
type Message struct {
	From             string
	Body             string
	NumMedia         int
	MediaContentType string
	MediaURL         string
}

// IsVoiceNote reports whether the message carries inbound audio media.
func (m Message) IsVoiceNote() bool {
	return m.NumMedia > 0 && strings.HasPrefix(m.MediaContentType, "audio/")
}

// Inbound handles one parsed inbound message. Errors are logged, never
// surfaced to the provider: the webhook acknowledges regardless, since the
// channel offers no meaningful retry path.
type Inbound interface {
	Handle(ctx context.Context, msg Message) error
}

// Server hosts the inbound webhook, the media file route and the health
// endpoint on a single HTTP port.
type Server struct {
	server  *http.Server
	handler Inbound
	logger  *logrus.Entry
}

// NewServer constructs the HTTP server. mediaDir is served under /media/ for
// synthesized voice replies; health may be nil to skip the endpoint.
func NewServer(port int, handler Inbound, mediaDir string, health http.Handler, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		handler: handler,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", srv.handleWebhook)
	if strings.TrimSpace(mediaDir) != "" {
		mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir))))
	}
	if health != nil {
		mux.Handle("/healthz", health)
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "webhook_listen",
		"addr":  s.server.Addr,
	}).Info("starting webhook server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "webhook_stopped").Info("webhook server stopped")
			return nil
		}

		return fmt.Errorf("webhook server listen: %w", err)
	}

	s.logger.WithField("event", "webhook_stopped").Info("webhook server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	msg := parseForm(r)

	if msg.From == "" {
		s.logger.WithField("event", "webhook_no_sender").Warn("ignoring inbound event without sender")
		s.ack(w)
		return
	}

	if s.handler == nil {
		s.logger.WithField("event", "webhook_no_handler").Warn("inbound handler is not configured")
		s.ack(w)
		return
	}

	if err := s.handler.Handle(r.Context(), msg); err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "webhook_handler_error",
			"phone": msg.From,
		}).WithError(err).Error("inbound handler failed")
	}

	s.ack(w)
}

// ack always responds 200 with empty TwiML, regardless of downstream outcome.
func (s *Server) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, twimlAck); err != nil {
		s.logger.WithField("event", "webhook_ack_error").WithError(err).Error("failed to write acknowledgement")
	}
}

func parseForm(r *http.Request) Message {
	numMedia := 0
	if raw := strings.TrimSpace(r.FormValue("NumMedia")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			numMedia = parsed
		}
	}

	return Message{
		From:             strings.TrimSpace(r.FormValue("From")),
		Body:             strings.TrimSpace(r.FormValue("Body")),
		NumMedia:         numMedia,
		MediaContentType: strings.TrimSpace(r.FormValue("MediaContentType0")),
		MediaURL:         strings.TrimSpace(r.FormValue("MediaUrl0")),
	}
}
