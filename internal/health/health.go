// Package health exposes a lightweight HTTP health endpoint for container probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/logging"
)

const pingTimeout = 2 * time.Second

// DirectoryChecker is the subset of directory behavior health needs.
type DirectoryChecker interface {
	Ping(ctx context.Context) error
	CountSubscribed(ctx context.Context) (int64, error)
}

// Handler answers probe requests with directory status, subscriber count and
// uptime. It is mounted on the main webhook server rather than its own port.
type Handler struct {
	checker DirectoryChecker
	logger  *logrus.Entry
	started time.Time
}

type response struct {
	Status      string `json:"status"`
	Directory   string `json:"directory"`
	Subscribers int64  `json:"subscribers"`
	Uptime      string `json:"uptime"`
}

// NewHandler constructs a health handler. started is recorded at construction.
func NewHandler(checker DirectoryChecker, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		checker: checker,
		logger:  logger,
		started: time.Now(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := response{
		Status:    "ok",
		Directory: "ok",
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
	}

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if h.checker == nil {
		resp.Status = "degraded"
		resp.Directory = "error"
		h.logger.WithField("event", "health_directory_missing").Warn("directory checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := h.checker.Ping(pingCtx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Directory = "error"
			h.logger.WithFields(logging.Fields{
				"event": "health_directory_error",
			}).WithError(err).Warn("directory ping failed during health check")
		} else if count, err := h.checker.CountSubscribed(ctx); err == nil {
			resp.Subscribers = count
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}
