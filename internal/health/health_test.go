package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type stubChecker struct {
	pingErr  error
	count    int64
	countErr error
}

func (s stubChecker) Ping(context.Context) error {
	return s.pingErr
}

func (s stubChecker) CountSubscribed(context.Context) (int64, error) {
	return s.count, s.countErr
}

func serve(t *testing.T, checker DirectoryChecker) (*httptest.ResponseRecorder, response) {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	handler := NewHandler(checker, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var resp response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return rr, resp
}

func TestHealthOK(t *testing.T) {
	rr, resp := serve(t, stubChecker{count: 7})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if resp.Status != "ok" || resp.Directory != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Subscribers != 7 {
		t.Fatalf("expected subscriber count 7, got %d", resp.Subscribers)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}
}

func TestHealthDirectoryError(t *testing.T) {
	rr, resp := serve(t, stubChecker{pingErr: errors.New("directory down")})

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTP 503, got %d", rr.Code)
	}
	if resp.Status != "degraded" || resp.Directory != "error" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHealthMissingChecker(t *testing.T) {
	rr, resp := serve(t, nil)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTP 503, got %d", rr.Code)
	}
	if resp.Status != "degraded" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHealthCountFailureDoesNotDegrade(t *testing.T) {
	rr, resp := serve(t, stubChecker{countErr: errors.New("count failed")})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if resp.Subscribers != 0 {
		t.Fatalf("expected zero subscribers on count failure, got %d", resp.Subscribers)
	}
}
