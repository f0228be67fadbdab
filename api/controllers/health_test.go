package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig())(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Bistro-Env") != "test" {
		t.Fatalf("expected env header")
	}
}

func TestHealthReadyReportsDependencies(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	handler := HealthReady(testConfig(), nil, map[string]Pinger{"db": ok, "redis": ok, "cache": nil})

	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Data struct {
			Dependencies map[string]string `json:"dependencies"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Dependencies["db"] != "up" || body.Data.Dependencies["cache"] != "skipped" {
		t.Fatalf("unexpected dependencies %v", body.Data.Dependencies)
	}
}

func TestHealthReadyFailsWhenDependencyDown(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })
	logg := logger.New(logger.Options{ServiceName: "health-test", Output: io.Discard})
	handler := HealthReady(testConfig(), logg, map[string]Pinger{"redis": down})

	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
