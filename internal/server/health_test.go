package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/redis/go-redis/v9"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// TestHealthCheckEndpoint_MethodNotAllowed verifies non-GET requests are rejected.
func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewHealthServer(nil, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()

	server.healthCheckHandler(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

// TestHealthCheckResponse verifies the JSON response structure.
func TestHealthCheckResponse(t *testing.T) {
	t.Run("healthy when ping succeeds", func(t *testing.T) {
		server := NewHealthServer(pingFunc(func(context.Context) error { return nil }), "", nil)

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		var response HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if w.Code != http.StatusOK || response.Status != "healthy" || response.Redis != "connected" {
			t.Errorf("Expected 200 healthy/connected, got %d %+v", w.Code, response)
		}
	})

	t.Run("unhealthy when ping fails", func(t *testing.T) {
		server := NewHealthServer(pingFunc(func(context.Context) error { return errors.New("refused") }), "", nil)

		w := httptest.NewRecorder()
		server.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		var response HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Error != "refused" {
			t.Errorf("Expected error to be reported, got %q", response.Error)
		}
	})

	t.Run("unhealthy when Redis unavailable", func(t *testing.T) {
		// Port 9 is the discard protocol - connections will fail immediately
		client, err := blackboard.NewClient(&redis.Options{
			Addr:         "localhost:9",
			DialTimeout:  50 * time.Millisecond,
			ReadTimeout:  50 * time.Millisecond,
			WriteTimeout: 50 * time.Millisecond,
		}, "test")
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		defer client.Close()

		server := NewHealthServer(client, "", nil)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(ctx)
		w := httptest.NewRecorder()

		server.healthCheckHandler(w, req)

		var response HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != "unhealthy" {
			t.Errorf("Expected unhealthy status (Redis not running), got %s", response.Status)
		}
		if response.Redis != "disconnected" {
			t.Errorf("Expected redis=disconnected, got %s", response.Redis)
		}
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", ct)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server := NewHealthServer(pingFunc(func(context.Context) error { return nil }), "", nil)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestStartAndShutdown(t *testing.T) {
	server := NewHealthServer(pingFunc(func(context.Context) error { return nil }), "127.0.0.1:0", nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("Failed to shut down: %v", err)
	}
}
