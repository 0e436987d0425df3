package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dyluth/hri/internal/metrics"
	"golang.org/x/time/rate"
)

// TypeHTTP is a backend reached over HTTP.
const TypeHTTP = "http"

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultRate        = 1.0
	defaultBurst       = 1
)

// HTTP posts {"prompt": ...} as JSON to a URL and reads {"answer": ...} back.
// Calls are rate limited per backend instance.
//
// Params: url (required), rate (requests per second), burst, timeout (Go duration).
type HTTP struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

type httpRequest struct {
	Prompt string `json:"prompt"`
}

type httpResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// NewHTTP is the Factory for TypeHTTP.
func NewHTTP(spec Spec) (Backend, error) {
	url := spec.Params["url"]
	if url == "" {
		return nil, fmt.Errorf("http backend requires a url")
	}

	ratePerSecond := defaultRate
	if v := spec.Params["rate"]; v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid rate %q: must be a positive number", v)
		}
		ratePerSecond = parsed
	}

	burst := defaultBurst
	if v := spec.Params["burst"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("invalid burst %q: must be a positive integer", v)
		}
		burst = parsed
	}

	timeout := defaultHTTPTimeout
	if v := spec.Params["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	return &HTTP{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}, nil
}

func (h *HTTP) Ask(ctx context.Context, prompt string) (string, error) {
	answer, err := h.ask(ctx, prompt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ReasoningCalls.WithLabelValues(TypeHTTP, status).Inc()
	return answer, err
}

func (h *HTTP) ask(ctx context.Context, prompt string) (string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(httpRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoning request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read reasoning response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reasoning backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out httpResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode reasoning response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("reasoning backend error: %s", out.Error)
	}
	return out.Answer, nil
}
