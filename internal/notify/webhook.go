package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Defense-Signature"

// ErrCircuitOpen is returned for endpoints whose breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URLs         []string
	Secret       string
	Timeout      time.Duration
	MaxAttempts  int
	Backoff      time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
}

// WebhookPayload is the JSON body posted to each endpoint.
type WebhookPayload struct {
	Type           string    `json:"type"`
	DefenseID      string    `json:"defenseId"`
	Title          string    `json:"title"`
	Recipients     []string  `json:"recipients"`
	ActorID        string    `json:"actorId,omitempty"`
	StartAt        string    `json:"startAt,omitempty"`
	EndAt          string    `json:"endAt,omitempty"`
	Status         string    `json:"status,omitempty"`
	ResponseStatus string    `json:"responseStatus,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// WebhookSink posts messages to HTTP endpoints with retry and per-endpoint circuit breakers.
type WebhookSink struct {
	cfg        WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewWebhookSink creates a sink for cfg.URLs.
func NewWebhookSink(cfg WebhookConfig, logger *slog.Logger) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSink{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "notify.webhook"),
		breakers:   make(map[string]*CircuitBreaker),
	}
}

// Name identifies the sink in logs and metrics.
func (s *WebhookSink) Name() string { return "webhook" }

// Deliver posts msg to every endpoint. It fails only when no endpoint accepted it.
func (s *WebhookSink) Deliver(ctx context.Context, msg Message) error {
	if len(s.cfg.URLs) == 0 {
		return nil
	}

	body, err := json.Marshal(newWebhookPayload(msg))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var (
		lastErr   error
		delivered int
	)
	for _, url := range s.cfg.URLs {
		if err := s.sendToEndpoint(ctx, url, body); err != nil {
			s.logger.WarnContext(ctx, "webhook delivery failed",
				"url", url,
				"defense_id", msg.DefenseID,
				"error", err)
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 && lastErr != nil {
		return fmt.Errorf("failed to deliver to any webhook endpoint: %w", lastErr)
	}
	return nil
}

// BreakerState reports the breaker state for url.
func (s *WebhookSink) BreakerState(url string) BreakerState {
	return s.breaker(url).State()
}

func (s *WebhookSink) sendToEndpoint(ctx context.Context, url string, body []byte) error {
	cb := s.breaker(url)
	if !cb.Allow() {
		return fmt.Errorf("%w for %s", ErrCircuitOpen, url)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.post(ctx, url, body)
		if err == nil {
			cb.RecordSuccess()
			return nil
		}
		lastErr = err
		cb.RecordFailure()

		if attempt == s.cfg.MaxAttempts || !cb.Allow() {
			break
		}
		backoff := s.cfg.Backoff * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("webhook request failed: %w", lastErr)
}

func (s *WebhookSink) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "defense-scheduler-webhook/1.0")
	if s.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, s.cfg.Secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) breaker(url string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[url]
	if !ok {
		cb = NewCircuitBreaker(s.cfg.MaxFailures, s.cfg.ResetTimeout)
		s.breakers[url] = cb
	}
	return cb
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newWebhookPayload(msg Message) WebhookPayload {
	p := WebhookPayload{
		Type:           msg.Type,
		DefenseID:      msg.DefenseID,
		Title:          msg.Title,
		Recipients:     msg.Recipients,
		ActorID:        msg.ActorID,
		Status:         msg.Status,
		ResponseStatus: msg.ResponseStatus,
		Reason:         msg.Reason,
		OccurredAt:     msg.OccurredAt.UTC(),
	}
	if !msg.StartAt.IsZero() {
		p.StartAt = msg.StartAt.UTC().Format(time.RFC3339)
	}
	if !msg.EndAt.IsZero() {
		p.EndAt = msg.EndAt.UTC().Format(time.RFC3339)
	}
	return p
}
