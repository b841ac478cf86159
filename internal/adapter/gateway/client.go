package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
	"wattwise/internal/infra/tracer"
)

const maxResponseBody = 10 * 1024 * 1024 // 10 MB

const defaultCallTimeout = 10 * time.Second

// Client talks to the remote tool-execution service over HTTP. It manages
// the API key lifecycle: a key is generated lazily from client credentials,
// cached, and refreshed once when the service answers 401. A single writer
// performs the refresh; concurrent callers reuse the new key.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	timeout      time.Duration
	http         *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger

	mu     sync.Mutex // guards key refresh, single writer
	apiKey string

	mock atomic.Bool
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      timeout,
		http:         &http.Client{Timeout: timeout},
		limiter:      limiter,
		logger:       logger,
	}
	c.mock.Store(cfg.ForceMockMode)
	return c
}

// MockMode reports whether the client is operating without the remote
// service. In mock mode Invoke is never attempted and callers fall back to
// local synthetic data.
func (c *Client) MockMode() bool { return c.mock.Load() }

// SetMockMode flips mock mode. Called by the health monitor when the
// service disappears or comes back.
func (c *Client) SetMockMode(on bool) {
	if c.mock.Swap(on) != on {
		c.logger.Info("gateway mock mode changed", "mock", on)
	}
}

// Health probes GET /health. It never returns an error: any failure,
// timeout, or unexpected payload reads as unhealthy.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok" || body.Status == "healthy"
}

// GenerateKey exchanges client credentials for an API key via
// POST /api/generate_key and caches it.
func (c *Client) GenerateKey(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshKeyLocked(ctx)
}

// refreshKeyLocked fetches a fresh API key. Caller holds c.mu.
func (c *Client) refreshKeyLocked(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	status, body, err := c.post(ctx, "/api/generate_key", payload, "")
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return domain.NewDomainError("Client.GenerateKey", domain.ErrAuthRejected,
			fmt.Sprintf("status %d", status))
	}
	if status != http.StatusOK {
		return domain.NewDomainError("Client.GenerateKey", domain.ErrRemoteService,
			fmt.Sprintf("%s %d", domain.RemoteFailStatus, status))
	}

	var resp struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.NewDomainError("Client.GenerateKey", domain.ErrRemoteService, domain.RemoteFailDecode)
	}
	if resp.APIKey == "" {
		return domain.NewDomainError("Client.GenerateKey", domain.ErrRemoteService, "empty api key")
	}

	c.apiKey = resp.APIKey
	c.logger.Debug("gateway api key refreshed")
	return nil
}

// currentKey returns the cached key, generating one if missing.
func (c *Client) currentKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiKey == "" {
		if err := c.refreshKeyLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.apiKey, nil
}

// refreshIfStale replaces the cached key only if it still equals staleKey.
// Concurrent callers that raced the same 401 reuse the refreshed key
// instead of stampeding the key endpoint.
func (c *Client) refreshIfStale(ctx context.Context, staleKey string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiKey == staleKey {
		if err := c.refreshKeyLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.apiKey, nil
}

// Invoke executes a tool on the remote service via POST /api/tool.
// A 401 triggers exactly one key refresh and retry; a second 401 surfaces
// as ErrAuthRejected.
func (c *Client) Invoke(ctx context.Context, tool string, parameters json.RawMessage) (json.RawMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "gateway.invoke",
		trace.WithAttributes(tracer.StringAttr("tool.name", tool)),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			tracer.RecordError(span, err)
			return nil, domain.NewDomainError("Client.Invoke", domain.ErrRemoteService, domain.RemoteFailTimeout)
		}
	}

	if parameters == nil {
		parameters = json.RawMessage(`{}`)
	}
	payload, err := json.Marshal(struct {
		Tool       string          `json:"tool"`
		Parameters json.RawMessage `json:"parameters"`
	}{Tool: tool, Parameters: parameters})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal tool request: %w", err)
	}

	key, err := c.currentKey(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	status, body, err := c.post(ctx, "/api/tool", payload, key)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	if status == http.StatusUnauthorized {
		key, err = c.refreshIfStale(ctx, key)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}
		status, body, err = c.post(ctx, "/api/tool", payload, key)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}
		if status == http.StatusUnauthorized {
			err = domain.NewDomainError("Client.Invoke", domain.ErrAuthRejected, "401 after key refresh")
			tracer.RecordError(span, err)
			return nil, err
		}
	}

	if status != http.StatusOK {
		err = domain.NewDomainError("Client.Invoke", domain.ErrRemoteService,
			fmt.Sprintf("%s %d: %s", domain.RemoteFailStatus, status, truncate(body, 256)))
		tracer.RecordError(span, err)
		return nil, err
	}

	if !json.Valid(body) {
		err = domain.NewDomainError("Client.Invoke", domain.ErrRemoteService, domain.RemoteFailDecode)
		tracer.RecordError(span, err)
		return nil, err
	}

	tracer.SetOK(span)
	return json.RawMessage(body), nil
}

// FetchData retrieves renewable generation data via the remote service.
func (c *Client) FetchData(ctx context.Context, parameters json.RawMessage) (json.RawMessage, error) {
	return c.Invoke(ctx, "fetch_renewable_data", parameters)
}

// CreateDashboard provisions a dashboard via the remote service.
func (c *Client) CreateDashboard(ctx context.Context, parameters json.RawMessage) (json.RawMessage, error) {
	return c.Invoke(ctx, "create_dashboard", parameters)
}

// post performs one HTTP POST leg. Transport failures and deadline
// expiries wrap ErrRemoteService so callers can branch with errors.Is.
func (c *Client) post(ctx context.Context, path string, payload []byte, apiKey string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		detail := domain.RemoteFailStatus
		if errors.Is(err, context.DeadlineExceeded) {
			detail = domain.RemoteFailTimeout
		}
		return 0, nil, domain.NewDomainError("Client.post", domain.ErrRemoteService,
			fmt.Sprintf("%s: %v", detail, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, domain.NewDomainError("Client.post", domain.ErrRemoteService, domain.RemoteFailDecode)
	}

	return resp.StatusCode, body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
