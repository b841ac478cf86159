package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"wattwise/internal/adapter/tool"
	"wattwise/internal/infra/middleware"
)

// ServerConfig holds tool service settings.
type ServerConfig struct {
	Addr           string
	RequestsPerMin int
	BurstSize      int
	TrustedProxies []string
}

// Server is the HTTP tool-execution service. It authenticates clients via
// issued API keys and runs the tool catalog against local generators.
type Server struct {
	catalog   *tool.Catalog
	synth     *tool.Synthesizer
	issuer    *KeyIssuer
	logger    *slog.Logger
	cfg       ServerConfig
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a tool service.
func NewServer(catalog *tool.Catalog, synth *tool.Synthesizer, issuer *KeyIssuer, cfg ServerConfig, logger *slog.Logger) *Server {
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 120
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 20
	}
	return &Server{
		catalog: catalog,
		synth:   synth,
		issuer:  issuer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Handler builds the full middleware-wrapped handler. Exposed for tests.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("POST /api/generate_key", s.handleGenerateKey)
	mux.HandleFunc("POST /api/tool", s.handleTool)

	limited := middleware.RateLimitWithConfig(ctx, middleware.RateLimitConfig{
		RequestsPerMin: s.cfg.RequestsPerMin,
		BurstSize:      s.cfg.BurstSize,
		TrustedProxies: s.cfg.TrustedProxies,
	})(mux)
	return middleware.SecurityHeaders(limited)
}

// Start begins serving. Blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("tool service listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("tool service started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("tool service serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the service.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.catalog.Definitions(),
	})
}

func (s *Server) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	key, err := s.issuer.Issue(req.ClientID, req.ClientSecret)
	if err != nil {
		s.logger.Warn("key generation rejected", "client_id", req.ClientID)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	s.logger.Info("api key issued", "client_id", req.ClientID)
	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	clientID, ok := s.issuer.Verify(r.Header.Get("X-API-Key"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing api key"})
		return
	}

	var req struct {
		Tool       string          `json:"tool"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if _, ok := s.catalog.Lookup(req.Tool); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Unknown tool: " + req.Tool,
		})
		return
	}

	args := req.Parameters
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := s.catalog.Validate(req.Tool, args); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	payload, err := s.synth.Run(req.Tool, args)
	if err != nil {
		s.logger.Error("tool execution failed", "tool", req.Tool, "client_id", clientID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "tool execution failed: " + req.Tool,
		})
		return
	}

	s.logger.Debug("tool executed", "tool", req.Tool, "client_id", clientID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
