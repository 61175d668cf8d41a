// Package server exposes the HTTP surface: the LINE webhook, the Google
// OAuth callback, health probes, and a dedicated metrics listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/yoteibot/internal/google"
	"github.com/teemow/yoteibot/internal/instrumentation"
	"github.com/teemow/yoteibot/internal/line"
	"github.com/teemow/yoteibot/internal/logging"
	"github.com/teemow/yoteibot/internal/store"
)

const (
	// maxWebhookBody bounds the webhook request body. LINE deliveries are
	// small; anything larger is not a legitimate webhook.
	maxWebhookBody = 1 << 20

	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// EventHandler consumes parsed webhook events after the HTTP response has
// been sent.
type EventHandler interface {
	HandleEvents(ctx context.Context, events []line.Event)
}

// Config holds the server dependencies.
type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string

	// ChannelSecret verifies the X-Line-Signature header.
	ChannelSecret string

	Handler     EventHandler
	OAuth       *oauth2.Config
	Credentials store.CredentialStore
	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
}

// Server is the main HTTP server.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
	health     *HealthChecker
	httpServer *http.Server
}

// New creates the server and registers all routes.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.ChannelSecret == "":
		return nil, fmt.Errorf("channel secret is required")
	case cfg.Handler == nil:
		return nil, fmt.Errorf("event handler is required")
	case cfg.OAuth == nil:
		return nil, fmt.Errorf("oauth config is required")
	case cfg.Credentials == nil:
		return nil, fmt.Errorf("credential store is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		health:  NewHealthChecker(),
	}

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", s.instrumented("/webhook", s.handleWebhook))
	mux.Handle("GET /auth/google/callback", s.instrumented("/auth/google/callback", s.handleOAuthCallback))
	s.health.Register(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.health.SetShuttingDown()
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook verifies, acknowledges, and dispatches a LINE delivery. The
// Platform retries on non-200 responses, so the 200 goes out before any
// event is processed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !line.VerifySignature(s.cfg.ChannelSecret, body, signature) {
		s.logger.Warn("webhook signature rejected",
			logging.Operation("webhook"),
		)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload line.WebhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	if len(payload.Events) == 0 {
		return
	}

	// Detached from the request context: processing outlives the response.
	go s.cfg.Handler.HandleEvents(context.WithoutCancel(r.Context()), payload.Events)
}

// handleOAuthCallback completes the Google consent flow. The state parameter
// carries the LINE user ID that initiated /auth.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" || state == "" {
		s.metrics.RecordOAuthAuth(r.Context(), logging.StatusError)
		writePage(w, http.StatusBadRequest, "認証リクエストが不正です。もう一度お試しください。")
		return
	}

	token, err := google.Exchange(r.Context(), s.cfg.OAuth, code)
	if err != nil {
		s.logger.Error("oauth code exchange failed",
			logging.Operation("oauth_callback"),
			logging.UserHash(state),
			logging.Err(err),
		)
		s.metrics.RecordOAuthAuth(r.Context(), logging.StatusError)
		writePage(w, http.StatusInternalServerError, "認証に失敗しました。もう一度お試しください。")
		return
	}

	if err := s.cfg.Credentials.SetToken(r.Context(), state, token); err != nil {
		s.logger.Error("failed to persist credential",
			logging.Operation("oauth_callback"),
			logging.UserHash(state),
			logging.Err(err),
		)
		s.metrics.RecordOAuthAuth(r.Context(), logging.StatusError)
		writePage(w, http.StatusInternalServerError, "認証に失敗しました。もう一度お試しください。")
		return
	}

	s.logger.Info("user authenticated",
		logging.Operation("oauth_callback"),
		logging.UserHash(state),
		logging.Status(logging.StatusSuccess),
	)
	s.metrics.RecordOAuthAuth(r.Context(), logging.StatusSuccess)
	writePage(w, http.StatusOK, "認証が完了しました。LINEに戻って予定の登録を試してみてください！")
}

// instrumented wraps a handler with request metrics. The path label is the
// route pattern, never the raw URL, to keep cardinality bounded.
func (s *Server) instrumented(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writePage(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
