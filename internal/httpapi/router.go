package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/vkral/souffleur/internal/eventlog"
	"github.com/vkral/souffleur/internal/llm"
	"github.com/vkral/souffleur/internal/store"
)

type RouterConfig struct {
	PublicBaseURL string

	// Speech and generation providers
	DeepgramAPIKey   string
	OpenRouterAPIKey string
	LLMModel         string
	STTLanguage      string

	// Utterance segmentation
	SilenceThreshold  time.Duration // quiet interval before a silence dispatch
	MinUtteranceWords int           // minimum words for a silence dispatch

	// Prepaid minutes
	CountdownInterval time.Duration // how often one minute is burned
	StartingMinutes   int           // balance granted on signup

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration
}

type Router struct {
	cfg       RouterConfig
	logger    *log.Logger
	store     *store.Store
	eventLog  *eventlog.Logger
	llmClient llm.Client
	convos    *convoRegistry
	sessions  *SessionRegistry
	mux       *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger, sessions *SessionRegistry) http.Handler {
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		eventLog: eventLog,
		llmClient: llm.NewOpenRouterClient(llm.OpenRouterConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.LLMModel,
			Referer: cfg.PublicBaseURL,
		}),
		convos:   newConvoRegistry(),
		sessions: sessions,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Live interview session (JWT via query param)
	r.mux.HandleFunc("GET /session", r.handleSessionWS)

	// Auth endpoints (public)
	r.mux.HandleFunc("POST /auth/signup", r.handleSignup)
	r.mux.HandleFunc("POST /auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /auth/refresh", r.handleRefreshToken)
	r.mux.HandleFunc("POST /auth/logout", r.withAuth(r.handleLogout))

	// Protected API endpoints
	r.mux.HandleFunc("GET /api/me", r.withAuth(r.handleGetMe))
	r.mux.HandleFunc("PATCH /api/me", r.withAuth(r.handleUpdateMe))
	r.mux.HandleFunc("POST /api/context", r.withAuth(r.handleSetContext))
	r.mux.HandleFunc("GET /api/context", r.withAuth(r.handleGetContext))
	r.mux.HandleFunc("GET /api/interviews", r.withAuth(r.handleListInterviews))
	r.mux.HandleFunc("GET /api/interviews/{id}", r.withAuth(r.handleGetInterview))

	// Billing endpoints (protected)
	r.mux.HandleFunc("GET /api/billing/balance", r.withAuth(r.handleGetBalance))
	r.mux.HandleFunc("POST /api/billing/checkout", r.withAuth(r.handleCreateCheckout))
	r.mux.HandleFunc("POST /api/billing/portal", r.withAuth(r.handleCreatePortal))

	// Stripe webhook (no auth - signature verified)
	r.mux.HandleFunc("POST /webhooks/stripe", r.handleStripeWebhook)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context when available
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		if req != nil {
			scope.SetRequest(req)
		}
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
