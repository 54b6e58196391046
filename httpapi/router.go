package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	speakauth "github.com/speaksim/speakauth"
	authmw "github.com/speaksim/speakauth/middleware"
)

// Config defines a public type used by speakauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// API defines a public type used by speakauth APIs.
//
// API instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type API struct {
	engine *speakauth.Engine
	logger *zap.Logger
	config Config
}

// NewAPI describes the newapi operation and its observable behavior.
//
// NewAPI may return an error when input validation, dependency calls, or security checks fail.
// NewAPI does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewAPI(engine *speakauth.Engine, logger *zap.Logger, cfg Config) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &API{
		engine: engine,
		logger: logger,
		config: cfg,
	}
}

// Router describes the router operation and its observable behavior.
//
// Router may return an error when input validation, dependency calls, or security checks fail.
// Router does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(a.config.RequestTimeout))
	r.Use(a.requestLogger)
	r.Use(a.clientContext)
	r.Use(securityHeaders)

	if len(a.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.config.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", a.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/validate", a.handleValidate)
		r.Post("/logout", a.handleLogout)
		r.Post("/password-reset/request", a.handlePasswordResetRequest)
		r.Post("/password-reset/confirm", a.handlePasswordResetConfirm)
		r.Post("/verify-email/confirm", a.handleVerifyEmailConfirm)

		r.Group(func(r chi.Router) {
			r.Use(authmw.Guard(a.engine))
			r.Post("/logout-all", a.handleLogoutAll)
			r.Post("/change-password", a.handleChangePassword)
			r.Post("/verify-email/request", a.handleVerifyEmailRequest)
			r.Get("/profile", a.handleProfileGet)
			r.Put("/profile", a.handleProfilePut)
			r.Post("/deactivate", a.handleDeactivate)
		})
	})

	return r
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		a.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// clientContext threads the caller's IP and user agent through the
// request context so the engine can rate-limit and stamp sessions.
func (a *API) clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := speakauth.WithClientIP(r.Context(), clientIP(r))
		ctx = speakauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// The first entry in X-Forwarded-For is the original client when the
	// service sits behind a trusted proxy.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
