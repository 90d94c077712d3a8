package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"securearray/array-api/internal/array"
	"securearray/array-api/internal/audit"
	"securearray/array-api/internal/auth"
	"securearray/array-api/internal/config"
	"securearray/array-api/internal/observability"
)

const (
	serviceName = "array-api"

	maxFormBytes = 1 << 20

	msgIncorrectLogin   = "Incorrect username or password"
	msgNotAuthenticated = "Not authenticated"
	msgInvalidToken     = "Could not validate credentials"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (auth.Token, error)
	AuthenticateToken(ctx context.Context, token string) (auth.Identity, error)
}

type ArrayGenerator interface {
	Generate(n int) ([]float64, error)
}

type AuditLogger interface {
	Log(e audit.Event) error
}

type Deps struct {
	Auth    AuthService
	Arrays  ArrayGenerator
	Audit   AuditLogger
	Metrics *observability.Metrics
	Logger  *slog.Logger
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready   func(ctx context.Context) error
	Version string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	handler := NewHandler(deps)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           loggingMiddleware(deps, handler),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				deps.logger().WarnContext(r.Context(), "readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/v1/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": serviceName,
			"version": deps.Version,
		})
	})
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}

	registerAuthHandlers(mux, deps)
	registerArrayHandlers(mux, deps)

	return mux
}

func registerAuthHandlers(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		if username == "" || password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		tok, err := deps.Auth.Login(r.Context(), username, password)
		if err != nil {
			if errors.Is(err, auth.ErrAuthenticationFailed) {
				deps.Metrics.ObserveLogin(observability.OutcomeFailure)
				auditReq(deps, r, username, "auth.login", observability.OutcomeFailure)
				writeChallenge(w, msgIncorrectLogin)
				return
			}
			deps.Metrics.ObserveLogin(observability.OutcomeError)
			auditReq(deps, r, username, "auth.login", observability.OutcomeError)
			deps.logger().ErrorContext(r.Context(), "login failed", "username", username, "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		deps.Metrics.ObserveLogin(observability.OutcomeSuccess)
		auditReq(deps, r, username, "auth.login", observability.OutcomeSuccess)

		writeJSON(w, http.StatusOK, tok)
	})

	mux.Handle("/v1/auth/me", authenticated(deps, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		id, _ := auth.IdentityFromContext(r.Context())
		writeJSON(w, http.StatusOK, id)
	}))
}

type userView struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"emailid"`
}

type arrayResponse struct {
	User  userView  `json:"user"`
	Array []float64 `json:"array"`
}

func registerArrayHandlers(mux *http.ServeMux, deps Deps) {
	mux.Handle("/array", authenticated(deps, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if deps.Arrays == nil {
			writeError(w, http.StatusServiceUnavailable, "array generator unavailable")
			return
		}

		q := r.URL.Query()
		if !q.Has("sentence") {
			writeError(w, http.StatusBadRequest, "sentence is required")
			return
		}
		sentence := q.Get("sentence")

		n := array.DefaultLength
		if raw := q.Get("n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "n must be an integer")
				return
			}
			n = parsed
		}

		id, _ := auth.IdentityFromContext(r.Context())
		deps.logger().InfoContext(r.Context(), "sentence received",
			"sentence", sentence,
			"username", id.Username,
			"request_id", requestIDFromContext(r.Context()),
		)

		values, err := deps.Arrays.Generate(n)
		if err != nil {
			if errors.Is(err, array.ErrInvalidLength) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "array generation failed")
			return
		}

		writeJSON(w, http.StatusOK, arrayResponse{
			User: userView{
				Username:    id.Username,
				DisplayName: id.DisplayName,
				Email:       id.Email,
			},
			Array: values,
		})
	}))
}

// authenticated rejects requests without a valid bearer token before next
// runs; on success the resolved identity is stored in the request context.
func authenticated(deps Deps, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deps.Auth == nil {
			writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
			return
		}
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeChallenge(w, msgNotAuthenticated)
			return
		}

		id, err := deps.Auth.AuthenticateToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				deps.Metrics.ObserveVerification(observability.OutcomeFailure)
				deps.logger().WarnContext(r.Context(), "token rejected",
					"error", err,
					"request_id", requestIDFromContext(r.Context()),
				)
				auditReq(deps, r, "", "auth.token", observability.OutcomeFailure)
				writeChallenge(w, msgInvalidToken)
				return
			}
			deps.Metrics.ObserveVerification(observability.OutcomeError)
			deps.logger().ErrorContext(r.Context(), "token authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		deps.Metrics.ObserveVerification(observability.OutcomeSuccess)

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

func extractBearerToken(authHeader string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeChallenge(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(deps Deps, next http.Handler) http.Handler {
	log := deps.logger()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		deps.Metrics.RequestStarted()
		start := time.Now()
		next.ServeHTTP(rec, r)
		took := time.Since(start)
		deps.Metrics.RequestFinished()

		// set by ServeMux on the request it was handed
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		deps.Metrics.ObserveRequest(r.Method, route, rec.status, took)
		log.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", took,
			"request_id", reqID,
		)
	})
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey{})
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(deps Deps, r *http.Request, actor, action, outcome string) {
	if deps.Audit == nil {
		return
	}
	err := deps.Audit.Log(audit.Event{
		Actor:     actor,
		Action:    action,
		Outcome:   outcome,
		RequestID: requestIDFromContext(r.Context()),
		ClientIP:  clientIP(r),
	})
	if err != nil {
		deps.logger().WarnContext(r.Context(), "audit write failed", "action", action, "error", err)
	}
}
