package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gaunroots/internal/alerts"
	"gaunroots/internal/classifier"
	"gaunroots/internal/ledger"
	"gaunroots/internal/market"
	"gaunroots/internal/metrics"
	"gaunroots/internal/store"
)

// Dependencies exposes the services handlers dispatch to.
type Dependencies struct {
	Store      store.Store
	Ledger     *ledger.Service
	Market     *market.Service
	Alerts     *alerts.Service
	Classifier *classifier.Classifier
}

// Server wraps an http.Server with predefined routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	basePath   string
}

// New creates a new HTTP server listening on addr with the API, health and
// metrics endpoints.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		deps:     deps,
		basePath: normaliseBasePath(basePath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", server.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /users/register", server.handleRegister)
	mux.HandleFunc("POST /users/login", server.handleLogin)
	mux.HandleFunc("GET /users/{id}", server.handleGetUser)
	mux.HandleFunc("PUT /users/{id}", server.handleUpdateUser)
	mux.HandleFunc("POST /users/{id}/add-credits", server.handleAddCredits)
	mux.HandleFunc("POST /users/{id}/add-friend", server.handleAddFriend)
	mux.HandleFunc("GET /users/{id}/tokens", server.handleGetTokens)
	mux.HandleFunc("POST /users/{id}/purchase-tokens", server.handlePurchaseTokens)
	mux.HandleFunc("POST /users/{id}/use-token", server.handleUseToken)
	mux.HandleFunc("GET /users/{id}/detection-history", server.handleDetectionHistory)
	mux.HandleFunc("DELETE /detection-history/{id}", server.handleDeleteDetection)

	mux.HandleFunc("GET /products", server.handleListProducts)
	mux.HandleFunc("GET /products/seller/{sellerId}", server.handleSellerProducts)
	mux.HandleFunc("POST /products", server.handleCreateProduct)
	mux.HandleFunc("DELETE /products/{id}", server.handleDeleteProduct)
	mux.HandleFunc("POST /products/{id}/view", server.handleProductView)

	mux.HandleFunc("POST /predict", server.handlePredict)

	mux.HandleFunc("POST /register-alerts", server.handleRegisterAlerts)
	mux.HandleFunc("POST /report-disease", server.handleReportDisease)
	mux.HandleFunc("POST /send-alert", server.handleSendAlert)
	mux.HandleFunc("POST /send-community-alert", server.handleCommunityAlert)
	mux.HandleFunc("GET /recent-alerts", server.handleRecentAlerts)

	handler := mountWithBasePath(server.basePath, server.instrument(mux))

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

// Handler exposes the fully mounted handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instrument attaches a request id and records per-route metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%d", rec.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
		s.logger.Debug("request handled",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
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

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

// writeServiceError maps sentinel errors onto their HTTP statuses; anything
// unrecognised becomes a 500 carrying the error text.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidQuantity):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientTokens):
		writeDetail(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, classifier.ErrModelUnavailable):
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
	default:
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("http").Inc()
		}
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
