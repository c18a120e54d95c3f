package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/RyanJHamby/stock-screener-cagr-based/internal/api/handlers"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/logger"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

// NewRouter creates and configures the HTTP router. metrics may be nil to
// leave /metrics unrouted.
// ⭐ SSOT: routes are declared only here
func NewRouter(screenHandler *handlers.ScreenHandler, metrics *monitoring.Registry, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus scrape endpoint
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Screening endpoints
	api.HandleFunc("/strategies", screenHandler.ListStrategies).Methods("GET")
	api.HandleFunc("/screen/{strategy}", screenHandler.GetLatest).Methods("GET")
	api.HandleFunc("/screen/{strategy}", screenHandler.StartRun).Methods("POST")
	api.HandleFunc("/screen/{strategy}/disqualified", screenHandler.GetDisqualifications).Methods("GET")
	api.HandleFunc("/metrics/{symbol}", screenHandler.GetMetrics).Methods("GET")
	api.HandleFunc("/stream/{strategy}", screenHandler.Stream).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "stock-screener-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
