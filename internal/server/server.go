// Package server exposes the engine's HTTP surface: the shared-secret scan
// trigger, the unauthenticated one-click action links embedded in
// notifications, the payment provider's webhook and the operational
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subtrackd/subtrackd/internal/database"
	"github.com/subtrackd/subtrackd/internal/logger"
	"github.com/subtrackd/subtrackd/internal/scan"
)

// Store is the slice of the record store the HTTP handlers mutate.
type Store interface {
	GetSubscription(id string) (*database.Subscription, error)
	RenewSubscription(id string, renewalDate time.Time) error
	DeleteSubscription(id string) error
}

// Runner is the scan job surface the trigger endpoint drives.
type Runner interface {
	Run(ctx context.Context, day time.Time) (*scan.BatchResult, error)
	NotifyOne(ctx context.Context, subscriptionID string) (*scan.Result, error)
	Today() time.Time
}

type Server struct {
	store      Store
	runner     Runner
	baseURL    string
	scanSecret string
	httpServer *http.Server

	// now is the wall clock; swapped in tests
	now func() time.Time
}

// New assembles the HTTP server. stripeWebhook may be nil when the payment
// provider is not configured; its route then answers 503.
func New(addr, baseURL, scanSecret string, store Store, runner Runner, stripeWebhook http.HandlerFunc) *Server {
	s := &Server{
		store:      store,
		runner:     runner,
		baseURL:    baseURL,
		scanSecret: scanSecret,
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions/action", s.handleAction)
	mux.HandleFunc("/notifications/run", s.handleRunScan)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	if stripeWebhook != nil {
		mux.HandleFunc("/stripe/webhook", stripeWebhook)
	} else {
		mux.HandleFunc("/stripe/webhook", func(w http.ResponseWriter, r *http.Request) {
			logger.Error("Stripe webhook received but Stripe not configured", nil)
			http.Error(w, "Stripe not configured", http.StatusServiceUnavailable)
		})
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	logger.Info("HTTP server starting", map[string]interface{}{
		"addr": s.httpServer.Addr,
		"endpoints": []string{
			"/subscriptions/action", "/notifications/run", "/stripe/webhook", "/health", "/metrics",
		},
	})
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
