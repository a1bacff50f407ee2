// Package httpapi serves the HTTP side of skybox: health, metrics, public
// file access and the payment checkout endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/skybox/internal/logging"
	"github.com/dmitrijs2005/skybox/internal/server/auth"
	"github.com/dmitrijs2005/skybox/internal/server/models"
)

// FileService is the part of the file service reachable over HTTP.
type FileService interface {
	GetPublicFile(ctx context.Context, fileID string) (*models.FileRecord, error)
	Download(ctx context.Context, requesterID, fileID string) (*models.FileRecord, []byte, error)
}

// PaymentService creates and confirms plan orders.
type PaymentService interface {
	CreateOrder(ctx context.Context, ownerID string, tier models.PlanTier) (*models.Order, error)
	VerifyPayment(ctx context.Context, ownerID, orderID, paymentID, signature string) bool
}

type Server struct {
	address         string
	files           FileService
	payments        PaymentService
	verifier        auth.Verifier
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewServer(addr string, l logging.Logger, fs FileService, ps PaymentService, v auth.Verifier, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         addr,
		files:           fs,
		payments:        ps,
		verifier:        v,
		logger:          l.With("module", "http_server"),
		shutdownTimeout: shutdownTimeout,
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.logger), MetricsMiddleware())

	r.Get("/health/live", s.handleLive)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/files/public/{id}", s.handlePublicFile)
		r.With(s.optionalAuth).Get("/files/{id}/download", s.handleDownload)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/payments/orders", s.handleCreateOrder)
			r.Post("/payments/verify", s.handleVerifyPayment)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
