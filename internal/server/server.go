package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/fulfillment/internal/shipment"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Server is the HTTP server for the fulfillment service.
type Server struct {
	port     int
	timeout  time.Duration
	orch     *shipment.Orchestrator
	logger   *otelzap.Logger
	gatherer prometheus.Gatherer
}

// Config holds server configuration.
type Config struct {
	Port           int
	RequestTimeout time.Duration
}

// New creates a new server instance. gatherer backs /metrics and defaults
// to the global registry.
func New(cfg Config, orch *shipment.Orchestrator, logger *otelzap.Logger, gatherer prometheus.Gatherer) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		port:     cfg.Port,
		timeout:  cfg.RequestTimeout,
		orch:     orch,
		logger:   logger,
		gatherer: gatherer,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", s.handleCreateOrder)
			r.Get("/serviceability", s.handleServiceability)
			r.Get("/track/{awb}", s.handleTrack)
			r.Post("/{shipmentID}/awb", s.handleAssignCourier)
			r.Post("/{shipmentID}/label", s.handleGenerateLabel)
			r.Post("/{shipmentID}/pickup", s.handleRequestPickup)
			r.Post("/{shipmentID}/cancel", s.handleCancel)
		})

		r.Post("/invoices", s.handleGenerateInvoice)
		r.Get("/orders/{orderID}/shipment", s.handleShipmentState)
		r.Post("/orders/{orderID}/shipment/link", s.handleLinkShipment)
	})

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled. On
// shutdown it drains in-flight requests, then waits for background
// courier assignments.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		s.orch.Wait()
		return err
	})

	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Ctx(r.Context()).Info("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
