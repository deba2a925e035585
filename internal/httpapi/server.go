// Package httpapi exposes the JSON control surface the dashboard
// backend calls. It is a private API behind a shared bearer token, not
// a public one.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server wraps the HTTP listener lifecycle.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer assembles the router. Health stays outside auth for probes;
// everything else requires the shared token.
func NewServer(addr string, h *Handlers, apiToken, dashboardOrigin string, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(allowOrigin(dashboardOrigin))

	r.Get("/healthz", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(apiToken))

		r.Route("/whatsapp", func(r chi.Router) {
			r.Get("/status", h.Status)
			r.Get("/qr.png", h.QRImage)
			r.Post("/initialize", h.Initialize)
			r.Post("/send", h.Send)
			r.Post("/template/invoice-reminder", h.InvoiceReminder)
			r.Post("/logout", h.Logout)
			r.Post("/disconnect", h.Disconnect)
			r.Post("/sweep", h.Sweep)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/trips", h.SyncTrips)
			r.Post("/invoices", h.SyncInvoices)
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
}

// Stop drains in-flight requests and shuts down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
