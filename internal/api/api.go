package api

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/api/authenticator"
	"github.com/curaious/fabricqr/internal/config"
	"github.com/curaious/fabricqr/internal/metrics"
	"github.com/curaious/fabricqr/internal/services"
)

// Server is the fasthttp server for the QR and auth API.
type Server struct {
	srv      *fasthttp.Server
	addr     string
	conf     *config.Config
	services *services.Services
	metrics  *metrics.Metrics
	tokens   *authenticator.TokenIssuer
	google   *authenticator.GoogleAuthenticator
}

// New wires the routes. m may be nil, in which case /metrics is not served.
func New(conf *config.Config, svc *services.Services, m *metrics.Metrics, tokens *authenticator.TokenIssuer, google *authenticator.GoogleAuthenticator) *Server {
	s := &Server{
		srv: &fasthttp.Server{
			Name:         "fabricqr",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		addr:     net.JoinHostPort("0.0.0.0", conf.PORT),
		conf:     conf,
		services: svc,
		metrics:  m,
		tokens:   tokens,
		google:   google,
	}

	s.srv.Handler = s.initRoutes()

	return s
}

// Handler returns the full middleware and router chain.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.srv.Handler
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	slog.Info("Starting REST server...", slog.String("addr", s.addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe(s.addr)
	}()

	// Listen for OS interrupts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case err := <-errCh:
		slog.Error("Server stopped", slog.Any("error", err))
		return err
	case <-c:
		slog.Info("Received interrupt...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	return s.shutdown(ctx)
}

func (s *Server) shutdown(ctx context.Context) error {
	slog.Info("Gracefully shutting down REST server...")
	if err := s.srv.ShutdownWithContext(ctx); err != nil {
		slog.Error("Failed to shutdown the server", slog.Any("error", err))
		return err
	}
	slog.Info("REST server shutdown!")
	return nil
}
