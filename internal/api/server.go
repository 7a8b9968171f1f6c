// Package api provides the HTTP REST API and WebSocket server for the
// vending fleet synchronization service.
//
// It exposes command dispatch (slots, products, reboots), the diagnostic
// connection test, payment history, and a WebSocket feed of live payment
// events to the admin dashboard.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/idea-vending/vendsync/internal/command"
	"github.com/idea-vending/vendsync/internal/credentials"
	"github.com/idea-vending/vendsync/internal/diagnostic"
	"github.com/idea-vending/vendsync/internal/infrastructure/config"
	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
	"github.com/idea-vending/vendsync/internal/payment"
	"github.com/idea-vending/vendsync/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandPublisher is the slice of the command layer the API consumes.
// *command.Publisher implements it; handler tests use stubs.
type CommandPublisher interface {
	PublishSlotOperation(ctx context.Context, creds credentials.Credentials, action command.Action, machineID, slotID int64, data command.SlotData) error
	PublishProductOperation(ctx context.Context, creds credentials.Credentials, action command.Action, data command.ProductData) error
	PublishReboot(ctx context.Context, creds credentials.Credentials, machineID int64, force bool) error
}

// DiagnosticSession is the slice of the diagnostic layer the API consumes.
type DiagnosticSession interface {
	TestConnection(creds credentials.Credentials) diagnostic.State
	SendPing()
	Disconnect()
	Status() diagnostic.Status
	ClearLog()
}

// StreamController reports and controls the event stream session.
type StreamController interface {
	Status() stream.Status
	Disconnect()
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Publisher  CommandPublisher
	Diagnostic DiagnosticSession
	Stream     StreamController // optional; stream may be disabled
	Payments   payment.Repository
	Dispatch   *command.DispatchPolicy
	Fallback   credentials.Resolver // static credentials for requests without per-user identity
	Version    string
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	publisher  CommandPublisher
	diagnostic DiagnosticSession
	stream     StreamController
	payments   payment.Repository
	dispatch   *command.DispatchPolicy
	fallback   credentials.Resolver
	version    string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("command publisher is required")
	}
	if deps.Diagnostic == nil {
		return nil, fmt.Errorf("diagnostic session is required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("payment repository is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		publisher:  deps.Publisher,
		diagnostic: deps.Diagnostic,
		stream:     deps.Stream,
		payments:   deps.Payments,
		dispatch:   deps.Dispatch,
		fallback:   deps.Fallback,
		version:    deps.Version,
	}

	return s, nil
}

// Hub returns the server's WebSocket hub, creating it if needed.
// Exposed so the stream subscriber can be wired to broadcast payments
// before the server starts.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// SetStream wires the event stream controller after construction.
// The stream subscriber takes the hub as a sink, so it is built after the
// server; call this before Start.
func (s *Server) SetStream(stream StreamController) {
	s.stream = stream
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
// It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
