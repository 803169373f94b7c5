package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/academy-ledger/internal/api_gateway/handler"
	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/config"
	"github.com/academy-ledger/internal/platform/authz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the services and provider adapters the HTTP layer is built on
type Dependencies struct {
	Settlement service.SettlementService
	Contracts  service.ContractService
	Debt       service.DebtService
	Gate       service.GateService
	Click      handler.ClickGateway
	Payme      handler.PaymeGateway
	Checker    *authz.Checker
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, deps Dependencies) (*Server, error) {
	production := cfg.Application.Env == "production"
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}
	if deps.Checker == nil {
		deps.Checker = authz.NewChecker(authz.DefaultRoles())
	}

	httpRouter := gin.New()
	location := cfg.Application.Location()

	h := handlers{
		transactions: handler.NewTransactionHandler(log, deps.Settlement, location),
		contracts:    handler.NewContractHandler(log, deps.Contracts, location),
		debt:         handler.NewDebtHandler(log, deps.Debt),
		gate:         handler.NewGateHandler(log, deps.Gate, location),
		payments:     handler.NewPaymentHandler(log, deps.Click, deps.Payme),
	}

	setupRouter(log, httpRouter, h, deps.Checker, cors.New(corsConfig(cfg.Server.AllowedOrigins, production)))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	// Use server's write timeout for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
