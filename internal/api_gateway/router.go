package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/academy-ledger/internal/api_gateway/handler"
	"github.com/academy-ledger/internal/api_gateway/middleware"
	"github.com/academy-ledger/internal/platform/authz"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	transactions *handler.TransactionHandler
	contracts    *handler.ContractHandler
	debt         *handler.DebtHandler
	gate         *handler.GateHandler
	payments     *handler.PaymentHandler
}

func corsConfig(allowedOrigins []string, production bool) cors.Config {
	cfg := cors.DefaultConfig()
	switch {
	case len(allowedOrigins) > 0:
		cfg.AllowOrigins = allowedOrigins
	case production:
		cfg.AllowOrigins = []string{}
	default:
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods(http.MethodPatch)
	cfg.AddAllowHeaders("Authorization", middleware.CorrelationIDHeader, middleware.ActorIDHeader, middleware.ActorRolesHeader)
	cfg.AddExposeHeaders(middleware.CorrelationIDHeader)
	return cfg
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers, checker *authz.Checker, corsHandler gin.HandlerFunc) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(corsHandler)
	r.Use(middleware.Actor())

	can := func(capability authz.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(checker, capability)
	}

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Provider callbacks authenticate by signature, not by actor
		v1.POST("/click/payment", h.payments.Click)
		v1.POST("/payme/payment", h.payments.Payme)

		// Turnstile controller
		v1.POST("/gate/callback", h.gate.Callback)

		transactions := v1.Group("/transactions")
		{
			transactions.GET("", can(authz.TransactionsRead), h.transactions.List)
			transactions.GET("/unassigned", can(authz.TransactionsRead), h.transactions.ListUnassigned)
			transactions.GET("/reconcile", can(authz.TransactionsRead), h.transactions.Reconcile)
			transactions.GET("/:id", can(authz.TransactionsRead), h.transactions.GetByID)
			transactions.GET("/:id/journal", can(authz.TransactionsRead), h.transactions.Journal)
			transactions.POST("/manual", can(authz.TransactionsWrite), h.transactions.CreateManual)
			transactions.POST("/unassigned", can(authz.TransactionsWrite), h.transactions.CreateUnassigned)
			transactions.PATCH("/:id/assign", can(authz.TransactionsWrite), h.transactions.Assign)
			transactions.PATCH("/:id/cancel", can(authz.TransactionsCancel), h.transactions.Cancel)
		}

		contracts := v1.Group("", can(authz.ContractsManage))
		{
			contracts.POST("/contracts", h.contracts.Create)
			contracts.PATCH("/contracts/:id/terminate", h.contracts.Terminate)
			contracts.GET("/contracts/by-number/:number", h.contracts.GetByNumber)
			contracts.GET("/groups/:id/sequences", h.contracts.AvailableSequences)
			contracts.GET("/groups/:id/waiting-list", h.contracts.WaitingList)
			contracts.POST("/groups/:id/waiting-list", h.contracts.AddToWaitingList)
			contracts.DELETE("/waiting-list/:id", h.contracts.RemoveFromWaitingList)
		}

		v1.GET("/students/:id/debt", can(authz.DebtRead), h.debt.Outstanding)
		v1.GET("/gate/logs", can(authz.GateLogsRead), h.gate.Logs)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
