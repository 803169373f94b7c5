package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/academy-ledger/internal/api_gateway/gateway"
	"github.com/gin-gonic/gin"
)

type ClickGateway interface {
	Handle(ctx context.Context, req *gateway.ClickRequest) (*gateway.ClickResponse, error)
}

type PaymeGateway interface {
	Authorize(authorization, xAuth string) error
	Handle(ctx context.Context, req *gateway.PaymeRequest, authErr error) (*gateway.PaymeResponse, error)
}

// PaymentHandler receives the Click and Payme callbacks. Protocol errors are answered
// with 200 and a provider error code; only an unknown write outcome answers 503 so the
// provider retries.
type PaymentHandler struct {
	click  ClickGateway
	payme  PaymeGateway
	logger *slog.Logger
}

func NewPaymentHandler(logger *slog.Logger, click ClickGateway, payme PaymeGateway) *PaymentHandler {
	return &PaymentHandler{
		click:  click,
		payme:  payme,
		logger: logger,
	}
}

// Click handles POST /click/payment
func (h *PaymentHandler) Click(c *gin.Context) {
	var req gateway.ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Unreadable Click request", "error", err)
		c.JSON(http.StatusOK, gateway.ClickMalformed())
		return
	}

	resp, err := h.click.Handle(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Click request outcome unknown", "action", req.Action, "click_paydoc_id", req.ClickPaydocID, "error", err)
		RespondServiceUnavailable(c, "Outcome unknown, retry later")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Payme handles POST /payme/payment
func (h *PaymentHandler) Payme(c *gin.Context) {
	var req gateway.PaymeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Unreadable Payme request", "error", err)
		c.JSON(http.StatusOK, gateway.PaymeMalformed())
		return
	}

	authErr := h.payme.Authorize(c.GetHeader("Authorization"), c.GetHeader("X-Auth"))
	resp, err := h.payme.Handle(c.Request.Context(), &req, authErr)
	if err != nil {
		h.logger.Error("Payme request outcome unknown", "method", req.Method, "error", err)
		RespondServiceUnavailable(c, "Outcome unknown, retry later")
		return
	}
	c.JSON(http.StatusOK, resp)
}
