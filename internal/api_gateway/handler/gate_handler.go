package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/gatelog"
	"github.com/gin-gonic/gin"
)

// GateHandler answers the turnstile and exposes its log
type GateHandler struct {
	gateService service.GateService
	location    *time.Location
	logger      *slog.Logger
}

func NewGateHandler(logger *slog.Logger, gateService service.GateService, location *time.Location) *GateHandler {
	if location == nil {
		location = time.UTC
	}
	return &GateHandler{
		gateService: gateService,
		location:    location,
		logger:      logger,
	}
}

// Callback always answers 200 with a decision. Every request reaches the gate service so
// the decision is logged; unreadable bodies are decided as carrying no identifier.
func (h *GateHandler) Callback(c *gin.Context) {
	var req GateCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Unreadable gate callback", "error", err)
		req = GateCallbackRequest{}
	}
	gateReq := req.GateRequest()

	decision, err := h.gateService.Decide(c.Request.Context(), gateReq)
	if err != nil {
		h.logger.Error("Gate decision failed", "error", err)
		if decision == nil {
			decision = &service.GateDecision{Allowed: false, Reason: "internal error", StudentID: gateReq.StudentID}
		}
	}
	c.JSON(http.StatusOK, decision)
}

// Logs lists gate decisions, newest first
func (h *GateHandler) Logs(c *gin.Context) {
	var query GateLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}
	from, err := parseDate(query.From, h.location)
	if err != nil {
		RespondBadRequest(c, "Invalid from date")
		return
	}
	to, err := parseDate(query.To, h.location)
	if err != nil {
		RespondBadRequest(c, "Invalid to date")
		return
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	entries, total, err := h.gateService.ListLogs(c.Request.Context(), gatelog.Filter{
		From:      from,
		To:        to,
		StudentID: query.StudentID,
		Allowed:   query.Allowed,
		Limit:     query.PerPage,
		Offset:    query.Offset(),
	})
	if err != nil {
		h.logger.Error("Failed to list gate logs", "error", err)
		RespondDomainError(c, err)
		return
	}
	if entries == nil {
		entries = []*gatelog.Entry{}
	}
	RespondWithPaginatedData(c, http.StatusOK, entries, query.Page, query.PerPage, int(total))
}
