package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/academy-ledger/internal/api_gateway/middleware"
	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/gin-gonic/gin"
)

// TransactionHandler serves the staff-facing transaction endpoints
type TransactionHandler struct {
	settlement service.SettlementService
	location   *time.Location
	logger     *slog.Logger
}

// NewTransactionHandler creates a new transaction handler. Query dates are read in location.
func NewTransactionHandler(logger *slog.Logger, settlement service.SettlementService, location *time.Location) *TransactionHandler {
	if location == nil {
		location = time.UTC
	}
	return &TransactionHandler{
		settlement: settlement,
		location:   location,
		logger:     logger,
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

// List returns transactions matching the query, newest first
func (h *TransactionHandler) List(c *gin.Context) {
	var query TransactionListQuery
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

	filter := transaction.Filter{
		From:      from,
		To:        to,
		StudentID: query.StudentID,
		Limit:     query.PerPage,
		Offset:    query.Offset(),
	}
	if query.Status != "" {
		status := shared.TransactionStatus(query.Status)
		filter.Status = &status
	}
	if query.Source != "" {
		source := shared.PaymentSource(query.Source)
		filter.Source = &source
	}

	txns, total, err := h.settlement.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list transactions", "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, mapTransactions(txns), query.Page, query.PerPage, int(total))
}

// ListUnassigned returns payments waiting for a manual assignment
func (h *TransactionHandler) ListUnassigned(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	txns, total, err := h.settlement.ListUnassigned(c.Request.Context(), pagination.PerPage, pagination.Offset())
	if err != nil {
		h.logger.Error("Failed to list unassigned transactions", "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondWithPaginatedData(c, http.StatusOK, mapTransactions(txns), pagination.Page, pagination.PerPage, int(total))
}

// GetByID retrieves a transaction, 404 if it does not exist
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	txn, err := h.settlement.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to get transaction", "id", id, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, mapTransactionToResponse(txn))
}

// Journal returns the settlement events projected for a transaction
func (h *TransactionHandler) Journal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	records, err := h.settlement.Journal(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to read journal", "id", id, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, records)
}

// CreateManual records a cash, bank or manual payment against a contract number
func (h *TransactionHandler) CreateManual(c *gin.Context) {
	var req ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid manual payment", "error", err)
		RespondBadRequest(c, validationMessage(err))
		return
	}

	var actorID *int64
	if actor, ok := middleware.GetActor(c); ok {
		actorID = &actor.ID
	}

	txn, err := h.settlement.CreateManual(c.Request.Context(), service.ManualPaymentRequest{
		Amount:         req.Amount,
		Source:         shared.PaymentSource(req.Source),
		ContractNumber: req.ContractNumber,
		Year:           req.PaymentYear,
		Months:         req.PaymentMonths,
		Comment:        req.Comment,
		ActorID:        actorID,
	})
	if err != nil {
		h.logger.Warn("Manual payment rejected", "contract_number", req.ContractNumber, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondCreated(c, mapTransactionToResponse(txn))
}

// CreateUnassigned records a payment whose contract could not be resolved
func (h *TransactionHandler) CreateUnassigned(c *gin.Context) {
	var req UnassignedPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}

	txn, err := h.settlement.RecordUnassigned(c.Request.Context(), service.UnassignedPaymentRequest{
		Source:     shared.PaymentSource(req.Source),
		ExternalID: req.ExternalID,
		Amount:     req.Amount,
		PaidAt:     req.PaidAt,
		Comment:    req.Comment,
	})
	if err != nil {
		h.logger.Warn("Unassigned payment rejected", "external_id", req.ExternalID, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondCreated(c, mapTransactionToResponse(txn))
}

// Assign attaches an UNASSIGNED payment to a student's contract
func (h *TransactionHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}

	txn, err := h.settlement.Assign(c.Request.Context(), id, service.AssignRequest{
		StudentID:  req.StudentID,
		ContractID: req.ContractID,
		Year:       req.PaymentYear,
		Months:     req.PaymentMonths,
	})
	if err != nil {
		h.logger.Warn("Assignment rejected", "id", id, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, mapTransactionToResponse(txn))
}

// Cancel cancels a transaction by id; the reason defaults to a refund
func (h *TransactionHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, validationMessage(err))
			return
		}
	}
	reason := transaction.CancelReasonRefund
	if req.Reason != nil {
		reason = *req.Reason
	}

	txn, err := h.settlement.CancelByID(c.Request.Context(), id, reason)
	if err != nil {
		h.logger.Warn("Cancel rejected", "id", id, "error", err)
		RespondDomainError(c, err)
		return
	}
	h.logger.Info("Transaction cancelled", "id", id, "reason", reason)
	RespondOK(c, mapTransactionToResponse(txn))
}

// Reconcile lists settled gateway payments for the inclusive date range
func (h *TransactionHandler) Reconcile(c *gin.Context) {
	var query ReconcileQuery
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

	txns, err := h.settlement.Reconcile(c.Request.Context(), shared.PaymentSource(query.Provider), *from, to.AddDate(0, 0, 1))
	if err != nil {
		h.logger.Error("Failed to reconcile", "provider", query.Provider, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, mapTransactions(txns))
}

func mapTransactions(txns []*transaction.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, mapTransactionToResponse(txn))
	}
	return out
}

// mapTransactionToResponse maps a transaction to its response DTO
func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:            txn.ID,
		Amount:        txn.Amount.StringFixed(2),
		Source:        string(txn.Source),
		Status:        string(txn.Status),
		StudentID:     txn.StudentID,
		ContractID:    txn.ContractID,
		PaymentYear:   txn.PaymentYear,
		PaymentMonths: txn.PaymentMonths,
		Comment:       txn.Comment,
		CreatedBy:     txn.CreatedByUserID,
		CancelReason:  txn.CancelReason,
		CreatedAt:     txn.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     txn.UpdatedAt.Format(time.RFC3339),
	}
	if response.PaymentMonths == nil {
		response.PaymentMonths = []int{}
	}
	if txn.ExternalID != nil {
		response.ExternalID = *txn.ExternalID
	}
	if txn.PaidAt != nil {
		response.PaidAt = txn.PaidAt.Format(time.RFC3339)
	}
	if txn.CancelledAt != nil {
		response.CancelledAt = txn.CancelledAt.Format(time.RFC3339)
	}
	return response
}
