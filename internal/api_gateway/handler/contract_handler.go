package handler

import (
	"log/slog"
	"time"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/gin-gonic/gin"
)

// ContractHandler handles enrollment, numbering and the waiting list
type ContractHandler struct {
	contractService service.ContractService
	location        *time.Location
	logger          *slog.Logger
}

// NewContractHandler creates a new contract handler
func NewContractHandler(logger *slog.Logger, contractService service.ContractService, location *time.Location) *ContractHandler {
	if location == nil {
		location = time.UTC
	}
	return &ContractHandler{
		contractService: contractService,
		location:        location,
		logger:          logger,
	}
}

// Create enrolls a student; a full group answers 409 and optionally queues the student
func (h *ContractHandler) Create(c *gin.Context) {
	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid contract request", "error", err)
		RespondBadRequest(c, validationMessage(err))
		return
	}
	start, err := time.ParseInLocation(dateLayout, req.StartDate, h.location)
	if err != nil {
		RespondBadRequest(c, "Invalid start_date")
		return
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, h.location)
	if err != nil {
		RespondBadRequest(c, "Invalid end_date")
		return
	}

	ct, err := h.contractService.CreateContract(c.Request.Context(), service.CreateContractRequest{
		StudentID:       req.StudentID,
		GroupID:         req.GroupID,
		Number:          req.ContractNumber,
		MonthlyFee:      req.MonthlyFee,
		StartDate:       start,
		EndDate:         end,
		Enqueue:         req.Enqueue,
		WaitingPriority: req.WaitingPriority,
	})
	if err != nil {
		h.logger.Warn("Contract creation rejected", "student_id", req.StudentID, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondCreated(c, ct)
}

// Terminate completes or cancels an ACTIVE contract
func (h *ContractHandler) Terminate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TerminateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}

	ct, err := h.contractService.Terminate(c.Request.Context(), id, shared.ContractStatus(req.Status))
	if err != nil {
		h.logger.Warn("Contract termination rejected", "id", id, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, ct)
}

// GetByNumber returns a contract with its student
func (h *ContractHandler) GetByNumber(c *gin.Context) {
	info, err := h.contractService.Describe(c.Request.Context(), c.Param("number"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"contract": info.Contract,
		"student":  info.Student,
	})
}

// AvailableSequences lists the free sequence numbers of a group for a birth year
func (h *ContractHandler) AvailableSequences(c *gin.Context) {
	groupID, ok := pathID(c)
	if !ok {
		return
	}
	var query SequencesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}

	free, err := h.contractService.AvailableSequences(c.Request.Context(), groupID, query.BirthYear)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"group_id":   groupID,
		"birth_year": query.BirthYear,
		"available":  free,
	})
}

// WaitingList returns a group's queue in service order
func (h *ContractHandler) WaitingList(c *gin.Context) {
	groupID, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := h.contractService.ListWaitingList(c.Request.Context(), groupID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if entries == nil {
		entries = []*waitinglist.Entry{}
	}
	RespondOK(c, entries)
}

// AddToWaitingList queues a student for a group
func (h *ContractHandler) AddToWaitingList(c *gin.Context) {
	groupID, ok := pathID(c)
	if !ok {
		return
	}
	var req WaitingListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}

	entry := waitinglist.NewEntry(req.StudentID, groupID, req.BirthYear, req.Priority, req.Comment)
	if err := h.contractService.AddToWaitingList(c.Request.Context(), entry); err != nil {
		h.logger.Warn("Waiting list entry rejected", "group_id", groupID, "student_id", req.StudentID, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondCreated(c, entry)
}

// RemoveFromWaitingList deletes a queue entry
func (h *ContractHandler) RemoveFromWaitingList(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.contractService.RemoveFromWaitingList(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondNoContent(c)
}
