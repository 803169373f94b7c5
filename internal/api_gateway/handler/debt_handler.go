package handler

import (
	"log/slog"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

type DebtHandler struct {
	debtService service.DebtService
	logger      *slog.Logger
}

func NewDebtHandler(logger *slog.Logger, debtService service.DebtService) *DebtHandler {
	return &DebtHandler{
		debtService: debtService,
		logger:      logger,
	}
}

// Outstanding reports a student's debt for the requested month
func (h *DebtHandler) Outstanding(c *gin.Context) {
	studentID, ok := pathID(c)
	if !ok {
		return
	}
	var query DebtQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, validationMessage(err))
		return
	}

	period := h.debtService.CurrentPeriod()
	if query.Year != 0 || query.Month != 0 {
		if query.Year == 0 || query.Month == 0 {
			RespondBadRequest(c, "year and month must be given together")
			return
		}
		p, err := shared.NewPeriod(query.Year, query.Month)
		if err != nil {
			RespondBadRequest(c, err.Error())
			return
		}
		period = p
	}

	summary, err := h.debtService.Outstanding(c.Request.Context(), studentID, period)
	if err != nil {
		h.logger.Warn("Debt lookup failed", "student_id", studentID, "error", err)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"student_id":            summary.StudentID,
		"year":                  summary.Period.Year,
		"month":                 summary.Period.Month,
		"expected_total":        summary.ExpectedTotal.StringFixed(2),
		"paid_total":            summary.PaidTotal.StringFixed(2),
		"debt_amount":           summary.DebtAmount.StringFixed(2),
		"has_debt":              summary.HasDebt(),
		"active_contract_count": summary.ActiveContractCount,
	})
}
