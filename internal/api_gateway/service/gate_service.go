package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/academy-ledger/internal/domain/gatelog"
	"github.com/academy-ledger/internal/domain/money"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
)

// Gate decision reasons
const (
	ReasonNoIdentifier    = "No student identifier provided"
	ReasonStudentNotFound = "Student not found"
	ReasonNoPayment       = "No payment for current month"
	ReasonOK              = "OK"
	ReasonUnavailable     = "Decision unavailable"
)

// GateServiceImpl is a hard block: entry is allowed only when the current month carries no debt
type GateServiceImpl struct {
	students student.Repository
	debts    DebtService
	logs     gatelog.Repository
	clock    shared.Clock
	logger   *slog.Logger
}

func NewGateService(logger *slog.Logger, students student.Repository, debts DebtService, logs gatelog.Repository, clock shared.Clock) GateService {
	return &GateServiceImpl{
		students: students,
		debts:    debts,
		logs:     logs,
		clock:    clock,
		logger:   logger,
	}
}

func (s *GateServiceImpl) resolve(ctx context.Context, req GateRequest) (*student.Student, error) {
	if req.StudentID != nil {
		return s.students.GetByID(ctx, *req.StudentID)
	}
	return s.students.GetByFaceID(ctx, strings.TrimSpace(*req.FaceID))
}

// Decide evaluates the request and appends the gate log before answering. Unresolved or
// failing lookups are denied.
func (s *GateServiceImpl) Decide(ctx context.Context, req GateRequest) (*GateDecision, error) {
	logger := s.logger
	if id := shared.CorrelationID(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}

	if req.FaceID != nil && strings.TrimSpace(*req.FaceID) == "" {
		req.FaceID = nil
	}

	decision := &GateDecision{Allowed: false, StudentID: req.StudentID}
	var (
		debtAmount string
		decideErr  error
	)

	switch {
	case req.StudentID == nil && req.FaceID == nil:
		decision.Reason = ReasonNoIdentifier
	default:
		st, err := s.resolve(ctx, req)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			decision.Reason = ReasonStudentNotFound
		case err != nil:
			decision.Reason = ReasonUnavailable
			decideErr = err
		default:
			decision.StudentID = &st.ID
			summary, err := s.debts.Outstanding(ctx, st.ID, s.debts.CurrentPeriod())
			if err != nil {
				decision.Reason = ReasonUnavailable
				decideErr = err
				break
			}
			if summary.HasDebt() {
				decision.Reason = ReasonNoPayment
				debtAmount = summary.DebtAmount.StringFixed(money.LedgerPlaces)
			} else {
				decision.Allowed = true
				decision.Reason = ReasonOK
			}
		}
	}

	entry, err := gatelog.NewEntry(decision.StudentID, req.FaceID, decision.Allowed, decision.Reason, s.clock.Now())
	if err == nil {
		entry.DebtAmount = debtAmount
		entry.CorrelationID = shared.CorrelationID(ctx)
		err = s.logs.Append(ctx, entry)
	}
	if err != nil {
		logger.Error("Failed to write gate log, denying entry", "student_id", decision.StudentID, "reason", decision.Reason, "error", err)
		decision.Allowed = false
		return decision, fmt.Errorf("failed to write gate log: %w", err)
	}

	if decideErr != nil {
		logger.Error("Gate decision failed, entry denied", "error", decideErr)
		return decision, decideErr
	}

	logger.Info("Gate decision",
		"student_id", decision.StudentID,
		"allowed", decision.Allowed,
		"reason", decision.Reason,
		"gate_log_id", entry.ID,
	)
	return decision, nil
}

func (s *GateServiceImpl) ListLogs(ctx context.Context, filter gatelog.Filter) ([]*gatelog.Entry, int64, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, shared.InvalidInputError{Field: "to", Reason: "must not be before from"}
	}

	entries, err := s.logs.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list gate logs", "error", err)
		return nil, 0, err
	}
	total, err := s.logs.Count(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to count gate logs", "error", err)
		return nil, 0, err
	}
	return entries, total, nil
}
