package transaction

import (
	"fmt"
	"slices"
	"time"

	"github.com/academy-ledger/internal/domain/money"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Cancel reasons follow the Payme reason codes so they can be echoed back unchanged.
const (
	CancelReasonExecutionError = 3
	CancelReasonTimeout        = 4
	CancelReasonRefund         = 5
	CancelReasonUnknown        = 10
)

// Transaction is the authoritative record of a single monetary movement.
// ContractID set implies StudentID set and the contract belongs to that student.
type Transaction struct {
	ID              int64                    `json:"id"`
	ExternalID      *string                  `json:"external_id,omitempty"`
	Amount          decimal.Decimal          `json:"amount"`
	Source          shared.PaymentSource     `json:"source"`
	Status          shared.TransactionStatus `json:"status"`
	StudentID       *int64                   `json:"student_id,omitempty"`
	ContractID      *int64                   `json:"contract_id,omitempty"`
	PaymentYear     *int                     `json:"payment_year,omitempty"`
	PaymentMonths   []int                    `json:"payment_months"`
	Comment         string                   `json:"comment,omitempty"`
	CreatedByUserID *int64                   `json:"created_by_user_id,omitempty"`
	CancelReason    *int                     `json:"cancel_reason,omitempty"`
	PaidAt          *time.Time               `json:"paid_at,omitempty"`
	CancelledAt     *time.Time               `json:"cancelled_at,omitempty"`
	Version         int                      `json:"version"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// ValidateMonths checks a payment month list: non-empty, each in 1..12, no repeats.
func ValidateMonths(months []int) error {
	if len(months) == 0 {
		return shared.InvalidInputError{Field: "payment_months", Reason: "at least one month is required"}
	}
	seen := make(map[int]struct{}, len(months))
	for _, m := range months {
		if m < 1 || m > 12 {
			return shared.InvalidInputError{Field: "payment_months", Reason: fmt.Sprintf("%d is outside 1..12", m)}
		}
		if _, dup := seen[m]; dup {
			return shared.InvalidInputError{Field: "payment_months", Reason: fmt.Sprintf("%d is listed twice", m)}
		}
		seen[m] = struct{}{}
	}
	return nil
}

// NewManual builds a SUCCESS transaction entered by staff for an existing contract.
func NewManual(amount decimal.Decimal, source shared.PaymentSource, contractID, studentID int64, year int, months []int, comment string, actorID *int64, now time.Time) (*Transaction, error) {
	if !money.ValidAmount(amount) {
		return nil, shared.InvalidInputError{Field: "amount", Reason: "must be a positive amount with at most 2 decimals"}
	}
	if !source.Valid() {
		return nil, shared.InvalidInputError{Field: "source", Reason: fmt.Sprintf("unknown payment source %q", source)}
	}
	if _, err := shared.NewPeriod(year, 1); err != nil {
		return nil, err
	}
	if err := ValidateMonths(months); err != nil {
		return nil, err
	}

	return &Transaction{
		Amount:          amount,
		Source:          source,
		Status:          shared.TransactionStatusSuccess,
		StudentID:       &studentID,
		ContractID:      &contractID,
		PaymentYear:     &year,
		PaymentMonths:   append([]int(nil), months...),
		Comment:         comment,
		CreatedByUserID: actorID,
		PaidAt:          &now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// NewPending builds the PENDING transaction created by a gateway prepare call.
func NewPending(provider shared.PaymentSource, externalID string, amount decimal.Decimal, contractID, studentID int64, period shared.Period, now time.Time) *Transaction {
	year := period.Year
	return &Transaction{
		ExternalID:    &externalID,
		Amount:        amount,
		Source:        provider,
		Status:        shared.TransactionStatusPending,
		StudentID:     &studentID,
		ContractID:    &contractID,
		PaymentYear:   &year,
		PaymentMonths: []int{period.Month},
		Comment:       fmt.Sprintf("%s prepare %s for %s", provider, externalID, period),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewUnassigned records money that arrived without a resolvable contract.
func NewUnassigned(source shared.PaymentSource, externalID string, amount decimal.Decimal, paidAt time.Time, comment string, now time.Time) (*Transaction, error) {
	if !money.ValidAmount(amount) {
		return nil, shared.InvalidInputError{Field: "amount", Reason: "must be a positive amount with at most 2 decimals"}
	}
	if !source.Valid() {
		return nil, shared.InvalidInputError{Field: "source", Reason: fmt.Sprintf("unknown payment source %q", source)}
	}
	if externalID == "" {
		return nil, shared.InvalidInputError{Field: "external_id", Reason: "must not be empty"}
	}
	return &Transaction{
		ExternalID:    &externalID,
		Amount:        amount,
		Source:        source,
		Status:        shared.TransactionStatusUnassigned,
		PaymentMonths: []int{},
		Comment:       comment,
		PaidAt:        &paidAt,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (t *Transaction) invalid(action string) error {
	return shared.InvalidStateError{Entity: "transaction", ID: t.ID, From: string(t.Status), Action: action}
}

// Confirm settles a PENDING transaction.
func (t *Transaction) Confirm(now time.Time) error {
	if t.Status != shared.TransactionStatusPending {
		return t.invalid("confirm")
	}
	t.Status = shared.TransactionStatusSuccess
	t.PaidAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel moves a PENDING or SUCCESS transaction to CANCELLED.
func (t *Transaction) Cancel(reason int, now time.Time) error {
	if t.Status != shared.TransactionStatusPending && t.Status != shared.TransactionStatusSuccess {
		return t.invalid("cancel")
	}
	t.Status = shared.TransactionStatusCancelled
	t.CancelReason = &reason
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}

// Fail records a gateway-reported failure of a PENDING transaction.
func (t *Transaction) Fail(now time.Time) error {
	if t.Status != shared.TransactionStatusPending {
		return t.invalid("fail")
	}
	t.Status = shared.TransactionStatusFailed
	t.UpdatedAt = now
	return nil
}

// Assign attaches an UNASSIGNED transaction to a contract and settles it.
func (t *Transaction) Assign(studentID, contractID int64, year int, months []int, now time.Time) error {
	if t.Status != shared.TransactionStatusUnassigned {
		return t.invalid("assign")
	}
	if _, err := shared.NewPeriod(year, 1); err != nil {
		return err
	}
	if err := ValidateMonths(months); err != nil {
		return err
	}
	t.StudentID = &studentID
	t.ContractID = &contractID
	t.PaymentYear = &year
	t.PaymentMonths = append([]int(nil), months...)
	t.Status = shared.TransactionStatusSuccess
	if t.PaidAt == nil {
		t.PaidAt = &now
	}
	t.UpdatedAt = now
	return nil
}

// Periods expands the payment year and month set into calendar months of that
// year, ordered by month. The order the months were entered in does not matter.
func (t *Transaction) Periods() []shared.Period {
	if t.PaymentYear == nil || len(t.PaymentMonths) == 0 {
		return nil
	}
	months := slices.Clone(t.PaymentMonths)
	slices.Sort(months)
	periods := make([]shared.Period, 0, len(months))
	for _, m := range months {
		periods = append(periods, shared.Period{Year: *t.PaymentYear, Month: m})
	}
	return periods
}

// AllocatedTo returns the share of the amount allocated to period, split equally
// across all covered months with the remainder on the latest month, and whether
// the transaction covers period at all.
func (t *Transaction) AllocatedTo(p shared.Period) (decimal.Decimal, bool) {
	periods := t.Periods()
	for i, covered := range periods {
		if covered == p {
			return money.SplitEqual(t.Amount, len(periods))[i], true
		}
	}
	return decimal.Zero, false
}

// Covers reports whether the month list of the transaction includes period.
func (t *Transaction) Covers(p shared.Period) bool {
	_, ok := t.AllocatedTo(p)
	return ok
}

func (t *Transaction) ExternalKey() string {
	if t.ExternalID == nil {
		return ""
	}
	return *t.ExternalID
}

// EventType maps the current status to the settlement event published for it.
func (t *Transaction) EventType() shared.SettlementEventType {
	switch t.Status {
	case shared.TransactionStatusPending:
		return shared.EventTransactionPrepared
	case shared.TransactionStatusCancelled:
		return shared.EventTransactionCancelled
	case shared.TransactionStatusFailed:
		return shared.EventTransactionFailed
	case shared.TransactionStatusUnassigned:
		return shared.EventTransactionUnassigned
	default:
		return shared.EventTransactionSettled
	}
}
