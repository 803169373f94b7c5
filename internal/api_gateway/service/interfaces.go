package service

import (
	"context"
	"time"

	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/debt"
	"github.com/academy-ledger/internal/domain/gatelog"
	"github.com/academy-ledger/internal/domain/journal"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/student"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/domain/waitinglist"
	"github.com/shopspring/decimal"
)

// ManualPaymentRequest is a SUCCESS payment entered by staff against a contract number
type ManualPaymentRequest struct {
	Amount         decimal.Decimal
	Source         shared.PaymentSource
	ContractNumber string
	Year           int
	Months         []int
	Comment        string
	ActorID        *int64
}

// PrepareRequest is the first phase of a gateway payment. Amount is in ledger currency.
type PrepareRequest struct {
	Provider       shared.PaymentSource
	ExternalID     string
	Amount         decimal.Decimal
	ContractNumber string
	Period         shared.Period
}

// UnassignedPaymentRequest records money that could not be matched to a contract
type UnassignedPaymentRequest struct {
	Source     shared.PaymentSource
	ExternalID string
	Amount     decimal.Decimal
	PaidAt     *time.Time
	Comment    string
}

// AssignRequest attaches an UNASSIGNED transaction. A zero Year means the month of the payment.
type AssignRequest struct {
	StudentID  int64
	ContractID int64
	Year       int
	Months     []int
}

// SettlementService is the only writer of transactions
type SettlementService interface {
	// CreateManual settles a staff-entered payment directly; month coverage is not re-checked
	CreateManual(ctx context.Context, req ManualPaymentRequest) (*transaction.Transaction, error)

	// CheckPrepare runs every prepare check without writing anything
	CheckPrepare(ctx context.Context, req PrepareRequest) (*contract.Contract, error)

	// Prepare creates a PENDING transaction keyed by (provider, external id).
	// A repeated prepare returns the existing transaction.
	Prepare(ctx context.Context, req PrepareRequest) (*transaction.Transaction, error)

	// Confirm settles a PENDING transaction; confirming a SUCCESS transaction is a no-op
	Confirm(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error)

	// Check is read-only
	Check(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error)

	Cancel(ctx context.Context, provider shared.PaymentSource, externalID string, reason int) (*transaction.Transaction, error)
	CancelByID(ctx context.Context, id int64, reason int) (*transaction.Transaction, error)

	// Fail records a gateway-reported failure of a PENDING transaction
	Fail(ctx context.Context, provider shared.PaymentSource, externalID string) (*transaction.Transaction, error)

	RecordUnassigned(ctx context.Context, req UnassignedPaymentRequest) (*transaction.Transaction, error)
	Assign(ctx context.Context, id int64, req AssignRequest) (*transaction.Transaction, error)

	Get(ctx context.Context, id int64) (*transaction.Transaction, error)
	List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, int64, error)
	ListUnassigned(ctx context.Context, limit, offset int) ([]*transaction.Transaction, int64, error)

	// Reconcile lists SUCCESS transactions of provider paid in [from, to)
	Reconcile(ctx context.Context, provider shared.PaymentSource, from, to time.Time) ([]*transaction.Transaction, error)

	// Journal reads the settlement event projection of a transaction
	Journal(ctx context.Context, id int64) ([]*journal.Record, error)
}

// DebtService evaluates the debt engine against stored contracts and transactions
type DebtService interface {
	Outstanding(ctx context.Context, studentID int64, period shared.Period) (*debt.Summary, error)
	CurrentPeriod() shared.Period
}

// GateRequest identifies the person at the turnstile by student id or face id
type GateRequest struct {
	StudentID *int64
	FaceID    *string
}

// GateDecision is the answer returned to the turnstile
type GateDecision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason"`
	StudentID *int64 `json:"student_id"`
}

// GateService decides turnstile entry and keeps the gate log
type GateService interface {
	// Decide logs the decision before returning it; a failed log write returns an error
	// together with a denied decision
	Decide(ctx context.Context, req GateRequest) (*GateDecision, error)
	ListLogs(ctx context.Context, filter gatelog.Filter) ([]*gatelog.Entry, int64, error)
}

// CreateContractRequest describes a new enrollment. An empty Number asks the allocator for one.
type CreateContractRequest struct {
	StudentID  int64
	GroupID    *int64
	Number     string
	MonthlyFee decimal.Decimal
	StartDate  time.Time
	EndDate    time.Time
	// Enqueue adds the student to the waiting list when the group is full
	Enqueue         bool
	WaitingPriority int
}

// ContractInfo is the public view of a contract returned to gateway lookups
type ContractInfo struct {
	Contract *contract.Contract
	Student  *student.Student
}

// ContractService owns contract creation, termination and the waiting list
type ContractService interface {
	CreateContract(ctx context.Context, req CreateContractRequest) (*contract.Contract, error)
	Terminate(ctx context.Context, id int64, status shared.ContractStatus) (*contract.Contract, error)
	Describe(ctx context.Context, number string) (*ContractInfo, error)
	AvailableSequences(ctx context.Context, groupID int64, birthYear int) ([]int, error)

	AddToWaitingList(ctx context.Context, entry *waitinglist.Entry) error
	ListWaitingList(ctx context.Context, groupID int64) ([]*waitinglist.Entry, error)
	RemoveFromWaitingList(ctx context.Context, id int64) error
}
