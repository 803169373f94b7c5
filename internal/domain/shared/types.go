package shared

// TransactionStatus defines the settlement states of a monetary movement
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusSuccess    TransactionStatus = "SUCCESS"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
	TransactionStatusUnassigned TransactionStatus = "UNASSIGNED"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusUnassigned:
		return true
	}
	return false
}

// PaymentSource is the channel a transaction arrived through
type PaymentSource string

const (
	PaymentSourcePayme  PaymentSource = "PAYME"
	PaymentSourceClick  PaymentSource = "CLICK"
	PaymentSourceBank   PaymentSource = "BANK"
	PaymentSourceCash   PaymentSource = "CASH"
	PaymentSourceManual PaymentSource = "MANUAL"
)

func (s PaymentSource) Valid() bool {
	switch s {
	case PaymentSourcePayme, PaymentSourceClick, PaymentSourceBank, PaymentSourceCash, PaymentSourceManual:
		return true
	}
	return false
}

// IsGateway reports whether the source is an online provider with a two-phase protocol
func (s PaymentSource) IsGateway() bool {
	return s == PaymentSourcePayme || s == PaymentSourceClick
}

// ContractStatus defines contract lifecycle states. COMPLETED and CANCELLED are terminal.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "ACTIVE"
	ContractStatusCompleted ContractStatus = "COMPLETED"
	ContractStatusCancelled ContractStatus = "CANCELLED"
)

// GateDecision is the outcome recorded for every turnstile attempt
type GateDecision string

const (
	GateDecisionAllowed GateDecision = "ALLOWED"
	GateDecisionDenied  GateDecision = "DENIED"
)

// SettlementEventType names the transitions published through the outbox
type SettlementEventType string

const (
	EventTransactionPrepared   SettlementEventType = "TRANSACTION_PREPARED"
	EventTransactionSettled    SettlementEventType = "TRANSACTION_SETTLED"
	EventTransactionCancelled  SettlementEventType = "TRANSACTION_CANCELLED"
	EventTransactionFailed     SettlementEventType = "TRANSACTION_FAILED"
	EventTransactionUnassigned SettlementEventType = "TRANSACTION_UNASSIGNED"
	EventTransactionAssigned   SettlementEventType = "TRANSACTION_ASSIGNED"
)

// ResultingStatus is the status a transaction holds right after a transition of
// this type; ok is false for unknown types.
func (t SettlementEventType) ResultingStatus() (status TransactionStatus, ok bool) {
	switch t {
	case EventTransactionPrepared:
		return TransactionStatusPending, true
	case EventTransactionSettled, EventTransactionAssigned:
		return TransactionStatusSuccess, true
	case EventTransactionCancelled:
		return TransactionStatusCancelled, true
	case EventTransactionFailed:
		return TransactionStatusFailed, true
	case EventTransactionUnassigned:
		return TransactionStatusUnassigned, true
	}
	return "", false
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
