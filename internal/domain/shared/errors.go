package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrConflict is surfaced when an optimistic-lock conflict survives the internal retry.
var ErrConflict = errors.New("concurrent modification, retry the request")

// Wildcards for errors.Is matching against the typed errors below.
var (
	ErrNotFound              = NotFoundError{}
	ErrInvalidState          = InvalidStateError{}
	ErrInvalidInput          = InvalidInputError{}
	ErrAlreadyPaid           = AlreadyPaidError{}
	ErrInsufficientAmount    = InsufficientAmountError{}
	ErrCapacityExceeded      = CapacityExceededError{}
	ErrSignatureInvalid      = SignatureInvalidError{}
	ErrCurrencyScaleMismatch = CurrencyScaleMismatchError{}
	ErrConcurrentUpdate      = ConcurrentModificationError{}
)

// NotFoundError reports a contract, student, group or transaction that is absent
// or outside the requested scope. An empty Entity matches any NotFoundError.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e NotFoundError) Is(target error) bool {
	t, ok := target.(NotFoundError)
	if !ok {
		return false
	}
	return t.Entity == "" || t.Entity == e.Entity
}

// InvalidStateError reports a transition that is not permitted from the current status
type InvalidStateError struct {
	Entity string
	ID     int64
	From   string
	Action string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in status %s", e.Action, e.Entity, e.ID, e.From)
}

func (e InvalidStateError) Is(target error) bool {
	_, ok := target.(InvalidStateError)
	return ok
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e InvalidInputError) Is(target error) bool {
	_, ok := target.(InvalidInputError)
	return ok
}

// AlreadyPaidError reports a duplicate month-coverage attempt. Pending is set when the
// month is held by another PENDING transaction rather than covered by a SUCCESS one.
type AlreadyPaidError struct {
	ContractID int64
	Period     Period
	Pending    bool
}

func (e AlreadyPaidError) Error() string {
	if e.Pending {
		return fmt.Sprintf("payment for %s of contract %d is already in progress", e.Period, e.ContractID)
	}
	return fmt.Sprintf("%s of contract %d is already paid", e.Period, e.ContractID)
}

func (e AlreadyPaidError) Is(target error) bool {
	_, ok := target.(AlreadyPaidError)
	return ok
}

type InsufficientAmountError struct {
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e InsufficientAmountError) Error() string {
	return fmt.Sprintf("amount %s is less than the monthly fee %s", e.Got.StringFixed(2), e.Expected.StringFixed(2))
}

func (e InsufficientAmountError) Is(target error) bool {
	_, ok := target.(InsufficientAmountError)
	return ok
}

// CapacityExceededError is returned by the allocator when a scope has no free sequence
type CapacityExceededError struct {
	GroupID   int64
	BirthYear int
	Capacity  int
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("group %d has no free place for birth year %d (capacity %d)", e.GroupID, e.BirthYear, e.Capacity)
}

func (e CapacityExceededError) Is(target error) bool {
	_, ok := target.(CapacityExceededError)
	return ok
}

type SignatureInvalidError struct {
	Provider PaymentSource
}

func (e SignatureInvalidError) Error() string {
	return fmt.Sprintf("signature check failed for %s", e.Provider)
}

func (e SignatureInvalidError) Is(target error) bool {
	_, ok := target.(SignatureInvalidError)
	return ok
}

// CurrencyScaleMismatchError reports a provider amount that does not map onto whole ledger minor units
type CurrencyScaleMismatchError struct {
	Provider PaymentSource
	Amount   string
}

func (e CurrencyScaleMismatchError) Error() string {
	return fmt.Sprintf("amount %s from %s does not match the ledger currency scale", e.Amount, e.Provider)
}

func (e CurrencyScaleMismatchError) Is(target error) bool {
	_, ok := target.(CurrencyScaleMismatchError)
	return ok
}

// ConcurrentModificationError is raised when an optimistic version check fails
type ConcurrentModificationError struct {
	Entity string
	ID     int64
}

func (e ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently", e.Entity, e.ID)
}

func (e ConcurrentModificationError) Is(target error) bool {
	_, ok := target.(ConcurrentModificationError)
	return ok
}
