package handler

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

const dateLayout = "2006-01-02"

// ManualPaymentRequest is a cash or bank payment entered by staff
type ManualPaymentRequest struct {
	ContractNumber string          `json:"contract_number" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source" binding:"required,oneof=CASH BANK MANUAL"`
	PaymentYear    int             `json:"payment_year" binding:"required,min=2000,max=2100"`
	PaymentMonths  []int           `json:"payment_months" binding:"required,payment_months"`
	Comment        string          `json:"comment" binding:"max=500"`
}

// UnassignedPaymentRequest records money that arrived without a resolvable contract
type UnassignedPaymentRequest struct {
	Source     string          `json:"source" binding:"required,oneof=PAYME CLICK BANK CASH MANUAL"`
	ExternalID string          `json:"external_id" binding:"required,max=128"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     *time.Time      `json:"paid_at"`
	Comment    string          `json:"comment" binding:"max=500"`
}

// AssignRequest attaches an unassigned payment; omitted year and months mean the month it was paid
type AssignRequest struct {
	StudentID     int64 `json:"student_id" binding:"required,gt=0"`
	ContractID    int64 `json:"contract_id" binding:"required,gt=0"`
	PaymentYear   int   `json:"payment_year" binding:"omitempty,min=2000,max=2100"`
	PaymentMonths []int `json:"payment_months" binding:"omitempty,payment_months"`
}

type CancelRequest struct {
	Reason *int `json:"reason" binding:"omitempty,min=1"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID            int64  `json:"id"`
	ExternalID    string `json:"external_id,omitempty"`
	Amount        string `json:"amount"`
	Source        string `json:"source"`
	Status        string `json:"status"`
	StudentID     *int64 `json:"student_id,omitempty"`
	ContractID    *int64 `json:"contract_id,omitempty"`
	PaymentYear   *int   `json:"payment_year,omitempty"`
	PaymentMonths []int  `json:"payment_months"`
	Comment       string `json:"comment,omitempty"`
	CreatedBy     *int64 `json:"created_by_user_id,omitempty"`
	CancelReason  *int   `json:"cancel_reason,omitempty"`
	PaidAt        string `json:"paid_at,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// TransactionListQuery filters the transaction listing
type TransactionListQuery struct {
	PaginationParams
	Status    string `form:"status" binding:"omitempty,oneof=PENDING SUCCESS FAILED CANCELLED UNASSIGNED"`
	Source    string `form:"source" binding:"omitempty,oneof=PAYME CLICK BANK CASH MANUAL"`
	StudentID *int64 `form:"student_id" binding:"omitempty,gt=0"`
	From      string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// ReconcileQuery selects settled gateway payments by payment time
type ReconcileQuery struct {
	Provider string `form:"provider" binding:"required,oneof=PAYME CLICK"`
	From     string `form:"from" binding:"required,datetime=2006-01-02"`
	To       string `form:"to" binding:"required,datetime=2006-01-02"`
}

// CreateContractRequest enrolls a student. Without contract_number the allocator numbers it.
type CreateContractRequest struct {
	StudentID       int64           `json:"student_id" binding:"required,gt=0"`
	GroupID         *int64          `json:"group_id" binding:"omitempty,gt=0"`
	ContractNumber  string          `json:"contract_number" binding:"max=64"`
	MonthlyFee      decimal.Decimal `json:"monthly_fee"`
	StartDate       string          `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate         string          `json:"end_date" binding:"required,datetime=2006-01-02"`
	Enqueue         bool            `json:"enqueue"`
	WaitingPriority int             `json:"waiting_priority"`
}

type TerminateContractRequest struct {
	Status string `json:"status" binding:"required,oneof=COMPLETED CANCELLED"`
}

type SequencesQuery struct {
	BirthYear int `form:"birth_year" binding:"required,min=1990,max=2100"`
}

type WaitingListRequest struct {
	StudentID int64  `json:"student_id" binding:"required,gt=0"`
	BirthYear int    `json:"birth_year" binding:"omitempty,min=1990,max=2100"`
	Priority  int    `json:"priority"`
	Comment   string `json:"comment" binding:"max=500"`
}

// DebtQuery selects the month; omitted fields mean the current month
type DebtQuery struct {
	Year  int `form:"year" binding:"omitempty,min=2000,max=2100"`
	Month int `form:"month" binding:"omitempty,payment_month"`
}

// GateCallbackRequest is sent by the turnstile controller. Controllers differ in how
// they encode identifiers, so both fields are read as raw JSON and normalized by
// GateRequest.
type GateCallbackRequest struct {
	StudentID json.RawMessage `json:"student_id"`
	FaceID    json.RawMessage `json:"face_id"`
}

// GateRequest accepts student_id as a number or a numeric string and face_id as a
// string or a number. Values that cannot identify anyone are dropped.
func (r GateCallbackRequest) GateRequest() service.GateRequest {
	var req service.GateRequest
	switch v := rawScalar(r.StudentID).(type) {
	case json.Number, string:
		digits := strings.TrimLeft(strings.TrimSpace(cast.ToString(v)), "0")
		if id, err := cast.ToInt64E(digits); err == nil && id > 0 {
			req.StudentID = &id
		}
	}
	switch v := rawScalar(r.FaceID).(type) {
	case json.Number, string:
		if face := strings.TrimSpace(cast.ToString(v)); face != "" {
			req.FaceID = &face
		}
	}
	return req
}

// rawScalar decodes a JSON string or number, keeping numbers exact
func rawScalar(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

type GateLogQuery struct {
	PaginationParams
	StudentID *int64 `form:"student_id" binding:"omitempty,gt=0"`
	Allowed   *bool  `form:"allowed"`
	From      string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}
