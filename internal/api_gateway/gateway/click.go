package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/contract"
	"github.com/academy-ledger/internal/domain/money"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

// Click actions
const (
	ClickActionGetInfo = 0
	ClickActionPrepare = 1
	ClickActionConfirm = 2
	ClickActionCheck   = 3
	ClickActionCompare = 4
)

// Click error codes
const (
	ClickOK                   = 0
	ClickSignFailed           = -1
	ClickInvalidAmount        = -2
	ClickActionNotFound       = -3
	ClickAlreadyPaid          = -4
	ClickUserNotFound         = -5
	ClickTransactionNotFound  = -6
	ClickFailedToUpdate       = -7
	ClickRequestError         = -8
	ClickTransactionCancelled = -9
)

var clickNotes = map[int]string{
	ClickOK:                   "Success",
	ClickSignFailed:           "SIGN CHECK FAILED!",
	ClickInvalidAmount:        "Incorrect parameter amount",
	ClickActionNotFound:       "Action not found",
	ClickAlreadyPaid:          "Already paid",
	ClickUserNotFound:         "User does not exist",
	ClickTransactionNotFound:  "Transaction does not exist",
	ClickFailedToUpdate:       "Failed to update user",
	ClickRequestError:         "Error in request from click",
	ClickTransactionCancelled: "Transaction cancelled",
}

// Click check statuses
const (
	ClickStatusNotProcessed = 0
	ClickStatusFailed       = 1
	ClickStatusProcessed    = 2
)

const clickDateLayout = "2006-01-02 15:04:05"

type ClickRequest struct {
	Action            int              `json:"action"`
	ClickPaydocID     int64            `json:"click_paydoc_id"`
	AttemptTransID    int64            `json:"attempt_trans_id"`
	ServiceID         int64            `json:"service_id"`
	MerchantPrepareID int64            `json:"merchant_prepare_id"`
	MerchantConfirmID int64            `json:"merchant_confirm_id"`
	Amount            *decimal.Decimal `json:"amount"`
	Error             int              `json:"error"`
	ErrorNote         string           `json:"error_note"`
	SignTime          string           `json:"sign_time"`
	SignString        string           `json:"sign_string"`
	Params            Params           `json:"params"`
	FromDate          string           `json:"from_date"`
	TillDate          string           `json:"till_date"`
}

func optionalID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// signatureFields lays the request out for ClickScheme
func (r *ClickRequest) signatureFields() map[string]string {
	return map[string]string{
		"click_paydoc_id":  optionalID(r.ClickPaydocID),
		"attempt_trans_id": optionalID(r.AttemptTransID),
		"service_id":       strconv.FormatInt(r.ServiceID, 10),
		"params":           r.Params.IV(),
		"action":           strconv.Itoa(r.Action),
		"sign_time":        r.SignTime,
	}
}

type ClickCompareEntry struct {
	ClickPaydocID int64          `json:"click_paydoc_id"`
	Params        map[string]any `json:"params"`
}

type ClickResponse struct {
	ClickPaydocID     int64                        `json:"click_paydoc_id,omitempty"`
	AttemptTransID    int64                        `json:"attempt_trans_id,omitempty"`
	MerchantPrepareID int64                        `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID int64                        `json:"merchant_confirm_id,omitempty"`
	Error             int                          `json:"error"`
	ErrorNote         string                       `json:"error_note"`
	Status            *int                         `json:"status,omitempty"`
	Params            map[string]any               `json:"params,omitempty"`
	Requests          map[string]ClickCompareEntry `json:"requests,omitempty"`
}

func clickResult(code int) *ClickResponse {
	return &ClickResponse{Error: code, ErrorNote: clickNotes[code]}
}

// ClickMalformed is the answer to a body that cannot be decoded
func ClickMalformed() *ClickResponse {
	return clickResult(ClickRequestError)
}

// ContractLookup resolves contract numbers for reconciliation reports
type ContractLookup interface {
	GetByID(ctx context.Context, id int64) (*contract.Contract, error)
}

type ClickSettings struct {
	ServiceID int64
	SecretKey string
	Location  *time.Location
}

// Click adapts the Click SHOP API onto the settlement service. The Click payment id
// (click_paydoc_id) is the external id; merchant_prepare_id is the ledger transaction id.
type Click struct {
	settings   ClickSettings
	settlement service.SettlementService
	contracts  service.ContractService
	lookup     ContractLookup
	clock      shared.Clock
	logger     *slog.Logger
}

func NewClick(logger *slog.Logger, settings ClickSettings, settlement service.SettlementService, contracts service.ContractService, lookup ContractLookup, clock shared.Clock) *Click {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &Click{
		settings:   settings,
		settlement: settlement,
		contracts:  contracts,
		lookup:     lookup,
		clock:      clock,
		logger:     logger,
	}
}

// Handle answers one Click callback. A non-nil error means the write outcome is unknown
// and Click should retry; every other failure is encoded in the response.
func (c *Click) Handle(ctx context.Context, req *ClickRequest) (*ClickResponse, error) {
	logger := c.logger.With("provider", shared.PaymentSourceClick, "action", req.Action, "click_paydoc_id", req.ClickPaydocID)
	if id := shared.CorrelationID(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}

	var (
		resp *ClickResponse
		err  error
	)
	switch req.Action {
	case ClickActionGetInfo:
		resp = c.getInfo(ctx, req)
	case ClickActionPrepare, ClickActionConfirm, ClickActionCheck:
		if c.settings.ServiceID != 0 && req.ServiceID != c.settings.ServiceID {
			resp = clickResult(ClickRequestError)
			break
		}
		if verr := Verify(ClickScheme, req.signatureFields(), c.settings.SecretKey, req.SignString); verr != nil {
			logger.Warn("Click signature rejected")
			resp = clickResult(ClickSignFailed)
			break
		}
		switch req.Action {
		case ClickActionPrepare:
			resp, err = c.prepare(ctx, req)
		case ClickActionConfirm:
			resp, err = c.confirm(ctx, req)
		default:
			resp = c.check(ctx, req)
		}
	case ClickActionCompare:
		resp = c.compare(ctx, req)
	default:
		resp = clickResult(ClickActionNotFound)
	}

	if err != nil {
		logger.Error("Click callback outcome unknown", "error", err)
		return nil, err
	}
	logger.Info("Click callback handled", "error_code", resp.Error)
	return resp, nil
}

// clickCode maps a settlement error onto the Click error table
func clickCode(err error) int {
	var notFound shared.NotFoundError
	switch {
	case err == nil:
		return ClickOK
	case errors.As(err, &notFound):
		if notFound.Entity == "transaction" {
			return ClickTransactionNotFound
		}
		return ClickUserNotFound
	case errors.Is(err, shared.ErrAlreadyPaid):
		return ClickAlreadyPaid
	case errors.Is(err, shared.ErrInsufficientAmount), errors.Is(err, shared.ErrCurrencyScaleMismatch):
		return ClickInvalidAmount
	case errors.Is(err, shared.ErrInvalidState):
		return ClickTransactionCancelled
	case errors.Is(err, shared.ErrInvalidInput):
		return ClickRequestError
	case errors.Is(err, shared.ErrSignatureInvalid):
		return ClickSignFailed
	default:
		return ClickFailedToUpdate
	}
}

func (c *Click) getInfo(ctx context.Context, req *ClickRequest) *ClickResponse {
	number := req.Params.Get("contract")
	if number == "" {
		return clickResult(ClickRequestError)
	}
	info, err := c.contracts.Describe(ctx, number)
	if err != nil {
		return clickResult(clickCode(err))
	}
	resp := clickResult(ClickOK)
	resp.Params = map[string]any{
		"contract":        info.Contract.Number,
		"full_name":       info.Student.FullName(),
		"monthly_fee":     money.ToProviderUnits(shared.PaymentSourceClick, info.Contract.MonthlyFee).InexactFloat64(),
		"contract_status": info.Contract.Status,
		"start_date":      info.Contract.StartDate.Format(time.DateOnly),
		"end_date":        info.Contract.EndDate.Format(time.DateOnly),
	}
	return resp
}

// period reads payment_year/payment_month from params, defaulting to the current month
func (c *Click) period(params Params) (shared.Period, error) {
	current := shared.PeriodOf(c.clock.Now())
	year, month := current.Year, current.Month
	if v := params.Get("payment_year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return shared.Period{}, shared.InvalidInputError{Field: "payment_year", Reason: "must be a number"}
		}
		year = n
	}
	if v := params.Get("payment_month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return shared.Period{}, shared.InvalidInputError{Field: "payment_month", Reason: "must be a number"}
		}
		month = n
	}
	return shared.NewPeriod(year, month)
}

func (c *Click) amount(req *ClickRequest) (decimal.Decimal, error) {
	raw := decimal.Zero
	switch {
	case req.Amount != nil:
		raw = *req.Amount
	case req.Params.Get("amount") != "":
		parsed, err := decimal.NewFromString(req.Params.Get("amount"))
		if err != nil {
			return decimal.Zero, shared.InvalidInputError{Field: "amount", Reason: "must be a number"}
		}
		raw = parsed
	default:
		return decimal.Zero, shared.InvalidInputError{Field: "amount", Reason: "is required"}
	}
	return money.FromProviderUnits(shared.PaymentSourceClick, raw)
}

func (c *Click) prepare(ctx context.Context, req *ClickRequest) (*ClickResponse, error) {
	number := req.Params.Get("contract")
	if number == "" || req.ClickPaydocID == 0 {
		return clickResult(ClickRequestError), nil
	}
	amount, err := c.amount(req)
	if err != nil {
		return clickResult(clickCode(err)), nil
	}
	period, err := c.period(req.Params)
	if err != nil {
		return clickResult(ClickRequestError), nil
	}

	txn, err := c.settlement.Prepare(ctx, service.PrepareRequest{
		Provider:       shared.PaymentSourceClick,
		ExternalID:     strconv.FormatInt(req.ClickPaydocID, 10),
		Amount:         amount,
		ContractNumber: number,
		Period:         period,
	})
	if errors.Is(err, persistence.ErrOutcomeUnknown) {
		return nil, err
	}
	if err != nil {
		return clickResult(clickCode(err)), nil
	}

	switch txn.Status {
	case shared.TransactionStatusSuccess:
		return clickResult(ClickAlreadyPaid), nil
	case shared.TransactionStatusCancelled, shared.TransactionStatusFailed:
		return clickResult(ClickTransactionCancelled), nil
	}

	resp := clickResult(ClickOK)
	resp.ClickPaydocID = req.ClickPaydocID
	resp.AttemptTransID = req.AttemptTransID
	resp.MerchantPrepareID = txn.ID
	return resp, nil
}

// lookupPrepared finds the transaction named by both click_paydoc_id and merchant_prepare_id
func (c *Click) lookupPrepared(ctx context.Context, req *ClickRequest) (*transaction.Transaction, int) {
	if req.MerchantPrepareID == 0 || req.ClickPaydocID == 0 {
		return nil, ClickRequestError
	}
	txn, err := c.settlement.Check(ctx, shared.PaymentSourceClick, strconv.FormatInt(req.ClickPaydocID, 10))
	if err != nil {
		return nil, clickCode(err)
	}
	if txn.ID != req.MerchantPrepareID {
		return nil, ClickTransactionNotFound
	}
	return txn, ClickOK
}

func (c *Click) confirm(ctx context.Context, req *ClickRequest) (*ClickResponse, error) {
	found, code := c.lookupPrepared(ctx, req)
	if code != ClickOK {
		return clickResult(code), nil
	}

	resp := clickResult(ClickOK)
	resp.ClickPaydocID = req.ClickPaydocID
	resp.AttemptTransID = req.AttemptTransID
	resp.MerchantConfirmID = found.ID

	externalID := strconv.FormatInt(req.ClickPaydocID, 10)

	// Click reports its own failure through a negative error
	if req.Error < 0 {
		_, err := c.settlement.Fail(ctx, shared.PaymentSourceClick, externalID)
		if errors.Is(err, persistence.ErrOutcomeUnknown) {
			return nil, err
		}
		if err != nil && !errors.Is(err, shared.ErrInvalidState) {
			return clickResult(clickCode(err)), nil
		}
		resp.Error, resp.ErrorNote = ClickTransactionCancelled, clickNotes[ClickTransactionCancelled]
		return resp, nil
	}

	switch found.Status {
	case shared.TransactionStatusSuccess:
		resp.Error, resp.ErrorNote = ClickAlreadyPaid, clickNotes[ClickAlreadyPaid]
		return resp, nil
	case shared.TransactionStatusCancelled, shared.TransactionStatusFailed:
		return clickResult(ClickTransactionCancelled), nil
	}

	if _, err := c.settlement.Confirm(ctx, shared.PaymentSourceClick, externalID); err != nil {
		if errors.Is(err, persistence.ErrOutcomeUnknown) {
			return nil, err
		}
		resp.Error = clickCode(err)
		resp.ErrorNote = clickNotes[resp.Error]
		return resp, nil
	}
	return resp, nil
}

func (c *Click) check(ctx context.Context, req *ClickRequest) *ClickResponse {
	txn, code := c.lookupPrepared(ctx, req)
	if code != ClickOK {
		return clickResult(code)
	}

	status := ClickStatusNotProcessed
	switch txn.Status {
	case shared.TransactionStatusSuccess:
		status = ClickStatusProcessed
	case shared.TransactionStatusCancelled, shared.TransactionStatusFailed:
		status = ClickStatusFailed
	}

	resp := clickResult(ClickOK)
	resp.ClickPaydocID = req.ClickPaydocID
	resp.AttemptTransID = req.AttemptTransID
	resp.Status = &status
	return resp
}

// compare lists the Click payments settled in [from_date, till_date)
func (c *Click) compare(ctx context.Context, req *ClickRequest) *ClickResponse {
	if req.FromDate == "" || req.TillDate == "" {
		return clickResult(ClickRequestError)
	}
	from, err := time.ParseInLocation(clickDateLayout, req.FromDate, c.settings.Location)
	if err != nil {
		return clickResult(ClickRequestError)
	}
	till, err := time.ParseInLocation(clickDateLayout, req.TillDate, c.settings.Location)
	if err != nil {
		return clickResult(ClickRequestError)
	}

	settled, err := c.settlement.Reconcile(ctx, shared.PaymentSourceClick, from, till)
	if err != nil {
		return clickResult(clickCode(err))
	}

	numbers := make(map[int64]string)
	requests := make(map[string]ClickCompareEntry, len(settled))
	for _, txn := range settled {
		if txn.ExternalID == nil || txn.ContractID == nil {
			continue
		}
		number, ok := numbers[*txn.ContractID]
		if !ok {
			ct, err := c.lookup.GetByID(ctx, *txn.ContractID)
			if err != nil {
				return clickResult(clickCode(err))
			}
			number = ct.Number
			numbers[*txn.ContractID] = number
		}
		paydocID, _ := strconv.ParseInt(*txn.ExternalID, 10, 64)
		requests[*txn.ExternalID] = ClickCompareEntry{
			ClickPaydocID: paydocID,
			Params: map[string]any{
				"contract": number,
				"amount":   money.ToProviderUnits(shared.PaymentSourceClick, txn.Amount).InexactFloat64(),
			},
		}
	}

	resp := clickResult(ClickOK)
	resp.Requests = requests
	return resp
}
