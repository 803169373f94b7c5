package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/academy-ledger/internal/api_gateway/service"
	"github.com/academy-ledger/internal/domain/money"
	"github.com/academy-ledger/internal/domain/shared"
	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/academy-ledger/internal/platform/persistence"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Payme JSON-RPC methods
const (
	PaymeCheckPerform = "CheckPerformTransaction"
	PaymeCreate       = "CreateTransaction"
	PaymePerform      = "PerformTransaction"
	PaymeCheck        = "CheckTransaction"
	PaymeCancel       = "CancelTransaction"
	PaymeStatement    = "GetStatement"
)

// Payme error codes
const (
	PaymeInvalidAmount       = -31001
	PaymeTransactionNotFound = -31003
	PaymeCannotCancel        = -31007
	PaymeCouldNotPerform     = -31008
	PaymeInvalidAccount      = -31050
	PaymeSystemError         = -32400
	PaymeInsufficientRights  = -32504
	PaymeInvalidParams       = -32602
	PaymeMethodNotFound      = -32601
	PaymeParseError          = -32700
)

// Payme transaction states
const (
	PaymeStatePending               = 1
	PaymeStatePerformed             = 2
	PaymeStateCancelled             = -1
	PaymeStateCancelledAfterPerform = -2
)

const paymeLogin = "Paycom"

type PaymeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     any             `json:"id"`
}

type PaymeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type PaymeResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      any         `json:"id"`
	Result  any         `json:"result,omitempty"`
	Error   *PaymeError `json:"error,omitempty"`
}

type paymeParams struct {
	ID      string          `json:"id"`
	Time    int64           `json:"time"`
	Amount  decimal.Decimal `json:"amount"`
	Account map[string]any  `json:"account"`
	Reason  *int            `json:"reason"`
	From    int64           `json:"from"`
	To      int64           `json:"to"`
}

// PaymeTransaction is the transaction view returned by CheckTransaction and GetStatement
type PaymeTransaction struct {
	ID          string         `json:"id,omitempty"`
	Time        int64          `json:"time,omitempty"`
	Amount      *int64         `json:"amount,omitempty"`
	Account     map[string]any `json:"account,omitempty"`
	CreateTime  int64          `json:"create_time"`
	PerformTime int64          `json:"perform_time"`
	CancelTime  int64          `json:"cancel_time"`
	Transaction string         `json:"transaction"`
	State       int            `json:"state"`
	Reason      *int           `json:"reason"`
}

type PaymeSettings struct {
	Login string
	Key   string
}

// Payme adapts the Payme Business JSON-RPC protocol onto the settlement service.
// The Payme transaction id is the external id.
type Payme struct {
	settings   PaymeSettings
	settlement service.SettlementService
	lookup     ContractLookup
	clock      shared.Clock
	logger     *slog.Logger
}

func NewPayme(logger *slog.Logger, settings PaymeSettings, settlement service.SettlementService, lookup ContractLookup, clock shared.Clock) *Payme {
	if settings.Login == "" {
		settings.Login = paymeLogin
	}
	return &Payme{
		settings:   settings,
		settlement: settlement,
		lookup:     lookup,
		clock:      clock,
		logger:     logger,
	}
}

// Authorize checks the Authorization: Basic header, or X-Auth when present.
func (p *Payme) Authorize(authorization, xAuth string) error {
	if xAuth != "" {
		return Verify(PaymeXAuthScheme, nil, p.settings.Key, xAuth)
	}
	encoded, ok := strings.CutPrefix(authorization, "Basic ")
	if !ok {
		return shared.SignatureInvalidError{Provider: shared.PaymentSourcePayme}
	}
	return Verify(PaymeBasicScheme, map[string]string{"login": p.settings.Login}, p.settings.Key, strings.TrimSpace(encoded))
}

func paymeFailure(id any, code int, message string) *PaymeResponse {
	return &PaymeResponse{JSONRPC: "2.0", ID: id, Error: &PaymeError{Code: code, Message: message}}
}

// PaymeMalformed is the answer to a body that is not a JSON-RPC request
func PaymeMalformed() *PaymeResponse {
	return paymeFailure(nil, PaymeParseError, "Parse error")
}

func paymeResult(id any, result any) *PaymeResponse {
	return &PaymeResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// Handle answers one JSON-RPC call. authErr is the result of Authorize. A non-nil error
// means the write outcome is unknown and Payme should retry.
func (p *Payme) Handle(ctx context.Context, req *PaymeRequest, authErr error) (*PaymeResponse, error) {
	logger := p.logger.With("provider", shared.PaymentSourcePayme, "method", req.Method)
	if id := shared.CorrelationID(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}

	if req.Method == "" {
		return paymeFailure(req.ID, PaymeMethodNotFound, "Method not found"), nil
	}
	if authErr != nil {
		logger.Warn("Payme authorization rejected")
		return paymeFailure(req.ID, PaymeInsufficientRights, "Insufficient privilege to perform this method"), nil
	}

	var params paymeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return paymeFailure(req.ID, PaymeInvalidParams, "Invalid params"), nil
		}
	}

	var (
		resp *PaymeResponse
		err  error
	)
	switch req.Method {
	case PaymeCheckPerform:
		resp = p.checkPerform(ctx, req.ID, params)
	case PaymeCreate:
		resp, err = p.create(ctx, req.ID, params)
	case PaymePerform:
		resp, err = p.perform(ctx, req.ID, params)
	case PaymeCheck:
		resp = p.check(ctx, req.ID, params)
	case PaymeCancel:
		resp, err = p.cancel(ctx, req.ID, params)
	case PaymeStatement:
		resp = p.statement(ctx, req.ID, params)
	default:
		resp = paymeFailure(req.ID, PaymeMethodNotFound, "Method not found")
	}

	if err != nil {
		logger.Error("Payme call outcome unknown", "external_id", params.ID, "error", err)
		return nil, err
	}
	if resp.Error != nil {
		logger.Info("Payme call rejected", "external_id", params.ID, "code", resp.Error.Code, "message", resp.Error.Message)
	} else {
		logger.Info("Payme call handled", "external_id", params.ID)
	}
	return resp, nil
}

// paymeFailureFor maps a settlement error onto the Payme error table
func paymeFailureFor(id any, err error) *PaymeResponse {
	var notFound shared.NotFoundError
	switch {
	case errors.As(err, &notFound):
		if notFound.Entity == "transaction" {
			return paymeFailure(id, PaymeTransactionNotFound, "Transaction not found")
		}
		return paymeFailure(id, PaymeInvalidAccount, "Account not found")
	case errors.Is(err, shared.ErrInsufficientAmount), errors.Is(err, shared.ErrCurrencyScaleMismatch):
		return paymeFailure(id, PaymeInvalidAmount, "Invalid amount")
	case errors.Is(err, shared.ErrAlreadyPaid), errors.Is(err, shared.ErrInvalidState):
		return paymeFailure(id, PaymeCouldNotPerform, err.Error())
	case errors.Is(err, shared.ErrInvalidInput):
		return paymeFailure(id, PaymeInvalidParams, err.Error())
	default:
		return paymeFailure(id, PaymeSystemError, "System error")
	}
}

// accountInt accepts account fields sent as numbers or decimal strings ("08" included)
func accountInt(v any) (int, error) {
	if s, ok := v.(string); ok {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	return cast.ToIntE(v)
}

// prepareRequest reads account.{contract, payment_year, payment_month}. A missing period
// means the current month.
func (p *Payme) prepareRequest(params paymeParams) (service.PrepareRequest, error) {
	number, err := cast.ToStringE(params.Account["contract"])
	if err != nil || number == "" {
		return service.PrepareRequest{}, shared.InvalidInputError{Field: "account.contract", Reason: "is required"}
	}

	current := shared.PeriodOf(p.clock.Now())
	year, month := current.Year, current.Month
	if v, ok := params.Account["payment_year"]; ok && v != nil {
		if year, err = accountInt(v); err != nil {
			return service.PrepareRequest{}, shared.InvalidInputError{Field: "account.payment_year", Reason: "must be a number"}
		}
	}
	if v, ok := params.Account["payment_month"]; ok && v != nil {
		if month, err = accountInt(v); err != nil {
			return service.PrepareRequest{}, shared.InvalidInputError{Field: "account.payment_month", Reason: "must be a number"}
		}
	}
	period, err := shared.NewPeriod(year, month)
	if err != nil {
		return service.PrepareRequest{}, err
	}

	amount, err := money.FromProviderUnits(shared.PaymentSourcePayme, params.Amount)
	if err != nil {
		return service.PrepareRequest{}, err
	}

	return service.PrepareRequest{
		Provider:       shared.PaymentSourcePayme,
		ExternalID:     params.ID,
		Amount:         amount,
		ContractNumber: number,
		Period:         period,
	}, nil
}

func (p *Payme) checkPerform(ctx context.Context, id any, params paymeParams) *PaymeResponse {
	req, err := p.prepareRequest(params)
	if err != nil {
		return paymeFailureFor(id, err)
	}
	if _, err := p.settlement.CheckPrepare(ctx, req); err != nil {
		return paymeFailureFor(id, err)
	}
	return paymeResult(id, map[string]any{"allow": true})
}

func millis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

// paymeState maps the ledger status onto the Payme state machine
func paymeState(txn *transaction.Transaction) int {
	switch txn.Status {
	case shared.TransactionStatusSuccess:
		return PaymeStatePerformed
	case shared.TransactionStatusCancelled, shared.TransactionStatusFailed:
		if txn.PaidAt != nil {
			return PaymeStateCancelledAfterPerform
		}
		return PaymeStateCancelled
	default:
		return PaymeStatePending
	}
}

func paymeView(txn *transaction.Transaction) PaymeTransaction {
	view := PaymeTransaction{
		CreateTime:  txn.CreatedAt.UnixMilli(),
		PerformTime: millis(txn.PaidAt),
		CancelTime:  millis(txn.CancelledAt),
		Transaction: strconv.FormatInt(txn.ID, 10),
		State:       paymeState(txn),
		Reason:      txn.CancelReason,
	}
	if txn.Status == shared.TransactionStatusFailed && view.Reason == nil {
		reason := transaction.CancelReasonExecutionError
		view.Reason = &reason
	}
	return view
}

func (p *Payme) create(ctx context.Context, id any, params paymeParams) (*PaymeResponse, error) {
	if params.ID == "" || params.Time == 0 {
		return paymeFailure(id, PaymeInvalidParams, "Invalid params"), nil
	}
	req, err := p.prepareRequest(params)
	if err != nil {
		return paymeFailureFor(id, err), nil
	}

	txn, err := p.settlement.Prepare(ctx, req)
	if errors.Is(err, persistence.ErrOutcomeUnknown) {
		return nil, err
	}
	if err != nil {
		return paymeFailureFor(id, err), nil
	}

	view := paymeView(txn)
	return paymeResult(id, map[string]any{
		"create_time": view.CreateTime,
		"transaction": view.Transaction,
		"state":       view.State,
	}), nil
}

func (p *Payme) perform(ctx context.Context, id any, params paymeParams) (*PaymeResponse, error) {
	if params.ID == "" {
		return paymeFailure(id, PaymeInvalidParams, "Invalid params"), nil
	}

	txn, err := p.settlement.Confirm(ctx, shared.PaymentSourcePayme, params.ID)
	if errors.Is(err, persistence.ErrOutcomeUnknown) {
		return nil, err
	}
	if err != nil {
		return paymeFailureFor(id, err), nil
	}

	view := paymeView(txn)
	return paymeResult(id, map[string]any{
		"transaction":  view.Transaction,
		"perform_time": view.PerformTime,
		"state":        view.State,
	}), nil
}

func (p *Payme) check(ctx context.Context, id any, params paymeParams) *PaymeResponse {
	if params.ID == "" {
		return paymeFailure(id, PaymeInvalidParams, "Invalid params")
	}
	txn, err := p.settlement.Check(ctx, shared.PaymentSourcePayme, params.ID)
	if err != nil {
		return paymeFailureFor(id, err)
	}
	return paymeResult(id, paymeView(txn))
}

func (p *Payme) cancel(ctx context.Context, id any, params paymeParams) (*PaymeResponse, error) {
	if params.ID == "" {
		return paymeFailure(id, PaymeInvalidParams, "Invalid params"), nil
	}
	reason := transaction.CancelReasonUnknown
	if params.Reason != nil {
		reason = *params.Reason
	}

	txn, err := p.settlement.Cancel(ctx, shared.PaymentSourcePayme, params.ID, reason)
	if errors.Is(err, persistence.ErrOutcomeUnknown) {
		return nil, err
	}
	if errors.Is(err, shared.ErrInvalidState) {
		// repeated cancel answers with the stored state
		existing, checkErr := p.settlement.Check(ctx, shared.PaymentSourcePayme, params.ID)
		if checkErr != nil {
			return paymeFailureFor(id, checkErr), nil
		}
		if existing.Status != shared.TransactionStatusCancelled {
			return paymeFailure(id, PaymeCannotCancel, err.Error()), nil
		}
		txn, err = existing, nil
	}
	if err != nil {
		return paymeFailureFor(id, err), nil
	}

	view := paymeView(txn)
	return paymeResult(id, map[string]any{
		"transaction": view.Transaction,
		"cancel_time": view.CancelTime,
		"state":       view.State,
	}), nil
}

// statement lists the Payme payments settled in [from, to]
func (p *Payme) statement(ctx context.Context, id any, params paymeParams) *PaymeResponse {
	if params.From == 0 || params.To == 0 || params.To < params.From {
		return paymeFailure(id, PaymeInvalidParams, "Invalid params")
	}
	from, to := time.UnixMilli(params.From), time.UnixMilli(params.To+1)

	settled, err := p.settlement.Reconcile(ctx, shared.PaymentSourcePayme, from, to)
	if err != nil {
		return paymeFailureFor(id, err)
	}

	numbers := make(map[int64]string)
	views := make([]PaymeTransaction, 0, len(settled))
	for _, txn := range settled {
		if txn.ExternalID == nil {
			continue
		}
		view := paymeView(txn)
		view.ID = *txn.ExternalID
		view.Time = txn.CreatedAt.UnixMilli()
		units := money.ToProviderUnits(shared.PaymentSourcePayme, txn.Amount).IntPart()
		view.Amount = &units
		if txn.ContractID != nil {
			number, ok := numbers[*txn.ContractID]
			if !ok {
				ct, err := p.lookup.GetByID(ctx, *txn.ContractID)
				if err != nil {
					return paymeFailureFor(id, err)
				}
				number = ct.Number
				numbers[*txn.ContractID] = number
			}
			view.Account = map[string]any{"contract": number}
			if txn.PaymentYear != nil && len(txn.PaymentMonths) > 0 {
				view.Account["payment_year"] = *txn.PaymentYear
				view.Account["payment_month"] = txn.PaymentMonths[0]
			}
		}
		views = append(views, view)
	}
	return paymeResult(id, map[string]any{"transactions": views})
}
