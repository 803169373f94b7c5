package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academy-ledger/internal/domain/transaction"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the payment month rules to gin's validator engine
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	if err := v.RegisterValidation("payment_month", validatePaymentMonth); err != nil {
		return fmt.Errorf("failed to register payment_month: %w", err)
	}
	if err := v.RegisterValidation("payment_months", validatePaymentMonths); err != nil {
		return fmt.Errorf("failed to register payment_months: %w", err)
	}
	return nil
}

func validatePaymentMonth(fl validator.FieldLevel) bool {
	m := fl.Field().Int()
	return m >= 1 && m <= 12
}

func validatePaymentMonths(fl validator.FieldLevel) bool {
	months, ok := fl.Field().Interface().([]int)
	return ok && transaction.ValidateMonths(months) == nil
}

// validationMessage flattens binding errors into one readable line
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request: " + err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, ve := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s failed %s", ve.Field(), ve.Tag()))
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}

// parseDate reads a YYYY-MM-DD value in loc; empty input yields nil
func parseDate(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
