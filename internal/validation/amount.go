// Package validation содержит проверки ввода оператора и тел HTTP-запросов.
package validation

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
)

// PositiveAmount проверяет, что сумма строго положительна и не содержит долей копейки.
func PositiveAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return failure.Newf(failure.KindValidation, "%s must be a positive number", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return failure.Newf(failure.KindValidation, "%s must have at most two decimal places", field)
	}
	return nil
}

// OptionalPositiveAmount проверяет сумму, если она указана.
func OptionalPositiveAmount(field string, amount *decimal.Decimal) error {
	if amount == nil {
		return nil
	}
	return PositiveAmount(field, *amount)
}
