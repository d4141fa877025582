// Package money содержит денежную арифметику с округлением до двух знаков.
package money

import "github.com/shopspring/decimal"

// Round2 округляет сумму до двух знаков после запятой, половину — от нуля.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Line возвращает округлённую стоимость строки: количество × цена.
func Line(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return Round2(unitPrice.Mul(decimal.NewFromInt(int64(qty))))
}

// PercentOf возвращает округлённую долю base в процентах pct.
func PercentOf(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Shift(-2))
}

// NonNegative заменяет отрицательное значение нулём.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
