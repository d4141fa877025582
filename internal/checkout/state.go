package checkout

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/money"
)

// Phase описывает этап обработки строки.
type Phase int

const (
	PhaseHydrating Phase = iota
	PhaseIdle
	PhaseInvoiceResolved
	PhaseLinesApplied
	PhaseCaptured
	PhaseCashRecorded
	PhaseNotified
	PhaseCheckedOut
	PhaseErrored
)

var phaseNames = map[Phase]string{
	PhaseHydrating:       "hydrating",
	PhaseIdle:            "idle",
	PhaseInvoiceResolved: "invoice_resolved",
	PhaseLinesApplied:    "lines_applied",
	PhaseCaptured:        "captured",
	PhaseCashRecorded:    "cash_recorded",
	PhaseNotified:        "notified",
	PhaseCheckedOut:      "checked_out",
	PhaseErrored:         "errored",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type tipMode int

const (
	tipNone tipMode = iota
	tipPercent
	tipAmount
)

// Tip хранит чаевые: либо процент от остатка, либо фиксированную сумму.
type Tip struct {
	mode  tipMode
	value decimal.Decimal
}

// TipPercent создаёт чаевые в процентах. Отрицательные значения обнуляются.
func TipPercent(pct decimal.Decimal) Tip {
	return Tip{mode: tipPercent, value: money.NonNegative(pct)}
}

// TipAmount создаёт чаевые фиксированной суммой. Отрицательные значения обнуляются.
func TipAmount(amount decimal.Decimal) Tip {
	return Tip{mode: tipAmount, value: money.NonNegative(amount)}
}

// Percent возвращает процент чаевых или ноль, если задана сумма.
func (t Tip) Percent() decimal.Decimal {
	if t.mode != tipPercent {
		return decimal.Zero
	}
	return t.value
}

// Amount возвращает сумму чаевых или ноль, если задан процент.
func (t Tip) Amount() decimal.Decimal {
	if t.mode != tipAmount {
		return decimal.Zero
	}
	return t.value
}

func (t Tip) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Percent decimal.Decimal `json:"percent"`
		Amount  decimal.Decimal `json:"amount"`
	}{Percent: t.Percent(), Amount: t.Amount()})
}
