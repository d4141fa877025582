package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/validation"
)

// Шаги обработки строки, попадающие в RowFailure.Step.
const (
	stepInvoice  = "invoice"
	stepLateFee  = "late_fee"
	stepTip      = "tip"
	stepRefresh  = "refresh"
	stepCapture  = "capture"
	stepCash     = "cash"
	stepRefund   = "refund"
	stepEmail    = "email"
	stepCheckOut = "check_out"
)

const (
	msgSelectRows     = "Select at least one reservation"
	msgSelectInvoiced = "Select at least one reservation with an invoice"
)

// CheckOutSelected выписывает выбранные бронирования. Успешные строки удаляются
// из корзины, неудачные остаются с ошибкой.
func (o *Orchestrator) CheckOutSelected(ctx context.Context) Outcome {
	out := newOutcome(ActionCheckOut)
	rows := o.selected(false)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectRows)
		return out
	}

	for _, row := range rows {
		if err := o.reservations.CheckOut(ctx, row.ReservationID()); err != nil {
			o.rowFailed(&out, row, stepCheckOut, failure.Wrap(failure.KindMutation, err, "check out"))
			continue
		}
		o.apply(row.ReservationID(), func(r Row) Row { return withPhase(r, PhaseCheckedOut) })
		out.succeed(row)
	}

	o.removeSucceeded(out.Succeeded)
	if n := len(out.Succeeded); n > 0 {
		out.notify(LevelSuccess, "", fmt.Sprintf("Checked out %d reservation(s)", n))
	}
	return out
}

// CaptureCard списывает остаток по счетам выбранных строк с карты.
func (o *Orchestrator) CaptureCard(ctx context.Context) Outcome {
	out := newOutcome(ActionCapture)
	rows := o.selected(true)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectInvoiced)
		return out
	}

	for _, row := range rows {
		if err := o.billing.CaptureInvoice(ctx, row.InvoiceID()); err != nil {
			o.rowFailed(&out, row, stepCapture, failure.Wrap(failure.KindMutation, err, "capture card payment"))
			continue
		}
		inv := o.refreshBestEffort(ctx, row.InvoiceID())
		o.apply(row.ReservationID(), func(r Row) Row { return withInvoice(r, inv, PhaseCaptured) })
		out.succeed(row)
		out.notify(LevelSuccess, row.ReservationID(), "Captured card payment for "+row.DisplayName())
	}
	return out
}

// RecordCash регистрирует оплату наличными по выбранным строкам. Без суммы
// вносится точный остаток счёта. Некорректная сумма отменяет всю операцию.
func (o *Orchestrator) RecordCash(ctx context.Context, amount *decimal.Decimal) (Outcome, error) {
	if err := validation.OptionalPositiveAmount("cash amount", amount); err != nil {
		return Outcome{}, err
	}

	out := newOutcome(ActionCash)
	rows := o.selected(true)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectInvoiced)
		return out, nil
	}

	for _, row := range rows {
		inv, step, err := o.settleCash(ctx, row.InvoiceID(), amount)
		if err != nil {
			o.rowFailed(&out, row, step, err)
			continue
		}
		o.apply(row.ReservationID(), func(r Row) Row { return withInvoice(r, inv, PhaseCashRecorded) })
		out.succeed(row)
		out.notify(LevelSuccess, row.ReservationID(), "Recorded cash payment for "+row.DisplayName())
	}
	return out, nil
}

// PartialRefund возвращает одну и ту же сумму по каждому выбранному счёту.
func (o *Orchestrator) PartialRefund(ctx context.Context, amount decimal.Decimal) (Outcome, error) {
	if err := validation.PositiveAmount("refund amount", amount); err != nil {
		return Outcome{}, err
	}

	out := newOutcome(ActionRefund)
	rows := o.selected(true)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectInvoiced)
		return out, nil
	}

	for _, row := range rows {
		if err := o.billing.RefundInvoiceAmount(ctx, row.InvoiceID(), amount); err != nil {
			o.rowFailed(&out, row, stepRefund, failure.Wrap(failure.KindMutation, err, "refund"))
			continue
		}
		inv := o.refreshBestEffort(ctx, row.InvoiceID())
		o.apply(row.ReservationID(), func(r Row) Row { return withInvoice(r, inv, PhaseIdle) })
		out.succeed(row)
	}

	if n := len(out.Succeeded); n > 0 {
		out.notify(LevelSuccess, "", fmt.Sprintf("Refunded %s on %d invoice(s)", amount.StringFixed(2), n))
	}
	return out, nil
}

// EmailReceipts отправляет квитанции владельцам выбранных строк.
func (o *Orchestrator) EmailReceipts(ctx context.Context) Outcome {
	out := newOutcome(ActionEmail)
	rows := o.selected(true)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectInvoiced)
		return out
	}

	for _, row := range rows {
		if err := o.emailReceipt(ctx, row, row.InvoiceID()); err != nil {
			o.rowFailed(&out, row, stepEmail, err)
			continue
		}
		o.apply(row.ReservationID(), func(r Row) Row { return withPhase(r, PhaseNotified) })
		out.succeed(row)
	}

	if n := len(out.Succeeded); n > 0 {
		out.notify(LevelSuccess, "", fmt.Sprintf("Emailed %d receipt(s)", n))
	}
	return out
}

// PrintReceipts возвращает ссылки на печатные квитанции выбранных счетов.
func (o *Orchestrator) PrintReceipts(_ context.Context) Outcome {
	out := newOutcome(ActionPrint)
	rows := o.selected(true)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectInvoiced)
		return out
	}

	for _, row := range rows {
		out.Receipts = append(out.Receipts, o.receipt(row, row.InvoiceID()))
		out.succeed(row)
	}
	return out
}

func (o *Orchestrator) receipt(row Row, invoiceID string) Receipt {
	return Receipt{
		ReservationID: row.ReservationID(),
		InvoiceID:     invoiceID,
		URL:           o.billing.ReceiptURL(invoiceID),
	}
}

func (o *Orchestrator) emailReceipt(ctx context.Context, row Row, invoiceID string) error {
	owner := row.OwnerID()
	if owner == "" {
		return failure.New(failure.KindValidation, "owner is unknown, cannot email receipt")
	}
	if err := o.billing.EmailReceipt(ctx, owner, invoiceID); err != nil {
		return failure.Wrap(failure.KindMutation, err, "email receipt")
	}
	return nil
}

// settleCash перечитывает счёт, вносит остаток или указанную сумму и перечитывает счёт снова.
func (o *Orchestrator) settleCash(ctx context.Context, invoiceID string, override *decimal.Decimal) (*model.Invoice, string, error) {
	inv, err := o.refreshRequired(ctx, invoiceID)
	if err != nil {
		return nil, stepRefresh, err
	}

	amount := inv.AmountDue()
	if override != nil {
		amount = *override
	}
	if !amount.IsPositive() {
		o.logger.Info("nothing due, cash payment skipped", zap.String("invoice_id", invoiceID))
		return inv, "", nil
	}

	if err := o.billing.RecordCashPayment(ctx, invoiceID, &amount); err != nil {
		return nil, stepCash, failure.Wrap(failure.KindMutation, err, "record cash payment")
	}

	if confirmed := o.refreshBestEffort(ctx, invoiceID); confirmed != nil {
		return confirmed, "", nil
	}
	return inv, "", nil
}

func (o *Orchestrator) refreshRequired(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	inv, err := o.billing.RefreshInvoice(ctx, invoiceID)
	if err != nil {
		return nil, failure.Wrap(failure.KindLookup, err, "refresh invoice")
	}
	if inv == nil {
		return nil, failure.Newf(failure.KindLookup, "invoice %s not found", invoiceID)
	}
	return inv, nil
}

// refreshBestEffort перечитывает счёт после операции, которая уже прошла.
// Ошибка только логируется.
func (o *Orchestrator) refreshBestEffort(ctx context.Context, invoiceID string) *model.Invoice {
	inv, err := o.billing.RefreshInvoice(ctx, invoiceID)
	if err != nil {
		o.logger.Warn("invoice refresh failed", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil
	}
	return inv
}

func (o *Orchestrator) rowFailed(out *Outcome, row Row, step string, err error) {
	o.logger.Error("checkout row failed",
		zap.String("action", string(out.Action)),
		zap.String("reservation_id", row.ReservationID()),
		zap.String("step", step),
		zap.Error(err))
	o.markErrored(row.ReservationID(), err)
	out.fail(row, step, err)
	out.notify(LevelError, row.ReservationID(), fmt.Sprintf("%s failed for %s", stepLabel(step), row.DisplayName()))
}

var stepLabels = map[string]string{
	stepInvoice:  "Invoice",
	stepLateFee:  "Late fee",
	stepTip:      "Tip",
	stepRefresh:  "Invoice refresh",
	stepCapture:  "Card capture",
	stepCash:     "Cash payment",
	stepRefund:   "Refund",
	stepEmail:    "Receipt email",
	stepCheckOut: "Check-out",
}

func stepLabel(step string) string {
	if label, ok := stepLabels[step]; ok {
		return label
	}
	return "Checkout"
}
