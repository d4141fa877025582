package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/fallback"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/validation"
)

// PaymentMethod задаёт способ оплаты при полном выезде.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

var errNoInvoiceCreated = errors.New("create endpoint returned no invoice")

const (
	lateFeeDescription = "Late pickup fee"
	tipDescription     = "Tip"

	strategyPrimary     = "primary"
	strategyReservation = "reservation"
)

// Settings — переключатели сессии для полного выезда.
type Settings struct {
	Method       PaymentMethod    `json:"method"`
	CashAmount   *decimal.Decimal `json:"cash_amount,omitempty"`
	Email        bool             `json:"email"`
	Print        bool             `json:"print"`
	AutoCheckout bool             `json:"auto_checkout"`
}

func (s Settings) validate() (Settings, error) {
	switch s.Method {
	case "":
		s.Method = PaymentCard
	case PaymentCard, PaymentCash:
	default:
		return s, failure.Newf(failure.KindValidation, "unknown payment method %q", s.Method)
	}
	if s.Method == PaymentCash {
		if err := validation.OptionalPositiveAmount("cash amount", s.CashAmount); err != nil {
			return s, err
		}
	}
	return s, nil
}

// CompleteCheckout проводит каждую выбранную строку через весь выезд: счёт,
// сбор за опоздание, чаевые, оплату, квитанцию и выписку. Строки обрабатываются
// последовательно, ошибка одной строки не останавливает остальные.
func (o *Orchestrator) CompleteCheckout(ctx context.Context, settings Settings) (Outcome, error) {
	settings, err := settings.validate()
	if err != nil {
		return Outcome{}, err
	}

	out := newOutcome(ActionComplete)
	rows := o.selected(false)
	if len(rows) == 0 {
		out.notify(LevelWarning, "", msgSelectRows)
		return out, nil
	}
	lateFee := o.LateFeeAmount()

	for _, row := range rows {
		receipt, step, err := o.completeRow(ctx, row, settings, lateFee)
		if err != nil {
			o.rowFailed(&out, row, step, err)
			continue
		}
		if receipt != nil {
			out.Receipts = append(out.Receipts, *receipt)
		}
		out.succeed(row)
	}

	o.removeSucceeded(out.Succeeded)
	out.notify(LevelSuccess, "", fmt.Sprintf("Completed %d checkout(s)", len(out.Succeeded)))
	return out, nil
}

func (o *Orchestrator) completeRow(ctx context.Context, row Row, settings Settings, lateFee decimal.Decimal) (*Receipt, string, error) {
	id := row.ReservationID()

	inv, err := o.ensureInvoice(ctx, row)
	if err != nil {
		return nil, stepInvoice, err
	}
	o.apply(id, func(r Row) Row { return withInvoice(r, inv, PhaseInvoiceResolved) })

	done := row.progressFor(inv.ID)
	mark := func(update func(*progress)) {
		update(&done)
		p := done
		o.apply(id, func(r Row) Row { return withProgress(r, p) })
	}

	lateFeeAdded := false
	if row.LateFee && lateFee.IsPositive() && !done.lateFee {
		inv, err = o.addLine(ctx, inv, lateFeeDescription, lateFee)
		if err != nil {
			return nil, stepLateFee, err
		}
		lateFeeAdded = true
		mark(func(p *progress) { p.lateFee = true })
	}

	if !done.tip {
		// Процент чаевых считается от текущего остатка, уже со сбором за опоздание.
		if !lateFeeAdded && !row.Tip.Amount().IsPositive() && row.Tip.Percent().IsPositive() {
			inv, err = o.refreshRequired(ctx, inv.ID)
			if err != nil {
				return nil, stepRefresh, err
			}
		}
		if tip := tipFor(row, inv); tip.IsPositive() {
			if _, err = o.addLine(ctx, inv, tipDescription, tip); err != nil {
				return nil, stepTip, err
			}
			mark(func(p *progress) { p.tip = true })
		}
	}

	inv, err = o.refreshRequired(ctx, inv.ID)
	if err != nil {
		return nil, stepRefresh, err
	}
	o.apply(id, func(r Row) Row { return withInvoice(r, inv, PhaseLinesApplied) })

	switch {
	case done.settled:
		o.logger.Info("payment already settled, skipping", zap.String("invoice_id", inv.ID))
	case settings.Method == PaymentCash:
		settled, step, err := o.settleCash(ctx, inv.ID, settings.CashAmount)
		if err != nil {
			return nil, step, err
		}
		inv = settled
		mark(func(p *progress) { p.settled = true })
		o.apply(id, func(r Row) Row { return withInvoice(r, inv, PhaseCashRecorded) })
	default:
		if inv.AmountDue().IsPositive() {
			if err := o.billing.CaptureInvoice(ctx, inv.ID); err != nil {
				return nil, stepCapture, failure.Wrap(failure.KindMutation, err, "capture card payment")
			}
		} else {
			o.logger.Info("nothing due, card capture skipped", zap.String("invoice_id", inv.ID))
		}
		mark(func(p *progress) { p.settled = true })
		o.apply(id, func(r Row) Row { return withPhase(r, PhaseCaptured) })
	}

	var receipt *Receipt
	if settings.Email {
		if err := o.emailReceipt(ctx, row, inv.ID); err != nil {
			return nil, stepEmail, err
		}
	}
	if settings.Print {
		r := o.receipt(row, inv.ID)
		receipt = &r
	}
	if settings.Email || settings.Print {
		o.apply(id, func(r Row) Row { return withPhase(r, PhaseNotified) })
	}

	if settings.AutoCheckout {
		if err := o.reservations.CheckOut(ctx, id); err != nil {
			return nil, stepCheckOut, failure.Wrap(failure.KindMutation, err, "check out")
		}
		o.apply(id, func(r Row) Row { return withPhase(r, PhaseCheckedOut) })
	}

	return receipt, "", nil
}

// ensureInvoice возвращает счёт строки, при необходимости создавая его.
// Сначала пробуется основной эндпоинт, затем привязанный к бронированию.
func (o *Orchestrator) ensureInvoice(ctx context.Context, row Row) (*model.Invoice, error) {
	if row.InvoiceID() != "" {
		return row.Invoice, nil
	}

	id := row.ReservationID()
	existing, err := o.billing.FindInvoiceForReservation(ctx, id)
	if err != nil {
		return nil, failure.Wrap(failure.KindLookup, err, "find invoice")
	}
	if existing != nil && existing.ID != "" {
		return existing, nil
	}

	inv, used, err := fallback.First(ctx,
		fallback.Strategy[*model.Invoice]{
			Name: strategyPrimary,
			Run: func(ctx context.Context) (*model.Invoice, error) {
				return createdInvoice(o.billing.CreateInvoice(ctx, id))
			},
		},
		fallback.Strategy[*model.Invoice]{
			Name: strategyReservation,
			Run: func(ctx context.Context) (*model.Invoice, error) {
				return createdInvoice(o.billing.CreateReservationInvoice(ctx, id))
			},
		},
	)
	if err != nil {
		return nil, failure.Wrap(failure.KindMutation, err, "create invoice")
	}
	if used != strategyPrimary {
		o.logger.Info("invoice created via fallback endpoint",
			zap.String("reservation_id", id),
			zap.String("strategy", used))
	}
	return inv, nil
}

// createdInvoice считает пустой ответ эндпоинта создания неудачей,
// чтобы резолвер перешёл к следующему эндпоинту.
func createdInvoice(inv *model.Invoice, err error) (*model.Invoice, error) {
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.ID == "" {
		return nil, errNoInvoiceCreated
	}
	return inv, nil
}

// addLine добавляет строку и возвращает актуальный счёт: из ответа или перечитанный.
func (o *Orchestrator) addLine(ctx context.Context, inv *model.Invoice, description string, amount decimal.Decimal) (*model.Invoice, error) {
	updated, err := o.billing.AddInvoiceLine(ctx, inv.ID, model.InvoiceLineInput{
		Description: description,
		Qty:         decimal.NewFromInt(1),
		UnitPrice:   amount,
		Taxable:     false,
	})
	if err != nil {
		return nil, failure.Wrap(failure.KindMutation, err, "add invoice line")
	}
	if updated != nil {
		return updated, nil
	}
	refreshed, err := o.refreshRequired(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}
