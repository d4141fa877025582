package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/money"
)

var hundred = decimal.NewFromInt(100)

const (
	unitDay   = "day"
	unitNight = "night"
	unitEach  = "each"
)

// CalcQuote рассчитывает детализированную стоимость по тарифной таблице.
// Функция детерминирована и не выполняет ввода-вывода.
func CalcQuote(policy *model.Policy, req model.QuoteRequest) (model.Quote, error) {
	if policy == nil {
		return model.Quote{}, failure.New(failure.KindConfiguration, "pricing policy is missing")
	}

	b := quoteBuilder{
		quote: model.Quote{
			Lines: []model.QuoteLine{},
			Meta: model.QuoteMeta{
				PolicyVersion: policy.Version,
				Source:        model.QuoteSourceLocal,
			},
		},
		subtotal:     decimal.Zero,
		discount:     decimal.Zero,
		discountBase: decimal.Zero,
	}

	switch req.Service {
	case model.ServiceDaycare:
		b.daycare(policy, req)
	case model.ServiceBoarding:
		if err := b.boarding(policy, req); err != nil {
			return model.Quote{}, err
		}
	default:
		return model.Quote{}, failure.Newf(failure.KindValidation, "unknown service kind %q", req.Service)
	}

	return b.finish(), nil
}

type quoteBuilder struct {
	quote        model.Quote
	subtotal     decimal.Decimal
	discount     decimal.Decimal
	discountBase decimal.Decimal
}

func (b *quoteBuilder) charge(label, unit string, qty int, unitPrice decimal.Decimal) decimal.Decimal {
	amount := money.Line(qty, unitPrice)
	b.quote.Lines = append(b.quote.Lines, model.QuoteLine{
		Label:     label,
		Kind:      model.LineCharge,
		Quantity:  qty,
		Unit:      unit,
		UnitPrice: unitPrice,
		Amount:    amount,
	})
	b.subtotal = b.subtotal.Add(amount)
	return amount
}

func (b *quoteBuilder) daycare(policy *model.Policy, req model.QuoteRequest) {
	days := wholeUnits(req.Days)

	if req.UseDaycarePackage {
		for i := 0; i < days; i++ {
			b.quote.Lines = append(b.quote.Lines, model.QuoteLine{
				Label:     "Daycare (package credit)",
				Kind:      model.LineCharge,
				Quantity:  1,
				Unit:      unitDay,
				UnitPrice: decimal.Zero,
				Amount:    decimal.Zero,
			})
		}
		b.quote.Meta.PackageCreditsUsed = days
		return
	}

	b.charge("Daycare full day", unitDay, days, policy.Daycare.FullDay)
}

func (b *quoteBuilder) boarding(policy *model.Policy, req model.QuoteRequest) error {
	nights := wholeUnits(req.Nights)

	rate, ok := policy.NightlyRate(req.Lodging, req.Dogs)
	if !ok {
		return failure.Newf(failure.KindConfiguration,
			"no nightly rate for lodging %q with %d dog(s) in policy %s", req.Lodging, req.Dogs, policy.Version)
	}

	stay := b.charge(fmt.Sprintf("Boarding %s, %d dog(s)", req.Lodging, req.Dogs), unitNight, nights, rate)
	b.discountBase = b.discountBase.Add(stay)

	if req.DaycareAddOn {
		b.charge("Daycare add-on", unitNight, nights, policy.AddOns.DaycarePerNight)
	}
	if req.EarlyDropoff {
		b.charge("Early drop-off fee", unitEach, 1, policy.Fees.EarlyDropoff)
	}
	if req.LatePickup {
		b.charge("Late pickup fee", unitEach, 1, policy.Fees.LatePickup)
	}
	if req.FleaTreatment {
		b.charge("Flea treatment", unitEach, 1, policy.Fees.FleaTreatment)
	}

	rule := policy.Discount
	if nights > rule.ApplyAfterNights && rule.Percent.IsPositive() {
		discount := money.PercentOf(b.discountBase, rule.Percent)
		b.quote.Lines = append(b.quote.Lines, model.QuoteLine{
			Label:     fmt.Sprintf("Multi-night discount (over %d nights, %s%%)", rule.ApplyAfterNights, rule.Percent.String()),
			Kind:      model.LineDiscount,
			Quantity:  1,
			Unit:      unitEach,
			UnitPrice: discount.Neg(),
			Amount:    discount.Neg(),
		})
		b.discount = b.discount.Add(discount)
	}

	return nil
}

func (b *quoteBuilder) finish() model.Quote {
	b.quote.Subtotal = money.Round2(b.subtotal)
	b.quote.DiscountTotal = money.Round2(b.discount)
	b.quote.Total = money.Round2(b.subtotal.Sub(b.discount))
	return b.quote
}

// wholeUnits округляет длительность вниз и ограничивает её снизу единицей.
func wholeUnits(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}
