package pricing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

const testPolicyJSON = `{
  "version": "test-1",
  "boarding": {
    "nightly": {
      "room": {"1": "55.00", "2": "95.00", "3": "130.00"},
      "suite": {"1": "75.00", "2": "125.50", "3": "170.00"}
    }
  },
  "daycare": {"full_day": "38.00"},
  "addons": {"daycare_per_night": "22.00"},
  "fees": {"early_dropoff": "15.00", "late_pickup": "20.00", "flea_treatment": "18.50"},
  "discount": {"apply_after_nights": 4, "percent": "10"}
}`

func testPolicy(t *testing.T) *model.Policy {
	t.Helper()
	p, err := LoadPolicy(strings.NewReader(testPolicyJSON))
	require.NoError(t, err)
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalcQuote_BoardingMultiNightDiscount(t *testing.T) {
	p := testPolicy(t)

	q, err := CalcQuote(p, model.QuoteRequest{
		Service: model.ServiceBoarding,
		Nights:  5,
		Lodging: model.LodgingSuite,
		Dogs:    2,
	})
	require.NoError(t, err)

	rate := dec("125.50")
	stay := rate.Mul(decimal.NewFromInt(5))
	discount := stay.Mul(dec("0.10")).Round(2)

	require.Len(t, q.Lines, 2)
	assert.Equal(t, model.LineCharge, q.Lines[0].Kind)
	assert.True(t, q.Lines[0].Amount.Equal(stay), "stay line = %s", q.Lines[0].Amount)
	assert.Equal(t, model.LineDiscount, q.Lines[1].Kind)
	assert.True(t, q.Lines[1].Amount.Equal(discount.Neg()))
	assert.Contains(t, q.Lines[1].Label, "over 4 nights")
	assert.Contains(t, q.Lines[1].Label, "10%")

	assert.True(t, q.Subtotal.Equal(stay))
	assert.True(t, q.DiscountTotal.Equal(discount))
	assert.True(t, q.Total.Equal(stay.Sub(discount)), "total = %s", q.Total)
	assert.Equal(t, "564.75", q.Total.String())
	assert.Equal(t, "test-1", q.Meta.PolicyVersion)
	assert.Equal(t, model.QuoteSourceLocal, q.Meta.Source)
}

func TestCalcQuote_NoDiscountAtThreshold(t *testing.T) {
	p := testPolicy(t)

	q, err := CalcQuote(p, model.QuoteRequest{
		Service: model.ServiceBoarding,
		Nights:  4,
		Lodging: model.LodgingRoom,
		Dogs:    1,
	})
	require.NoError(t, err)

	require.Len(t, q.Lines, 1)
	assert.True(t, q.DiscountTotal.IsZero())
	assert.Equal(t, "220", q.Total.String())
}

func TestCalcQuote_FeesAndAddOnExcludedFromDiscountBase(t *testing.T) {
	p := testPolicy(t)

	q, err := CalcQuote(p, model.QuoteRequest{
		Service:       model.ServiceBoarding,
		Nights:        6,
		Lodging:       model.LodgingRoom,
		Dogs:          1,
		DaycareAddOn:  true,
		EarlyDropoff:  true,
		LatePickup:    true,
		FleaTreatment: true,
	})
	require.NoError(t, err)

	// 6*55 = 330; add-on 6*22 = 132; fees 15 + 20 + 18.50; discount 10% of 330 only.
	require.Len(t, q.Lines, 6)
	assert.Equal(t, "515.5", q.Subtotal.String())
	assert.Equal(t, "33", q.DiscountTotal.String())
	assert.Equal(t, "482.5", q.Total.String())

	labels := make([]string, 0, len(q.Lines))
	for _, l := range q.Lines {
		labels = append(labels, l.Label)
	}
	assert.Equal(t, []string{
		"Boarding room, 1 dog(s)",
		"Daycare add-on",
		"Early drop-off fee",
		"Late pickup fee",
		"Flea treatment",
		"Multi-night discount (over 4 nights, 10%)",
	}, labels)
}

func TestCalcQuote_RoundsEachLine(t *testing.T) {
	p := testPolicy(t)
	p.Boarding.Nightly[model.LodgingRoom][1] = dec("84.95")
	p.Discount = model.DiscountRule{ApplyAfterNights: 2, Percent: dec("7.5")}

	q, err := CalcQuote(p, model.QuoteRequest{
		Service: model.ServiceBoarding,
		Nights:  3,
		Lodging: model.LodgingRoom,
		Dogs:    1,
	})
	require.NoError(t, err)

	// 254.85 * 7.5% = 19.11375 -> 19.11
	assert.Equal(t, "254.85", q.Subtotal.String())
	assert.Equal(t, "19.11", q.DiscountTotal.String())
	assert.Equal(t, "235.74", q.Total.String())
}

func TestCalcQuote_Deterministic(t *testing.T) {
	p := testPolicy(t)
	req := model.QuoteRequest{
		Service:      model.ServiceBoarding,
		Nights:       7,
		Lodging:      model.LodgingSuite,
		Dogs:         3,
		DaycareAddOn: true,
		LatePickup:   true,
	}

	first, err := CalcQuote(p, req)
	require.NoError(t, err)
	second, err := CalcQuote(p, req)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCalcQuote_DaycarePackageCredits(t *testing.T) {
	p := testPolicy(t)

	q, err := CalcQuote(p, model.QuoteRequest{
		Service:           model.ServiceDaycare,
		Days:              4,
		UseDaycarePackage: true,
	})
	require.NoError(t, err)

	require.Len(t, q.Lines, 4)
	for _, l := range q.Lines {
		assert.True(t, l.Amount.IsZero())
		assert.True(t, l.UnitPrice.IsZero())
	}
	assert.True(t, q.Subtotal.IsZero())
	assert.True(t, q.Total.IsZero())
	assert.Equal(t, 4, q.Meta.PackageCreditsUsed)
}

func TestCalcQuote_DaycareFullPrice(t *testing.T) {
	p := testPolicy(t)

	q, err := CalcQuote(p, model.QuoteRequest{Service: model.ServiceDaycare, Days: 3})
	require.NoError(t, err)

	require.Len(t, q.Lines, 1)
	assert.Equal(t, 3, q.Lines[0].Quantity)
	assert.Equal(t, "114", q.Total.String())
	assert.Equal(t, 0, q.Meta.PackageCreditsUsed)
}

func TestCalcQuote_DurationFlooredAndClamped(t *testing.T) {
	p := testPolicy(t)

	tests := []struct {
		name   string
		nights float64
		want   int
	}{
		{name: "fraction floors", nights: 2.9, want: 2},
		{name: "zero clamps", nights: 0, want: 1},
		{name: "negative clamps", nights: -3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := CalcQuote(p, model.QuoteRequest{
				Service: model.ServiceBoarding,
				Nights:  tt.nights,
				Lodging: model.LodgingRoom,
				Dogs:    1,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Lines[0].Quantity)
		})
	}
}

func TestCalcQuote_UnknownRateIsConfigurationError(t *testing.T) {
	p := testPolicy(t)

	_, err := CalcQuote(p, model.QuoteRequest{
		Service: model.ServiceBoarding,
		Nights:  2,
		Lodging: model.LodgingClass("penthouse"),
		Dogs:    1,
	})
	require.Error(t, err)
	assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))

	_, err = CalcQuote(p, model.QuoteRequest{
		Service: model.ServiceBoarding,
		Nights:  2,
		Lodging: model.LodgingRoom,
		Dogs:    4,
	})
	assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))
}

func TestCalcQuote_UnknownService(t *testing.T) {
	_, err := CalcQuote(testPolicy(t), model.QuoteRequest{Service: "grooming"})
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
}
