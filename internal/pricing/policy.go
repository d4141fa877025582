// Package pricing реализует расчёт стоимости пребывания по тарифной таблице.
package pricing

import (
	"encoding/json"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

// LoadPolicy читает и проверяет тарифную таблицу в формате JSON.
func LoadPolicy(r io.Reader) (*model.Policy, error) {
	var p model.Policy
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, err, "decode pricing policy")
	}
	if err := ValidatePolicy(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPolicyFile читает тарифную таблицу из файла.
func LoadPolicyFile(path string) (*model.Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfiguration, err, "open pricing policy")
	}
	defer f.Close()

	return LoadPolicy(f)
}

// ValidatePolicy проверяет согласованность тарифной таблицы.
func ValidatePolicy(p *model.Policy) error {
	if p == nil {
		return failure.New(failure.KindConfiguration, "pricing policy is missing")
	}
	if p.Version == "" {
		return failure.New(failure.KindConfiguration, "pricing policy version is required")
	}
	if len(p.Boarding.Nightly) == 0 {
		return failure.New(failure.KindConfiguration, "boarding nightly rates are empty")
	}
	for lodging, byDogs := range p.Boarding.Nightly {
		for dogs, rate := range byDogs {
			if dogs < 1 {
				return failure.Newf(failure.KindConfiguration, "nightly rate %s/%d: dog count must be positive", lodging, dogs)
			}
			if rate.IsNegative() {
				return failure.Newf(failure.KindConfiguration, "nightly rate %s/%d is negative", lodging, dogs)
			}
		}
	}

	prices := []struct {
		name  string
		value decimal.Decimal
	}{
		{name: "daycare.full_day", value: p.Daycare.FullDay},
		{name: "addons.daycare_per_night", value: p.AddOns.DaycarePerNight},
		{name: "fees.early_dropoff", value: p.Fees.EarlyDropoff},
		{name: "fees.late_pickup", value: p.Fees.LatePickup},
		{name: "fees.flea_treatment", value: p.Fees.FleaTreatment},
	}
	for _, price := range prices {
		if price.value.IsNegative() {
			return failure.Newf(failure.KindConfiguration, "%s is negative", price.name)
		}
	}

	if p.Discount.ApplyAfterNights < 0 {
		return failure.New(failure.KindConfiguration, "discount.apply_after_nights is negative")
	}
	if p.Discount.Percent.IsNegative() || p.Discount.Percent.GreaterThan(hundred) {
		return failure.Newf(failure.KindConfiguration, "discount.percent %s is out of range", p.Discount.Percent)
	}

	return nil
}
