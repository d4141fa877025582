package model

import "github.com/shopspring/decimal"

// Policy представляет версионированную таблицу тарифов.
type Policy struct {
	Version  string        `json:"version"`
	Boarding BoardingRates `json:"boarding"`
	Daycare  DaycareRates  `json:"daycare"`
	AddOns   AddOnRates    `json:"addons"`
	Fees     FeeRates      `json:"fees"`
	Discount DiscountRule  `json:"discount"`
}

// BoardingRates содержит ночные тарифы по классу размещения и числу собак.
type BoardingRates struct {
	Nightly map[LodgingClass]map[int]decimal.Decimal `json:"nightly"`
}

// DaycareRates содержит тарифы дневного пребывания.
type DaycareRates struct {
	FullDay decimal.Decimal `json:"full_day"`
}

// AddOnRates содержит цены дополнительных услуг.
type AddOnRates struct {
	DaycarePerNight decimal.Decimal `json:"daycare_per_night"`
}

// FeeRates содержит фиксированные сборы.
type FeeRates struct {
	EarlyDropoff  decimal.Decimal `json:"early_dropoff"`
	LatePickup    decimal.Decimal `json:"late_pickup"`
	FleaTreatment decimal.Decimal `json:"flea_treatment"`
}

// DiscountRule описывает скидку за длительное пребывание.
type DiscountRule struct {
	ApplyAfterNights int             `json:"apply_after_nights"`
	Percent          decimal.Decimal `json:"percent"`
}

// NightlyRate возвращает ночной тариф для пары (класс, число собак).
func (p *Policy) NightlyRate(lodging LodgingClass, dogs int) (decimal.Decimal, bool) {
	byDogs, ok := p.Boarding.Nightly[lodging]
	if !ok {
		return decimal.Zero, false
	}
	rate, ok := byDogs[dogs]
	return rate, ok
}
