// Package model содержит доменные сущности стойки регистрации: расчёты, корзину, счета и бронирования.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceKind описывает вид услуги, для которой считается предварительная стоимость.
type ServiceKind string

const (
	ServiceDaycare  ServiceKind = "daycare"
	ServiceBoarding ServiceKind = "boarding"
)

// LodgingClass описывает класс размещения при передержке.
type LodgingClass string

const (
	LodgingRoom  LodgingClass = "room"
	LodgingSuite LodgingClass = "suite"
)

// QuoteRequest описывает запрос на расчёт стоимости пребывания или услуги.
type QuoteRequest struct {
	Service           ServiceKind  `json:"service"`
	Nights            float64      `json:"nights,omitempty"`
	Days              float64      `json:"days,omitempty"`
	Lodging           LodgingClass `json:"lodging,omitempty"`
	Dogs              int          `json:"dogs,omitempty"`
	DaycareAddOn      bool         `json:"daycare_add_on,omitempty"`
	UseDaycarePackage bool         `json:"use_daycare_package,omitempty"`
	EarlyDropoff      bool         `json:"early_dropoff,omitempty"`
	LatePickup        bool         `json:"late_pickup,omitempty"`
	FleaTreatment     bool         `json:"flea_treatment,omitempty"`
}

// LineKind отличает начисления от скидочных строк.
type LineKind string

const (
	LineCharge   LineKind = "charge"
	LineDiscount LineKind = "discount"
)

// QuoteLine описывает одну строку расчёта.
type QuoteLine struct {
	Label     string          `json:"label"`
	Kind      LineKind        `json:"kind"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// Источники расчёта.
const (
	QuoteSourceLocal  = "local"
	QuoteSourceRemote = "remote"
)

// QuoteMeta содержит служебные сведения о расчёте.
type QuoteMeta struct {
	PolicyVersion      string `json:"policy_version"`
	PackageCreditsUsed int    `json:"package_credits_used"`
	Source             string `json:"source"`
}

// Quote представляет детализированный расчёт стоимости. Не сохраняется.
type Quote struct {
	Lines         []QuoteLine     `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Total         decimal.Decimal `json:"total"`
	Meta          QuoteMeta       `json:"meta"`
}

// CartItem описывает бронирование, поставленное в корзину выезда.
type CartItem struct {
	ReservationID string `json:"reservation_id"`
	OwnerID       string `json:"owner_id"`
	PetID         string `json:"pet_id"`
	PetName       string `json:"pet_name"`
	ServiceLabel  string `json:"service_label"`
}

// InvoiceLine описывает строку счёта в платёжной системе.
type InvoiceLine struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	Taxable     bool            `json:"taxable"`
}

// InvoiceLineInput содержит данные для добавления строки в счёт.
type InvoiceLineInput struct {
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Taxable     bool            `json:"taxable"`
}

// Invoice представляет счёт, которым владеет платёжная система.
type Invoice struct {
	ID            string           `json:"id"`
	Status        string           `json:"status"`
	Lines         []InvoiceLine    `json:"lines"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	DiscountTotal decimal.Decimal  `json:"discount_total"`
	TaxTotal      decimal.Decimal  `json:"tax_total"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
	Total         decimal.Decimal  `json:"total"`
	CreatedAt     time.Time        `json:"created_at"`
}

// AmountDue возвращает остаток к оплате, а при его отсутствии — итог счёта.
func (i *Invoice) AmountDue() decimal.Decimal {
	if i == nil {
		return decimal.Zero
	}
	if i.Balance != nil {
		return *i.Balance
	}
	return i.Total
}

// ReservationStatus описывает статус бронирования.
type ReservationStatus string

const (
	ReservationConfirmed  ReservationStatus = "CONFIRMED"
	ReservationCheckedIn  ReservationStatus = "CHECKED_IN"
	ReservationCheckedOut ReservationStatus = "CHECKED_OUT"
	ReservationCanceled   ReservationStatus = "CANCELED"
)

// Reservation содержит снимок бронирования, полученный от сервиса бронирований.
type Reservation struct {
	ID      string            `json:"id"`
	OwnerID string            `json:"owner_id"`
	PetID   string            `json:"pet_id"`
	PetName string            `json:"pet_name"`
	Status  ReservationStatus `json:"status"`
	StartAt string            `json:"start_at,omitempty"`
	EndAt   string            `json:"end_at,omitempty"`
}

var endAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// IsLate сообщает, что время выезда прошло, а гость всё ещё заселён.
// Отсутствующая или неразборчивая дата выезда не считается опозданием.
func (r *Reservation) IsLate(now time.Time) bool {
	if r == nil || r.Status != ReservationCheckedIn {
		return false
	}
	raw := strings.TrimSpace(r.EndAt)
	if raw == "" {
		return false
	}
	for _, layout := range endAtLayouts {
		end, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return end.Before(now)
	}
	return false
}

// CheckoutRunRow описывает результат обработки одной строки в журнале.
type CheckoutRunRow struct {
	ReservationID string `json:"reservation_id"`
	PetName       string `json:"pet_name"`
	Result        string `json:"result"`
	Error         string `json:"error,omitempty"`
}

// CheckoutRun описывает запись журнала о пакетной операции выезда.
type CheckoutRun struct {
	ID         uuid.UUID        `json:"id"`
	Action     string           `json:"action"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Rows       []CheckoutRunRow `json:"rows"`
}
