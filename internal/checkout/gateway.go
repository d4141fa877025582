// Package checkout реализует корзину выезда и пакетные операции над выбранными строками.
package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

// BillingGateway описывает операции платёжной системы, нужные стойке.
type BillingGateway interface {
	FindInvoiceForReservation(ctx context.Context, reservationID string) (*model.Invoice, error)
	CreateInvoice(ctx context.Context, reservationID string) (*model.Invoice, error)
	CreateReservationInvoice(ctx context.Context, reservationID string) (*model.Invoice, error)
	AddInvoiceLine(ctx context.Context, invoiceID string, line model.InvoiceLineInput) (*model.Invoice, error)
	RefreshInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error)
	CaptureInvoice(ctx context.Context, invoiceID string) error
	RecordCashPayment(ctx context.Context, invoiceID string, amount *decimal.Decimal) error
	RefundInvoiceAmount(ctx context.Context, invoiceID string, amount decimal.Decimal) error
	EmailReceipt(ctx context.Context, ownerID, invoiceID string) error
	ReceiptURL(invoiceID string) string
}

// ReservationGateway описывает операции сервиса бронирований.
type ReservationGateway interface {
	GetReservation(ctx context.Context, reservationID string) (*model.Reservation, error)
	CheckOut(ctx context.Context, reservationID string) error
}
