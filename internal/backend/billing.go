package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

var errEmptyInvoice = errors.New("backend returned empty invoice")

type createInvoiceRequest struct {
	ReservationID string `json:"reservation_id"`
}

type invoiceLineRequest struct {
	Description string      `json:"description"`
	Qty         json.Number `json:"qty"`
	UnitPrice   json.Number `json:"unit_price"`
	Taxable     bool        `json:"taxable"`
}

type amountRequest struct {
	Amount *json.Number `json:"amount,omitempty"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// FindInvoiceForReservation ищет существующий счёт бронирования. Возвращает nil, если счёта нет.
func (c *Client) FindInvoiceForReservation(ctx context.Context, reservationID string) (*model.Invoice, error) {
	var inv model.Invoice
	ok, err := c.do(ctx, http.MethodGet, "/api/invoices?reservation_id="+url.QueryEscape(reservationID), nil, &inv)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !ok || inv.ID == "" {
		return nil, nil
	}
	return &inv, nil
}

// CreateInvoice создаёт счёт через основной эндпоинт.
func (c *Client) CreateInvoice(ctx context.Context, reservationID string) (*model.Invoice, error) {
	var inv model.Invoice
	ok, err := c.do(ctx, http.MethodPost, "/api/invoices", createInvoiceRequest{ReservationID: reservationID}, &inv)
	if err != nil {
		return nil, err
	}
	if !ok || inv.ID == "" {
		return nil, errEmptyInvoice
	}
	return &inv, nil
}

// CreateReservationInvoice создаёт счёт через эндпоинт, привязанный к бронированию.
func (c *Client) CreateReservationInvoice(ctx context.Context, reservationID string) (*model.Invoice, error) {
	var inv model.Invoice
	ok, err := c.do(ctx, http.MethodPost, "/api/reservations/"+escape(reservationID)+"/invoice", nil, &inv)
	if err != nil {
		return nil, err
	}
	if !ok || inv.ID == "" {
		return nil, errEmptyInvoice
	}
	return &inv, nil
}

// AddInvoiceLine добавляет строку в счёт. Бэкенд может не вернуть обновлённый счёт — тогда результат nil.
func (c *Client) AddInvoiceLine(ctx context.Context, invoiceID string, line model.InvoiceLineInput) (*model.Invoice, error) {
	req := invoiceLineRequest{
		Description: line.Description,
		Qty:         number(line.Qty),
		UnitPrice:   number(line.UnitPrice),
		Taxable:     line.Taxable,
	}

	var inv model.Invoice
	ok, err := c.do(ctx, http.MethodPost, "/api/invoices/"+escape(invoiceID)+"/lines", req, &inv)
	if err != nil {
		return nil, err
	}
	if !ok || inv.ID == "" {
		return nil, nil
	}
	return &inv, nil
}

// RefreshInvoice перечитывает счёт. Возвращает nil, если счёт не найден.
func (c *Client) RefreshInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var inv model.Invoice
	ok, err := c.do(ctx, http.MethodGet, "/api/invoices/"+escape(invoiceID), nil, &inv)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !ok || inv.ID == "" {
		return nil, nil
	}
	return &inv, nil
}

// CaptureInvoice списывает остаток счёта с карты.
func (c *Client) CaptureInvoice(ctx context.Context, invoiceID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/invoices/"+escape(invoiceID)+"/capture", nil, nil)
	return err
}

// RecordCashPayment регистрирует оплату наличными. Без суммы бэкенд закрывает весь остаток.
func (c *Client) RecordCashPayment(ctx context.Context, invoiceID string, amount *decimal.Decimal) error {
	req := amountRequest{}
	if amount != nil {
		n := number(*amount)
		req.Amount = &n
	}
	_, err := c.do(ctx, http.MethodPost, "/api/invoices/"+escape(invoiceID)+"/payments/cash", req, nil)
	return err
}

// RefundInvoiceAmount выполняет частичный возврат по счёту.
func (c *Client) RefundInvoiceAmount(ctx context.Context, invoiceID string, amount decimal.Decimal) error {
	n := number(amount)
	_, err := c.do(ctx, http.MethodPost, "/api/invoices/"+escape(invoiceID)+"/refunds", amountRequest{Amount: &n}, nil)
	return err
}

// EmailReceipt отправляет владельцу квитанцию по счёту.
func (c *Client) EmailReceipt(ctx context.Context, ownerID, invoiceID string) error {
	path := "/api/owners/" + escape(ownerID) + "/invoices/" + escape(invoiceID) + "/email-receipt"
	_, err := c.do(ctx, http.MethodPost, path, nil, nil)
	return err
}

// ReceiptURL возвращает ссылку на печатную форму квитанции. Ссылка не запрашивается.
func (c *Client) ReceiptURL(invoiceID string) string {
	if c == nil {
		return ""
	}
	return c.baseURL + "/invoices/" + escape(invoiceID) + "/receipt"
}
