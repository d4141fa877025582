package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

var errBackend = errors.New("backend unavailable")

type call struct {
	Method string
	ID     string
	Arg    string
}

type fakeBilling struct {
	mu       sync.Mutex
	calls    []call
	invoices map[string]*model.Invoice // по id счёта
	byRes    map[string]string         // reservation id -> invoice id

	failFind    map[string]bool
	failCreate  map[string]bool
	failPrimary bool
	failCapture map[string]bool
	failRefund  map[string]bool
	failEmail   map[string]bool
	nextID      int

	// Эндпоинты создания отвечают успехом без счёта.
	emptyPrimary     bool
	emptyReservation bool
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		invoices:    make(map[string]*model.Invoice),
		byRes:       make(map[string]string),
		failFind:    make(map[string]bool),
		failCreate:  make(map[string]bool),
		failCapture: make(map[string]bool),
		failRefund:  make(map[string]bool),
		failEmail:   make(map[string]bool),
	}
}

func (f *fakeBilling) record(method, id, arg string) {
	f.calls = append(f.calls, call{Method: method, ID: id, Arg: arg})
}

func (f *fakeBilling) callsOf(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// seed регистрирует счёт с остатком balance.
func (f *fakeBilling) seed(reservationID, invoiceID, balance string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := decimal.RequireFromString(balance)
	f.invoices[invoiceID] = &model.Invoice{ID: invoiceID, Status: "OPEN", Total: b, Balance: &b}
	f.byRes[reservationID] = invoiceID
}

func (f *fakeBilling) setFailEmail(invoiceID string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failEmail[invoiceID] = fail
}

func (f *fakeBilling) snapshot(invoiceID string) *model.Invoice {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil
	}
	cp := *inv
	if inv.Balance != nil {
		b := *inv.Balance
		cp.Balance = &b
	}
	cp.Lines = append([]model.InvoiceLine(nil), inv.Lines...)
	return &cp
}

func (f *fakeBilling) create(reservationID string) *model.Invoice {
	f.nextID++
	id := fmt.Sprintf("inv-%d", f.nextID)
	total := decimal.RequireFromString("100")
	f.invoices[id] = &model.Invoice{ID: id, Status: "OPEN", Total: total, Balance: &total}
	f.byRes[reservationID] = id
	return f.snapshot(id)
}

func (f *fakeBilling) FindInvoiceForReservation(_ context.Context, reservationID string) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("find", reservationID, "")
	if f.failFind[reservationID] {
		return nil, errBackend
	}
	id, ok := f.byRes[reservationID]
	if !ok {
		return nil, nil
	}
	return f.snapshot(id), nil
}

func (f *fakeBilling) CreateInvoice(_ context.Context, reservationID string) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create", reservationID, "")
	if f.failPrimary || f.failCreate[reservationID] {
		return nil, errBackend
	}
	if f.emptyPrimary {
		return nil, nil
	}
	return f.create(reservationID), nil
}

func (f *fakeBilling) CreateReservationInvoice(_ context.Context, reservationID string) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_reservation", reservationID, "")
	if f.failCreate[reservationID] {
		return nil, errBackend
	}
	if f.emptyReservation {
		return &model.Invoice{}, nil
	}
	return f.create(reservationID), nil
}

func (f *fakeBilling) AddInvoiceLine(_ context.Context, invoiceID string, line model.InvoiceLineInput) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add_line", invoiceID, line.Description+"="+line.UnitPrice.StringFixed(2))
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, errBackend
	}
	amount := line.UnitPrice.Mul(line.Qty)
	inv.Lines = append(inv.Lines, model.InvoiceLine{Description: line.Description, Qty: line.Qty, UnitPrice: line.UnitPrice, Amount: amount})
	inv.Total = inv.Total.Add(amount)
	b := inv.Balance.Add(amount)
	inv.Balance = &b
	return f.snapshot(invoiceID), nil
}

func (f *fakeBilling) RefreshInvoice(_ context.Context, invoiceID string) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("refresh", invoiceID, "")
	return f.snapshot(invoiceID), nil
}

func (f *fakeBilling) CaptureInvoice(_ context.Context, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("capture", invoiceID, "")
	if f.failCapture[invoiceID] {
		return errBackend
	}
	if inv, ok := f.invoices[invoiceID]; ok {
		zero := decimal.Zero
		inv.Balance = &zero
		inv.Status = "PAID"
	}
	return nil
}

func (f *fakeBilling) RecordCashPayment(_ context.Context, invoiceID string, amount *decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	arg := ""
	if amount != nil {
		arg = amount.StringFixed(2)
	}
	f.record("cash", invoiceID, arg)
	if inv, ok := f.invoices[invoiceID]; ok && amount != nil {
		b := inv.Balance.Sub(*amount)
		inv.Balance = &b
	}
	return nil
}

func (f *fakeBilling) RefundInvoiceAmount(_ context.Context, invoiceID string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("refund", invoiceID, amount.StringFixed(2))
	if f.failRefund[invoiceID] {
		return errBackend
	}
	return nil
}

func (f *fakeBilling) EmailReceipt(_ context.Context, ownerID, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("email", invoiceID, ownerID)
	if f.failEmail[invoiceID] {
		return errBackend
	}
	return nil
}

func (f *fakeBilling) ReceiptURL(invoiceID string) string {
	return "http://billing.test/invoices/" + invoiceID + "/receipt"
}

type fakeReservations struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	failGet      map[string]bool
	failCheckOut map[string]bool
	checkedOut   []string
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{
		reservations: make(map[string]*model.Reservation),
		failGet:      make(map[string]bool),
		failCheckOut: make(map[string]bool),
	}
}

func (f *fakeReservations) GetReservation(_ context.Context, reservationID string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet[reservationID] {
		return nil, errBackend
	}
	res, ok := f.reservations[reservationID]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (f *fakeReservations) CheckOut(_ context.Context, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCheckOut[reservationID] {
		return errBackend
	}
	f.checkedOut = append(f.checkedOut, reservationID)
	return nil
}
