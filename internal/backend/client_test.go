package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var recorded []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Query: r.URL.RawQuery}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Body); err != nil {
				t.Fatalf("request body is not json: %v", err)
			}
		}
		recorded = append(recorded, rec)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)

	return ts, &recorded
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFindInvoiceForReservation_OK(t *testing.T) {
	ts, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"inv-1","status":"open","total":120.5,"balance":"80.25","lines":[]}`))
	})

	inv, err := NewClient(ts.URL).FindInvoiceForReservation(testContext(t), "res-7")
	if err != nil {
		t.Fatalf("FindInvoiceForReservation error: %v", err)
	}
	if inv == nil || inv.ID != "inv-1" {
		t.Fatalf("unexpected invoice: %+v", inv)
	}
	if inv.AmountDue().String() != "80.25" {
		t.Fatalf("amount due = %s, want 80.25", inv.AmountDue())
	}
	if got := (*reqs)[0]; got.Method != http.MethodGet || got.Path != "/api/invoices" || got.Query != "reservation_id=res-7" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestFindInvoiceForReservation_NotFoundIsNil(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusNoContent} {
		ts, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		inv, err := NewClient(ts.URL).FindInvoiceForReservation(testContext(t), "res-7")
		if err != nil {
			t.Fatalf("status %d: unexpected error: %v", status, err)
		}
		if inv != nil {
			t.Fatalf("status %d: expected nil invoice, got %+v", status, inv)
		}
	}
}

func TestCreateInvoice_Endpoints(t *testing.T) {
	ts, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.Invoice{ID: "inv-9"})
	})
	client := NewClient(ts.URL)

	if _, err := client.CreateInvoice(testContext(t), "res-1"); err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}
	if _, err := client.CreateReservationInvoice(testContext(t), "res-1"); err != nil {
		t.Fatalf("CreateReservationInvoice error: %v", err)
	}

	primary := (*reqs)[0]
	if primary.Method != http.MethodPost || primary.Path != "/api/invoices" || primary.Body["reservation_id"] != "res-1" {
		t.Fatalf("unexpected primary request: %+v", primary)
	}
	secondary := (*reqs)[1]
	if secondary.Method != http.MethodPost || secondary.Path != "/api/reservations/res-1/invoice" {
		t.Fatalf("unexpected secondary request: %+v", secondary)
	}
}

func TestCreateInvoice_ServerError(t *testing.T) {
	ts, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := NewClient(ts.URL).CreateInvoice(testContext(t), "res-1")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
}

func TestAddInvoiceLine_SendsNumbers(t *testing.T) {
	ts, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	inv, err := NewClient(ts.URL).AddInvoiceLine(testContext(t), "inv-1", model.InvoiceLineInput{
		Description: "Tip",
		Qty:         decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("12.34"),
	})
	if err != nil {
		t.Fatalf("AddInvoiceLine error: %v", err)
	}
	if inv != nil {
		t.Fatalf("expected nil invoice on 204, got %+v", inv)
	}

	got := (*reqs)[0]
	if got.Path != "/api/invoices/inv-1/lines" {
		t.Fatalf("path = %s", got.Path)
	}
	if price, ok := got.Body["unit_price"].(float64); !ok || price != 12.34 {
		t.Fatalf("unit_price = %#v, want number 12.34", got.Body["unit_price"])
	}
	if got.Body["taxable"] != false {
		t.Fatalf("taxable = %#v, want false", got.Body["taxable"])
	}
}

func TestMoneyMovingEndpoints(t *testing.T) {
	ts, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client := NewClient(ts.URL)
	ctx := testContext(t)
	ten := decimal.NewFromInt(10)

	if err := client.CaptureInvoice(ctx, "inv-1"); err != nil {
		t.Fatalf("CaptureInvoice: %v", err)
	}
	if err := client.RecordCashPayment(ctx, "inv-1", nil); err != nil {
		t.Fatalf("RecordCashPayment: %v", err)
	}
	if err := client.RecordCashPayment(ctx, "inv-1", &ten); err != nil {
		t.Fatalf("RecordCashPayment amount: %v", err)
	}
	if err := client.RefundInvoiceAmount(ctx, "inv-1", ten); err != nil {
		t.Fatalf("RefundInvoiceAmount: %v", err)
	}
	if err := client.EmailReceipt(ctx, "own-1", "inv-1"); err != nil {
		t.Fatalf("EmailReceipt: %v", err)
	}
	if err := client.CheckOut(ctx, "res-1"); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}

	wantPaths := []string{
		"/api/invoices/inv-1/capture",
		"/api/invoices/inv-1/payments/cash",
		"/api/invoices/inv-1/payments/cash",
		"/api/invoices/inv-1/refunds",
		"/api/owners/own-1/invoices/inv-1/email-receipt",
		"/api/reservations/res-1/check-out",
	}
	if len(*reqs) != len(wantPaths) {
		t.Fatalf("requests = %d, want %d", len(*reqs), len(wantPaths))
	}
	for i, want := range wantPaths {
		if (*reqs)[i].Path != want || (*reqs)[i].Method != http.MethodPost {
			t.Fatalf("request %d = %s %s, want POST %s", i, (*reqs)[i].Method, (*reqs)[i].Path, want)
		}
	}
	if _, ok := (*reqs)[1].Body["amount"]; ok {
		t.Fatalf("cash payment without amount must omit it")
	}
	if (*reqs)[2].Body["amount"] != float64(10) {
		t.Fatalf("cash amount = %#v, want 10", (*reqs)[2].Body["amount"])
	}
	if (*reqs)[3].Body["amount"] != float64(10) {
		t.Fatalf("refund amount = %#v, want 10", (*reqs)[3].Body["amount"])
	}
}

func TestGetReservation(t *testing.T) {
	ts, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/reservations/res-5" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(t, w, model.Reservation{ID: "res-5", Status: model.ReservationCheckedIn, EndAt: "2026-01-01T10:00:00Z"})
	})
	client := NewClient(ts.URL)

	res, err := client.GetReservation(testContext(t), "res-5")
	if err != nil {
		t.Fatalf("GetReservation error: %v", err)
	}
	if res.Status != model.ReservationCheckedIn {
		t.Fatalf("status = %s", res.Status)
	}

	_, err = client.GetReservation(testContext(t), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPushPolicy_TooManyRequests(t *testing.T) {
	ts, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := NewClient(ts.URL).PushPolicy(testContext(t), &model.Policy{Version: "v1"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want 429", se.StatusCode)
	}
	if se.RetryAfter < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", se.RetryAfter)
	}
}

func TestQuote_Remote(t *testing.T) {
	ts, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lines":[],"subtotal":100,"discount_total":0,"total":100,"meta":{"policy_version":"v3"}}`))
	})

	q, err := NewClient(ts.URL).Quote(testContext(t), model.QuoteRequest{Service: model.ServiceDaycare, Days: 1})
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if q.Total.String() != "100" || q.Meta.PolicyVersion != "v3" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if (*reqs)[0].Body["service"] != "daycare" {
		t.Fatalf("unexpected body: %+v", (*reqs)[0].Body)
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("")
	if _, err := client.RefreshInvoice(context.Background(), "inv-1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestReceiptURL(t *testing.T) {
	client := NewClient("backend.local:8081/")
	if got := client.ReceiptURL("inv 1"); got != "http://backend.local:8081/invoices/inv%201/receipt" {
		t.Fatalf("ReceiptURL = %s", got)
	}
}
