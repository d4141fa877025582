// Package handler содержит HTTP-обработчики API стойки выезда.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/checkout"
	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/middleware"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/pricing"
	"github.com/mmeshcher/frontdesk-checkout/internal/repository"
	"github.com/mmeshcher/frontdesk-checkout/internal/service"
	"github.com/mmeshcher/frontdesk-checkout/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Quote(ctx context.Context, req model.QuoteRequest) (model.Quote, error)
	Policy() *model.Policy
	PublishPolicy(ctx context.Context, p *model.Policy) error
	Cart(ctx context.Context) []checkout.Row
	RefreshCart(ctx context.Context) []checkout.Row
	CheckOutSelected(ctx context.Context) checkout.Outcome
	CaptureCard(ctx context.Context) checkout.Outcome
	RecordCash(ctx context.Context, amount *decimal.Decimal) (checkout.Outcome, error)
	PartialRefund(ctx context.Context, amount decimal.Decimal) (checkout.Outcome, error)
	EmailReceipts(ctx context.Context) checkout.Outcome
	PrintReceipts(ctx context.Context) checkout.Outcome
	CompleteCheckout(ctx context.Context, settings checkout.Settings) (checkout.Outcome, error)
	ListCheckoutRuns(ctx context.Context, limit int) ([]model.CheckoutRun, error)
}

// Cart определяет операции корзины, которые не обращаются к сети.
type Cart interface {
	Add(item model.CartItem) error
	Remove(reservationID string) bool
	Clear()
	ToggleRow(reservationID string) bool
	ToggleAll()
	SetLateFee(reservationID string, on bool) bool
	SetTipPercent(reservationID string, pct decimal.Decimal) bool
	SetTipAmount(reservationID string, amount decimal.Decimal) bool
	LateFeeAmount() decimal.Decimal
}

// Handler реализует HTTP-обработчики API стойки выезда.
type Handler struct {
	service     Service
	cart        Cart
	logger      *zap.Logger
	idempotency middleware.IdempotencyStore
	metrics     http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// idempotency и metrics могут быть nil.
func NewHandler(s Service, cart Cart, logger *zap.Logger, idempotency middleware.IdempotencyStore, metrics http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:     s,
		cart:        cart,
		logger:      logger,
		idempotency: idempotency,
		metrics:     metrics,
	}
}

type errorResponse struct {
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	typed := failure.As(err)
	if typed == nil {
		h.logger.Error("request failed", zap.String("uri", r.RequestURI), zap.Error(err))
		meta := failure.MetadataFor(failure.KindInternal)
		h.writeJSON(w, meta.HTTPStatus, errorResponse{Kind: failure.KindInternal, Message: meta.PublicMessage})
		return
	}

	meta := failure.MetadataFor(typed.Kind())
	if meta.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("uri", r.RequestURI), zap.Error(err))
	}
	h.writeJSON(w, meta.HTTPStatus, errorResponse{Kind: typed.Kind(), Message: typed.Message()})
}

func (h *Handler) writeStatus(w http.ResponseWriter, kind failure.Kind, status int, message string) {
	h.writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

type quoteRequest struct {
	Service           string  `json:"service" validate:"required,oneof=daycare boarding"`
	Nights            float64 `json:"nights" validate:"gte=0"`
	Days              float64 `json:"days" validate:"gte=0"`
	Lodging           string  `json:"lodging" validate:"omitempty,oneof=room suite"`
	Dogs              int     `json:"dogs" validate:"gte=0,lte=10"`
	DaycareAddOn      bool    `json:"daycare_add_on"`
	UseDaycarePackage bool    `json:"use_daycare_package"`
	EarlyDropoff      bool    `json:"early_dropoff"`
	LatePickup        bool    `json:"late_pickup"`
	FleaTreatment     bool    `json:"flea_treatment"`
}

// Quote рассчитывает стоимость пребывания.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := validation.DecodeJSON(r.Body, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	q, err := h.service.Quote(r.Context(), model.QuoteRequest{
		Service:           model.ServiceKind(req.Service),
		Nights:            req.Nights,
		Days:              req.Days,
		Lodging:           model.LodgingClass(req.Lodging),
		Dogs:              req.Dogs,
		DaycareAddOn:      req.DaycareAddOn,
		UseDaycarePackage: req.UseDaycarePackage,
		EarlyDropoff:      req.EarlyDropoff,
		LatePickup:        req.LatePickup,
		FleaTreatment:     req.FleaTreatment,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, q)
}

// GetPolicy возвращает действующую тарифную таблицу.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Policy())
}

// PutPolicy публикует новую версию тарифной таблицы.
func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := pricing.LoadPolicy(r.Body)
	if err != nil {
		h.writePolicyError(w, r, err)
		return
	}

	if err := h.service.PublishPolicy(r.Context(), p); err != nil {
		h.writePolicyError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, p)
}

// Ошибка в присланной таблице — ошибка клиента, а не конфигурации сервиса.
func (h *Handler) writePolicyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrPolicyVersionExists):
		h.writeStatus(w, failure.KindValidation, http.StatusConflict, "policy version already exists")
	case failure.Is(err, failure.KindConfiguration):
		h.writeStatus(w, failure.KindValidation, http.StatusUnprocessableEntity, failure.As(err).Message())
	default:
		h.writeError(w, r, err)
	}
}

type cartResponse struct {
	Rows          []checkout.Row  `json:"rows"`
	LateFeeAmount decimal.Decimal `json:"late_fee_amount"`
}

// GetCart возвращает строки корзины. Параметр refresh=true перечитывает счета и бронирования.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	var rows []checkout.Row
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		rows = h.service.RefreshCart(r.Context())
	} else {
		rows = h.service.Cart(r.Context())
	}
	if rows == nil {
		rows = []checkout.Row{}
	}
	h.writeJSON(w, http.StatusOK, cartResponse{Rows: rows, LateFeeAmount: h.cart.LateFeeAmount()})
}

type cartItemRequest struct {
	ReservationID string `json:"reservation_id" validate:"required"`
	OwnerID       string `json:"owner_id"`
	PetID         string `json:"pet_id"`
	PetName       string `json:"pet_name"`
	ServiceLabel  string `json:"service_label"`
}

// AddCartItem ставит бронирование в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := validation.DecodeJSON(r.Body, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.cart.Add(model.CartItem{
		ReservationID: req.ReservationID,
		OwnerID:       req.OwnerID,
		PetID:         req.PetID,
		PetName:       req.PetName,
		ServiceLabel:  req.ServiceLabel,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveCartItem убирает бронирование из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.rowResult(w, h.cart.Remove(chi.URLParam(r, "reservationID")))
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRow инвертирует выбор строки.
func (h *Handler) ToggleRow(w http.ResponseWriter, r *http.Request) {
	h.rowResult(w, h.cart.ToggleRow(chi.URLParam(r, "reservationID")))
}

// ToggleAll выбирает все строки или снимает выбор со всех.
func (h *Handler) ToggleAll(w http.ResponseWriter, r *http.Request) {
	h.cart.ToggleAll()
	w.WriteHeader(http.StatusNoContent)
}

type lateFeeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// SetLateFee включает или выключает сбор за поздний выезд для строки.
func (h *Handler) SetLateFee(w http.ResponseWriter, r *http.Request) {
	var req lateFeeRequest
	if err := validation.DecodeJSON(r.Body, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.rowResult(w, h.cart.SetLateFee(chi.URLParam(r, "reservationID"), *req.Enabled))
}

type tipRequest struct {
	Percent *decimal.Decimal `json:"percent" validate:"required_without=Amount,excluded_with=Amount"`
	Amount  *decimal.Decimal `json:"amount" validate:"required_without=Percent,excluded_with=Percent"`
}

// SetTip задаёт чаевые строки процентом либо суммой.
func (h *Handler) SetTip(w http.ResponseWriter, r *http.Request) {
	var req tipRequest
	if err := validation.DecodeJSON(r.Body, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "reservationID")
	if req.Percent != nil {
		h.rowResult(w, h.cart.SetTipPercent(id, *req.Percent))
		return
	}
	h.rowResult(w, h.cart.SetTipAmount(id, *req.Amount))
}

func (h *Handler) rowResult(w http.ResponseWriter, found bool) {
	if !found {
		h.writeStatus(w, failure.KindValidation, http.StatusNotFound, "reservation is not in the cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckOut выписывает выбранные бронирования.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.CheckOutSelected(r.Context()))
}

// Capture списывает оплату картой по выбранным счетам.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.CaptureCard(r.Context()))
}

type cashRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// RecordCash регистрирует оплату наличными. Без суммы вносится остаток каждого счёта.
func (h *Handler) RecordCash(w http.ResponseWriter, r *http.Request) {
	var req cashRequest
	if err := validation.DecodeJSON(r.Body, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOutcome(w, r)(h.service.RecordCash(r.Context(), req.Amount))
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

// Refund выполняет частичный возврат одной суммы по каждому выбранному счёту.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := validation.DecodeJSON(r.Body, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeOutcome(w, r)(h.service.PartialRefund(r.Context(), *req.Amount))
}

// EmailReceipts отправляет квитанции владельцам.
func (h *Handler) EmailReceipts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.EmailReceipts(r.Context()))
}

// PrintReceipts возвращает ссылки на печатные квитанции.
func (h *Handler) PrintReceipts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.PrintReceipts(r.Context()))
}

type completeRequest struct {
	Method       string           `json:"method" validate:"omitempty,oneof=card cash"`
	CashAmount   *decimal.Decimal `json:"cash_amount"`
	Email        bool             `json:"email"`
	Print        bool             `json:"print"`
	AutoCheckout bool             `json:"auto_checkout"`
}

// Complete проводит полный выезд выбранных строк.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := validation.DecodeJSON(r.Body, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeOutcome(w, r)(h.service.CompleteCheckout(r.Context(), checkout.Settings{
		Method:       checkout.PaymentMethod(req.Method),
		CashAmount:   req.CashAmount,
		Email:        req.Email,
		Print:        req.Print,
		AutoCheckout: req.AutoCheckout,
	}))
}

func (h *Handler) writeOutcome(w http.ResponseWriter, r *http.Request) func(checkout.Outcome, error) {
	return func(out checkout.Outcome, err error) {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, out)
	}
}

// ListRuns возвращает последние записи журнала выездов.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeStatus(w, failure.KindValidation, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := h.service.ListCheckoutRuns(r.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrJournalDisabled) {
			h.writeStatus(w, failure.KindConfiguration, http.StatusServiceUnavailable, "checkout journal is not configured")
			return
		}
		h.writeError(w, r, err)
		return
	}

	if len(runs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}
