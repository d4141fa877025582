package checkout

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/money"
)

// Options задаёт параметры оркестратора.
type Options struct {
	// LateFee — сумма строки за поздний выезд.
	LateFee decimal.Decimal
	// Now подменяет часы в тестах.
	Now func() time.Time
}

// Orchestrator хранит корзину выезда и выполняет над ней пакетные операции.
// Сетевые вызовы никогда не выполняются под мьютексом.
type Orchestrator struct {
	billing      BillingGateway
	reservations ReservationGateway
	logger       *zap.Logger
	now          func() time.Time

	mu         sync.Mutex
	store      *rowStore
	generation uint64
	hydratedAt uint64
	pass       uint64
	lateFee    decimal.Decimal
}

// New создаёт оркестратор.
func New(billing BillingGateway, reservations ReservationGateway, logger *zap.Logger, opts Options) (*Orchestrator, error) {
	if billing == nil {
		return nil, errors.New("billing gateway is required")
	}
	if reservations == nil {
		return nil, errors.New("reservation gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		billing:      billing,
		reservations: reservations,
		logger:       logger,
		now:          now,
		store:        newRowStore(),
		generation:   1,
		lateFee:      money.NonNegative(opts.LateFee),
	}, nil
}

// SetLateFeeAmount меняет сумму сбора за поздний выезд, например после смены тарифов.
func (o *Orchestrator) SetLateFeeAmount(amount decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lateFee = money.NonNegative(amount)
}

// LateFeeAmount возвращает текущую сумму сбора за поздний выезд.
func (o *Orchestrator) LateFeeAmount() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lateFee
}

// Add ставит бронирование в корзину. Повторное добавление ничего не меняет.
func (o *Orchestrator) Add(item model.CartItem) error {
	item.ReservationID = strings.TrimSpace(item.ReservationID)
	if item.ReservationID == "" {
		return failure.New(failure.KindValidation, "reservation_id is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.store.get(item.ReservationID); ok {
		return nil
	}
	o.store.put(newRow(item))
	o.generation++
	return nil
}

// Remove убирает бронирование из корзины.
func (o *Orchestrator) Remove(reservationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store.remove(reservationID) == 0 {
		return false
	}
	o.generation++
	return true
}

// Clear очищает корзину.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store.len() == 0 {
		return
	}
	o.store.reset()
	o.generation++
}

// Items возвращает позиции корзины в порядке добавления.
func (o *Orchestrator) Items() []model.CartItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	rows := o.store.list()
	items := make([]model.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Item)
	}
	return items
}

// Rows возвращает снимок строк.
func (o *Orchestrator) Rows() []Row {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.list()
}

// Row возвращает строку по идентификатору бронирования.
func (o *Orchestrator) Row(reservationID string) (Row, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.get(reservationID)
}

// ToggleRow инвертирует выбор строки.
func (o *Orchestrator) ToggleRow(reservationID string) bool {
	return o.apply(reservationID, func(r Row) Row { return withSelected(r, !r.Selected) })
}

// ToggleAll снимает выбор, если выбраны все строки, иначе выбирает все.
func (o *Orchestrator) ToggleAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	rows := o.store.list()
	allSelected := len(rows) > 0
	for _, row := range rows {
		if !row.Selected {
			allSelected = false
			break
		}
	}
	for _, row := range rows {
		o.store.update(row.ReservationID(), func(r Row) Row { return withSelected(r, !allSelected) })
	}
}

// SetLateFee явно включает или выключает сбор за поздний выезд. Выбор оператора
// сохраняется при повторной гидратации.
func (o *Orchestrator) SetLateFee(reservationID string, on bool) bool {
	return o.apply(reservationID, func(r Row) Row { return withLateFee(r, on) })
}

// SetTipPercent задаёт чаевые в процентах и сбрасывает сумму.
func (o *Orchestrator) SetTipPercent(reservationID string, pct decimal.Decimal) bool {
	return o.apply(reservationID, func(r Row) Row { return withTip(r, TipPercent(pct)) })
}

// SetTipAmount задаёт чаевые суммой и сбрасывает процент.
func (o *Orchestrator) SetTipAmount(reservationID string, amount decimal.Decimal) bool {
	return o.apply(reservationID, func(r Row) Row { return withTip(r, TipAmount(amount)) })
}

func (o *Orchestrator) apply(reservationID string, fn func(Row) Row) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store.update(reservationID, fn)
}

func (o *Orchestrator) markErrored(reservationID string, err error) {
	o.apply(reservationID, func(r Row) Row { return withError(r, err) })
}

func (o *Orchestrator) selected(needInvoice bool) []Row {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []Row
	for _, row := range o.store.list() {
		if !row.Selected {
			continue
		}
		if needInvoice && row.InvoiceID() == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

// removeSucceeded удаляет строки и позиции корзины одним обновлением.
func (o *Orchestrator) removeSucceeded(ids []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store.remove(ids...) > 0 {
		o.generation++
	}
}
