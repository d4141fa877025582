package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/money"
)

// Row — производное состояние позиции корзины.
type Row struct {
	Item        model.CartItem     `json:"item"`
	Invoice     *model.Invoice     `json:"invoice"`
	Reservation *model.Reservation `json:"reservation"`
	LateFee     bool               `json:"late_fee"`
	Tip         Tip                `json:"tip"`
	Selected    bool               `json:"selected"`
	Phase       Phase              `json:"phase"`
	LastError   string             `json:"last_error,omitempty"`

	lateFeeSet bool
	pass       uint64
	done       progress
}

// progress отмечает шаги полного выезда, уже проведённые по счёту.
// Повторный запуск пропускает их, чтобы не начислить и не списать дважды.
type progress struct {
	invoiceID string
	lateFee   bool
	tip       bool
	settled   bool
}

// progressFor возвращает отметки строки для счёта invoiceID.
func (r Row) progressFor(invoiceID string) progress {
	if r.done.invoiceID != invoiceID {
		return progress{invoiceID: invoiceID}
	}
	return r.done
}

// ReservationID возвращает идентификатор бронирования строки.
func (r Row) ReservationID() string {
	return r.Item.ReservationID
}

// InvoiceID возвращает идентификатор счёта или пустую строку.
func (r Row) InvoiceID() string {
	if r.Invoice == nil {
		return ""
	}
	return r.Invoice.ID
}

// DisplayName возвращает имя питомца для уведомлений.
func (r Row) DisplayName() string {
	if r.Item.PetName != "" {
		return r.Item.PetName
	}
	if r.Reservation != nil && r.Reservation.PetName != "" {
		return r.Reservation.PetName
	}
	return "reservation " + r.Item.ReservationID
}

// OwnerID возвращает владельца из корзины, а при его отсутствии — из бронирования.
func (r Row) OwnerID() string {
	if r.Item.OwnerID != "" {
		return r.Item.OwnerID
	}
	if r.Reservation != nil {
		return r.Reservation.OwnerID
	}
	return ""
}

func newRow(item model.CartItem) Row {
	return Row{Item: item, Selected: true, Phase: PhaseHydrating}
}

func withSelected(r Row, selected bool) Row {
	r.Selected = selected
	return r
}

func withLateFee(r Row, on bool) Row {
	r.LateFee = on
	r.lateFeeSet = true
	return r
}

func withTip(r Row, tip Tip) Row {
	r.Tip = tip
	return r
}

func withHydrating(r Row, pass uint64) Row {
	r.pass = pass
	if r.Phase != PhaseErrored {
		r.Phase = PhaseHydrating
	}
	return r
}

// Ошибка строки переживает гидратацию, пока строку не обработают успешно.
func withLookup(r Row, inv *model.Invoice, res *model.Reservation, late bool) Row {
	r.Invoice = inv
	r.Reservation = res
	if !r.lateFeeSet {
		r.LateFee = late
	}
	if r.Phase != PhaseErrored {
		r.Phase = PhaseIdle
	}
	return r
}

func withInvoice(r Row, inv *model.Invoice, phase Phase) Row {
	if inv != nil {
		r.Invoice = inv
	}
	return withPhase(r, phase)
}

func withPhase(r Row, phase Phase) Row {
	r.Phase = phase
	if phase != PhaseErrored {
		r.LastError = ""
	}
	return r
}

func withProgress(r Row, p progress) Row {
	r.done = p
	return r
}

func withError(r Row, err error) Row {
	r.Phase = PhaseErrored
	r.LastError = err.Error()
	return r
}

// rowStore хранит строки в порядке добавления в корзину.
type rowStore struct {
	order []string
	rows  map[string]Row
}

func newRowStore() *rowStore {
	return &rowStore{rows: make(map[string]Row)}
}

func (s *rowStore) get(id string) (Row, bool) {
	row, ok := s.rows[id]
	return row, ok
}

func (s *rowStore) put(row Row) {
	id := row.ReservationID()
	if _, ok := s.rows[id]; !ok {
		s.order = append(s.order, id)
	}
	s.rows[id] = row
}

func (s *rowStore) update(id string, fn func(Row) Row) bool {
	row, ok := s.rows[id]
	if !ok {
		return false
	}
	s.rows[id] = fn(row)
	return true
}

func (s *rowStore) remove(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			drop[id] = struct{}{}
			delete(s.rows, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return len(drop)
}

func (s *rowStore) list() []Row {
	out := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}

func (s *rowStore) len() int {
	return len(s.order)
}

func (s *rowStore) reset() {
	s.order = nil
	s.rows = make(map[string]Row)
}

func tipFor(r Row, invoice *model.Invoice) decimal.Decimal {
	if amount := r.Tip.Amount(); amount.IsPositive() {
		return money.Round2(amount)
	}
	if pct := r.Tip.Percent(); pct.IsPositive() {
		return money.NonNegative(money.PercentOf(invoice.AmountDue(), pct))
	}
	return decimal.Zero
}
