package checkout

import "github.com/mmeshcher/frontdesk-checkout/internal/failure"

// Action именует пакетную операцию.
type Action string

const (
	ActionCheckOut Action = "check_out"
	ActionCapture  Action = "capture"
	ActionCash     Action = "cash"
	ActionRefund   Action = "refund"
	ActionEmail    Action = "email"
	ActionPrint    Action = "print"
	ActionComplete Action = "complete"
)

// Level задаёт важность уведомления.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice — уведомление для оператора.
type Notice struct {
	Level         Level  `json:"level"`
	Message       string `json:"message"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// RowFailure описывает ошибку одной строки.
type RowFailure struct {
	ReservationID string       `json:"reservation_id"`
	PetName       string       `json:"pet_name"`
	Step          string       `json:"step"`
	Kind          failure.Kind `json:"kind"`
	Error         string       `json:"error"`
}

// Receipt — ссылка на печатную квитанцию.
type Receipt struct {
	ReservationID string `json:"reservation_id"`
	InvoiceID     string `json:"invoice_id"`
	URL           string `json:"url"`
}

// Outcome — итог пакетной операции.
type Outcome struct {
	Action    Action       `json:"action"`
	Succeeded []string     `json:"succeeded"`
	Failed    []RowFailure `json:"failed"`
	Notices   []Notice     `json:"notices"`
	Receipts  []Receipt    `json:"receipts,omitempty"`

	names map[string]string
}

func newOutcome(action Action) Outcome {
	return Outcome{
		Action:    action,
		Succeeded: []string{},
		Failed:    []RowFailure{},
		Notices:   []Notice{},
		names:     make(map[string]string),
	}
}

// Processed возвращает число строк, которых коснулась операция.
func (o *Outcome) Processed() int {
	return len(o.Succeeded) + len(o.Failed)
}

// PetName возвращает имя питомца для обработанной строки.
func (o *Outcome) PetName(reservationID string) string {
	return o.names[reservationID]
}

func (o *Outcome) succeed(row Row) {
	o.Succeeded = append(o.Succeeded, row.ReservationID())
	o.names[row.ReservationID()] = row.DisplayName()
}

func (o *Outcome) fail(row Row, step string, err error) {
	o.names[row.ReservationID()] = row.DisplayName()
	o.Failed = append(o.Failed, RowFailure{
		ReservationID: row.ReservationID(),
		PetName:       row.DisplayName(),
		Step:          step,
		Kind:          failure.KindOf(err),
		Error:         err.Error(),
	})
}

func (o *Outcome) notify(level Level, reservationID, message string) {
	o.Notices = append(o.Notices, Notice{Level: level, Message: message, ReservationID: reservationID})
}
