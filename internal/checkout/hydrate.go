package checkout

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

type lookupResult struct {
	invoice     *model.Invoice
	reservation *model.Reservation
}

// Hydrate подтягивает счета и бронирования, если состав корзины изменился
// с прошлой гидратации. Возвращает число обработанных строк.
func (o *Orchestrator) Hydrate(ctx context.Context) int {
	return o.hydrate(ctx, false)
}

// Refresh принудительно перечитывает счета и бронирования всех строк.
func (o *Orchestrator) Refresh(ctx context.Context) int {
	return o.hydrate(ctx, true)
}

func (o *Orchestrator) hydrate(ctx context.Context, force bool) int {
	o.mu.Lock()
	if !force && o.hydratedAt == o.generation {
		o.mu.Unlock()
		return 0
	}
	o.hydratedAt = o.generation
	o.pass++
	pass := o.pass

	rows := o.store.list()
	items := make([]model.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Item)
		o.store.update(row.ReservationID(), func(r Row) Row { return withHydrating(r, pass) })
	}
	o.mu.Unlock()

	if len(items) == 0 {
		return 0
	}

	results := make([]lookupResult, len(items))
	var g errgroup.Group
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			inv, err := o.billing.FindInvoiceForReservation(ctx, item.ReservationID)
			if err != nil {
				o.logger.Warn("invoice lookup failed",
					zap.String("reservation_id", item.ReservationID),
					zap.Error(err))
				return nil
			}
			results[i].invoice = inv
			return nil
		})
		g.Go(func() error {
			res, err := o.reservations.GetReservation(ctx, item.ReservationID)
			if err != nil {
				o.logger.Warn("reservation lookup failed",
					zap.String("reservation_id", item.ReservationID),
					zap.Error(err))
				return nil
			}
			results[i].reservation = res
			return nil
		})
	}
	_ = g.Wait()

	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, item := range items {
		result := results[i]
		o.store.update(item.ReservationID, func(r Row) Row {
			// Строку могли удалить и добавить заново, пока шли запросы.
			if r.pass != pass {
				return r
			}
			return withLookup(r, result.invoice, result.reservation, result.reservation.IsLate(now))
		})
	}

	o.logger.Debug("cart hydrated", zap.Int("rows", len(items)), zap.Uint64("pass", pass))
	return len(items)
}
