package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

// GetReservation возвращает снимок бронирования.
func (c *Client) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	ok, err := c.do(ctx, http.MethodGet, "/api/reservations/"+escape(id), nil, &res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("backend returned empty reservation")
	}
	return &res, nil
}

// CheckOut переводит бронирование в статус выезда.
func (c *Client) CheckOut(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/reservations/"+escape(id)+"/check-out", nil, nil)
	return err
}
