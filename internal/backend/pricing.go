package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

// Quote запрашивает расчёт у внешнего сервиса тарифов.
func (c *Client) Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error) {
	var q model.Quote
	ok, err := c.do(ctx, http.MethodPost, "/api/pricing/quote", req, &q)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("pricing service returned empty quote")
	}
	return &q, nil
}

// PushPolicy отправляет тарифную таблицу во внешний сервис тарифов.
// При ответе 429 ошибка *StatusError содержит RetryAfter.
func (c *Client) PushPolicy(ctx context.Context, policy *model.Policy) error {
	_, err := c.do(ctx, http.MethodPut, "/api/pricing/policy", policy, nil)
	return err
}
