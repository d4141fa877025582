package pricing

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/fallback"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

const defaultRemoteTimeout = 2 * time.Second

// RemotePricer описывает внешний сервис расчёта с тем же контрактом, что и локальный движок.
type RemotePricer interface {
	Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error)
}

// Quoter сначала обращается к внешнему сервису расчёта, а при его недоступности считает локально.
type Quoter struct {
	policy  atomic.Pointer[model.Policy]
	remote  RemotePricer
	timeout time.Duration
	logger  *zap.Logger
}

// NewQuoter создаёт расчётчик. remote может быть nil — тогда используется только локальный движок.
func NewQuoter(policy *model.Policy, remote RemotePricer, timeout time.Duration, logger *zap.Logger) *Quoter {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Quoter{
		remote:  remote,
		timeout: timeout,
		logger:  logger,
	}
	q.policy.Store(policy)
	return q
}

// Policy возвращает действующую тарифную таблицу.
func (q *Quoter) Policy() *model.Policy {
	return q.policy.Load()
}

// SetPolicy заменяет действующую тарифную таблицу.
func (q *Quoter) SetPolicy(p *model.Policy) {
	q.policy.Store(p)
}

// Quote рассчитывает стоимость. Ошибка внешнего сервиса не видна вызывающему,
// если локальный расчёт успешен.
func (q *Quoter) Quote(ctx context.Context, req model.QuoteRequest) (model.Quote, error) {
	if req.Service != model.ServiceDaycare && req.Service != model.ServiceBoarding {
		return model.Quote{}, failure.Newf(failure.KindValidation, "unknown service kind %q", req.Service)
	}

	policy := q.policy.Load()

	strategies := make([]fallback.Strategy[model.Quote], 0, 2)
	if q.remote != nil {
		strategies = append(strategies, fallback.Strategy[model.Quote]{
			Name: model.QuoteSourceRemote,
			Run: func(ctx context.Context) (model.Quote, error) {
				remoteCtx, cancel := context.WithTimeout(ctx, q.timeout)
				defer cancel()

				res, err := q.remote.Quote(remoteCtx, req)
				if err != nil {
					q.logger.Warn("remote pricing unavailable, using local engine", zap.Error(err))
					return model.Quote{}, err
				}
				if res == nil {
					return model.Quote{}, errors.New("remote pricing returned empty quote")
				}
				res.Meta.Source = model.QuoteSourceRemote
				return *res, nil
			},
		})
	}
	strategies = append(strategies, fallback.Strategy[model.Quote]{
		Name: model.QuoteSourceLocal,
		Run: func(context.Context) (model.Quote, error) {
			return CalcQuote(policy, req)
		},
	})

	quote, _, err := fallback.First(ctx, strategies...)
	if err != nil {
		var exhausted *fallback.ExhaustedError
		if errors.As(err, &exhausted) && len(exhausted.Attempts) > 0 {
			// Локальный движок идёт последним, его ошибка и есть ответ.
			return model.Quote{}, exhausted.Attempts[len(exhausted.Attempts)-1].Err
		}
		return model.Quote{}, err
	}
	return quote, nil
}
