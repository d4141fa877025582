// Package service связывает расчёт стоимости, корзину выезда, журнал и синхронизацию тарифов.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/backend"
	"github.com/mmeshcher/frontdesk-checkout/internal/checkout"
	"github.com/mmeshcher/frontdesk-checkout/internal/metrics"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
	"github.com/mmeshcher/frontdesk-checkout/internal/pricing"
	"github.com/mmeshcher/frontdesk-checkout/internal/repository"
)

// ErrJournalDisabled возвращается, если хранилище журнала не настроено.
var ErrJournalDisabled = errors.New("checkout journal is not configured")

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	policyPushBatch  = 10
)

// Результаты строк в журнале.
const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	SaveCheckoutRun(ctx context.Context, run model.CheckoutRun) error
	ListCheckoutRuns(ctx context.Context, limit int) ([]model.CheckoutRun, error)
	SavePolicy(ctx context.Context, policy model.Policy) error
	LatestPolicy(ctx context.Context) (*model.Policy, error)
	GetPoliciesForPush(ctx context.Context, limit int) ([]model.Policy, error)
	MarkPolicyPushed(ctx context.Context, version string, at time.Time) error
}

// PolicyPusher отправляет тарифы во внешний сервис расчёта.
type PolicyPusher interface {
	PushPolicy(ctx context.Context, policy *model.Policy) error
}

// Service содержит бизнес-логику стойки выезда.
type Service struct {
	repo    Repository
	quoter  *pricing.Quoter
	desk    *checkout.Orchestrator
	pusher  PolicyPusher
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService создаёт сервис. repo и pusher могут быть nil: тогда журнал и синхронизация тарифов отключены.
func NewService(repo Repository, quoter *pricing.Quoter, desk *checkout.Orchestrator, pusher PolicyPusher, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		quoter:  quoter,
		desk:    desk,
		pusher:  pusher,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Quote рассчитывает стоимость пребывания.
func (s *Service) Quote(ctx context.Context, req model.QuoteRequest) (model.Quote, error) {
	q, err := s.quoter.Quote(ctx, req)
	if err != nil {
		return model.Quote{}, err
	}
	s.metrics.IncQuote(q.Meta.Source)
	return q, nil
}

// Policy возвращает действующую тарифную таблицу.
func (s *Service) Policy() *model.Policy {
	return s.quoter.Policy()
}

// PublishPolicy проверяет и сохраняет новую версию тарифов, после чего она сразу
// начинает действовать. Отправка во внешний сервис выполняется фоновым процессом.
func (s *Service) PublishPolicy(ctx context.Context, p *model.Policy) error {
	if err := pricing.ValidatePolicy(p); err != nil {
		return err
	}

	if s.repo != nil {
		if err := s.repo.SavePolicy(ctx, *p); err != nil {
			return err
		}
	} else if current := s.quoter.Policy(); current != nil && current.Version == p.Version {
		return fmt.Errorf("%w: %s", repository.ErrPolicyVersionExists, p.Version)
	}

	s.applyPolicy(p)
	s.logger.Info("pricing policy published", zap.String("version", p.Version))
	return nil
}

// RestorePolicy подхватывает последнюю опубликованную версию тарифов из хранилища.
func (s *Service) RestorePolicy(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	p, err := s.repo.LatestPolicy(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return nil
		}
		return err
	}
	if err := pricing.ValidatePolicy(p); err != nil {
		return fmt.Errorf("stored policy %s: %w", p.Version, err)
	}
	s.applyPolicy(p)
	s.logger.Info("pricing policy restored", zap.String("version", p.Version))
	return nil
}

func (s *Service) applyPolicy(p *model.Policy) {
	s.quoter.SetPolicy(p)
	s.desk.SetLateFeeAmount(p.Fees.LatePickup)
}

// Cart возвращает строки корзины, подтягивая данные, если состав корзины изменился.
func (s *Service) Cart(ctx context.Context) []checkout.Row {
	s.desk.Hydrate(ctx)
	return s.desk.Rows()
}

// RefreshCart принудительно перечитывает счета и бронирования.
func (s *Service) RefreshCart(ctx context.Context) []checkout.Row {
	s.desk.Refresh(ctx)
	return s.desk.Rows()
}

// CheckOutSelected выписывает выбранные бронирования.
func (s *Service) CheckOutSelected(ctx context.Context) checkout.Outcome {
	out, _ := s.runAction(ctx, checkout.ActionCheckOut, func() (checkout.Outcome, error) {
		return s.desk.CheckOutSelected(ctx), nil
	})
	return out
}

// CaptureCard списывает оплату картой по выбранным счетам.
func (s *Service) CaptureCard(ctx context.Context) checkout.Outcome {
	out, _ := s.runAction(ctx, checkout.ActionCapture, func() (checkout.Outcome, error) {
		return s.desk.CaptureCard(ctx), nil
	})
	return out
}

// RecordCash регистрирует оплату наличными по выбранным счетам.
func (s *Service) RecordCash(ctx context.Context, amount *decimal.Decimal) (checkout.Outcome, error) {
	return s.runAction(ctx, checkout.ActionCash, func() (checkout.Outcome, error) {
		return s.desk.RecordCash(ctx, amount)
	})
}

// PartialRefund выполняет частичный возврат по выбранным счетам.
func (s *Service) PartialRefund(ctx context.Context, amount decimal.Decimal) (checkout.Outcome, error) {
	return s.runAction(ctx, checkout.ActionRefund, func() (checkout.Outcome, error) {
		return s.desk.PartialRefund(ctx, amount)
	})
}

// EmailReceipts отправляет квитанции по выбранным счетам.
func (s *Service) EmailReceipts(ctx context.Context) checkout.Outcome {
	out, _ := s.runAction(ctx, checkout.ActionEmail, func() (checkout.Outcome, error) {
		return s.desk.EmailReceipts(ctx), nil
	})
	return out
}

// PrintReceipts возвращает ссылки на квитанции по выбранным счетам.
func (s *Service) PrintReceipts(ctx context.Context) checkout.Outcome {
	out, _ := s.runAction(ctx, checkout.ActionPrint, func() (checkout.Outcome, error) {
		return s.desk.PrintReceipts(ctx), nil
	})
	return out
}

// CompleteCheckout проводит полный выезд выбранных строк.
func (s *Service) CompleteCheckout(ctx context.Context, settings checkout.Settings) (checkout.Outcome, error) {
	return s.runAction(ctx, checkout.ActionComplete, func() (checkout.Outcome, error) {
		return s.desk.CompleteCheckout(ctx, settings)
	})
}

// runAction подтягивает строки, выполняет операцию, пишет метрики и журнал.
// Ошибка записи журнала не влияет на результат операции.
func (s *Service) runAction(ctx context.Context, action checkout.Action, fn func() (checkout.Outcome, error)) (checkout.Outcome, error) {
	s.desk.Hydrate(ctx)

	started := s.now()
	out, err := fn()
	if err != nil {
		s.logger.Info("checkout action rejected", zap.String("action", string(action)), zap.Error(err))
		return out, err
	}
	finished := s.now()

	s.metrics.ObserveAction(string(action), finished.Sub(started), len(out.Succeeded), len(out.Failed))
	s.logger.Info("checkout action finished",
		zap.String("action", string(action)),
		zap.Int("succeeded", len(out.Succeeded)),
		zap.Int("failed", len(out.Failed)),
		zap.Duration("elapsed", finished.Sub(started)))

	if s.repo == nil || out.Processed() == 0 {
		return out, nil
	}

	run := journalRun(action, out, started, finished)
	if err := s.repo.SaveCheckoutRun(ctx, run); err != nil {
		s.logger.Warn("failed to write checkout journal",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
	}
	return out, nil
}

func journalRun(action checkout.Action, out checkout.Outcome, started, finished time.Time) model.CheckoutRun {
	run := model.CheckoutRun{
		ID:         uuid.New(),
		Action:     string(action),
		StartedAt:  started,
		FinishedAt: finished,
		Rows:       make([]model.CheckoutRunRow, 0, out.Processed()),
	}
	for _, id := range out.Succeeded {
		run.Rows = append(run.Rows, model.CheckoutRunRow{
			ReservationID: id,
			PetName:       out.PetName(id),
			Result:        ResultSucceeded,
		})
	}
	for _, f := range out.Failed {
		run.Rows = append(run.Rows, model.CheckoutRunRow{
			ReservationID: f.ReservationID,
			PetName:       f.PetName,
			Result:        ResultFailed,
			Error:         f.Error,
		})
	}
	return run
}

// ListCheckoutRuns возвращает последние записи журнала.
func (s *Service) ListCheckoutRuns(ctx context.Context, limit int) ([]model.CheckoutRun, error) {
	if s.repo == nil {
		return nil, ErrJournalDisabled
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	return s.repo.ListCheckoutRuns(ctx, limit)
}

// StartPolicySync запускает фоновую отправку опубликованных версий тарифов во внешний сервис.
func (s *Service) StartPolicySync(ctx context.Context, interval time.Duration) {
	if s.pusher == nil || s.repo == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processPolicyBatch(ctx)
			}
		}
	}()
}

func (s *Service) processPolicyBatch(ctx context.Context) {
	policies, err := s.repo.GetPoliciesForPush(ctx, policyPushBatch)
	if err != nil {
		s.logger.Warn("failed to load policies for push", zap.Error(err))
		return
	}

	for i := range policies {
		p := &policies[i]
		err := s.pusher.PushPolicy(ctx, p)
		if err != nil {
			var se *backend.StatusError
			if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
				s.logger.Info("pricing service throttled policy push",
					zap.String("version", p.Version),
					zap.Duration("retry_after", se.RetryAfter))
				if se.RetryAfter > 0 {
					timer := time.NewTimer(se.RetryAfter)
					select {
					case <-ctx.Done():
						timer.Stop()
					case <-timer.C:
					}
				}
				return
			}
			s.logger.Warn("policy push failed", zap.String("version", p.Version), zap.Error(err))
			continue
		}

		if err := s.repo.MarkPolicyPushed(ctx, p.Version, s.now()); err != nil {
			s.logger.Warn("failed to mark policy pushed", zap.String("version", p.Version), zap.Error(err))
		}
	}
}
