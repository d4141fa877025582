// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrPolicyVersionExists возвращается при повторной публикации версии тарифов.
	ErrPolicyVersionExists = errors.New("policy version already exists")
	// ErrPolicyNotFound возвращается, если в хранилище нет ни одной версии тарифов.
	ErrPolicyNotFound = errors.New("policy not found")
)

var defaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository предоставляет доступ к журналу выездов и версиям тарифов в PostgreSQL.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	retryDelays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool, retryDelays: defaultRetryDelays}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при сериализационных конфликтах, дедлоках и обрывах соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(r.retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.retryDelays) {
			break
		}

		timer := time.NewTimer(r.retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// SaveCheckoutRun записывает пакетную операцию и результаты её строк одной транзакцией.
func (r *PostgresRepository) SaveCheckoutRun(ctx context.Context, run model.CheckoutRun) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO checkout_runs (id, action, started_at, finished_at) VALUES ($1, $2, $3, $4)`,
			run.ID, run.Action, run.StartedAt, run.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert checkout run: %w", err)
		}

		if len(run.Rows) > 0 {
			_, err = tx.CopyFrom(ctx,
				pgx.Identifier{"checkout_run_rows"},
				[]string{"run_id", "position", "reservation_id", "pet_name", "result", "error"},
				pgx.CopyFromSlice(len(run.Rows), func(i int) ([]any, error) {
					row := run.Rows[i]
					return []any{run.ID, i, row.ReservationID, row.PetName, row.Result, row.Error}, nil
				}),
			)
			if err != nil {
				return fmt.Errorf("copy checkout run rows: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// ListCheckoutRuns возвращает последние пакетные операции вместе со строками.
func (r *PostgresRepository) ListCheckoutRuns(ctx context.Context, limit int) ([]model.CheckoutRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, action, started_at, finished_at
		 FROM checkout_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select checkout runs: %w", err)
	}
	defer rows.Close()

	var (
		runs  []model.CheckoutRun
		ids   []string
		index = make(map[uuid.UUID]int)
	)
	for rows.Next() {
		var run model.CheckoutRun
		if err := rows.Scan(&run.ID, &run.Action, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan checkout run: %w", err)
		}
		run.Rows = []model.CheckoutRunRow{}
		index[run.ID] = len(runs)
		runs = append(runs, run)
		ids = append(ids, run.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	detail, err := r.pool.Query(ctx,
		`SELECT run_id, reservation_id, pet_name, result, error
		 FROM checkout_run_rows
		 WHERE run_id = ANY($1::uuid[])
		 ORDER BY run_id, position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select checkout run rows: %w", err)
	}
	defer detail.Close()

	for detail.Next() {
		var (
			runID uuid.UUID
			row   model.CheckoutRunRow
		)
		if err := detail.Scan(&runID, &row.ReservationID, &row.PetName, &row.Result, &row.Error); err != nil {
			return nil, fmt.Errorf("scan checkout run row: %w", err)
		}
		if i, ok := index[runID]; ok {
			runs[i].Rows = append(runs[i].Rows, row)
		}
	}
	if err := detail.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return runs, nil
}

// SavePolicy сохраняет новую версию тарифов. Версия не отмечена как отправленная.
func (r *PostgresRepository) SavePolicy(ctx context.Context, policy model.Policy) error {
	body, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO pricing_policies (version, body) VALUES ($1, $2)`,
		policy.Version, body,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrPolicyVersionExists, policy.Version)
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// LatestPolicy возвращает последнюю сохранённую версию тарифов.
func (r *PostgresRepository) LatestPolicy(ctx context.Context) (*model.Policy, error) {
	var body []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM pricing_policies ORDER BY created_at DESC LIMIT 1`,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("select policy: %w", err)
	}

	var p model.Policy
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return &p, nil
}

// GetPoliciesForPush возвращает версии тарифов, ещё не отправленные в удалённый сервис расчёта.
func (r *PostgresRepository) GetPoliciesForPush(ctx context.Context, limit int) ([]model.Policy, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT body
		 FROM pricing_policies
		 WHERE pushed_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select policies for push: %w", err)
	}
	defer rows.Close()

	var res []model.Policy
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		var p model.Policy
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode policy: %w", err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkPolicyPushed отмечает версию тарифов как отправленную.
func (r *PostgresRepository) MarkPolicyPushed(ctx context.Context, version string, at time.Time) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE pricing_policies SET pushed_at = $2 WHERE version = $1`,
			version, at,
		)
		if err != nil {
			return fmt.Errorf("mark policy pushed: %w", err)
		}
		return nil
	})
}
