package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

var _ repository.FailedWebhookRepository = (*failedWebhookRepo)(nil)

type failedWebhookRepo struct{ pool *pgxpool.Pool }

func NewFailedWebhookRepo(pool *pgxpool.Pool) *failedWebhookRepo {
	return &failedWebhookRepo{pool: pool}
}

const failedWebhookColumns = `id, provider, payload, error_message, error_type, retry_count, created_at, resolved_at`

func (r *failedWebhookRepo) Save(ctx context.Context, qx repository.Tx, fw *model.FailedWebhook) error {
	const q = `
INSERT INTO failed_webhooks (id, provider, payload, error_message, error_type, retry_count, created_at, resolved_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, qx, q, fw.ID, fw.Provider, fw.Payload, fw.ErrorMessage, fw.ErrorType, fw.RetryCount, fw.CreatedAt, fw.ResolvedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *failedWebhookRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.FailedWebhook, error) {
	const q = `SELECT ` + failedWebhookColumns + ` FROM failed_webhooks WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanFailedWebhook(row)
}

func (r *failedWebhookRepo) ListUnresolved(ctx context.Context, qx repository.Tx, limit int) ([]*model.FailedWebhook, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + failedWebhookColumns + `
  FROM failed_webhooks
 WHERE resolved_at IS NULL
 ORDER BY created_at ASC
 LIMIT $1;`

	rows, err := queryRows(ctx, r.pool, qx, q, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.FailedWebhook
	for rows.Next() {
		fw, err := scanFailedWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fw)
	}
	return out, nil
}

func (r *failedWebhookRepo) MarkResolved(ctx context.Context, qx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE failed_webhooks SET resolved_at=$2 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, at)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *failedWebhookRepo) IncrementRetry(ctx context.Context, qx repository.Tx, id string) error {
	const q = `UPDATE failed_webhooks SET retry_count=retry_count+1 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func scanFailedWebhook(row pgx.Row) (*model.FailedWebhook, error) {
	fw := &model.FailedWebhook{}
	err := row.Scan(&fw.ID, &fw.Provider, &fw.Payload, &fw.ErrorMessage, &fw.ErrorType, &fw.RetryCount, &fw.CreatedAt, &fw.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return fw, nil
}
