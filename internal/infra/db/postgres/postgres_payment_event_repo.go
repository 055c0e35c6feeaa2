package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

var _ repository.PaymentEventRepository = (*paymentEventRepo)(nil)

// paymentEventRepo is append-only: INSERT and SELECT, no UPDATE or DELETE
// statements exist against payment_events anywhere in this package.
type paymentEventRepo struct{ pool *pgxpool.Pool }

func NewPaymentEventRepo(pool *pgxpool.Pool) *paymentEventRepo {
	return &paymentEventRepo{pool: pool}
}

func (r *paymentEventRepo) Append(ctx context.Context, qx repository.Tx, e *model.PaymentEvent) error {
	const q = `
INSERT INTO payment_events (id, payment_id, provider, event_type, is_recurring, raw_data, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, qx, q, e.ID, e.PaymentID, e.Provider, e.EventType, e.IsRecurring, e.RawData, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentEventRepo) ListByPayment(ctx context.Context, qx repository.Tx, paymentID string) ([]*model.PaymentEvent, error) {
	const q = `
SELECT id, payment_id, provider, event_type, is_recurring, raw_data, created_at
  FROM payment_events
 WHERE payment_id=$1
 ORDER BY id ASC;`

	rows, err := queryRows(ctx, r.pool, qx, q, paymentID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentEvent
	for rows.Next() {
		e := new(model.PaymentEvent)
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Provider, &e.EventType, &e.IsRecurring, &e.RawData, &e.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}
