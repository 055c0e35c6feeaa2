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

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, product_id, provider, status, currency, start_date, end_date, canceled_at, cancellation_reason, cancellation_feedback, recurring_details, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, qx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, product_id, provider, status, currency, start_date, end_date, canceled_at, cancellation_reason, cancellation_feedback, recurring_details, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=$5, end_date=$8, canceled_at=$9, cancellation_reason=$10, cancellation_feedback=$11, recurring_details=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, qx, q,
		s.ID, s.UserID, s.ProductID, s.Provider, s.Status, s.Currency,
		s.StartDate, s.EndDate, s.CanceledAt, s.CancellationReason, s.CancellationFeedback,
		s.Recurring, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(qx) {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.queryOne(ctx, qx, q, id)
}

func (r *subscriptionRepo) FindCurrentByUserAndProduct(ctx context.Context, qx repository.Tx, userID, productID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND product_id=$2 AND status IN ('active','canceled','pending')
 ORDER BY end_date DESC
 LIMIT 1;`
	return r.queryOne(ctx, qx, q, userID, productID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1
 ORDER BY created_at DESC;`
	return r.queryMany(ctx, qx, q, userID)
}

func (r *subscriptionRepo) ListExpiring(ctx context.Context, qx repository.Tx, until time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='active' AND end_date <= $1
 ORDER BY end_date ASC
 LIMIT $2;`
	return r.queryMany(ctx, qx, q, until, limit)
}

func (r *subscriptionRepo) ListOutdated(ctx context.Context, qx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status IN ('active','canceled') AND end_date <= $1
 ORDER BY end_date ASC
 LIMIT $2;`
	return r.queryMany(ctx, qx, q, now, limit)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, qx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, qx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status model.SubscriptionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[status] = count
	}
	return out, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, qx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, qx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, qx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, qx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.ProductID, &s.Provider, &s.Status, &s.Currency,
		&s.StartDate, &s.EndDate, &s.CanceledAt, &s.CancellationReason, &s.CancellationFeedback,
		&s.Recurring, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
