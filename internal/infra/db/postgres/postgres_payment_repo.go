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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, product_id, provider, amount, currency, status, subscription_id, is_recurring, was_rewarded, provider_payment_id, provider_metadata, created_at, updated_at, paid_at`

func (r *paymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, product_id, provider, amount, currency, status, subscription_id, is_recurring, was_rewarded, provider_payment_id, provider_metadata, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  status=$7, subscription_id=$8, was_rewarded=$10, provider_payment_id=$11, provider_metadata=$12, updated_at=$14, paid_at=$15;`

	_, err := execSQL(ctx, r.pool, qx, q,
		p.ID, p.UserID, p.ProductID, p.Provider, p.Amount, p.Currency, p.Status,
		p.SubscriptionID, p.IsRecurring, p.WasRewarded, p.ProviderPaymentID,
		p.ProviderMetadata, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// FindByID loads a payment; inside a transaction the row is taken FOR UPDATE,
// which serializes concurrent callbacks for the same payment id.
func (r *paymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(qx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByProviderPaymentID(ctx context.Context, qx repository.Tx, provider model.ProviderID, providerPaymentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider=$1 AND provider_payment_id=$2 LIMIT 1`
	if inTx(qx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, provider, providerPaymentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) SumSucceededByPeriod(ctx context.Context, qx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status='succeeded' AND paid_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, qx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(&p.ID, &p.UserID, &p.ProductID, &p.Provider, &p.Amount, &p.Currency, &p.Status,
		&p.SubscriptionID, &p.IsRecurring, &p.WasRewarded, &p.ProviderPaymentID,
		&p.ProviderMetadata, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
