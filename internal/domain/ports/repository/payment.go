package repository

import (
	"context"

	"telegram-subscription-billing/internal/domain/model"
)

// PaymentRepository persists purchase attempts. Rows are insert/update only;
// nothing here ever deletes a payment.
type PaymentRepository interface {
	Save(ctx context.Context, qx Tx, p *model.Payment) error
	// FindByID loads a payment. When qx carries a live transaction the row is
	// locked with FOR UPDATE; that lock is the sole serialization point for
	// concurrent callbacks on one payment id.
	FindByID(ctx context.Context, qx Tx, id string) (*model.Payment, error)
	FindByProviderPaymentID(ctx context.Context, qx Tx, provider model.ProviderID, providerPaymentID string) (*model.Payment, error)
	SumSucceededByPeriod(ctx context.Context, qx Tx, period string) (int64, error)
}

// PaymentEventRepository is the append-only audit log. Append is the only
// write; events are never updated or deleted.
type PaymentEventRepository interface {
	Append(ctx context.Context, qx Tx, e *model.PaymentEvent) error
	ListByPayment(ctx context.Context, qx Tx, paymentID string) ([]*model.PaymentEvent, error)
}
