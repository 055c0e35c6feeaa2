package adapter

import (
	"context"

	"telegram-subscription-billing/internal/domain/model"
)

// ClientAction is what the caller needs to let the user finish the payment:
// a redirect to the card processor's confirmation page or a platform invoice
// link. Empty for providers that complete synchronously (gift).
type ClientAction struct {
	ConfirmationURL string
	InvoiceLink     string
}

// CallbackResult is the parsed, classified outcome of a provider notification
// or a recurring charge attempt. It carries a diff, never an applied write.
type CallbackResult struct {
	// PaymentID is the internal payment id extracted from the provider's
	// correlation field, already validated for shape.
	PaymentID string
	// EventType classifies the notification (provider_response, succeeded,
	// failed, canceled).
	EventType model.PaymentEventType
	// Update is the field diff to merge into the payment row.
	Update model.PaymentUpdate
	// Recurring carries a renewal token saved by the provider, if any.
	Recurring *model.RecurringDetails
	// Raw is the verbatim provider payload for the audit event.
	Raw map[string]any
}

// PaymentProvider is the hex port for payment rails. Implementations must be
// side-effect-free with respect to our own storage: they talk to the provider
// and return diffs, and the orchestrator owns every write. That funnels all
// payments through one locking path no matter how many rails exist.
type PaymentProvider interface {
	ID() model.ProviderID

	// RenewalMode reports whether renewals for this rail are initiated by us
	// (manual), by the platform (managed), or not at all.
	RenewalMode() model.RenewalMode

	// CreatePayment builds a provider-native payment or invoice for p and
	// returns the fields to merge into the row plus the client-facing action.
	CreatePayment(ctx context.Context, p *model.Payment, returnURL string) (*model.PaymentUpdate, *ClientAction, error)

	// ProcessCallback parses a provider webhook body and resolves it to an
	// internal payment id. It must not touch the payments row.
	ProcessCallback(ctx context.Context, raw []byte) (*CallbackResult, error)

	// ChargeRecurring attempts to charge a saved renewal token. The card
	// processor charges synchronously and returns a terminal result; the
	// platform-currency rail cannot push a charge and only reports that a
	// renewal is expected (the real outcome arrives later as a callback).
	ChargeRecurring(ctx context.Context, p *model.Payment, rd *model.RecurringDetails) (*CallbackResult, error)
}
