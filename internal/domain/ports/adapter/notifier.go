package adapter

import "context"

// AdminNotifier broadcasts monitoring messages (purchases, renewals, expiry
// batches, webhook failures) to operators. Fire-and-forget: callers log the
// returned error and move on, a broken notifier must never fail a payment.
type AdminNotifier interface {
	Notify(ctx context.Context, text string) error
	// NotifyCritical marks incidents that need immediate operator attention
	// (signature failures, infrastructure outages).
	NotifyCritical(ctx context.Context, text string) error
}
