package model

import "time"

type PaymentEventType string

const (
	PaymentEventCreated          PaymentEventType = "created"
	PaymentEventInitiated        PaymentEventType = "initiated"
	PaymentEventProviderResponse PaymentEventType = "provider_response"
	PaymentEventSucceeded        PaymentEventType = "succeeded"
	PaymentEventFailed           PaymentEventType = "failed"
	PaymentEventCanceled         PaymentEventType = "canceled"
)

// TargetStatus maps a callback classification to the payment status it would
// produce. Non-terminal classifications keep the payment waiting.
func (t PaymentEventType) TargetStatus() PaymentStatus {
	switch t {
	case PaymentEventSucceeded:
		return PaymentStatusSucceeded
	case PaymentEventFailed:
		return PaymentStatusFailed
	case PaymentEventCanceled:
		return PaymentStatusCanceled
	default:
		return PaymentStatusWaitingForAction
	}
}

// PaymentEvent is one row of the append-only payment audit log. A row is
// written for every transition attempt, including rejected duplicates, and is
// never updated or deleted.
type PaymentEvent struct {
	ID          string // ULID, lexicographically ordered by creation time
	PaymentID   string
	Provider    ProviderID
	EventType   PaymentEventType
	IsRecurring bool
	RawData     map[string]any // verbatim provider payload or internal context
	CreatedAt   time.Time
}
