package model

import (
	"time"

	"telegram-subscription-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// RecurringDetails holds the provider-specific renewal token saved after a
// successful recurring-capable payment. Stored as JSONB; only the field for
// the owning provider is populated.
type RecurringDetails struct {
	// SavedMethodID is the card processor's reusable payment-method reference.
	SavedMethodID string `json:"saved_method_id,omitempty"`
	// PlatformManaged marks a Stars subscription the platform renews itself.
	PlatformManaged bool `json:"platform_managed,omitempty"`
	// ExpectedRenewalAt is the platform-announced next renewal, if any.
	ExpectedRenewalAt *time.Time `json:"expected_renewal_at,omitempty"`
}

// Subscription is the entitlement window for a user/product pair.
type Subscription struct {
	ID                   string // UUID
	UserID               string
	ProductID            string
	Provider             ProviderID
	Status               SubscriptionStatus
	Currency             string
	StartDate            time.Time
	EndDate              time.Time
	CanceledAt           *time.Time
	CancellationReason   string
	CancellationFeedback string
	Recurring            *RecurringDetails
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewSubscription creates an active subscription starting now.
func NewSubscription(id, userID, productID string, provider ProviderID, currency string, days int, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || productID == "" || days <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        id,
		UserID:    userID,
		ProductID: productID,
		Provider:  provider,
		Status:    SubscriptionStatusActive,
		Currency:  currency,
		StartDate: now,
		EndDate:   now.Add(time.Duration(days) * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Extend pushes the entitlement window forward by days, counting from
// max(EndDate, now). It never resets StartDate and never shortens the window.
func (s *Subscription) Extend(days int, now time.Time) {
	base := s.EndDate
	if now.After(base) {
		base = now
	}
	s.EndDate = base.Add(time.Duration(days) * 24 * time.Hour)
	s.Status = SubscriptionStatusActive
	s.CanceledAt = nil
	s.CancellationReason = ""
	s.CancellationFeedback = ""
	s.UpdatedAt = now
}

// HasAccess reports whether the user is entitled at t. A canceled
// subscription still grants access until its end date.
func (s *Subscription) HasAccess(t time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusCanceled:
		return t.Before(s.EndDate)
	}
	return false
}
