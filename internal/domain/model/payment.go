package model

import "time"

type ProviderID string

const (
	ProviderYooKassa ProviderID = "yookassa" // redirect-based card processor
	ProviderStars    ProviderID = "stars"    // Telegram Stars (platform currency)
	ProviderGift     ProviderID = "gift"     // admin-granted entitlement, no money moves
)

// RenewalMode describes who initiates a recurring charge for a provider.
type RenewalMode int

const (
	// RenewalNone means the provider never participates in renewals (gift).
	RenewalNone RenewalMode = iota
	// RenewalManual means we initiate the charge against a saved method.
	RenewalManual
	// RenewalManaged means the platform auto-renews on its own schedule and
	// we only observe the eventual notification.
	RenewalManaged
)

type PaymentStatus string

const (
	PaymentStatusCreated          PaymentStatus = "created"
	PaymentStatusWaitingForAction PaymentStatus = "waiting_for_action"
	PaymentStatusSucceeded        PaymentStatus = "succeeded"
	PaymentStatusFailed           PaymentStatus = "failed"
	PaymentStatusCanceled         PaymentStatus = "canceled"
)

// Terminal reports whether no further status transition is permitted.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// Payment records a single purchase attempt. Rows are never deleted; they are
// the permanent audit trail of everything we ever asked a provider to charge.
type Payment struct {
	ID                string // UUID
	UserID            string
	ProductID         string
	Provider          ProviderID
	Amount            int64 // minor units of Currency (kopeks, stars)
	Currency          string
	Status            PaymentStatus
	SubscriptionID    *string // set once the reward created/extended a subscription
	IsRecurring       bool    // false only for a subscription's first payment
	WasRewarded       bool    // flipped false->true exactly once, with the SUCCEEDED write
	ProviderPaymentID *string // assigned once the provider accepts the payment
	ProviderMetadata  map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
}

// PaymentUpdate is the diff a provider adapter returns. Adapters never write
// the payments row themselves; every write funnels through the orchestrator's
// locked update path.
type PaymentUpdate struct {
	Status            PaymentStatus
	ProviderPaymentID *string
	Metadata          map[string]any // merged into ProviderMetadata
}

// Apply merges the diff into p. Status transitions are validated by the
// orchestrator before Apply is called, not here.
func (u *PaymentUpdate) Apply(p *Payment, now time.Time) {
	p.Status = u.Status
	if u.ProviderPaymentID != nil {
		p.ProviderPaymentID = u.ProviderPaymentID
	}
	if len(u.Metadata) > 0 {
		if p.ProviderMetadata == nil {
			p.ProviderMetadata = make(map[string]any, len(u.Metadata))
		}
		for k, v := range u.Metadata {
			p.ProviderMetadata[k] = v
		}
	}
	if u.Status == PaymentStatusSucceeded && p.PaidAt == nil {
		t := now
		p.PaidAt = &t
	}
	p.UpdatedAt = now
}
