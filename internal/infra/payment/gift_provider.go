package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentProvider = (*GiftProvider)(nil)

// GiftProvider backs admin-granted entitlements. No money moves and no
// external service is involved: a grant is submitted as an internal callback
// so the reward still runs through the orchestrator's single locking path.
type GiftProvider struct{}

func NewGiftProvider() *GiftProvider { return &GiftProvider{} }

func (g *GiftProvider) ID() model.ProviderID { return model.ProviderGift }

func (g *GiftProvider) RenewalMode() model.RenewalMode { return model.RenewalNone }

func (g *GiftProvider) CreatePayment(ctx context.Context, p *model.Payment, returnURL string) (*model.PaymentUpdate, *adapter.ClientAction, error) {
	return &model.PaymentUpdate{Status: model.PaymentStatusWaitingForAction}, &adapter.ClientAction{}, nil
}

type giftGrant struct {
	PaymentID string `json:"payment_id"`
	GrantedBy string `json:"granted_by"`
}

func (g *GiftProvider) ProcessCallback(ctx context.Context, raw []byte) (*adapter.CallbackResult, error) {
	var grant giftGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	if _, err := uuid.Parse(grant.PaymentID); err != nil {
		return nil, fmt.Errorf("%w: payment_id %q", domain.ErrMalformedPayload, grant.PaymentID)
	}
	return &adapter.CallbackResult{
		PaymentID: grant.PaymentID,
		EventType: model.PaymentEventSucceeded,
		Update:    model.PaymentUpdate{Status: model.PaymentStatusSucceeded},
		Raw:       map[string]any{"granted_by": grant.GrantedBy},
	}, nil
}

func (g *GiftProvider) ChargeRecurring(ctx context.Context, p *model.Payment, rd *model.RecurringDetails) (*adapter.CallbackResult, error) {
	return nil, fmt.Errorf("%w: gift entitlements do not renew", domain.ErrInvalidArgument)
}
