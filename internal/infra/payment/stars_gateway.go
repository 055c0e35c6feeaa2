package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentProvider = (*StarsGateway)(nil)

// invoiceAPI is the slice of the bot client the gateway needs; the concrete
// implementation is *tgbotapi.BotAPI.
type invoiceAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// StarsGateway implements the platform-currency rail (Telegram Stars, XTR).
// Invoices are created through the Bot API; the platform renews subscriptions
// on its own schedule, so ChargeRecurring only records that a renewal is
// expected.
type StarsGateway struct {
	bot invoiceAPI
}

func NewStarsGateway(bot invoiceAPI) *StarsGateway {
	return &StarsGateway{bot: bot}
}

func (g *StarsGateway) ID() model.ProviderID { return model.ProviderStars }

func (g *StarsGateway) RenewalMode() model.RenewalMode { return model.RenewalManaged }

const payloadPrefix = "payment_"

// StarsInvoicePayload is the correlation string embedded in the invoice.
func StarsInvoicePayload(paymentID string) string { return payloadPrefix + paymentID }

// ParseStarsInvoicePayload extracts and validates the internal payment id
// from an invoice payload. Malformed payloads are a permanent error.
func ParseStarsInvoicePayload(payload string) (string, error) {
	id, ok := strings.CutPrefix(payload, payloadPrefix)
	if !ok {
		return "", fmt.Errorf("%w: invoice payload %q", domain.ErrMalformedPayload, payload)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: invoice payload %q", domain.ErrMalformedPayload, payload)
	}
	return id, nil
}

func (g *StarsGateway) CreatePayment(ctx context.Context, p *model.Payment, returnURL string) (*model.PaymentUpdate, *adapter.ClientAction, error) {
	prices, err := json.Marshal([]map[string]any{{"label": p.ProductID, "amount": p.Amount}})
	if err != nil {
		return nil, nil, err
	}
	params := tgbotapi.Params{
		"title":       fmt.Sprintf("Purchase %s", p.ProductID),
		"description": fmt.Sprintf("Purchase %s", p.ProductID),
		"payload":     StarsInvoicePayload(p.ID),
		"currency":    "XTR",
		"prices":      string(prices),
	}
	// Stars subscriptions renew monthly; the period is fixed by the platform.
	if v, ok := p.ProviderMetadata["product_recurring"].(bool); ok && v {
		params["subscription_period"] = "2592000"
	}

	resp, err := g.bot.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return nil, nil, fmt.Errorf("createInvoiceLink: %w", err)
	}
	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return nil, nil, fmt.Errorf("createInvoiceLink result: %w", err)
	}

	update := &model.PaymentUpdate{
		Status:   model.PaymentStatusWaitingForAction,
		Metadata: map[string]any{"invoice_link": link},
	}
	return update, &adapter.ClientAction{InvoiceLink: link}, nil
}

// starsNotification is the successful-payment notification relayed from the
// bot update stream.
type starsNotification struct {
	InvoicePayload             string `json:"invoice_payload"`
	TelegramPaymentChargeID    string `json:"telegram_payment_charge_id"`
	TotalAmount                int64  `json:"total_amount"`
	Currency                   string `json:"currency"`
	IsRecurring                bool   `json:"is_recurring"`
	IsFirstRecurring           bool   `json:"is_first_recurring"`
	SubscriptionExpirationDate int64  `json:"subscription_expiration_date"`
}

func (g *StarsGateway) ProcessCallback(ctx context.Context, raw []byte) (*adapter.CallbackResult, error) {
	var n starsNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	paymentID, err := ParseStarsInvoicePayload(n.InvoicePayload)
	if err != nil {
		return nil, err
	}

	chargeID := n.TelegramPaymentChargeID
	res := &adapter.CallbackResult{
		PaymentID: paymentID,
		EventType: model.PaymentEventSucceeded,
		Update: model.PaymentUpdate{
			Status:            model.PaymentStatusSucceeded,
			ProviderPaymentID: &chargeID,
			Metadata:          map[string]any{"total_amount": n.TotalAmount, "currency": n.Currency},
		},
		Raw: rawAsMap(raw),
	}
	if n.IsRecurring || n.SubscriptionExpirationDate > 0 {
		rd := &model.RecurringDetails{PlatformManaged: true}
		if n.SubscriptionExpirationDate > 0 {
			t := time.Unix(n.SubscriptionExpirationDate, 0).UTC()
			rd.ExpectedRenewalAt = &t
		}
		res.Recurring = rd
	}
	return res, nil
}

// ChargeRecurring cannot push a charge: the platform auto-renews on its own
// schedule. It only marks the renewal as expected; the real outcome arrives
// later as an ordinary callback.
func (g *StarsGateway) ChargeRecurring(ctx context.Context, p *model.Payment, rd *model.RecurringDetails) (*adapter.CallbackResult, error) {
	return &adapter.CallbackResult{
		PaymentID: p.ID,
		EventType: model.PaymentEventProviderResponse,
		Update:    model.PaymentUpdate{Status: model.PaymentStatusWaitingForAction},
		Raw:       map[string]any{"renewal_expected": true},
	}, nil
}
