package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentProvider = (*YooKassaGateway)(nil)

// YooKassaGateway implements the redirect-based card processor rail using
// direct HTTP calls to the YooKassa v3 API.
type YooKassaGateway struct {
	shopID    string
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewYooKassaGateway(shopID, secretKey, baseURL string) *YooKassaGateway {
	if baseURL == "" {
		baseURL = "https://api.yookassa.ru/v3"
	}
	return &YooKassaGateway{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *YooKassaGateway) ID() model.ProviderID { return model.ProviderYooKassa }

func (g *YooKassaGateway) RenewalMode() model.RenewalMode { return model.RenewalManual }

// yooKassaAmount is the API's decimal-string money representation.
type yooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func toAmount(minor int64, currency string) yooKassaAmount {
	return yooKassaAmount{Value: fmt.Sprintf("%d.%02d", minor/100, minor%100), Currency: currency}
}

type yooKassaPaymentMethod struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

type yooKassaPaymentObject struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation *struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation,omitempty"`
	PaymentMethod *yooKassaPaymentMethod `json:"payment_method,omitempty"`
	Metadata      map[string]string      `json:"metadata,omitempty"`
}

func (g *YooKassaGateway) CreatePayment(ctx context.Context, p *model.Payment, returnURL string) (*model.PaymentUpdate, *adapter.ClientAction, error) {
	body := map[string]any{
		"amount":  toAmount(p.Amount, p.Currency),
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": returnURL,
		},
		"description": fmt.Sprintf("Purchase %s", p.ProductID),
		// Correlation convention: the internal payment id travels in metadata
		// and comes back verbatim in every notification.
		"metadata": map[string]string{"payment_id": p.ID},
	}
	// A recurring product's first payment saves the method for later charges.
	if v, ok := p.ProviderMetadata["product_recurring"].(bool); ok && v {
		body["save_payment_method"] = true
	}

	obj, err := g.call(ctx, body, p.ID)
	if err != nil {
		return nil, nil, err
	}

	pid := obj.ID
	update := &model.PaymentUpdate{
		Status:            model.PaymentStatusWaitingForAction,
		ProviderPaymentID: &pid,
		Metadata:          map[string]any{"provider_status": obj.Status},
	}
	action := &adapter.ClientAction{}
	if obj.Confirmation != nil {
		action.ConfirmationURL = obj.Confirmation.ConfirmationURL
	}
	return update, action, nil
}

// yooKassaNotification is the webhook body shape.
type yooKassaNotification struct {
	Type   string                `json:"type"`
	Event  string                `json:"event"`
	Object yooKassaPaymentObject `json:"object"`
}

func (g *YooKassaGateway) ProcessCallback(ctx context.Context, raw []byte) (*adapter.CallbackResult, error) {
	var n yooKassaNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	paymentID := n.Object.Metadata["payment_id"]
	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, fmt.Errorf("%w: metadata.payment_id %q", domain.ErrMalformedPayload, paymentID)
	}

	var eventType model.PaymentEventType
	switch n.Event {
	case "payment.succeeded":
		eventType = model.PaymentEventSucceeded
	case "payment.canceled":
		eventType = model.PaymentEventCanceled
	case "payment.waiting_for_capture":
		eventType = model.PaymentEventProviderResponse
	default:
		eventType = model.PaymentEventProviderResponse
	}

	pid := n.Object.ID
	res := &adapter.CallbackResult{
		PaymentID: paymentID,
		EventType: eventType,
		Update: model.PaymentUpdate{
			Status:            eventType.TargetStatus(),
			ProviderPaymentID: &pid,
			Metadata:          map[string]any{"provider_status": n.Object.Status, "event": n.Event},
		},
		Raw: rawAsMap(raw),
	}
	if m := n.Object.PaymentMethod; m != nil && m.Saved {
		res.Recurring = &model.RecurringDetails{SavedMethodID: m.ID}
	}
	return res, nil
}

func (g *YooKassaGateway) ChargeRecurring(ctx context.Context, p *model.Payment, rd *model.RecurringDetails) (*adapter.CallbackResult, error) {
	if rd == nil || rd.SavedMethodID == "" {
		return nil, domain.ErrRecurringNotSaved
	}

	body := map[string]any{
		"amount":            toAmount(p.Amount, p.Currency),
		"capture":           true,
		"payment_method_id": rd.SavedMethodID,
		"description":       fmt.Sprintf("Renewal %s", p.ProductID),
		"metadata":          map[string]string{"payment_id": p.ID},
	}

	obj, err := g.call(ctx, body, p.ID)
	if err != nil {
		return nil, err
	}

	var eventType model.PaymentEventType
	switch obj.Status {
	case "succeeded":
		eventType = model.PaymentEventSucceeded
	case "canceled":
		eventType = model.PaymentEventFailed
	default:
		// Pending capture; the terminal notification arrives as a webhook.
		eventType = model.PaymentEventProviderResponse
	}

	pid := obj.ID
	res := &adapter.CallbackResult{
		PaymentID: p.ID,
		EventType: eventType,
		Update: model.PaymentUpdate{
			Status:            eventType.TargetStatus(),
			ProviderPaymentID: &pid,
			Metadata:          map[string]any{"provider_status": obj.Status},
		},
		Raw:       map[string]any{"provider_payment_id": obj.ID, "provider_status": obj.Status},
		Recurring: rd,
	}
	return res, nil
}

// call POSTs a payment request. The Idempotence-Key ties retries of one
// internal payment to one provider-side object.
func (g *YooKassaGateway) call(ctx context.Context, body map[string]any, idempotenceKey string) (*yooKassaPaymentObject, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.shopID, g.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotenceKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yookassa error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var obj yooKassaPaymentObject
	if err := json.Unmarshal(respBody, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w, body: %s", err, string(respBody))
	}
	return &obj, nil
}

// rawAsMap keeps the verbatim payload for the audit event.
func rawAsMap(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return m
}
