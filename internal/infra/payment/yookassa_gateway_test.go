//go:build !integration

package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/infra/payment"
)

const testPaymentID = "11111111-1111-1111-1111-111111111111"

func TestYooKassaGateway_CreatePayment(t *testing.T) {
	t.Run("sends correlation metadata and returns the redirect", func(t *testing.T) {
		var gotBody map[string]any
		var gotIdemKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotIdemKey = r.Header.Get("Idempotence-Key")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "yk-1",
				"status": "pending",
				"confirmation": map[string]string{
					"type":             "redirect",
					"confirmation_url": "https://yookassa.example/confirm",
				},
			})
		}))
		defer srv.Close()

		g := payment.NewYooKassaGateway("shop", "secret", srv.URL)
		p := &model.Payment{
			ID: testPaymentID, ProductID: "premium-month",
			Amount: 29900, Currency: "RUB",
			ProviderMetadata: map[string]any{"product_recurring": true},
		}

		update, action, err := g.CreatePayment(context.Background(), p, "https://t.me/back")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if action.ConfirmationURL != "https://yookassa.example/confirm" {
			t.Errorf("unexpected confirmation url: %s", action.ConfirmationURL)
		}
		if update.Status != model.PaymentStatusWaitingForAction {
			t.Errorf("expected waiting_for_action, got %s", update.Status)
		}
		if update.ProviderPaymentID == nil || *update.ProviderPaymentID != "yk-1" {
			t.Error("expected the provider payment id recorded")
		}
		if gotIdemKey != testPaymentID {
			t.Errorf("expected Idempotence-Key %s, got %s", testPaymentID, gotIdemKey)
		}

		meta := gotBody["metadata"].(map[string]any)
		if meta["payment_id"] != testPaymentID {
			t.Error("expected metadata.payment_id correlation")
		}
		if gotBody["save_payment_method"] != true {
			t.Error("expected save_payment_method for a recurring product")
		}
		amount := gotBody["amount"].(map[string]any)
		if amount["value"] != "299.00" {
			t.Errorf("expected decimal amount 299.00, got %v", amount["value"])
		}
	})

	t.Run("surfaces API rejections", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"error"}`))
		}))
		defer srv.Close()

		g := payment.NewYooKassaGateway("shop", "secret", srv.URL)
		p := &model.Payment{ID: testPaymentID, Amount: 100, Currency: "RUB"}
		if _, _, err := g.CreatePayment(context.Background(), p, ""); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestYooKassaGateway_ProcessCallback(t *testing.T) {
	g := payment.NewYooKassaGateway("shop", "secret", "")

	t.Run("resolves a succeeded notification", func(t *testing.T) {
		raw := []byte(`{
			"type": "notification",
			"event": "payment.succeeded",
			"object": {
				"id": "yk-1",
				"status": "succeeded",
				"payment_method": {"type": "bank_card", "id": "pm-1", "saved": true},
				"metadata": {"payment_id": "` + testPaymentID + `"}
			}
		}`)

		res, err := g.ProcessCallback(context.Background(), raw)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.PaymentID != testPaymentID {
			t.Errorf("unexpected payment id %s", res.PaymentID)
		}
		if res.EventType != model.PaymentEventSucceeded {
			t.Errorf("expected succeeded, got %s", res.EventType)
		}
		if res.Update.Status != model.PaymentStatusSucceeded {
			t.Errorf("expected status succeeded, got %s", res.Update.Status)
		}
		if res.Recurring == nil || res.Recurring.SavedMethodID != "pm-1" {
			t.Error("expected the saved method captured")
		}
	})

	t.Run("canceled notification maps to canceled", func(t *testing.T) {
		raw := []byte(`{"event":"payment.canceled","object":{"id":"yk-1","status":"canceled","metadata":{"payment_id":"` + testPaymentID + `"}}}`)
		res, err := g.ProcessCallback(context.Background(), raw)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.EventType != model.PaymentEventCanceled || res.Update.Status != model.PaymentStatusCanceled {
			t.Errorf("unexpected mapping: %s/%s", res.EventType, res.Update.Status)
		}
	})

	t.Run("missing correlation id is a malformed payload", func(t *testing.T) {
		raw := []byte(`{"event":"payment.succeeded","object":{"id":"yk-1","status":"succeeded"}}`)
		if _, err := g.ProcessCallback(context.Background(), raw); !errors.Is(err, domain.ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got: %v", err)
		}
	})

	t.Run("non-uuid correlation id is a malformed payload", func(t *testing.T) {
		raw := []byte(`{"event":"payment.succeeded","object":{"id":"yk-1","status":"succeeded","metadata":{"payment_id":"42"}}}`)
		if _, err := g.ProcessCallback(context.Background(), raw); !errors.Is(err, domain.ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got: %v", err)
		}
	})
}

func TestYooKassaGateway_ChargeRecurring(t *testing.T) {
	t.Run("charges the saved method and maps the terminal status", func(t *testing.T) {
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "yk-2", "status": "succeeded"})
		}))
		defer srv.Close()

		g := payment.NewYooKassaGateway("shop", "secret", srv.URL)
		p := &model.Payment{ID: testPaymentID, ProductID: "premium-month", Amount: 29900, Currency: "RUB"}
		rd := &model.RecurringDetails{SavedMethodID: "pm-1"}

		res, err := g.ChargeRecurring(context.Background(), p, rd)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.EventType != model.PaymentEventSucceeded {
			t.Errorf("expected succeeded, got %s", res.EventType)
		}
		if gotBody["payment_method_id"] != "pm-1" {
			t.Error("expected the saved method id in the request")
		}
	})

	t.Run("declined charge maps to failed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "yk-2", "status": "canceled"})
		}))
		defer srv.Close()

		g := payment.NewYooKassaGateway("shop", "secret", srv.URL)
		p := &model.Payment{ID: testPaymentID, Amount: 100, Currency: "RUB"}

		res, err := g.ChargeRecurring(context.Background(), p, &model.RecurringDetails{SavedMethodID: "pm-1"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.EventType != model.PaymentEventFailed || res.Update.Status != model.PaymentStatusFailed {
			t.Errorf("unexpected mapping: %s/%s", res.EventType, res.Update.Status)
		}
	})

	t.Run("refuses to charge without a saved method", func(t *testing.T) {
		g := payment.NewYooKassaGateway("shop", "secret", "")
		p := &model.Payment{ID: testPaymentID}
		if _, err := g.ChargeRecurring(context.Background(), p, nil); !errors.Is(err, domain.ErrRecurringNotSaved) {
			t.Fatalf("expected ErrRecurringNotSaved, got: %v", err)
		}
	})
}

func TestYooKassaWebhookSignature(t *testing.T) {
	const secret = "webhook-secret"

	t.Run("round trip verifies", func(t *testing.T) {
		token := payment.YooKassaSignature(secret, "notification", "yk-1", "succeeded")
		if !payment.VerifyYooKassaWebhookSignature(secret, "notification", "yk-1", "succeeded", token) {
			t.Fatal("expected the signature to verify")
		}
	})

	t.Run("rejects a tampered token", func(t *testing.T) {
		if payment.VerifyYooKassaWebhookSignature(secret, "notification", "yk-1", "succeeded", "deadbeef") {
			t.Fatal("tampered token must not verify")
		}
	})

	t.Run("rejects a signature over different fields", func(t *testing.T) {
		token := payment.YooKassaSignature(secret, "notification", "yk-1", "canceled")
		if payment.VerifyYooKassaWebhookSignature(secret, "notification", "yk-1", "succeeded", token) {
			t.Fatal("signature must bind the object status")
		}
	})
}
