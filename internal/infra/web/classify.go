package web

import (
	"errors"
	"net/http"
	"strings"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
)

var businessSentinels = []error{
	domain.ErrNotFound,
	domain.ErrPaymentNotFound,
	domain.ErrProductNotFound,
	domain.ErrMalformedPayload,
	domain.ErrInvalidArgument,
	domain.ErrUnknownProvider,
	domain.ErrRecurringNotSaved,
	domain.ErrAlreadyExists,
}

// classifyError maps a processing failure to the dead-letter error type and
// the HTTP status the provider keys its retry behavior off:
//
//	infrastructure -> 503 (retry)
//	permanent      -> 400 (never retry, will never succeed)
//	transient      -> 500 (retry)
//	unknown        -> 500 (retry, but flagged for operators)
func classifyError(err error) (model.WebhookErrorType, int) {
	if domain.IsInfrastructure(err) {
		return model.WebhookErrorInfrastructure, http.StatusServiceUnavailable
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") ||
		strings.Contains(msg, "invalid product") ||
		strings.Contains(msg, "invalid payment") {
		return model.WebhookErrorPermanent, http.StatusBadRequest
	}

	for _, sentinel := range businessSentinels {
		if errors.Is(err, sentinel) {
			return model.WebhookErrorTransient, http.StatusInternalServerError
		}
	}
	return model.WebhookErrorUnknown, http.StatusInternalServerError
}
