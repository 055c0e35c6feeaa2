package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/config"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/domain/ports/repository"
	"telegram-subscription-billing/internal/infra/logging"
	"telegram-subscription-billing/internal/infra/metrics"
	"telegram-subscription-billing/internal/infra/payment"
	"telegram-subscription-billing/internal/usecase"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// Server hosts the webhook ingress, the ops API and the health/metrics
// endpoints. Webhook handlers never return before the delivery is either
// applied or dead-lettered; the status code tells the provider whether to
// retry.
type Server struct {
	httpSrv *http.Server

	payments usecase.PaymentUseCase
	stats    usecase.StatsUseCase
	failed   repository.FailedWebhookRepository
	notifier adapter.AdminNotifier
	auth     *AuthManager

	yooSecret   string
	starsSecret string
	opsAPIKey   string

	log zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	payments usecase.PaymentUseCase,
	stats usecase.StatsUseCase,
	failed repository.FailedWebhookRepository,
	notifier adapter.AdminNotifier,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		payments:    payments,
		stats:       stats,
		failed:      failed,
		notifier:    notifier,
		auth:        NewAuthManager(cfg.Ops.JWTSecret, cfg.Ops.SessionTTL),
		yooSecret:   cfg.Payment.YooKassa.WebhookSecret,
		starsSecret: cfg.Payment.Stars.WebhookSecret,
		opsAPIKey:   cfg.Ops.APIKey,
		log:         logger.With().Str("component", "WebServer").Logger(),
	}

	r := chi.NewRouter()
	r.Use(traceID)
	r.Use(requestLog(&s.log))
	r.Use(recoverer(&s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhooks/yookassa", s.handleYooKassaWebhook)
	r.Post("/webhooks/stars", s.handleStarsWebhook)

	r.Post("/ops/login", s.handleOpsLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/ops/stats", s.handleStats)
		r.Post("/ops/grants", s.handleGrant)
		r.Get("/ops/failed-webhooks", s.handleListFailedWebhooks)
		r.Post("/ops/failed-webhooks/{id}/replay", s.handleReplayFailedWebhook)
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ===== Webhook ingress =====

// yooKassaNotification is the envelope yookassa posts. Only the fields the
// signature check needs are decoded here; the verbatim body travels on to
// the gateway.
type yooKassaNotification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

func (s *Server) handleYooKassaWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r, model.ProviderYooKassa)
	if !ok {
		return
	}

	var n yooKassaNotification
	if err := json.Unmarshal(body, &n); err != nil || n.Object.ID == "" {
		s.rejectMalformed(r.Context(), w, model.ProviderYooKassa, err)
		return
	}

	token := bearerToken(r)
	if !payment.VerifyYooKassaWebhookSignature(s.yooSecret, n.Type, n.Object.ID, n.Object.Status, token) {
		s.rejectUnauthenticated(r.Context(), w, model.ProviderYooKassa)
		return
	}

	s.process(r.Context(), w, model.ProviderYooKassa, body)
}

func (s *Server) handleStarsWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r, model.ProviderStars)
	if !ok {
		return
	}

	if !json.Valid(body) {
		s.rejectMalformed(r.Context(), w, model.ProviderStars, fmt.Errorf("invalid json"))
		return
	}

	if !equalSecret(r.Header.Get("X-Webhook-Secret"), s.starsSecret) {
		s.rejectUnauthenticated(r.Context(), w, model.ProviderStars)
		return
	}

	s.process(r.Context(), w, model.ProviderStars, body)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, provider model.ProviderID) ([]byte, bool) {
	body, err := readLimited(r, maxWebhookBody)
	if err != nil {
		metrics.IncWebhook(string(provider), "oversized")
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return body, true
}

// rejectMalformed handles unparseable bodies. There is nothing to replay, so
// no dead-letter row is written; operators are alerted because a provider
// sending garbage is worth a look.
func (s *Server) rejectMalformed(ctx context.Context, w http.ResponseWriter, provider model.ProviderID, err error) {
	l := logging.With(ctx, &s.log)
	l.Warn().Err(err).Str("provider", string(provider)).Msg("malformed webhook body")
	metrics.IncWebhook(string(provider), "malformed")
	if nerr := s.notifier.Notify(ctx, fmt.Sprintf("Malformed %s webhook rejected", provider)); nerr != nil {
		l.Warn().Err(nerr).Msg("admin notification failed")
	}
	http.Error(w, "bad request", http.StatusBadRequest)
}

// rejectUnauthenticated handles authenticity failures. The payload never
// reaches the orchestrator and is not dead-lettered: an unauthenticated body
// must not be replayable either.
func (s *Server) rejectUnauthenticated(ctx context.Context, w http.ResponseWriter, provider model.ProviderID) {
	l := logging.With(ctx, &s.log)
	l.Error().Str("provider", string(provider)).Msg("webhook signature verification failed")
	metrics.IncWebhook(string(provider), "unauthenticated")
	if nerr := s.notifier.NotifyCritical(ctx, fmt.Sprintf("Webhook signature verification failed for %s", provider)); nerr != nil {
		l.Warn().Err(nerr).Msg("admin notification failed")
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// process hands an authenticated, parseable delivery to the orchestrator and
// translates the outcome to a provider-facing status code. Failures are
// dead-lettered with the verbatim payload before responding.
func (s *Server) process(ctx context.Context, w http.ResponseWriter, provider model.ProviderID, body []byte) {
	l := logging.With(ctx, &s.log)

	if _, err := s.payments.ProcessCallback(ctx, provider, body); err != nil {
		errType, status := classifyError(err)
		l.Error().Err(err).
			Str("provider", string(provider)).
			Str("error_type", string(errType)).
			Msg("webhook processing failed")
		metrics.IncWebhook(string(provider), "failed")

		s.deadLetter(ctx, provider, body, err, errType)
		http.Error(w, "processing failed", status)
		return
	}

	metrics.IncWebhook(string(provider), "ok")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deadLetter(ctx context.Context, provider model.ProviderID, body []byte, cause error, errType model.WebhookErrorType) {
	l := logging.With(ctx, &s.log)
	fw := &model.FailedWebhook{
		ID:           uuid.NewString(),
		Provider:     provider,
		Payload:      body,
		ErrorMessage: cause.Error(),
		ErrorType:    errType,
		CreatedAt:    time.Now(),
	}
	if err := s.failed.Save(ctx, repository.NoTX, fw); err != nil {
		// Worst case: delivery lost unless the provider retries. Shout.
		l.Error().Err(err).Str("provider", string(provider)).Msg("dead-letter save failed")
		if nerr := s.notifier.NotifyCritical(ctx, fmt.Sprintf("Dead-letter store unavailable, %s webhook may be lost", provider)); nerr != nil {
			l.Warn().Err(nerr).Msg("admin notification failed")
		}
		return
	}
	metrics.IncWebhookDeadLettered(string(provider), string(errType))

	// Permanent and transient rows are routine operator work; an outage or an
	// unclassified failure needs someone looking at it now.
	notify := s.notifier.Notify
	if errType == model.WebhookErrorInfrastructure || errType == model.WebhookErrorUnknown {
		notify = s.notifier.NotifyCritical
	}
	if nerr := notify(ctx, fmt.Sprintf("Webhook dead-lettered: provider=%s type=%s id=%s", provider, errType, fw.ID)); nerr != nil {
		l.Warn().Err(nerr).Msg("admin notification failed")
	}
}

// ===== Ops API =====

func (s *Server) handleOpsLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !equalSecret(req.APIKey, s.opsAPIKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stats.Summary(r.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	subs := make(map[string]int, len(summary.Subscriptions))
	for status, n := range summary.Subscriptions {
		subs[string(status)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revenue": map[string]int64{
			"day":   summary.RevenueDay,
			"week":  summary.RevenueWeek,
			"month": summary.RevenueMonth,
		},
		"subscriptions": subs,
	})
}

// handleGrant completes a gift payment. The grant is shaped as an internal
// gift callback and fed through the orchestrator, so it takes the same row
// lock and reward-once guard as a provider webhook.
func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentID string `json:"payment_id"`
		GrantedBy string `json:"granted_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	body, err := json.Marshal(map[string]string{
		"payment_id": req.PaymentID,
		"granted_by": req.GrantedBy,
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	p, perr := s.payments.ProcessCallback(r.Context(), model.ProviderGift, body)
	if perr != nil {
		errType, _ := classifyError(perr)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"result":     "failed",
			"error":      perr.Error(),
			"error_type": string(errType),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"result":     "granted",
		"payment_id": p.ID,
		"status":     string(p.Status),
	})
}

type failedWebhookView struct {
	ID           string     `json:"id"`
	Provider     string     `json:"provider"`
	ErrorMessage string     `json:"error_message"`
	ErrorType    string     `json:"error_type"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Payload      string     `json:"payload"`
}

func (s *Server) handleListFailedWebhooks(w http.ResponseWriter, r *http.Request) {
	rows, err := s.failed.ListUnresolved(r.Context(), repository.NoTX, 100)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	views := make([]failedWebhookView, 0, len(rows))
	for _, fw := range rows {
		views = append(views, failedWebhookView{
			ID:           fw.ID,
			Provider:     string(fw.Provider),
			ErrorMessage: fw.ErrorMessage,
			ErrorType:    string(fw.ErrorType),
			RetryCount:   fw.RetryCount,
			CreatedAt:    fw.CreatedAt,
			ResolvedAt:   fw.ResolvedAt,
			Payload:      string(fw.Payload),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

// handleReplayFailedWebhook re-runs a dead-lettered delivery through the
// orchestrator. Replay is safe to repeat: the terminal-state guard discards
// transitions that already landed.
func (s *Server) handleReplayFailedWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l := logging.With(r.Context(), &s.log)

	fw, err := s.failed.FindByID(r.Context(), repository.NoTX, id)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if fw.ResolvedAt != nil {
		http.Error(w, "already resolved", http.StatusConflict)
		return
	}

	if _, perr := s.payments.ProcessCallback(r.Context(), fw.Provider, fw.Payload); perr != nil {
		if ierr := s.failed.IncrementRetry(r.Context(), repository.NoTX, id); ierr != nil {
			l.Warn().Err(ierr).Str("id", id).Msg("retry count update failed")
		}
		errType, _ := classifyError(perr)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"result":     "failed",
			"error":      perr.Error(),
			"error_type": string(errType),
		})
		return
	}

	if merr := s.failed.MarkResolved(r.Context(), repository.NoTX, id, time.Now()); merr != nil {
		l.Warn().Err(merr).Str("id", id).Msg("mark resolved failed")
	}
	l.Info().Str("id", id).Str("provider", string(fw.Provider)).Msg("dead-lettered webhook replayed")
	writeJSON(w, http.StatusOK, map[string]string{"result": "resolved"})
}

// ===== helpers =====

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readLimited(r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errors.New("body exceeds limit")
	}
	return body, nil
}
