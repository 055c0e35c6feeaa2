//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-subscription-billing/internal/domain"
	"telegram-subscription-billing/internal/domain/model"
	"telegram-subscription-billing/internal/domain/ports/adapter"
	"telegram-subscription-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock TransactionManager ----

// MockTxManager runs the callback immediately. It tracks transaction depth so
// tests can assert that provider round-trips happen with no transaction held.
type MockTxManager struct {
	mu         sync.Mutex
	depth      int
	BeginErr   error
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, qx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.BeginErr != nil {
		return m.BeginErr
	}
	m.mu.Lock()
	m.depth++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.depth--
		m.mu.Unlock()
	}()
	return fn(ctx, repository.NoTX)
}

// InTx reports whether a WithTx callback is currently running.
func (m *MockTxManager) InTx() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0
}

// ---- In-memory PaymentRepository ----

type MockPaymentRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Payment
	SaveFunc func(ctx context.Context, qx repository.Tx, p *model.Payment) error
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.Payment)}
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func (m *MockPaymentRepo) Save(ctx context.Context, qx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, qx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByProviderPaymentID(ctx context.Context, qx repository.Tx, provider model.ProviderID, providerPaymentID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Provider == provider && p.ProviderPaymentID != nil && *p.ProviderPaymentID == providerPaymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) SumSucceededByPeriod(ctx context.Context, qx repository.Tx, period string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusSucceeded {
			sum += p.Amount
		}
	}
	return sum, nil
}

// Get returns the stored payment without copy protection, for assertions.
func (m *MockPaymentRepo) Get(id string) *model.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[id]
}

// ---- In-memory PaymentEventRepository ----

type MockPaymentEventRepo struct {
	mu     sync.RWMutex
	events []*model.PaymentEvent
}

func NewMockPaymentEventRepo() *MockPaymentEventRepo {
	return &MockPaymentEventRepo{}
}

var _ repository.PaymentEventRepository = (*MockPaymentEventRepo)(nil)

func (m *MockPaymentEventRepo) Append(ctx context.Context, qx repository.Tx, e *model.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockPaymentEventRepo) ListByPayment(ctx context.Context, qx repository.Tx, paymentID string) ([]*model.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentEvent
	for _, e := range m.events {
		if e.PaymentID == paymentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- In-memory SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Subscription
	SaveFunc func(ctx context.Context, qx repository.Tx, s *model.Subscription) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) Save(ctx context.Context, qx repository.Tx, s *model.Subscription) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, qx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindCurrentByUserAndProduct(ctx context.Context, qx repository.Tx, userID, productID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Subscription
	for _, s := range m.store {
		if s.UserID != userID || s.ProductID != productID {
			continue
		}
		switch s.Status {
		case model.SubscriptionStatusActive, model.SubscriptionStatusCanceled, model.SubscriptionStatusPending:
		default:
			continue
		}
		if best == nil || s.EndDate.After(best.EndDate) {
			best = s
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockSubscriptionRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListExpiring(ctx context.Context, qx repository.Tx, until time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && !s.EndDate.After(until) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListOutdated(ctx context.Context, qx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if (s.Status == model.SubscriptionStatusActive || s.Status == model.SubscriptionStatusCanceled) && !s.EndDate.After(now) {
			cp := *s
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountByStatus(ctx context.Context, qx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

// Get returns the stored subscription for assertions.
func (m *MockSubscriptionRepo) Get(id string) *model.Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[id]
}

// ---- In-memory UserRepository ----

type MockUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) Put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
}

func (m *MockUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, qx repository.Tx, tgID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.TelegramID == tgID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- Mock PaymentProvider ----

type MockProvider struct {
	IDValue     model.ProviderID
	Mode        model.RenewalMode
	CreateFunc  func(ctx context.Context, p *model.Payment, returnURL string) (*model.PaymentUpdate, *adapter.ClientAction, error)
	ProcessFunc func(ctx context.Context, raw []byte) (*adapter.CallbackResult, error)
	ChargeFunc  func(ctx context.Context, p *model.Payment, rd *model.RecurringDetails) (*adapter.CallbackResult, error)

	CreateCalls int
	ChargeCalls int
}

var _ adapter.PaymentProvider = (*MockProvider)(nil)

func (m *MockProvider) ID() model.ProviderID { return m.IDValue }

func (m *MockProvider) RenewalMode() model.RenewalMode { return m.Mode }

func (m *MockProvider) CreatePayment(ctx context.Context, p *model.Payment, returnURL string) (*model.PaymentUpdate, *adapter.ClientAction, error) {
	m.CreateCalls++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p, returnURL)
	}
	ppid := "prov-" + p.ID
	return &model.PaymentUpdate{
		Status:            model.PaymentStatusWaitingForAction,
		ProviderPaymentID: &ppid,
	}, &adapter.ClientAction{ConfirmationURL: "https://pay.example/" + p.ID}, nil
}

func (m *MockProvider) ProcessCallback(ctx context.Context, raw []byte) (*adapter.CallbackResult, error) {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, raw)
	}
	return nil, domain.ErrMalformedPayload
}

func (m *MockProvider) ChargeRecurring(ctx context.Context, p *model.Payment, rd *model.RecurringDetails) (*adapter.CallbackResult, error) {
	m.ChargeCalls++
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, p, rd)
	}
	return &adapter.CallbackResult{
		PaymentID: p.ID,
		EventType: model.PaymentEventSucceeded,
		Update:    model.PaymentUpdate{Status: model.PaymentStatusSucceeded},
		Raw:       map[string]any{"charged": true},
	}, nil
}

// ---- Mock AdminNotifier ----

type MockNotifier struct {
	mu       sync.Mutex
	Messages []string
	Critical []string
}

var _ adapter.AdminNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, text)
	return nil
}

func (m *MockNotifier) NotifyCritical(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Critical = append(m.Critical, text)
	return nil
}

// ---- Test catalog ----

type MockCatalog struct {
	entries map[string]*adapter.CatalogEntry
}

var _ adapter.ProductCatalog = (*MockCatalog)(nil)

// NewMockCatalog builds a catalog whose rewards extend the buyer's
// subscription, same shape as the production catalog.
func NewMockCatalog(products ...*model.Product) *MockCatalog {
	c := &MockCatalog{entries: make(map[string]*adapter.CatalogEntry)}
	for _, product := range products {
		product := product
		c.entries[product.ID] = &adapter.CatalogEntry{
			Product: product,
			Reward: func(ctx context.Context, qx repository.Tx, payment *model.Payment, rd *model.RecurringDetails, subs adapter.SubscriptionManager) (string, error) {
				s, err := subs.TopUp(ctx, qx, payment.UserID, product, payment.Provider, payment.Currency, rd)
				if err != nil {
					return "", err
				}
				return s.ID, nil
			},
		}
	}
	return c
}

func (c *MockCatalog) Get(ctx context.Context, productID string) (*adapter.CatalogEntry, error) {
	entry, ok := c.entries[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return entry, nil
}
