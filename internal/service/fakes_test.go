package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

type fakeEventRepo struct {
	events         []domain.NotificationEvent
	findFn         func(ctx context.Context, clientID, eventID string) (*domain.NotificationEvent, error)
	findByTenantFn func(ctx context.Context, clientID string, filter domain.EventFilter) ([]domain.NotificationEvent, error)
}

func (f *fakeEventRepo) FindByTenantAndID(ctx context.Context, clientID, eventID string) (*domain.NotificationEvent, error) {
	if f.findFn != nil {
		return f.findFn(ctx, clientID, eventID)
	}
	for i := range f.events {
		if f.events[i].ClientID == clientID && f.events[i].ID == eventID {
			event := f.events[i]
			return &event, nil
		}
	}
	return nil, domain.EventNotFoundError(eventID)
}

func (f *fakeEventRepo) FindByTenant(ctx context.Context, clientID string, filter domain.EventFilter) ([]domain.NotificationEvent, error) {
	if f.findByTenantFn != nil {
		return f.findByTenantFn(ctx, clientID, filter)
	}
	var out []domain.NotificationEvent
	for _, e := range f.events {
		if e.ClientID == clientID && filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeAttemptRepo is an in-memory ledger. The fn fields override the default behavior.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt

	saveFn            func(ctx context.Context, a *domain.DeliveryAttempt) error
	findAttemptedAtFn func(ctx context.Context, clientID, eventID, key string) (*time.Time, error)
	listFn            func(ctx context.Context, clientID, eventID string) ([]domain.DeliveryAttempt, error)
}

func (f *fakeAttemptRepo) Save(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, a)
	}
	if err := a.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) FindAttemptedAt(ctx context.Context, clientID, eventID, key string) (*time.Time, error) {
	if f.findAttemptedAtFn != nil {
		return f.findAttemptedAtFn(ctx, clientID, eventID, key)
	}
	return f.latestAttemptedAt(clientID, eventID, key)
}

func (f *fakeAttemptRepo) latestAttemptedAt(clientID, eventID, key string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *time.Time
	for _, a := range f.attempts {
		if a.ClientID != clientID || a.EventID != eventID || a.CorrelationKey == nil || *a.CorrelationKey != key {
			continue
		}
		if latest == nil || a.AttemptedAt.After(*latest) {
			at := a.AttemptedAt
			latest = &at
		}
	}
	return latest, nil
}

func (f *fakeAttemptRepo) ListByEvent(ctx context.Context, clientID, eventID string) ([]domain.DeliveryAttempt, error) {
	if f.listFn != nil {
		return f.listFn(ctx, clientID, eventID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.ClientID == clientID && a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	return out, nil
}

func (f *fakeAttemptRepo) saved() []domain.DeliveryAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DeliveryAttempt(nil), f.attempts...)
}

type fakeSender struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, clientID string, event domain.NotificationEvent, key *string) domain.DeliveryOutcome
	keys   []string
}

func (f *fakeSender) Send(ctx context.Context, clientID string, event domain.NotificationEvent, key *string) domain.DeliveryOutcome {
	f.mu.Lock()
	if key != nil {
		f.keys = append(f.keys, *key)
	} else {
		f.keys = append(f.keys, "")
	}
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, clientID, event, key)
	}
	status := 200
	return domain.DeliveryOutcome{Delivered: true, HTTPStatus: &status, OccurredAt: testNow}
}

func (f *fakeSender) TargetURL() string { return "https://webhook.example.com/replays" }

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

type fakeSubscriptions struct {
	isSubscribedFn func(ctx context.Context, clientID string, eventType domain.EventType) bool
}

func (f *fakeSubscriptions) IsSubscribed(ctx context.Context, clientID string, eventType domain.EventType) bool {
	if f.isSubscribedFn != nil {
		return f.isSubscribedFn(ctx, clientID, eventType)
	}
	return true
}

type fakeGuard struct {
	reserveFn func(ctx context.Context, clientID, eventID, key string) (string, bool, error)
	releaseFn func(ctx context.Context, clientID, eventID, key, token string) error
}

func (f *fakeGuard) Reserve(ctx context.Context, clientID, eventID, key string) (string, bool, error) {
	if f.reserveFn != nil {
		return f.reserveFn(ctx, clientID, eventID, key)
	}
	return "token", true, nil
}

func (f *fakeGuard) Release(ctx context.Context, clientID, eventID, key, token string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, clientID, eventID, key, token)
	}
	return nil
}

// setNXGuard mimics a SET NX reservation with token-checked release.
type setNXGuard struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
}

func newSetNXGuard() *setNXGuard {
	return &setNXGuard{held: make(map[string]string)}
}

func (g *setNXGuard) Reserve(_ context.Context, clientID, eventID, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := clientID + ":" + eventID + ":" + key
	if _, ok := g.held[k]; ok {
		return "", false, nil
	}
	g.seq++
	token := fmt.Sprintf("tok-%d", g.seq)
	g.held[k] = token
	return token, true, nil
}

func (g *setNXGuard) Release(_ context.Context, clientID, eventID, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := clientID + ":" + eventID + ":" + key
	if g.held[k] == token {
		delete(g.held, k)
	}
	return nil
}

func (g *setNXGuard) heldCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testEvents() []domain.NotificationEvent {
	return []domain.NotificationEvent{
		{
			ID:             "E1",
			ClientID:       "T1",
			EventType:      domain.EventTypeCreditCardPayment,
			Content:        "Payment received",
			DeliveryDate:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			DeliveryStatus: domain.DeliveryStatusFailed,
		},
		{
			ID:             "E2",
			ClientID:       "T1",
			EventType:      domain.EventTypeDebitTransfer,
			Content:        "Transfer sent",
			DeliveryDate:   time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			DeliveryStatus: domain.DeliveryStatusCompleted,
		},
		{
			ID:             "E3",
			ClientID:       "T1",
			EventType:      domain.EventTypeCreditRefund,
			Content:        "Refund pending",
			DeliveryDate:   time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC),
			DeliveryStatus: domain.DeliveryStatusPending,
		},
		{
			ID:             "E9",
			ClientID:       "T2",
			EventType:      domain.EventTypeCreditDeposit,
			Content:        "Deposit",
			DeliveryDate:   time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
			DeliveryStatus: domain.DeliveryStatusFailed,
		},
	}
}
