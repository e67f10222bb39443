package subscription

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

// Checker decides whether a tenant is entitled to receive an event type.
type Checker interface {
	IsSubscribed(ctx context.Context, clientID string, eventType domain.EventType) bool
}

// StaticRegistry is an in-memory subscription table.
// A registry built without entries treats every tenant as subscribed to everything.
type StaticRegistry struct {
	mu      sync.RWMutex
	entries map[string]map[domain.EventType]struct{}
}

func NewAlwaysSubscribed() *StaticRegistry {
	return &StaticRegistry{}
}

func NewStaticRegistry(entries map[string][]domain.EventType) *StaticRegistry {
	r := &StaticRegistry{entries: make(map[string]map[domain.EventType]struct{}, len(entries))}
	for clientID, types := range entries {
		for _, t := range types {
			r.subscribeLocked(clientID, t)
		}
	}
	return r
}

func (r *StaticRegistry) Subscribe(clientID string, eventType domain.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]map[domain.EventType]struct{})
	}
	r.subscribeLocked(clientID, eventType)
}

func (r *StaticRegistry) IsSubscribed(_ context.Context, clientID string, eventType domain.EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.entries == nil {
		return true
	}
	types, ok := r.entries[strings.TrimSpace(clientID)]
	if !ok {
		return false
	}
	_, ok = types[eventType]
	return ok
}

func (r *StaticRegistry) subscribeLocked(clientID string, eventType domain.EventType) {
	id := strings.TrimSpace(clientID)
	if r.entries[id] == nil {
		r.entries[id] = make(map[domain.EventType]struct{})
	}
	r.entries[id][eventType] = struct{}{}
}

// ParseTable builds a registry from "CLIENT001=credit_transfer,credit_refund;CLIENT002=debit_purchase".
// A blank table subscribes every tenant to every event type.
func ParseTable(table string) (*StaticRegistry, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return NewAlwaysSubscribed(), nil
	}

	r := NewStaticRegistry(nil)
	for _, entry := range strings.Split(table, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		clientID, types, ok := strings.Cut(entry, "=")
		clientID = strings.TrimSpace(clientID)
		if !ok || clientID == "" {
			return nil, fmt.Errorf("%w: subscription entry %q must be CLIENT=type[,type]", domain.ErrValidation, entry)
		}
		for _, raw := range strings.Split(types, ",") {
			eventType, err := domain.ParseEventTypeFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("subscription entry for %q: %w", clientID, err)
			}
			r.Subscribe(clientID, eventType)
		}
	}
	return r, nil
}
