package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
)

type snapshotFile struct {
	Events []snapshotEvent `json:"events"`
}

type snapshotEvent struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Content        json.RawMessage `json:"content"`
	DeliveryDate   string          `json:"delivery_date"`
	DeliveryStatus string          `json:"delivery_status"`
	ClientID       string          `json:"client_id"`
}

type eventKey struct {
	clientID string
	eventID  string
}

// SnapshotEventRepo serves events from an immutable JSON snapshot held in memory.
type SnapshotEventRepo struct {
	events   []domain.NotificationEvent
	byTenant map[eventKey]int
}

func NewSnapshotEventRepoFromFile(path string) (*SnapshotEventRepo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events snapshot: %w", err)
	}
	defer f.Close()

	return NewSnapshotEventRepo(f)
}

func NewSnapshotEventRepo(r io.Reader) (*SnapshotEventRepo, error) {
	events, err := loadSnapshot(r)
	if err != nil {
		return nil, err
	}

	repo := &SnapshotEventRepo{
		events:   events,
		byTenant: make(map[eventKey]int, len(events)),
	}
	for i, e := range events {
		key := eventKey{clientID: e.ClientID, eventID: e.ID}
		if _, exists := repo.byTenant[key]; exists {
			return nil, fmt.Errorf("%w: duplicate event %q for client %q", domain.ErrValidation, e.ID, e.ClientID)
		}
		repo.byTenant[key] = i
	}

	return repo, nil
}

// loadSnapshot decodes and validates every event in a snapshot document.
func loadSnapshot(r io.Reader) ([]domain.NotificationEvent, error) {
	var doc snapshotFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode events snapshot: %w", err)
	}

	events := make([]domain.NotificationEvent, 0, len(doc.Events))
	for i, item := range doc.Events {
		event, err := item.toDomain()
		if err != nil {
			return nil, fmt.Errorf("snapshot event #%d: %w", i, err)
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].DeliveryDate.Equal(events[j].DeliveryDate) {
			return events[i].ID < events[j].ID
		}
		return events[i].DeliveryDate.Before(events[j].DeliveryDate)
	})

	return events, nil
}

func (e snapshotEvent) toDomain() (domain.NotificationEvent, error) {
	eventType, err := domain.ParseEventTypeFromString(e.EventType)
	if err != nil {
		return domain.NotificationEvent{}, err
	}
	status, err := domain.ParseDeliveryStatusFromString(e.DeliveryStatus)
	if err != nil {
		return domain.NotificationEvent{}, err
	}
	deliveryDate, err := time.Parse(time.RFC3339, strings.TrimSpace(e.DeliveryDate))
	if err != nil {
		return domain.NotificationEvent{}, fmt.Errorf("%w: delivery_date must be RFC3339", domain.ErrValidation)
	}
	content, err := contentText(e.Content)
	if err != nil {
		return domain.NotificationEvent{}, err
	}

	event := domain.NotificationEvent{
		ID:             strings.TrimSpace(e.EventID),
		ClientID:       strings.TrimSpace(e.ClientID),
		EventType:      eventType,
		Content:        content,
		DeliveryDate:   deliveryDate.UTC(),
		DeliveryStatus: status,
	}
	if err := event.Validate(); err != nil {
		return domain.NotificationEvent{}, err
	}
	return event, nil
}

// contentText keeps JSON strings verbatim and any other JSON value as compact text.
func contentText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: invalid content: %v", domain.ErrValidation, err)
		}
		return s, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid content: %v", domain.ErrValidation, err)
	}
	return buf.String(), nil
}

func (r *SnapshotEventRepo) FindByTenantAndID(_ context.Context, clientID, eventID string) (*domain.NotificationEvent, error) {
	idx, ok := r.byTenant[eventKey{clientID: clientID, eventID: eventID}]
	if !ok {
		return nil, domain.EventNotFoundError(eventID)
	}
	event := r.events[idx]
	return &event, nil
}

func (r *SnapshotEventRepo) FindByTenant(
	_ context.Context,
	clientID string,
	filter domain.EventFilter,
) ([]domain.NotificationEvent, error) {
	events := make([]domain.NotificationEvent, 0)
	for _, e := range r.events {
		if e.ClientID != clientID || !filter.Matches(e) {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// All returns every event in snapshot order.
func (r *SnapshotEventRepo) All() []domain.NotificationEvent {
	out := make([]domain.NotificationEvent, len(r.events))
	copy(out, r.events)
	return out
}
