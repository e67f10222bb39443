package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/domain"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/observability"
	"github.com/diego-val-vel/notifications-webhook-service-divv/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	dateLayout           = "2006-01-02"
	idempotencyKeyHeader = "Idempotency-Key"
	requestIDLocalsKey   = "requestid"
)

type EventService interface {
	Query(ctx context.Context, clientID string, filter domain.EventFilter) ([]domain.NotificationEvent, error)
	Get(ctx context.Context, clientID, eventID string) (*domain.NotificationEvent, error)
	ListAttempts(ctx context.Context, clientID, eventID string) ([]domain.DeliveryAttempt, error)
}

type ReplayService interface {
	Replay(ctx context.Context, clientID, eventID string, idempotencyKey *string) (*service.ReplayResult, error)
}

type EventHandler struct {
	events  EventService
	replays ReplayService
}

func NewEventHandler(events EventService, replays ReplayService) (*EventHandler, error) {
	if events == nil {
		return nil, fmt.Errorf("event service is required")
	}
	if replays == nil {
		return nil, fmt.Errorf("replay service is required")
	}
	return &EventHandler{events: events, replays: replays}, nil
}

func RegisterEventRoutes(router fiber.Router, events EventService, replays ReplayService) error {
	h, err := NewEventHandler(events, replays)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notification_events", h.ListEvents)
	v1.Get("/notification_events/:id", h.GetEvent)
	v1.Post("/notification_events/:id/replay", h.ReplayEvent)
	v1.Get("/notification_events/:id/attempts", h.ListAttempts)

	return nil
}

type eventResponse struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	Content        string `json:"content"`
	DeliveryDate   string `json:"deliveryDate"`
	DeliveryStatus string `json:"deliveryStatus"`
	ClientID       string `json:"clientId"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

type replayResponse struct {
	NotificationEventID string `json:"notificationEventId"`
	Accepted            bool   `json:"accepted"`
	ProcessedAt         string `json:"processedAt"`
}

type attemptResponse struct {
	AttemptID      string  `json:"attemptId"`
	EventID        string  `json:"eventId"`
	ClientID       string  `json:"clientId"`
	TargetURL      string  `json:"targetUrl"`
	AttemptType    string  `json:"attemptType"`
	Result         string  `json:"result"`
	HTTPStatus     *int    `json:"httpStatus,omitempty"`
	ErrorMessage   *string `json:"errorMessage,omitempty"`
	AttemptedAt    string  `json:"attemptedAt"`
	DurationMs     int64   `json:"durationMs"`
	IdempotencyKey *string `json:"idempotencyKey,omitempty"`
}

type listAttemptsResponse struct {
	Attempts []attemptResponse `json:"attempts"`
}

func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	clientID, err := clientIDFromQuery(c)
	if err != nil {
		return err
	}

	filter, err := parseEventFilter(c)
	if err != nil {
		return err
	}

	events, err := h.events.Query(requestContext(c), clientID, filter)
	if err != nil {
		return toHTTPError(err)
	}

	resp := listEventsResponse{Events: make([]eventResponse, 0, len(events))}
	for i := range events {
		resp.Events = append(resp.Events, toEventResponse(&events[i]))
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	clientID, err := clientIDFromQuery(c)
	if err != nil {
		return err
	}

	event, err := h.events.Get(requestContext(c), clientID, eventIDParam(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toEventResponse(event))
}

func (h *EventHandler) ReplayEvent(c *fiber.Ctx) error {
	clientID, err := clientIDFromQuery(c)
	if err != nil {
		return err
	}

	var idempotencyKey *string
	if raw := c.Request().Header.Peek(idempotencyKeyHeader); raw != nil {
		key := string(raw)
		idempotencyKey = &key
	}

	result, err := h.replays.Replay(requestContext(c), clientID, eventIDParam(c), idempotencyKey)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(replayResponse{
		NotificationEventID: result.EventID,
		Accepted:            result.Accepted,
		ProcessedAt:         result.ProcessedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *EventHandler) ListAttempts(c *fiber.Ctx) error {
	clientID, err := clientIDFromQuery(c)
	if err != nil {
		return err
	}

	attempts, err := h.events.ListAttempts(requestContext(c), clientID, eventIDParam(c))
	if err != nil {
		return toHTTPError(err)
	}

	resp := listAttemptsResponse{Attempts: make([]attemptResponse, 0, len(attempts))}
	for i := range attempts {
		resp.Attempts = append(resp.Attempts, toAttemptResponse(&attempts[i]))
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func clientIDFromQuery(c *fiber.Ctx) (string, error) {
	clientID := strings.TrimSpace(utils.CopyString(c.Query("client_id")))
	if clientID == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "client_id is required")
	}
	return clientID, nil
}

func eventIDParam(c *fiber.Ctx) string {
	return strings.TrimSpace(utils.CopyString(c.Params("id")))
}

func parseEventFilter(c *fiber.Ctx) (domain.EventFilter, error) {
	var filter domain.EventFilter

	if raw := strings.TrimSpace(c.Query("delivery_status")); raw != "" {
		status, err := domain.ParseDeliveryStatusFromString(raw)
		if err != nil {
			return filter, toHTTPError(err)
		}
		filter.DeliveryStatus = &status
	}

	if raw := strings.TrimSpace(c.Query("date_from")); raw != "" {
		from, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid date_from, expected YYYY-MM-DD")
		}
		filter.From = &from
	}

	if raw := strings.TrimSpace(c.Query("date_to")); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid date_to, expected YYYY-MM-DD")
		}
		to := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &to
	}

	if err := filter.Validate(); err != nil {
		return filter, toHTTPError(err)
	}
	return filter, nil
}

// requestContext carries the request id into service logs.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if requestID, ok := c.Locals(requestIDLocalsKey).(string); ok && requestID != "" {
		ctx = observability.WithRequestID(ctx, requestID)
	}
	return ctx
}

func toEventResponse(e *domain.NotificationEvent) eventResponse {
	return eventResponse{
		EventID:        e.ID,
		EventType:      e.EventType.String(),
		Content:        e.Content,
		DeliveryDate:   e.DeliveryDate.UTC().Format(time.RFC3339),
		DeliveryStatus: e.DeliveryStatus.String(),
		ClientID:       e.ClientID,
	}
}

func toAttemptResponse(a *domain.DeliveryAttempt) attemptResponse {
	return attemptResponse{
		AttemptID:      a.ID,
		EventID:        a.EventID,
		ClientID:       a.ClientID,
		TargetURL:      a.TargetURL,
		AttemptType:    string(a.AttemptType),
		Result:         a.Result.String(),
		HTTPStatus:     a.HTTPStatus,
		ErrorMessage:   a.ErrorMessage,
		AttemptedAt:    a.AttemptedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:     a.DurationMs,
		IdempotencyKey: a.CorrelationKey,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrReplayNotAllowed),
		errors.Is(err, domain.ErrReplayInProgress),
		errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
