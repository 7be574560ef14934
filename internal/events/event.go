package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "academy-service"
	EventVersion = "1.0"
)

type EventType string

const (
	EventEnrollmentCreated      EventType = "enrollment.created"
	EventReconciliationRequired EventType = "enrollment.reconciliation_required"
	EventPaymentCaptured        EventType = "payment.captured"
	EventCourseUpdated          EventType = "course.updated"
	EventProgressUpdated        EventType = "progress.updated"
)

// Event is the envelope written to the bus. Data carries flat string attributes
// such as user_id, course_id and order_id.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data"`
}

func NewEvent(eventType EventType, data map[string]string) *Event {
	if data == nil {
		data = map[string]string{}
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
