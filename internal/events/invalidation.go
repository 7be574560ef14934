package events

import (
	"context"

	"github.com/ccpq/academy-service/internal/cache"
)

// entityByEvent maps each event onto the cached entity it changes
var entityByEvent = map[EventType]cache.Entity{
	EventEnrollmentCreated:      cache.EntityEnrollment,
	EventReconciliationRequired: cache.EntityReconciliation,
	EventPaymentCaptured:        cache.EntityPendingOrder,
	EventCourseUpdated:          cache.EntityCourse,
	EventProgressUpdated:        cache.EntityProgress,
}

// RegisterCacheInvalidation wires the invalidator to every event that changes cached reads
func RegisterCacheInvalidation(bus *Bus, invalidator *cache.Invalidator) {
	for eventType, entity := range entityByEvent {
		entity := entity
		bus.OnLocal(eventType, func(ctx context.Context, event *Event) {
			invalidator.Invalidate(ctx, entity, cache.Keys(event.Data))
		})
	}
}
