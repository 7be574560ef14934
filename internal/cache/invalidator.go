package cache

import (
	"context"
	"strings"
)

// Entity names a kind of record whose change invalidates cached reads
type Entity string

const (
	EntityCourse         Entity = "course"
	EntityEnrollment     Entity = "enrollment"
	EntityProgress       Entity = "progress"
	EntityPendingOrder   Entity = "pending_order"
	EntityReconciliation Entity = "reconciliation"
)

// Keys identifies the changed record. Placeholders in rule patterns are filled from it.
type Keys map[string]string

type invalidationRule struct {
	helper  func(*CacheManager) *CacheHelper
	pattern string
}

func courseHelper(cm *CacheManager) *CacheHelper       { return cm.Course }
func enrollmentHelper(cm *CacheManager) *CacheHelper   { return cm.Enrollment }
func pendingOrderHelper(cm *CacheManager) *CacheHelper { return cm.PendingOrder }
func statsHelper(cm *CacheManager) *CacheHelper        { return cm.Stats }

var invalidationRules = map[Entity][]invalidationRule{
	EntityCourse: {
		{courseHelper, "id:{course_id}"},
		{courseHelper, "content:{course_id}"},
		{courseHelper, "slug:*"},
		{statsHelper, "*"},
	},
	EntityEnrollment: {
		{enrollmentHelper, "user:{user_id}:*"},
		{statsHelper, "*"},
	},
	EntityProgress: {
		{enrollmentHelper, "user:{user_id}:*"},
		{statsHelper, "*"},
	},
	EntityPendingOrder: {
		{pendingOrderHelper, "{order_id}"},
	},
	EntityReconciliation: {
		{statsHelper, "*"},
	},
}

// Invalidator drops cached reads for a changed entity using one rule table,
// so writers never have to know which keys depend on them.
type Invalidator struct {
	manager *CacheManager
}

func NewInvalidator(manager *CacheManager) *Invalidator {
	return &Invalidator{manager: manager}
}

// Invalidate applies every rule of the entity. Rules whose placeholders are not
// covered by keys are skipped rather than widened into a wildcard.
func (i *Invalidator) Invalidate(ctx context.Context, entity Entity, keys Keys) {
	for _, rule := range invalidationRules[entity] {
		pattern, ok := expandPattern(rule.pattern, keys)
		if !ok {
			continue
		}
		SafeInvalidatePattern(ctx, rule.helper(i.manager), pattern)
	}
}

func expandPattern(pattern string, keys Keys) (string, bool) {
	for name, value := range keys {
		if value == "" {
			continue
		}
		pattern = strings.ReplaceAll(pattern, "{"+name+"}", value)
	}
	if strings.Contains(pattern, "{") {
		return "", false
	}
	return pattern, true
}
