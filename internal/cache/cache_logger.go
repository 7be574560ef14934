package cache

import (
	"context"
	"log/slog"
)

// Cache writes are best effort; a Redis failure is logged and the caller
// carries on against the database.

// SafeInvalidatePattern drops every key under pattern in the helper's namespace
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if !helper.Available() {
		return
	}
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"namespace", helper.prefix,
			"pattern", pattern)
	}
}

// SafeDelete removes keys, such as a captured pending order, from the cache
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if !helper.Available() || len(keys) == 0 {
		return
	}
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"namespace", helper.prefix,
			"keys", keys)
	}
}
