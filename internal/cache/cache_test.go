package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheManager(client), mr
}

func TestCacheOrExecute(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return map[string]string{"title": "Payroll"}, nil
	}

	var first map[string]string
	require.NoError(t, cm.Course.CacheOrExecute(ctx, "id:c1", &first, time.Minute, fetch))
	assert.Equal(t, "Payroll", first["title"])
	assert.True(t, mr.Exists("course:id:c1"))

	var second map[string]string
	require.NoError(t, cm.Course.CacheOrExecute(ctx, "id:c1", &second, time.Minute, fetch))
	assert.Equal(t, "Payroll", second["title"])
	assert.Equal(t, 1, calls)
}

func TestCacheOrExecuteReturnsFetchError(t *testing.T) {
	cm, _ := newTestManager(t)
	wantErr := errors.New("boom")

	var dest map[string]string
	err := cm.Course.CacheOrExecute(context.Background(), "id:c2", &dest, time.Minute, func() (interface{}, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestNilClientDegrades(t *testing.T) {
	cm := NewCacheManager(nil)
	ctx := context.Background()

	assert.NoError(t, cm.Course.Set(ctx, "id:c1", "x", time.Minute))
	var dest string
	assert.ErrorIs(t, cm.Course.Get(ctx, "id:c1", &dest), ErrCacheNotAvailable)
	assert.ErrorIs(t, cm.HealthCheck(ctx), ErrCacheNotAvailable)

	calls := 0
	require.NoError(t, cm.Course.CacheOrExecute(ctx, "id:c1", &dest, time.Minute, func() (interface{}, error) {
		calls++
		return "value", nil
	}))
	assert.Equal(t, "value", dest)
	assert.Equal(t, 1, calls)
}

func TestSetNX(t *testing.T) {
	cm, _ := newTestManager(t)
	ctx := context.Background()

	ok, err := cm.Idempotency.SetNX(ctx, "key-1", "ORDER-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cm.Idempotency.SetNX(ctx, "key-1", "ORDER-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := cm.Idempotency.GetString(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", value)
}

func TestInvalidatorEnrollment(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, cm.Enrollment.Set(ctx, "user:u1:course:c1", true, time.Minute))
	require.NoError(t, cm.Enrollment.Set(ctx, "user:u1:list", []string{"c1"}, time.Minute))
	require.NoError(t, cm.Enrollment.Set(ctx, "user:u2:course:c1", true, time.Minute))
	require.NoError(t, cm.Stats.Set(ctx, "admin", 3, time.Minute))
	require.NoError(t, cm.Course.Set(ctx, "id:c1", "course", time.Minute))

	NewInvalidator(cm).Invalidate(ctx, EntityEnrollment, Keys{"user_id": "u1", "course_id": "c1"})

	assert.False(t, mr.Exists("enrollment:user:u1:course:c1"))
	assert.False(t, mr.Exists("enrollment:user:u1:list"))
	assert.False(t, mr.Exists("stats:admin"))
	assert.True(t, mr.Exists("enrollment:user:u2:course:c1"))
	assert.True(t, mr.Exists("course:id:c1"))
}

func TestInvalidatorSkipsUnfilledPlaceholders(t *testing.T) {
	cm, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, cm.Enrollment.Set(ctx, "user:u1:course:c1", true, time.Minute))
	require.NoError(t, cm.Stats.Set(ctx, "admin", 3, time.Minute))

	NewInvalidator(cm).Invalidate(ctx, EntityEnrollment, Keys{})

	assert.True(t, mr.Exists("enrollment:user:u1:course:c1"))
	assert.False(t, mr.Exists("stats:admin"))
}

func TestExpandPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		keys    Keys
		want    string
		ok      bool
	}{
		{"filled", "user:{user_id}:*", Keys{"user_id": "u1"}, "user:u1:*", true},
		{"missing", "user:{user_id}:*", Keys{"course_id": "c1"}, "", false},
		{"empty value", "id:{course_id}", Keys{"course_id": ""}, "", false},
		{"no placeholder", "list:*", nil, "list:*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := expandPattern(tt.pattern, tt.keys)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
