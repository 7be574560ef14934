package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/validator"
)

func TestServiceManagerLifecycle(t *testing.T) {
	repo := newFakeRepo()
	deps := Dependencies{
		Gateway:   &fakeGateway{},
		Content:   &fakeGenerator{},
		Publisher: events.NewMockEventPublisher(testLogger()),
	}
	config := DefaultServiceManagerConfig()
	config.StartScheduler = false

	sm := NewServiceManager(nil, repo, testLogger(), validator.New(), deps, config)
	ctx := context.Background()

	assert.Panics(t, func() { sm.Payment() })
	assert.Error(t, sm.HealthCheck(ctx))

	require.NoError(t, sm.Initialize(ctx))
	require.NoError(t, sm.Initialize(ctx))

	assert.NotNil(t, sm.Payment())
	assert.NotNil(t, sm.Enrollment())
	assert.NotNil(t, sm.Course())
	assert.NotNil(t, sm.Progress())
	assert.NotNil(t, sm.Content())
	assert.NotNil(t, sm.Reconciliation())
	assert.NotNil(t, sm.Dashboard())
	assert.NotNil(t, sm.Notification())
	assert.NoError(t, sm.HealthCheck(ctx))

	require.NoError(t, sm.Shutdown(ctx))
	assert.Error(t, sm.HealthCheck(ctx))
}

func TestServiceManager_RequiresCollaborators(t *testing.T) {
	config := DefaultServiceManagerConfig()
	config.StartScheduler = false

	sm := NewServiceManager(nil, newFakeRepo(), testLogger(), validator.New(), Dependencies{Content: &fakeGenerator{}}, config)
	assert.Error(t, sm.Initialize(context.Background()))

	sm = NewServiceManager(nil, newFakeRepo(), testLogger(), validator.New(), Dependencies{Gateway: &fakeGateway{}}, config)
	assert.Error(t, sm.Initialize(context.Background()))
}
