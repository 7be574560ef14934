package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

type reconcileFixture struct {
	repo      *fakeRepo
	publisher *events.MockEventPublisher
	svc       *reconciliationService
	now       time.Time
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	repo := newFakeRepo()
	publisher := events.NewMockEventPublisher(testLogger())
	svc := NewReconciliationService(repo, nil, testLogger(), publisher, "@every 1h", 8).(*reconciliationService)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &reconcileFixture{repo: repo, publisher: publisher, svc: svc, now: now}
}

func (f *reconcileFixture) addTask(attempts int, nextAttempt time.Time) *models.ReconciliationTask {
	task := &models.ReconciliationTask{
		ID:            fmt.Sprintf("task-%d", len(f.repo.tasks)),
		OrderID:       fmt.Sprintf("ORDER-%d", len(f.repo.tasks)),
		UserID:        "student-1",
		CourseID:      "course-1",
		Reason:        "enrollment write failed after capture",
		Attempts:      attempts,
		Status:        models.ReconciliationPending,
		NextAttemptAt: nextAttempt,
	}
	f.repo.tasks = append(f.repo.tasks, task)
	return task
}

func TestRunDue_ResolvesTask(t *testing.T) {
	f := newReconcileFixture(t)
	f.addTask(0, f.now.Add(-time.Minute))

	result, err := f.svc.RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Due)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, models.ReconciliationResolved, f.repo.tasks[0].Status)
	assert.Equal(t, 1, f.repo.tasks[0].Attempts)
	assert.Nil(t, f.repo.tasks[0].LastError)

	assert.Equal(t, 1, f.repo.enrollmentCount("student-1", "course-1"))
	assert.Equal(t, "ORDER-0", deref(f.repo.enrollments[0].OrderID))
	assert.Equal(t, models.EnrollmentSourcePayment, f.repo.enrollments[0].Source)

	created := f.publisher.EventsOfType(events.EventEnrollmentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "ORDER-0", created[0].Data["order_id"])
}

func TestRunDue_BacksOffThenAbandons(t *testing.T) {
	f := newReconcileFixture(t)
	f.repo.failUpserts = 100
	f.repo.upsertErr = errors.New("deadlock detected")
	f.addTask(0, f.now)
	f.addTask(7, f.now)

	result, err := f.svc.RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Due)
	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, 1, result.Abandoned)

	retried := f.repo.tasks[0]
	assert.Equal(t, models.ReconciliationPending, retried.Status)
	assert.Equal(t, 1, retried.Attempts)
	assert.Equal(t, f.now.Add(time.Minute), retried.NextAttemptAt)
	assert.Equal(t, "deadlock detected", deref(retried.LastError))

	abandoned := f.repo.tasks[1]
	assert.Equal(t, models.ReconciliationAbandoned, abandoned.Status)
	assert.Equal(t, 8, abandoned.Attempts)

	assert.Empty(t, f.repo.enrollments)
	assert.Empty(t, f.publisher.GetPublishedEvents())

	// The retried task is not due again until its backoff passes
	again, err := f.svc.RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Due)
}

func TestRunDue_ExistingEnrollmentResolvesWithoutEvent(t *testing.T) {
	f := newReconcileFixture(t)
	f.repo.enrollments = append(f.repo.enrollments, &models.Enrollment{ID: "e-1", UserID: "student-1", CourseID: "course-1"})
	f.addTask(2, f.now)

	result, err := f.svc.RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, 1, f.repo.enrollmentCount("student-1", "course-1"))
	assert.Empty(t, f.publisher.EventsOfType(events.EventEnrollmentCreated))
}

func TestRunDue_ExpiresPendingOrders(t *testing.T) {
	f := newReconcileFixture(t)
	f.repo.pending["ORDER-OLD"] = &models.PendingOrder{OrderID: "ORDER-OLD", Status: models.PendingOrderCreated, ExpiresAt: f.now.Add(-time.Minute)}
	f.repo.pending["ORDER-NEW"] = &models.PendingOrder{OrderID: "ORDER-NEW", Status: models.PendingOrderCreated, ExpiresAt: f.now.Add(time.Hour)}
	f.repo.pending["ORDER-PAID"] = &models.PendingOrder{OrderID: "ORDER-PAID", Status: models.PendingOrderCaptured, ExpiresAt: f.now.Add(-time.Hour)}

	result, err := f.svc.RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.ExpiredOrders)
	assert.Equal(t, models.PendingOrderExpired, f.repo.pending["ORDER-OLD"].Status)
	assert.Equal(t, models.PendingOrderCreated, f.repo.pending["ORDER-NEW"].Status)
	assert.Equal(t, models.PendingOrderCaptured, f.repo.pending["ORDER-PAID"].Status)
}

func TestRetry(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()
	task := f.addTask(8, f.now.Add(time.Hour))
	task.Status = models.ReconciliationAbandoned

	retried, err := f.svc.Retry(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReconciliationResolved, retried.Status)
	assert.Equal(t, 1, f.repo.enrollmentCount("student-1", "course-1"))

	again, err := f.svc.Retry(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReconciliationResolved, again.Status)

	_, err = f.svc.Retry(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestReconciliationList(t *testing.T) {
	f := newReconcileFixture(t)
	f.addTask(0, f.now)
	resolved := f.addTask(1, f.now)
	resolved.Status = models.ReconciliationResolved

	status := models.ReconciliationPending
	list, err := f.svc.List(context.Background(), repositories.ReconciliationFilters{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 50, list.Limit)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, models.ReconciliationPending, list.Tasks[0].Status)
}

func TestReconciliationScheduler(t *testing.T) {
	repo := newFakeRepo()

	bad := NewReconciliationService(repo, nil, testLogger(), nil, "every now and then", 8)
	assert.Error(t, bad.Start())

	svc := NewReconciliationService(repo, nil, testLogger(), nil, "@every 1h", 8)
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Stop(ctx))
	assert.NoError(t, svc.Stop(ctx))
}
