package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/metrics"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

const reconcileBatchSize = 50

type reconciliationService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	publisher   events.EventPublisher
	schedule    string
	maxAttempts int
	now         func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running sync.Mutex
}

func NewReconciliationService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	publisher events.EventPublisher,
	schedule string,
	maxAttempts int,
) ReconciliationService {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &reconciliationService{
		repo:        repo,
		db:          db,
		logger:      logger,
		publisher:   publisher,
		schedule:    schedule,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the sweep on the cron scheduler
func (s *reconciliationService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("Reconciliation scheduler started", "schedule", s.schedule, "max_attempts", s.maxAttempts)
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire
func (s *reconciliationService) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *reconciliationService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := s.RunDue(ctx)
	if err != nil {
		s.logger.Error("Reconciliation sweep failed", "error", err)
		return
	}
	if result.Due > 0 || result.ExpiredOrders > 0 {
		s.logger.Info("Reconciliation sweep finished",
			"due", result.Due,
			"resolved", result.Resolved,
			"retried", result.Retried,
			"abandoned", result.Abandoned,
			"expired_orders", result.ExpiredOrders)
	}
}

// RunDue retries every task whose next attempt has come and expires stale checkouts.
// Overlapping runs are skipped.
func (s *reconciliationService) RunDue(ctx context.Context) (*ReconciliationRunResult, error) {
	if !s.running.TryLock() {
		s.logger.Debug("Reconciliation run already in progress")
		return &ReconciliationRunResult{}, nil
	}
	defer s.running.Unlock()

	now := s.now()
	result := &ReconciliationRunResult{}

	tasks, err := s.repo.Reconciliation().ListDue(ctx, nil, now, reconcileBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	result.Due = len(tasks)

	for _, task := range tasks {
		if err := s.attempt(ctx, task); err != nil {
			s.logger.Error("Failed to update reconciliation task", "task_id", task.ID, "error", err)
			continue
		}
		switch task.Status {
		case models.ReconciliationResolved:
			result.Resolved++
		case models.ReconciliationAbandoned:
			result.Abandoned++
		default:
			result.Retried++
		}
	}

	expired, err := s.repo.Payment().ExpirePendingOrders(ctx, nil, now)
	if err != nil {
		s.logger.Error("Failed to expire pending orders", "error", err)
	}
	result.ExpiredOrders = expired

	return result, nil
}

// Retry attempts one task immediately. Abandoned tasks get one more try.
func (s *reconciliationService) Retry(ctx context.Context, taskID string) (*models.ReconciliationTask, error) {
	task, err := s.repo.Reconciliation().GetByID(ctx, nil, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get reconciliation task: %w", err)
	}

	if task.Status == models.ReconciliationResolved {
		return task, nil
	}
	if task.Status == models.ReconciliationAbandoned {
		task.Status = models.ReconciliationPending
		task.Attempts = s.maxAttempts - 1
	}

	if err := s.attempt(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *reconciliationService) List(ctx context.Context, filters repositories.ReconciliationFilters) (*ReconciliationListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 50
	}

	tasks, total, err := s.repo.Reconciliation().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliation tasks: %w", err)
	}

	return &ReconciliationListResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

// attempt replays the enrollment upsert and persists the task's new state.
// The returned error covers only the task write.
func (s *reconciliationService) attempt(ctx context.Context, task *models.ReconciliationTask) error {
	orderID := task.OrderID
	enrollment := &models.Enrollment{
		UserID:   task.UserID,
		CourseID: task.CourseID,
		Source:   models.EnrollmentSourcePayment,
		OrderID:  &orderID,
	}

	task.Attempts++
	created, upsertErr := s.repo.Enrollment().Upsert(ctx, nil, enrollment)

	switch {
	case upsertErr == nil:
		task.Status = models.ReconciliationResolved
		task.LastError = nil
		metrics.ReconciliationTasks.WithLabelValues("resolved").Inc()
	case task.Attempts >= s.maxAttempts:
		reason := upsertErr.Error()
		task.Status = models.ReconciliationAbandoned
		task.LastError = &reason
		metrics.ReconciliationTasks.WithLabelValues("abandoned").Inc()
		s.logger.Error("Reconciliation task abandoned",
			"task_id", task.ID, "order_id", task.OrderID, "attempts", task.Attempts, "error", upsertErr)
	default:
		reason := upsertErr.Error()
		task.LastError = &reason
		task.NextAttemptAt = s.now().Add(task.Backoff())
		metrics.ReconciliationTasks.WithLabelValues("retried").Inc()
		s.logger.Warn("Reconciliation attempt failed",
			"task_id", task.ID, "order_id", task.OrderID, "attempts", task.Attempts, "next_attempt_at", task.NextAttemptAt)
	}

	if err := s.repo.Reconciliation().Update(ctx, nil, task); err != nil {
		return fmt.Errorf("failed to update reconciliation task: %w", err)
	}

	if upsertErr != nil {
		return nil
	}

	if created {
		metrics.Enrollments.WithLabelValues(string(models.EnrollmentSourcePayment), "created").Inc()
		if s.publisher != nil {
			event := events.NewEvent(events.EventEnrollmentCreated, map[string]string{
				"user_id":   task.UserID,
				"course_id": task.CourseID,
				"order_id":  task.OrderID,
				"source":    string(models.EnrollmentSourcePayment),
			})
			if err := s.publisher.Publish(ctx, event); err != nil {
				s.logger.Warn("Failed to publish enrollment event", "order_id", task.OrderID, "error", err)
			}
		}
	}
	s.logger.Info("Reconciliation task resolved", "task_id", task.ID, "order_id", task.OrderID, "created", created)
	return nil
}
