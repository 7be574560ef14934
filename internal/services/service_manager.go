package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/cache"
	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/notify"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/validator"
)

// Dependencies are the collaborators shared by every service
type Dependencies struct {
	Gateway   PaymentGateway
	Content   ContentGenerator
	Publisher events.EventPublisher
	Cache     *cache.CacheManager
	Mailer    notify.Sender
}

// ServiceManagerConfig holds the tunables of the service layer
type ServiceManagerConfig struct {
	PendingOrderTTL   time.Duration
	ReconcileSchedule string
	MaxReconcileTries int
	StartScheduler    bool
}

// DefaultServiceManagerConfig matches the production defaults
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		PendingOrderTTL:   3 * time.Hour,
		ReconcileSchedule: "@every 5m",
		MaxReconcileTries: 8,
		StartScheduler:    true,
	}
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	deps      Dependencies
	config    ServiceManagerConfig

	// Service instances
	paymentService        PaymentService
	enrollmentService     EnrollmentService
	courseService         CourseService
	progressService       ProgressService
	contentService        ContentService
	reconciliationService ReconciliationService
	dashboardService      DashboardService
	notificationService   *NotificationService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(
	db *gorm.DB,
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	deps Dependencies,
	config ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		deps:      deps,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps Dependencies) ServiceManager {
	return NewServiceManager(db, repo, logger, validator, deps, DefaultServiceManagerConfig())
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if sm.config.StartScheduler {
		if err := sm.reconciliationService.Start(); err != nil {
			return fmt.Errorf("failed to start reconciliation scheduler: %w", err)
		}
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() error {
	if sm.deps.Gateway == nil {
		return errors.New("payment gateway is required")
	}
	if sm.deps.Content == nil {
		return errors.New("content generator is required")
	}

	publisher := sm.deps.Publisher

	sm.paymentService = NewPaymentService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Gateway, publisher, sm.config.PendingOrderTTL)
	sm.logger.Info("Payment service initialized")

	sm.enrollmentService = NewEnrollmentService(sm.repo, sm.db, sm.logger, sm.validator, publisher)
	sm.logger.Info("Enrollment service initialized")

	sm.courseService = NewCourseService(sm.repo, sm.db, sm.logger)
	sm.logger.Info("Course service initialized")

	sm.progressService = NewProgressService(sm.repo, sm.db, sm.logger, sm.validator, publisher)
	sm.logger.Info("Progress service initialized")

	sm.contentService = NewContentService(sm.repo, sm.db, sm.logger, sm.deps.Content, publisher)
	sm.logger.Info("Content service initialized")

	sm.reconciliationService = NewReconciliationService(sm.repo, sm.db, sm.logger, publisher,
		sm.config.ReconcileSchedule, sm.config.MaxReconcileTries)
	sm.logger.Info("Reconciliation service initialized")

	sm.dashboardService = NewDashboardService(sm.repo, sm.db, sm.logger, sm.deps.Cache)
	sm.logger.Info("Dashboard service initialized")

	mailer := sm.deps.Mailer
	if mailer == nil {
		mailer = notify.NewLogSender(sm.logger)
	}
	sm.notificationService = NewNotificationService(sm.repo, mailer, sm.logger)
	sm.logger.Info("Notification service initialized")

	return nil
}

func (sm *serviceManager) ensureInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Service getters
func (sm *serviceManager) Payment() PaymentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.paymentService
}

func (sm *serviceManager) Enrollment() EnrollmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.enrollmentService
}

func (sm *serviceManager) Course() CourseService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.courseService
}

func (sm *serviceManager) Progress() ProgressService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.progressService
}

func (sm *serviceManager) Content() ContentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.contentService
}

func (sm *serviceManager) Reconciliation() ReconciliationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.reconciliationService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.dashboardService
}

func (sm *serviceManager) Notification() *NotificationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ensureInitialized()
	return sm.notificationService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.reconciliationService != nil {
		if err := sm.reconciliationService.Stop(ctx); err != nil {
			sm.logger.Error("Failed to stop reconciliation scheduler", "error", err)
		}
	}

	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
