package repositories

import "context"

// Repository aggregates every repository of the academy service
type Repository interface {
	// Catalog domain
	Course() CourseRepository

	// Enrollment ledger
	Enrollment() EnrollmentRepository

	// Learner progress
	Progress() ProgressRepository

	// Checkout state and reconciliation outbox
	Payment() PaymentRepository
	Reconciliation() ReconciliationRepository

	// User domain (read-only, owned by the identity provider)
	User() UserRepository

	// Back-office statistics
	Dashboard() DashboardRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
