package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/models"
)

// PaymentRepository persists checkout state across the provider redirect
type PaymentRepository interface {
	// Pending orders
	CreatePendingOrder(ctx context.Context, tx *gorm.DB, order *models.PendingOrder) error
	GetPendingOrder(ctx context.Context, tx *gorm.DB, orderID string) (*models.PendingOrder, error)
	GetPendingOrderByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*models.PendingOrder, error)
	UpdatePendingOrderStatus(ctx context.Context, tx *gorm.DB, orderID string, status models.PendingOrderStatus) error
	ExpirePendingOrders(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)

	// Captures
	SaveCapture(ctx context.Context, tx *gorm.DB, capture *models.PaymentCapture) error
	GetCapture(ctx context.Context, tx *gorm.DB, orderID string) (*models.PaymentCapture, error)
	AssignCaptureUser(ctx context.Context, tx *gorm.DB, orderID, userID string) error
}

// ReconciliationRepository is the outbox for captures whose enrollment write failed
type ReconciliationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, task *models.ReconciliationTask) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ReconciliationTask, error)
	ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.ReconciliationTask, error)
	List(ctx context.Context, tx *gorm.DB, filters ReconciliationFilters) ([]*models.ReconciliationTask, int64, error)
	Update(ctx context.Context, tx *gorm.DB, task *models.ReconciliationTask) error
}
