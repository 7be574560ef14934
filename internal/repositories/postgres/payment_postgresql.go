package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ccpq/academy-service/internal/cache"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

// PaymentPostgreSQL stores pending orders in postgres with a redis copy under
// pending:order:<id>. Redis failures degrade to the database.
type PaymentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewPaymentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.PaymentRepository {
	return &PaymentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (p *PaymentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

// ===== PENDING ORDERS =====

func (p *PaymentPostgreSQL) CreatePendingOrder(ctx context.Context, tx *gorm.DB, order *models.PendingOrder) error {
	err := p.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(order).Error
	if err != nil {
		return fmt.Errorf("failed to create pending order: %w", err)
	}

	p.cachePendingOrder(ctx, order)
	if order.IdempotencyKey != nil {
		if _, err := p.cacheManager.Idempotency.SetNX(ctx, *order.IdempotencyKey, order.OrderID, cache.IdempotencyCacheConfig.TTL); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
			slog.WarnContext(ctx, "Failed to cache idempotency key", "error", err, "order_id", order.OrderID)
		}
	}
	return nil
}

func (p *PaymentPostgreSQL) cachePendingOrder(ctx context.Context, order *models.PendingOrder) {
	ttl := time.Until(order.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := p.cacheManager.PendingOrder.Set(ctx, order.OrderID, order, ttl); err != nil {
		slog.WarnContext(ctx, "Failed to cache pending order", "error", err, "order_id", order.OrderID)
	}
}

// GetPendingOrder reads redis first and falls back to the database
func (p *PaymentPostgreSQL) GetPendingOrder(ctx context.Context, tx *gorm.DB, orderID string) (*models.PendingOrder, error) {
	var order models.PendingOrder
	if tx == nil {
		if err := p.cacheManager.PendingOrder.Get(ctx, orderID, &order); err == nil {
			return &order, nil
		}
	}

	if err := p.getDB(tx).WithContext(ctx).First(&order, "order_id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("failed to get pending order: %w", err)
	}
	if order.Status == models.PendingOrderCreated {
		p.cachePendingOrder(ctx, &order)
	}
	return &order, nil
}

func (p *PaymentPostgreSQL) GetPendingOrderByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*models.PendingOrder, error) {
	if tx == nil {
		if orderID, err := p.cacheManager.Idempotency.GetString(ctx, key); err == nil {
			return p.GetPendingOrder(ctx, tx, orderID)
		}
	}

	var order models.PendingOrder
	err := p.getDB(tx).WithContext(ctx).
		Where("idempotency_key = ?", key).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get pending order by idempotency key: %w", err)
	}
	return &order, nil
}

// UpdatePendingOrderStatus moves the order out of CREATED and drops the redis copy
func (p *PaymentPostgreSQL) UpdatePendingOrderStatus(ctx context.Context, tx *gorm.DB, orderID string, status models.PendingOrderStatus) error {
	result := p.getDB(tx).WithContext(ctx).
		Model(&models.PendingOrder{}).
		Where("order_id = ?", orderID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update pending order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update pending order: %w", gorm.ErrRecordNotFound)
	}

	cache.SafeDelete(ctx, p.cacheManager.PendingOrder, orderID)
	return nil
}

// ExpirePendingOrders marks uncaptured orders past expires_at as EXPIRED
func (p *PaymentPostgreSQL) ExpirePendingOrders(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	result := p.getDB(tx).WithContext(ctx).
		Model(&models.PendingOrder{}).
		Where("status = ? AND expires_at < ?", models.PendingOrderCreated, now).
		Update("status", models.PendingOrderExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire pending orders: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ===== CAPTURES =====

// SaveCapture stores the capture outcome. A COMPLETED row is never overwritten.
func (p *PaymentPostgreSQL) SaveCapture(ctx context.Context, tx *gorm.DB, capture *models.PaymentCapture) error {
	err := p.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"capture_id", "status", "payer_email", "amount", "currency", "raw"}),
			Where:     clause.Where{Exprs: []clause.Expression{clause.Neq{Column: "payment_captures.status", Value: models.CaptureStatusCompleted}}},
		}).
		Create(capture).Error
	if err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	return nil
}

func (p *PaymentPostgreSQL) GetCapture(ctx context.Context, tx *gorm.DB, orderID string) (*models.PaymentCapture, error) {
	var capture models.PaymentCapture
	if err := p.getDB(tx).WithContext(ctx).First(&capture, "order_id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return &capture, nil
}

// AssignCaptureUser attaches a user to an unclaimed capture
func (p *PaymentPostgreSQL) AssignCaptureUser(ctx context.Context, tx *gorm.DB, orderID, userID string) error {
	result := p.getDB(tx).WithContext(ctx).
		Model(&models.PaymentCapture{}).
		Where("order_id = ? AND (user_id IS NULL OR user_id = ?)", orderID, userID).
		Update("user_id", userID)
	if result.Error != nil {
		return fmt.Errorf("failed to assign capture user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to assign capture user: %w", gorm.ErrRecordNotFound)
	}
	return nil
}
