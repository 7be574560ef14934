package models

import (
	"time"

	"gorm.io/datatypes"
)

type PendingOrderStatus string

const (
	PendingOrderCreated  PendingOrderStatus = "CREATED"
	PendingOrderCaptured PendingOrderStatus = "CAPTURED"
	PendingOrderFailed   PendingOrderStatus = "FAILED"
	PendingOrderExpired  PendingOrderStatus = "EXPIRED"
)

// CaptureStatusCompleted is the provider status that unlocks enrollment
const CaptureStatusCompleted = "COMPLETED"

// PendingOrder tracks a checkout between order creation and capture.
// Only the order id travels through the provider redirect.
type PendingOrder struct {
	OrderID        string             `json:"order_id" gorm:"primaryKey;size:64"`
	CourseID       string             `json:"course_id" gorm:"type:uuid;not null;index"`
	CourseSlug     string             `json:"course_slug" gorm:"not null;size:255"`
	UserID         *string            `json:"user_id" gorm:"size:255;index"`
	Amount         float64            `json:"amount" gorm:"type:numeric(10,2);not null"`
	Currency       string             `json:"currency" gorm:"size:3;not null;default:ZAR"`
	Status         PendingOrderStatus `json:"status" gorm:"size:20;not null;default:CREATED;index"`
	IdempotencyKey *string            `json:"-" gorm:"size:255;index"`
	ApprovalURL    string             `json:"approval_url" gorm:"size:1000"`
	ExpiresAt      time.Time          `json:"expires_at" gorm:"not null;index"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (PendingOrder) TableName() string {
	return "pending_orders"
}

// IsExpired reports whether an uncaptured order has outlived its TTL
func (p *PendingOrder) IsExpired(now time.Time) bool {
	return p.Status == PendingOrderCreated && now.After(p.ExpiresAt)
}

// PaymentCapture is the stored outcome of a provider capture call
type PaymentCapture struct {
	OrderID    string         `json:"order_id" gorm:"primaryKey;size:64"`
	CaptureID  string         `json:"capture_id" gorm:"size:64"`
	Status     string         `json:"status" gorm:"size:32;not null"`
	PayerEmail string         `json:"payer_email" gorm:"size:255"`
	Amount     string         `json:"amount" gorm:"size:32"`
	Currency   string         `json:"currency" gorm:"size:3"`
	CourseID   string         `json:"course_id" gorm:"type:uuid;index"`
	UserID     *string        `json:"user_id" gorm:"size:255;index"`
	Raw        datatypes.JSON `json:"-" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (PaymentCapture) TableName() string {
	return "payment_captures"
}

func (p *PaymentCapture) IsCompleted() bool {
	return p.Status == CaptureStatusCompleted
}
