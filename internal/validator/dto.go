package validator

// CreateOrderRequest starts a checkout for one course
type CreateOrderRequest struct {
	CourseID    string   `json:"courseId" validate:"required,max=64"`
	CourseTitle string   `json:"courseTitle" validate:"omitempty,max=255"`
	Amount      *float64 `json:"amount" validate:"omitempty,currency_amount"`
	ReturnURL   string   `json:"returnUrl" validate:"omitempty,url"`
	CancelURL   string   `json:"cancelUrl" validate:"omitempty,url"`
}

// CaptureOrderRequest finalises an approved checkout
type CaptureOrderRequest struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
	UserID  string `json:"userId" validate:"omitempty,max=255"`
}

// ManualEnrollmentRequest is the admin override form. Selection rules are
// checked by BusinessValidator so the caller gets one actionable message.
type ManualEnrollmentRequest struct {
	UserID          string  `json:"user_id" validate:"max=255"`
	CourseID        string  `json:"course_id" validate:"max=64"`
	PaymentReceived bool    `json:"payment_received"`
	Note            *string `json:"note" validate:"omitempty,max=500"`
}

// PaymentLinkRequest asks for a provider order whose approval link the admin can share
type PaymentLinkRequest struct {
	CourseID  string `json:"course_id" validate:"required,max=64"`
	UserID    string `json:"user_id" validate:"omitempty,max=255"`
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
	CancelURL string `json:"cancel_url" validate:"omitempty,url"`
}

// QuizAttemptRequest maps question id to the selected option index
type QuizAttemptRequest struct {
	Answers map[string]int `json:"answers" validate:"required,min=1,dive,min=0"`
}

type BulkGenerateRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=0"`
}

type GenerateContentRequest struct {
	DryRun bool `json:"dry_run"`
}
