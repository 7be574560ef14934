package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ccpq/academy-service/internal/models"
)

// BusinessValidator handles rules that depend on stored state
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a standalone business validator
func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{validate: newValidate()}
}

// Validate validates struct tags for any request
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateManualEnrollmentSelection rejects a submission missing the student or the course
func (bv *BusinessValidator) ValidateManualEnrollmentSelection(req *ManualEnrollmentRequest) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.CourseID) == "" {
		errs = append(errs, ValidationError{
			Field:   "selection",
			Message: "Please select both a student and a course",
			Rule:    "required",
		})
	}

	return errs
}

// ValidateManualEnrollment checks the payment acknowledgement against the course price.
// Free courses pass; priced courses need payment_received.
func (bv *BusinessValidator) ValidateManualEnrollment(req *ManualEnrollmentRequest, course *models.Course) ValidationErrors {
	errs := bv.ValidateManualEnrollmentSelection(req)
	if len(errs) > 0 || course == nil {
		return errs
	}

	if !course.IsFree() && !req.PaymentReceived {
		errs = append(errs, ValidationError{
			Field:   "payment_received",
			Message: "Check payment received to enable enrollment in a paid course",
			Value:   course.Price,
			Rule:    "payment_required",
		})
	}

	return errs
}
