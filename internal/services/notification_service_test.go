package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccpq/academy-service/internal/events"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
)

func TestHandleEnrollmentCreated(t *testing.T) {
	repo := newFakeRepo()
	course := repo.addCourse(&models.Course{Title: "Anti Money Laundering", Price: 499, IsPublished: true})
	repo.addUser("student-1", "Thandi Mokoena", "thandi@example.com", models.RoleStudent)
	repo.addUser("student-2", "No Mail", "", models.RoleStudent)
	ctx := context.Background()

	paid := func(userID string) *events.Event {
		return events.NewEvent(events.EventEnrollmentCreated, map[string]string{
			"user_id":   userID,
			"course_id": course.ID,
			"order_id":  "ORDER-1",
			"source":    "payment",
		})
	}

	t.Run("paid enrollment sends receipt", func(t *testing.T) {
		sender := &fakeSender{}
		svc := NewNotificationService(repo, sender, testLogger())

		require.NoError(t, svc.HandleEnrollmentCreated(ctx, paid("student-1")))

		sent := sender.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "thandi@example.com", sent[0].ToAddress)
		assert.Equal(t, "Your enrollment in Anti Money Laundering", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "ORDER-1")
		assert.Contains(t, sent[0].TextContent, "R499.00")
		assert.Contains(t, sent[0].HTMLContent, "<strong>Anti Money Laundering</strong>")
	})

	t.Run("admin and free enrollments are ignored", func(t *testing.T) {
		sender := &fakeSender{}
		svc := NewNotificationService(repo, sender, testLogger())

		for _, source := range []string{"admin", "free"} {
			event := events.NewEvent(events.EventEnrollmentCreated, map[string]string{
				"user_id": "student-1", "course_id": course.ID, "source": source,
			})
			require.NoError(t, svc.HandleEnrollmentCreated(ctx, event))
		}
		assert.Empty(t, sender.sent())
	})

	t.Run("user without email is skipped", func(t *testing.T) {
		sender := &fakeSender{}
		svc := NewNotificationService(repo, sender, testLogger())

		require.NoError(t, svc.HandleEnrollmentCreated(ctx, paid("student-2")))
		assert.Empty(t, sender.sent())
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := NewNotificationService(repo, &fakeSender{}, testLogger())

		err := svc.HandleEnrollmentCreated(ctx, paid("ghost"))
		assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	})

	t.Run("mail provider failure", func(t *testing.T) {
		svc := NewNotificationService(repo, &fakeSender{err: errors.New("rejected")}, testLogger())

		err := svc.HandleEnrollmentCreated(ctx, paid("student-1"))
		assert.ErrorContains(t, err, "failed to send receipt")
	})
}
