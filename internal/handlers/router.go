package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccpq/academy-service/internal/config"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/repositories"
	"github.com/ccpq/academy-service/internal/services"
	"github.com/ccpq/academy-service/internal/utils"
)

type HandlerManager struct {
	paymentHandler        *PaymentHandler
	enrollmentHandler     *EnrollmentHandler
	courseHandler         *CourseHandler
	progressHandler       *ProgressHandler
	contentHandler        *ContentHandler
	reconciliationHandler *ReconciliationHandler
	dashboardHandler      *DashboardHandler
	userHandler           *UserHandler
	authMiddleware        *CasdoorAuthMiddleware
	serviceManager        services.ServiceManager
	logger                utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	return newHandlerManager(serviceManager, logger, NewCasdoorAuthMiddleware(casdoorConfig, userRepo, logger))
}

func newHandlerManager(serviceManager services.ServiceManager, logger utils.Logger, authMiddleware *CasdoorAuthMiddleware) *HandlerManager {
	return &HandlerManager{
		paymentHandler:        NewPaymentHandler(serviceManager.Payment(), logger),
		enrollmentHandler:     NewEnrollmentHandler(serviceManager.Enrollment(), logger),
		courseHandler:         NewCourseHandler(serviceManager.Course(), logger),
		progressHandler:       NewProgressHandler(serviceManager.Progress(), logger),
		contentHandler:        NewContentHandler(serviceManager.Content(), logger),
		reconciliationHandler: NewReconciliationHandler(serviceManager.Reconciliation(), logger),
		dashboardHandler:      NewDashboardHandler(serviceManager.Dashboard(), logger),
		userHandler:           NewUserHandler(authMiddleware.userRepo, logger),
		authMiddleware:        authMiddleware,
		serviceManager:        serviceManager,
		logger:                logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	auth := hm.authMiddleware
	v1 := router.Group("/api/v1")

	// Checkout accepts anonymous buyers; a token, when present, names the user
	payments := v1.Group("/payments")
	payments.Use(auth.OptionalAuthMiddleware())
	{
		payments.POST("/orders", hm.paymentHandler.CreateOrder)
		payments.POST("/capture", hm.paymentHandler.CaptureOrder)
		payments.GET("/orders/:id", hm.paymentHandler.GetOrder)
	}

	// Catalog
	catalog := v1.Group("")
	catalog.Use(auth.OptionalAuthMiddleware())
	{
		catalog.GET("/courses", hm.courseHandler.ListCourses)
		catalog.GET("/courses/:slug", hm.courseHandler.GetCourse)
		catalog.GET("/categories", hm.courseHandler.ListCategories)
	}

	// Learner routes
	learner := v1.Group("")
	learner.Use(auth.AuthMiddleware(), auth.RequireCapability(models.CapabilityLearn))
	{
		learner.GET("/courses/:slug/content", hm.courseHandler.GetCourseContent)
		learner.POST("/courses/:slug/enroll", hm.enrollmentHandler.EnrollFree)
		learner.POST("/lessons/:id/complete", hm.progressHandler.CompleteLesson)
		learner.POST("/quizzes/:id/attempts", hm.progressHandler.SubmitQuizAttempt)

		me := learner.Group("/me")
		{
			me.GET("/enrollments", hm.enrollmentHandler.ListMyEnrollments)
			me.GET("/courses/:id/enrollment", hm.enrollmentHandler.GetEnrollmentStatus)
			me.GET("/courses/:id/progress", hm.progressHandler.GetCourseProgress)
			me.POST("/orders/:id/claim", hm.paymentHandler.ClaimOrder)
		}
	}

	// Back office
	admin := v1.Group("/admin")
	admin.Use(auth.AuthMiddleware())
	{
		reports := auth.RequireCapability(models.CapabilityViewReports)
		admin.GET("/stats", reports, hm.dashboardHandler.GetDashboardStats)
		admin.GET("/enrollments", reports, hm.enrollmentHandler.ListEnrollments)
		admin.GET("/enrollments/export", reports, hm.enrollmentHandler.ExportEnrollments)
		admin.GET("/progress", reports, hm.progressHandler.ListRecentProgress)
		admin.GET("/quiz-attempts", reports, hm.progressHandler.ListRecentQuizAttempts)

		enrollments := auth.RequireCapability(models.CapabilityManageEnrollments)
		admin.POST("/enrollments", enrollments, hm.enrollmentHandler.EnrollStudent)
		admin.GET("/users", enrollments, hm.userHandler.ListUsers)
		admin.GET("/users/:id", enrollments, hm.userHandler.GetUser)
		admin.POST("/enrollments/payment-link", auth.RequireCapability(models.CapabilityManagePayments), hm.paymentHandler.CreatePaymentLink)

		content := auth.RequireCapability(models.CapabilityManageContent)
		admin.POST("/courses/:id/generate-content", content, hm.contentHandler.GenerateCourseContent)
		admin.POST("/content/generate-bulk", content, hm.contentHandler.GenerateBulkContent)

		payments := auth.RequireCapability(models.CapabilityManagePayments)
		admin.GET("/reconciliation", payments, hm.reconciliationHandler.ListTasks)
		admin.POST("/reconciliation/run", payments, hm.reconciliationHandler.RunNow)
		admin.POST("/reconciliation/:id/retry", payments, hm.reconciliationHandler.RetryTask)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			utils.GetLogger(c, hm.logger).Warn("Health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "academy-service",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "academy-service",
		})
	})
}
