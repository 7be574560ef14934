package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/cache"
	"github.com/ccpq/academy-service/internal/repositories"
)

const dashboardStatsKey = "admin"

type dashboardService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	cache  *cache.CacheManager
}

func NewDashboardService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, cacheManager *cache.CacheManager) DashboardService {
	return &dashboardService{
		repo:   repo,
		db:     db,
		logger: logger,
		cache:  cacheManager,
	}
}

// GetStats reads the back-office counters through the stats cache
func (s *dashboardService) GetStats(ctx context.Context) (*DashboardStatsResponse, error) {
	if s.cache == nil {
		return s.loadStats(ctx)
	}

	var stats DashboardStatsResponse
	err := s.cache.Stats.CacheOrExecute(ctx, dashboardStatsKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		return s.loadStats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *dashboardService) loadStats(ctx context.Context) (*DashboardStatsResponse, error) {
	s.logger.Debug("Loading dashboard stats")

	dashboard := s.repo.Dashboard()

	totalCourses, err := dashboard.GetTotalCourses(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get total courses: %w", err)
	}

	totalEnrollments, err := dashboard.GetTotalEnrollments(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get total enrollments: %w", err)
	}

	totalStudents, err := dashboard.GetTotalStudents(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get total students: %w", err)
	}

	completedLessons, err := dashboard.GetCompletedLessons(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed lessons: %w", err)
	}

	openReconciliations, err := dashboard.GetOpenReconciliations(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get open reconciliations: %w", err)
	}

	return &DashboardStatsResponse{
		TotalCourses:        totalCourses,
		TotalEnrollments:    totalEnrollments,
		TotalStudents:       totalStudents,
		CompletedLessons:    completedLessons,
		OpenReconciliations: openReconciliations,
	}, nil
}
