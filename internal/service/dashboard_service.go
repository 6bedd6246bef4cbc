package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
)

var dashboardCacheKey = CacheKey("dashboard", "summary")

type changeSubscriber interface {
	Subscribe(ctx context.Context, collection string) (<-chan models.ChangeEvent, error)
}

// DashboardService aggregates report and fleet counters for the overview page.
type DashboardService struct {
	store  repository.Store
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService constructs the service. A nil cache always recomputes.
func NewDashboardService(store repository.Store, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{store: store, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Summary returns the cached summary or recomputes it.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	return Remember(ctx, s.cache, dashboardCacheKey, s.ttl, s.compute)
}

// Invalidate drops the cached summary.
func (s *DashboardService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, dashboardCacheKey)
}

// Watch invalidates the cached summary whenever reports or ambulances change.
// It returns when ctx is cancelled.
func (s *DashboardService) Watch(ctx context.Context, bus changeSubscriber) error {
	reports, err := bus.Subscribe(ctx, models.CollectionReports)
	if err != nil {
		return err
	}
	fleet, err := bus.Subscribe(ctx, models.CollectionAmbulances)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-reports:
			if !ok {
				return nil
			}
		case _, ok := <-fleet:
			if !ok {
				return nil
			}
		}
		s.Invalidate(ctx)
	}
}

func (s *DashboardService) compute(ctx context.Context) (*models.DashboardSummary, error) {
	reports, _, err := s.store.Reports().List(ctx, models.ReportFilter{})
	if err != nil {
		return nil, storeError(err, "reports")
	}
	fleet, err := s.store.Ambulances().List(ctx)
	if err != nil {
		return nil, storeError(err, "ambulances")
	}
	return Summarize(reports, fleet, s.now().UTC()), nil
}

// Summarize computes dashboard counters from a snapshot of records.
func Summarize(reports []models.Report, fleet []models.Ambulance, at time.Time) *models.DashboardSummary {
	summary := &models.DashboardSummary{
		Total:       len(reports),
		ByType:      make(map[models.IncidentType]int),
		ByStatus:    make(map[models.IncidentStatus]int),
		Ambulances:  make(map[models.AmbulanceStatus]int),
		GeneratedAt: at,
	}
	var (
		closedCount int
		closedMins  float64
	)
	for i := range reports {
		r := &reports[i]
		summary.ByType[r.Type]++
		summary.ByStatus[r.Status]++
		switch {
		case r.Status.Active():
			summary.Active++
		case r.Status == models.StatusResponded:
			summary.Responded++
		case r.Status == models.StatusResolved:
			summary.Resolved++
			if r.ClosedAt != nil {
				closedCount++
				closedMins += r.ClosedAt.Sub(r.CreatedAt).Minutes()
			}
		}
	}
	if closedCount > 0 {
		summary.AverageResponseMins = math.Round(closedMins/float64(closedCount)*10) / 10
	}
	for _, amb := range fleet {
		summary.Ambulances[amb.Status]++
	}
	return summary
}
