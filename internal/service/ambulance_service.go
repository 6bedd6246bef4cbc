package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

// AmbulanceService manages the fleet board.
type AmbulanceService struct {
	store     repository.Store
	bus       changePublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAmbulanceService constructs the service.
func NewAmbulanceService(store repository.Store, bus changePublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AmbulanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AmbulanceService{store: store, bus: bus, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// List returns the fleet ordered by id.
func (s *AmbulanceService) List(ctx context.Context) ([]models.Ambulance, error) {
	items, err := s.store.Ambulances().List(ctx)
	if err != nil {
		return nil, storeError(err, "ambulances")
	}
	s.updateGauge(items)
	return items, nil
}

// Get returns one ambulance.
func (s *AmbulanceService) Get(ctx context.Context, id string) (*models.Ambulance, error) {
	amb, err := s.store.Ambulances().Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "ambulance")
	}
	return amb, nil
}

// Create registers a new AVAILABLE ambulance with the next AMB-n id.
func (s *AmbulanceService) Create(ctx context.Context, req dto.CreateAmbulanceRequest, actor string) (*models.Ambulance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid ambulance payload")
	}
	var amb *models.Ambulance
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		fleet, err := tx.Ambulances().List(ctx)
		if err != nil {
			return storeError(err, "ambulances")
		}
		amb = &models.Ambulance{
			ID:        nextAmbulanceID(fleet),
			Name:      strings.TrimSpace(req.Name),
			Status:    models.AmbulanceAvailable,
			UpdatedAt: s.now().UTC(),
			UpdatedBy: actor,
		}
		return storeError(tx.Ambulances().Create(ctx, amb), "ambulance")
	})
	if err != nil {
		return nil, err
	}
	publishChange(ctx, s.bus, s.logger, models.CollectionAmbulances, amb.ID, models.OpCreate, amb)
	return amb, nil
}

// Assign links the ambulance to a report. It is the same rule dispatch uses.
func (s *AmbulanceService) Assign(ctx context.Context, ambulanceID, reportID, actor string) (*models.Ambulance, error) {
	var (
		touched []models.Ambulance
		report  *models.Report
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		r, err := tx.Reports().Get(ctx, reportID)
		if err != nil {
			return storeError(err, "report")
		}
		at := s.now().UTC()
		written, err := assignVehicle(ctx, tx, r, ambulanceID, actor, at)
		if err != nil {
			return err
		}
		if len(written) > 0 {
			if err := tx.Reports().Update(ctx, r); err != nil {
				return storeError(err, "report")
			}
			report = r
		}
		touched = written
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, touched, report)
	return s.Get(ctx, ambulanceID)
}

// Release returns the ambulance to AVAILABLE. Releasing a free ambulance is a
// no-op.
func (s *AmbulanceService) Release(ctx context.Context, ambulanceID, actor string) (*models.Ambulance, error) {
	return s.clear(ctx, ambulanceID, models.AmbulanceAvailable, actor)
}

// SetMaintenance takes the ambulance out of service, dropping any assignment.
func (s *AmbulanceService) SetMaintenance(ctx context.Context, ambulanceID, actor string) (*models.Ambulance, error) {
	return s.clear(ctx, ambulanceID, models.AmbulanceMaintenance, actor)
}

// SetStatus is the board toggle. IN-USE can only be reached by assignment.
func (s *AmbulanceService) SetStatus(ctx context.Context, ambulanceID string, req dto.AmbulanceStatusRequest, actor string) (*models.Ambulance, error) {
	switch req.Status {
	case models.AmbulanceAvailable:
		return s.Release(ctx, ambulanceID, actor)
	case models.AmbulanceMaintenance:
		return s.SetMaintenance(ctx, ambulanceID, actor)
	case models.AmbulanceInUse:
		return nil, appErrors.WithField(appErrors.ErrValidation, "status", "assign the ambulance to a report to mark it IN-USE")
	}
	return nil, appErrors.WithField(appErrors.ErrValidation, "status", fmt.Sprintf("unknown ambulance status %q", req.Status))
}

func (s *AmbulanceService) clear(ctx context.Context, ambulanceID string, status models.AmbulanceStatus, actor string) (*models.Ambulance, error) {
	var (
		amb     *models.Ambulance
		report  *models.Report
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Ambulances().Get(ctx, ambulanceID)
		if err != nil {
			return storeError(err, "ambulance")
		}
		changed, report, err = releaseVehicle(ctx, tx, current, status, actor, s.now().UTC())
		amb = current
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("ambulance status changed", zap.String("ambulance_id", amb.ID), zap.String("status", string(status)), zap.String("actor", actor))
		writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
			Actor:      actor,
			Action:     models.AuditActionAmbulanceStatus,
			Resource:   "ambulance",
			ResourceID: amb.ID,
			Details:    []byte(fmt.Sprintf(`{"status":%q}`, status)),
			CreatedAt:  s.now().UTC(),
		})
		s.publish(ctx, []models.Ambulance{*amb}, report)
	}
	return amb, nil
}

func (s *AmbulanceService) publish(ctx context.Context, touched []models.Ambulance, report *models.Report) {
	for i := range touched {
		publishChange(ctx, s.bus, s.logger, models.CollectionAmbulances, touched[i].ID, models.OpUpdate, touched[i])
	}
	if report != nil {
		publishChange(ctx, s.bus, s.logger, models.CollectionReports, report.ID, models.OpUpdate, report)
	}
}

func (s *AmbulanceService) updateGauge(fleet []models.Ambulance) {
	counts := make(map[models.AmbulanceStatus]int, 3)
	for _, amb := range fleet {
		counts[amb.Status]++
	}
	s.metrics.SetFleet(counts)
}

func nextAmbulanceID(fleet []models.Ambulance) string {
	max := 0
	for _, amb := range fleet {
		if n, err := strconv.Atoi(strings.TrimPrefix(amb.ID, "AMB-")); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("AMB-%d", max+1)
}
