package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type preferenceStore interface {
	Get(ctx context.Context, userID string) (*models.Preferences, error)
	Put(ctx context.Context, prefs *models.Preferences) error
}

// PreferenceService stores per-user dashboard settings.
type PreferenceService struct {
	repo      preferenceStore
	registry  *rbac.Registry
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPreferenceService constructs the service.
func NewPreferenceService(repo preferenceStore, registry *rbac.Registry, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if registry == nil {
		registry = rbac.Default()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{repo: repo, registry: registry, validator: validate, logger: logger, now: time.Now}
}

// Get returns saved settings or the defaults.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*models.Preferences, error) {
	prefs, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := models.DefaultPreferences(userID)
		return &defaults, nil
	}
	if err != nil {
		return nil, storeError(err, "preferences")
	}
	return prefs, nil
}

// Update merges the provided fields into the saved settings. A default
// landing page must be one the role may open.
func (s *PreferenceService) Update(ctx context.Context, userID, role string, req dto.PreferencesRequest) (*models.Preferences, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "preferences require a signed-in account")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid preferences payload")
	}
	prefs, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DefaultLanding != nil {
		page := strings.TrimSpace(*req.DefaultLanding)
		if page != "" {
			if !s.registry.KnownPage(page) {
				return nil, appErrors.WithField(appErrors.ErrValidation, "defaultLanding", "unknown page "+page)
			}
			if !s.registry.PageAllowed(rbac.Role(role), page) {
				return nil, appErrors.WithField(appErrors.ErrValidation, "defaultLanding", page+" is not available to your role")
			}
		}
		prefs.DefaultLanding = page
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, appErrors.WithField(appErrors.ErrValidation, "timezone", "unknown timezone "+*req.Timezone)
		}
		prefs.Timezone = *req.Timezone
	}
	if req.Language != nil {
		prefs.Language = *req.Language
	}
	if req.TimeFormat != nil {
		prefs.TimeFormat = *req.TimeFormat
	}
	if req.DateFormat != nil {
		prefs.DateFormat = *req.DateFormat
	}
	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	prefs.UserID = userID
	prefs.UpdatedAt = s.now().UTC()

	if err := s.repo.Put(ctx, prefs); err != nil {
		return nil, storeError(err, "preferences")
	}
	return prefs, nil
}
