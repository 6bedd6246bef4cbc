package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
)

type preferenceReader interface {
	Get(ctx context.Context, userID string) (*models.Preferences, error)
}

// AccessService answers menu and landing questions for a session.
type AccessService struct {
	registry *rbac.Registry
	prefs    preferenceReader
	logger   *zap.Logger
}

// NewAccessService constructs the service. A nil registry uses the built-in
// tables.
func NewAccessService(registry *rbac.Registry, prefs preferenceReader, logger *zap.Logger) *AccessService {
	if registry == nil {
		registry = rbac.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{registry: registry, prefs: prefs, logger: logger}
}

// Registry exposes the underlying tables.
func (s *AccessService) Registry() *rbac.Registry {
	return s.registry
}

// Can reports whether role holds capability.
func (s *AccessService) Can(role string, capability rbac.Capability) bool {
	return s.registry.Can(rbac.Role(role), capability)
}

// Menu returns the navigation visible to role.
func (s *AccessService) Menu(role string) []models.MenuEntry {
	items := s.registry.VisibleMenu(rbac.Role(role))
	out := make([]models.MenuEntry, 0, len(items))
	for _, item := range items {
		out = append(out, models.MenuEntry{Label: item.Label, Page: item.Page})
	}
	return out
}

// Destination is the landing page for the user, honouring a saved preference
// only when the role may open it.
func (s *AccessService) Destination(ctx context.Context, userID, role string) string {
	preferred := ""
	if s.prefs != nil && userID != "" {
		prefs, err := s.prefs.Get(ctx, userID)
		switch {
		case err == nil:
			preferred = prefs.DefaultLanding
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("failed to load preferences for destination", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return s.registry.DestinationFor(rbac.Role(role), preferred)
}
