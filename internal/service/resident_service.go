package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

const (
	residentStatusAll     = "all"
	residentStatusPending = "pending"
	defaultResidentPage   = 20
	maxResidentPageSize   = 100
)

// ResidentService manages the resident registry.
type ResidentService struct {
	store     repository.Store
	bus       changePublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewResidentService constructs the service.
func NewResidentService(store repository.Store, bus changePublisher, validate *validator.Validate, logger *zap.Logger) *ResidentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ResidentService{store: store, bus: bus, validator: validate, logger: logger, now: time.Now}
}

// Register creates an active resident directly, bypassing the review queue.
func (s *ResidentService) Register(ctx context.Context, req dto.ResidentRegistrationRequest, actor string) (*models.Resident, error) {
	if err := validateResidentSignup(s.validator, req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	at := s.now().UTC()
	resident := &models.Resident{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Status:       models.ResidentActive,
		Profile:      profileFromFields(req.ProfileFields),
		CreatedAt:    at,
		UpdatedAt:    at,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := ensureUsernameFree(ctx, tx, resident.Username, true); err != nil {
			return err
		}
		return storeError(tx.Residents().Create(ctx, resident), "resident")
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, models.AuditActionResidentCreate, resident.ID, nil)
	publishChange(ctx, s.bus, s.logger, models.CollectionResidents, resident.ID, models.OpCreate, resident)
	return resident, nil
}

// List returns one page of residents matching the search and status filter.
// The pending status selects residents with an update awaiting review.
func (s *ResidentService) List(ctx context.Context, query dto.ResidentQuery) ([]models.Resident, int, error) {
	filter := models.ResidentFilter{
		Search:   query.Search,
		Status:   strings.ToLower(strings.TrimSpace(query.Status)),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Status == "" {
		filter.Status = residentStatusAll
	}
	switch filter.Status {
	case residentStatusAll, residentStatusPending, string(models.ResidentActive), string(models.ResidentInactive):
	default:
		return nil, 0, appErrors.WithField(appErrors.ErrValidation, "status", "status must be all, active, inactive or pending")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultResidentPage
	}
	if filter.PageSize > maxResidentPageSize {
		filter.PageSize = maxResidentPageSize
	}

	residents, err := s.store.Residents().List(ctx)
	if err != nil {
		return nil, 0, storeError(err, "residents")
	}

	var pending map[string]bool
	if filter.Status == residentStatusPending {
		updates, err := s.store.Registrations().List(ctx, models.ReviewUpdate)
		if err != nil {
			return nil, 0, storeError(err, "registrations")
		}
		pending = make(map[string]bool, len(updates))
		for _, u := range updates {
			pending[strings.ToLower(u.Identity)] = true
		}
	}

	matched := make([]models.Resident, 0, len(residents))
	for i := range residents {
		r := &residents[i]
		if !filter.Matches(r) {
			continue
		}
		switch filter.Status {
		case residentStatusAll:
		case residentStatusPending:
			if !pending[strings.ToLower(r.Username)] {
				continue
			}
		default:
			if string(r.Status) != filter.Status {
				continue
			}
		}
		matched = append(matched, *r)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []models.Resident{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Get returns one resident.
func (s *ResidentService) Get(ctx context.Context, id string) (*models.Resident, error) {
	resident, err := s.store.Residents().Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "resident")
	}
	return resident, nil
}

// Update edits a resident. A non-zero Version must match the stored one.
func (s *ResidentService) Update(ctx context.Context, id string, req dto.ResidentUpdateRequest, actor string) (*models.Resident, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid resident payload")
	}
	var resident *models.Resident
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Residents().Get(ctx, id)
		if err != nil {
			return storeError(err, "resident")
		}
		if req.Version != 0 && req.Version != current.Version {
			return storeError(repository.ErrVersionConflict, "resident")
		}
		if req.Email != nil {
			current.Email = strings.TrimSpace(*req.Email)
		}
		if req.Status != nil {
			current.Status = models.ResidentStatus(*req.Status)
		}
		if req.Notes != nil {
			current.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.Contact != nil {
			current.Profile.Contact = strings.TrimSpace(*req.Contact)
		}
		if req.Address != nil {
			current.Profile.Address = strings.TrimSpace(*req.Address)
		}
		current.UpdatedAt = s.now().UTC()
		if err := tx.Residents().Update(ctx, current); err != nil {
			return storeError(err, "resident")
		}
		resident = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, models.AuditActionResidentUpdate, resident.ID, nil)
	publishChange(ctx, s.bus, s.logger, models.CollectionResidents, resident.ID, models.OpUpdate, resident)
	return resident, nil
}

// Delete removes a resident and their pending update requests.
func (s *ResidentService) Delete(ctx context.Context, id string, confirm bool, actor string) error {
	if !confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm the deletion to continue")
	}
	var dropped []string
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		resident, err := tx.Residents().Get(ctx, id)
		if err != nil {
			return storeError(err, "resident")
		}
		requests, err := tx.Registrations().ListByIdentity(ctx, resident.Username)
		if err != nil {
			return storeError(err, "registrations")
		}
		for _, r := range requests {
			if r.Kind != models.ReviewUpdate {
				continue
			}
			if err := tx.Registrations().Delete(ctx, r.ID); err != nil {
				return storeError(err, "registration")
			}
			dropped = append(dropped, r.ID)
		}
		return storeError(tx.Residents().Delete(ctx, id), "resident")
	})
	if err != nil {
		return err
	}

	s.audit(ctx, actor, models.AuditActionResidentDelete, id, []byte(fmt.Sprintf(`{"dropped_requests":%d}`, len(dropped))))
	publishChange(ctx, s.bus, s.logger, models.CollectionResidents, id, models.OpDelete, nil)
	for _, requestID := range dropped {
		publishChange(ctx, s.bus, s.logger, models.CollectionRegistrations, requestID, models.OpDelete, nil)
	}
	return nil
}

// ResetPassword sets a new password after explicit confirmation.
func (s *ResidentService) ResetPassword(ctx context.Context, id string, req dto.ResetPasswordRequest, actor string) error {
	if !req.Confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm the password reset to continue")
	}
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid password reset payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		resident, err := tx.Residents().Get(ctx, id)
		if err != nil {
			return storeError(err, "resident")
		}
		resident.PasswordHash = string(hash)
		resident.UpdatedAt = s.now().UTC()
		return storeError(tx.Residents().Update(ctx, resident), "resident")
	})
	if err != nil {
		return err
	}
	s.audit(ctx, actor, models.AuditActionPasswordReset, id, nil)
	return nil
}

func (s *ResidentService) audit(ctx context.Context, actor, action, id string, details []byte) {
	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      actor,
		Action:     action,
		Resource:   "resident",
		ResourceID: id,
		Details:    details,
		CreatedAt:  s.now().UTC(),
	})
}
