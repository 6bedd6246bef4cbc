package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
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

const alreadyHandledMessage = "already handled"

// Profile change keys accepted on an update request.
var editableFields = map[string]struct{}{
	"firstName":  {},
	"middleName": {},
	"lastName":   {},
	"suffix":     {},
	"email":      {},
	"contact":    {},
	"address":    {},
	"gender":     {},
	"birthdate":  {},
}

// RegistrationService runs the self-service review queue.
type RegistrationService struct {
	store     repository.Store
	bus       changePublisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs the service.
func NewRegistrationService(store repository.Store, bus changePublisher, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &RegistrationService{store: store, bus: bus, validator: validate, logger: logger, now: time.Now}
}

// List returns pending requests, optionally of a single kind, oldest first.
func (s *RegistrationService) List(ctx context.Context, query dto.RegistrationQuery) ([]models.ReviewRequest, error) {
	kind := models.ReviewKind(strings.ToLower(strings.TrimSpace(query.Kind)))
	switch kind {
	case "", models.ReviewUpdate, models.ReviewRegistration:
	default:
		return nil, appErrors.WithField(appErrors.ErrValidation, "kind", "kind must be update or registration")
	}
	items, err := s.store.Registrations().List(ctx, kind)
	if err != nil {
		return nil, storeError(err, "registrations")
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].RequestedAt.Before(items[j].RequestedAt) })
	return items, nil
}

// Feedback returns the latest review outcome for an identity.
func (s *RegistrationService) Feedback(ctx context.Context, identity string) (*models.Feedback, error) {
	fb, err := s.store.Feedback().Get(ctx, strings.ToLower(strings.TrimSpace(identity)))
	if err != nil {
		return nil, storeError(err, "feedback")
	}
	return fb, nil
}

// SubmitUpdate queues a profile change for an existing resident.
func (s *RegistrationService) SubmitUpdate(ctx context.Context, req dto.UpdateRequestPayload) (*models.ReviewRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update request")
	}
	changes := make(map[string]string, len(req.Changes))
	for key, value := range req.Changes {
		if _, ok := editableFields[key]; !ok {
			return nil, appErrors.WithField(appErrors.ErrValidation, "changes", fmt.Sprintf("%s cannot be changed by request", key))
		}
		changes[key] = strings.TrimSpace(value)
	}
	if email, ok := changes["email"]; ok && !strings.Contains(email, "@") {
		return nil, appErrors.WithField(appErrors.ErrValidation, "email", "email must contain @")
	}
	if contact, ok := changes["contact"]; ok && !ValidContact(contact) {
		return nil, appErrors.WithField(appErrors.ErrValidation, "contact", "contact must have exactly 13 digits")
	}

	resident, err := s.store.Residents().GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, storeError(err, "resident")
	}

	request := &models.ReviewRequest{
		ID:          uuid.NewString(),
		Kind:        models.ReviewUpdate,
		Identity:    resident.Username,
		Email:       resident.Email,
		Changes:     changes,
		Proofs:      req.Proofs,
		RequestedAt: s.now().UTC(),
		Status:      models.ReviewPending,
	}
	if err := s.store.Registrations().Create(ctx, request); err != nil {
		return nil, storeError(err, "update request")
	}
	publishChange(ctx, s.bus, s.logger, models.CollectionRegistrations, request.ID, models.OpCreate, request)
	return request, nil
}

// SubmitRegistration queues a new resident signup.
func (s *RegistrationService) SubmitRegistration(ctx context.Context, req dto.ResidentRegistrationRequest) (*models.ReviewRequest, error) {
	if err := validateResidentSignup(s.validator, req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	request := &models.ReviewRequest{
		ID:           uuid.NewString(),
		Kind:         models.ReviewRegistration,
		Identity:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		Changes:      profileChanges(req.ProfileFields),
		PasswordHash: string(hash),
		RequestedAt:  s.now().UTC(),
		Status:       models.ReviewPending,
	}
	for key, ref := range map[string]string{models.DocumentPhoto: req.PhotoRef, models.DocumentValidID: req.ValidIDRef} {
		if ref = strings.TrimSpace(ref); ref != "" {
			if request.Documents == nil {
				request.Documents = make(map[string]string, 2)
			}
			request.Documents[key] = ref
		}
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := ensureUsernameFree(ctx, tx, request.Identity, true); err != nil {
			return err
		}
		return storeError(tx.Registrations().Create(ctx, request), "registration")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration submitted", zap.String("identity", request.Identity))
	publishChange(ctx, s.bus, s.logger, models.CollectionRegistrations, request.ID, models.OpCreate, request)
	return request, nil
}

// Approve applies the request. A request that no longer exists yields an
// already-handled outcome.
func (s *RegistrationService) Approve(ctx context.Context, id, reviewer string) (*models.ReviewOutcome, error) {
	var (
		outcome  *models.ReviewOutcome
		resident *models.Resident
		op       string
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		request, err := tx.Registrations().Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = handledOutcome(id)
			return nil
		}
		if err != nil {
			return storeError(err, "registration")
		}
		at := s.now().UTC()

		switch request.Kind {
		case models.ReviewUpdate:
			current, err := tx.Residents().GetByUsername(ctx, request.Identity)
			if err != nil {
				return storeError(err, "resident")
			}
			applyProfileChanges(&current.Profile, &current.Email, request.Changes)
			current.UpdatedAt = at
			if err := tx.Residents().Update(ctx, current); err != nil {
				return storeError(err, "resident")
			}
			resident, op = current, models.OpUpdate
		case models.ReviewRegistration:
			if err := ensureUsernameFree(ctx, tx, request.Identity, false); err != nil {
				return err
			}
			created := &models.Resident{
				ID:           uuid.NewString(),
				Username:     request.Identity,
				Email:        request.Email,
				PasswordHash: request.PasswordHash,
				Status:       models.ResidentActive,
				CreatedAt:    at,
				UpdatedAt:    at,
			}
			applyProfileChanges(&created.Profile, nil, request.Changes)
			created.Profile.PhotoRef = request.Documents[models.DocumentPhoto]
			created.Profile.ValidIDRef = request.Documents[models.DocumentValidID]
			if err := tx.Residents().Create(ctx, created); err != nil {
				return storeError(err, "resident")
			}
			resident, op = created, models.OpCreate
		default:
			return appErrors.Clone(appErrors.ErrValidation, "unknown request kind")
		}

		if err := tx.Registrations().Delete(ctx, request.ID); err != nil {
			return storeError(err, "registration")
		}
		fb := &models.Feedback{
			Identity:   strings.ToLower(request.Identity),
			Status:     models.ReviewApproved,
			Reviewer:   reviewer,
			ReviewedAt: at,
		}
		if err := tx.Feedback().Put(ctx, fb); err != nil {
			return storeError(err, "feedback")
		}
		outcome = &models.ReviewOutcome{
			RequestID: request.ID,
			Status:    string(models.ReviewApproved),
			Message:   fmt.Sprintf("%s request for %s approved", request.Kind, request.Identity),
			Resident:  resident,
			Feedback:  fb,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome.AlreadyHandled {
		return outcome, nil
	}

	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      reviewer,
		Action:     models.AuditActionRequestApprove,
		Resource:   "registration",
		ResourceID: id,
		CreatedAt:  s.now().UTC(),
	})
	publishChange(ctx, s.bus, s.logger, models.CollectionRegistrations, id, models.OpDelete, nil)
	publishChange(ctx, s.bus, s.logger, models.CollectionResidents, resident.ID, op, resident)
	return outcome, nil
}

// Reject drops the request after explicit confirmation and records the reason.
func (s *RegistrationService) Reject(ctx context.Context, id string, req dto.RejectRequest, reviewer string) (*models.ReviewOutcome, error) {
	if !req.Confirm {
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm the rejection to continue")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = models.DefaultRejectReason
	}

	var outcome *models.ReviewOutcome
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		request, err := tx.Registrations().Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = handledOutcome(id)
			return nil
		}
		if err != nil {
			return storeError(err, "registration")
		}
		if err := tx.Registrations().Delete(ctx, request.ID); err != nil {
			return storeError(err, "registration")
		}
		fb := &models.Feedback{
			Identity:   strings.ToLower(request.Identity),
			Status:     models.ReviewRejected,
			Reason:     reason,
			Reviewer:   reviewer,
			ReviewedAt: s.now().UTC(),
		}
		if err := tx.Feedback().Put(ctx, fb); err != nil {
			return storeError(err, "feedback")
		}
		outcome = &models.ReviewOutcome{
			RequestID: request.ID,
			Status:    string(models.ReviewRejected),
			Message:   fmt.Sprintf("%s request for %s rejected", request.Kind, request.Identity),
			Feedback:  fb,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome.AlreadyHandled {
		return outcome, nil
	}

	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      reviewer,
		Action:     models.AuditActionRequestReject,
		Resource:   "registration",
		ResourceID: id,
		Details:    []byte(fmt.Sprintf(`{"reason":%q}`, reason)),
		CreatedAt:  s.now().UTC(),
	})
	publishChange(ctx, s.bus, s.logger, models.CollectionRegistrations, id, models.OpDelete, nil)
	return outcome, nil
}

func handledOutcome(id string) *models.ReviewOutcome {
	return &models.ReviewOutcome{RequestID: id, AlreadyHandled: true, Message: alreadyHandledMessage}
}

// validateResidentSignup checks a resident signup form. Gender and birthdate
// are mandatory for residents.
func validateResidentSignup(v *validator.Validate, req dto.ResidentRegistrationRequest) error {
	if err := v.Struct(req); err != nil {
		return validationError(err, "invalid registration payload")
	}
	if req.Password != req.ConfirmPassword {
		return appErrors.WithField(appErrors.ErrValidation, "confirmPassword", "passwords do not match")
	}
	if strings.TrimSpace(req.Gender) == "" {
		return appErrors.WithField(appErrors.ErrValidation, "gender", "gender is required")
	}
	if strings.TrimSpace(req.Birthdate) == "" {
		return appErrors.WithField(appErrors.ErrValidation, "birthdate", "birthdate is required")
	}
	return nil
}

// ensureUsernameFree rejects a username already used by a resident or, when
// checkPending is set, by a pending registration.
func ensureUsernameFree(ctx context.Context, tx repository.Store, username string, checkPending bool) error {
	_, err := tx.Residents().GetByUsername(ctx, username)
	switch {
	case err == nil:
		return appErrors.WithField(appErrors.ErrDuplicate, "username", "Username already exists.")
	case !errors.Is(err, repository.ErrNotFound):
		return storeError(err, "resident")
	}
	if !checkPending {
		return nil
	}
	pending, err := tx.Registrations().ListByIdentity(ctx, username)
	if err != nil {
		return storeError(err, "registrations")
	}
	for _, r := range pending {
		if r.Kind == models.ReviewRegistration {
			return appErrors.WithField(appErrors.ErrDuplicate, "username", "Username already exists.")
		}
	}
	return nil
}

func profileChanges(p dto.ProfileFields) map[string]string {
	out := map[string]string{
		"firstName": strings.TrimSpace(p.FirstName),
		"lastName":  strings.TrimSpace(p.LastName),
		"contact":   strings.TrimSpace(p.Contact),
		"address":   strings.TrimSpace(p.Address),
		"gender":    strings.TrimSpace(p.Gender),
		"birthdate": strings.TrimSpace(p.Birthdate),
	}
	if v := strings.TrimSpace(p.MiddleName); v != "" {
		out["middleName"] = v
	}
	if v := strings.TrimSpace(p.Suffix); v != "" {
		out["suffix"] = v
	}
	if p.Age > 0 {
		out["age"] = strconv.Itoa(p.Age)
	}
	return out
}

func applyProfileChanges(profile *models.Profile, email *string, changes map[string]string) {
	for key, value := range changes {
		switch key {
		case "firstName":
			profile.FirstName = value
		case "middleName":
			profile.MiddleName = value
		case "lastName":
			profile.LastName = value
		case "suffix":
			profile.Suffix = value
		case "contact":
			profile.Contact = value
		case "address":
			profile.Address = value
		case "gender":
			profile.Gender = value
		case "birthdate":
			profile.Birthdate = value
		case "age":
			if n, err := strconv.Atoi(value); err == nil {
				profile.Age = n
			}
		case "email":
			if email != nil {
				*email = value
			}
		}
	}
}

func profileFromFields(p dto.ProfileFields) models.Profile {
	return models.Profile{
		FirstName:  strings.TrimSpace(p.FirstName),
		MiddleName: strings.TrimSpace(p.MiddleName),
		LastName:   strings.TrimSpace(p.LastName),
		Suffix:     strings.TrimSpace(p.Suffix),
		Age:        p.Age,
		Birthdate:  strings.TrimSpace(p.Birthdate),
		Gender:     strings.TrimSpace(p.Gender),
		Contact:    strings.TrimSpace(p.Contact),
		Address:    strings.TrimSpace(p.Address),
		PhotoRef:   p.PhotoRef,
		ValidIDRef: p.ValidIDRef,
	}
}
