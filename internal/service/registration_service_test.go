package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/repository/memory"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

func signupRequest(username string) dto.ResidentRegistrationRequest {
	return dto.ResidentRegistrationRequest{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		ProfileFields: dto.ProfileFields{
			FirstName: "Juan",
			LastName:  "Dela Cruz",
			Birthdate: "1990-01-02",
			Gender:    "Male",
			Contact:   "0912345678901",
			Address:   "Block 3, Lot 5",
		},
	}
}

func newRegistrationFixture(t *testing.T) (*memory.Store, *recordingBus, *RegistrationService) {
	t.Helper()
	store := memory.NewStore()
	bus := &recordingBus{}
	return store, bus, NewRegistrationService(store, bus, nil, zap.NewNop())
}

func TestSubmitRegistrationDuplicateResident(t *testing.T) {
	store, _, svc := newRegistrationFixture(t)
	ctx := context.Background()
	require.NoError(t, store.Residents().Create(ctx, &models.Resident{Username: "jdoe", Status: models.ResidentActive}))

	_, err := svc.SubmitRegistration(ctx, signupRequest("JDoe"))
	assertAppError(t, err, appErrors.ErrDuplicate)

	pending, err := store.Registrations().List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitRegistrationDuplicatePending(t *testing.T) {
	_, _, svc := newRegistrationFixture(t)
	ctx := context.Background()

	_, err := svc.SubmitRegistration(ctx, signupRequest("maria"))
	require.NoError(t, err)
	_, err = svc.SubmitRegistration(ctx, signupRequest("MARIA"))
	assertAppError(t, err, appErrors.ErrDuplicate)
}

func TestSubmitRegistrationValidation(t *testing.T) {
	_, _, svc := newRegistrationFixture(t)
	ctx := context.Background()

	req := signupRequest("pedro")
	req.ConfirmPassword = "other"
	_, err := svc.SubmitRegistration(ctx, req)
	assertAppError(t, err, appErrors.ErrValidation)

	req = signupRequest("pedro")
	req.Contact = "12345"
	_, err = svc.SubmitRegistration(ctx, req)
	assertAppError(t, err, appErrors.ErrValidation)

	req = signupRequest("pedro")
	req.Gender = ""
	_, err = svc.SubmitRegistration(ctx, req)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "gender", appErr.Field)

	req = signupRequest("pedro")
	req.Email = "pedro.example.com"
	_, err = svc.SubmitRegistration(ctx, req)
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestRejectRecordsFeedback(t *testing.T) {
	store, bus, svc := newRegistrationFixture(t)
	ctx := context.Background()
	request, err := svc.SubmitRegistration(ctx, signupRequest("ana"))
	require.NoError(t, err)

	_, err = svc.Reject(ctx, request.ID, dto.RejectRequest{Reason: "incomplete ID"}, "staff")
	assertAppError(t, err, appErrors.ErrConfirmationRequired)

	outcome, err := svc.Reject(ctx, request.ID, dto.RejectRequest{Reason: "incomplete ID", Confirm: true}, "staff")
	require.NoError(t, err)
	assert.False(t, outcome.AlreadyHandled)
	assert.Equal(t, string(models.ReviewRejected), outcome.Status)

	pending, err := svc.List(ctx, dto.RegistrationQuery{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	fb, err := svc.Feedback(ctx, "Ana")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewRejected, fb.Status)
	assert.Equal(t, "incomplete ID", fb.Reason)
	assert.Equal(t, "staff", fb.Reviewer)
	assert.Contains(t, bus.collections(), "registrations:delete")

	_, err = store.Residents().GetByUsername(ctx, "ana")
	assert.Error(t, err)
}

func TestRejectDefaultReason(t *testing.T) {
	_, _, svc := newRegistrationFixture(t)
	ctx := context.Background()
	request, err := svc.SubmitRegistration(ctx, signupRequest("leo"))
	require.NoError(t, err)

	outcome, err := svc.Reject(ctx, request.ID, dto.RejectRequest{Confirm: true}, "staff")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRejectReason, outcome.Feedback.Reason)
}

func TestApproveRegistrationCreatesResident(t *testing.T) {
	store, bus, svc := newRegistrationFixture(t)
	ctx := context.Background()
	req := signupRequest("rosa")
	req.PhotoRef = "2025/09/photo.jpg"
	request, err := svc.SubmitRegistration(ctx, req)
	require.NoError(t, err)

	outcome, err := svc.Approve(ctx, request.ID, "staff")
	require.NoError(t, err)
	require.NotNil(t, outcome.Resident)
	assert.Equal(t, string(models.ReviewApproved), outcome.Status)

	resident, err := store.Residents().GetByUsername(ctx, "rosa")
	require.NoError(t, err)
	assert.Equal(t, models.ResidentActive, resident.Status)
	assert.Equal(t, "Juan", resident.Profile.FirstName)
	assert.Equal(t, "Male", resident.Profile.Gender)
	assert.Equal(t, "2025/09/photo.jpg", resident.Profile.PhotoRef)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(resident.PasswordHash), []byte("secret1")))

	fb, err := svc.Feedback(ctx, "rosa")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, fb.Status)
	assert.Empty(t, fb.Reason)
	assert.Contains(t, bus.collections(), "residents:create")
}

func TestApproveRegistrationKeepsDocumentKinds(t *testing.T) {
	store, _, svc := newRegistrationFixture(t)
	ctx := context.Background()
	req := signupRequest("lito")
	req.ValidIDRef = "valid-id-token"
	request, err := svc.SubmitRegistration(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{models.DocumentValidID: "valid-id-token"}, request.Documents)

	_, err = svc.Approve(ctx, request.ID, "staff")
	require.NoError(t, err)

	resident, err := store.Residents().GetByUsername(ctx, "lito")
	require.NoError(t, err)
	assert.Empty(t, resident.Profile.PhotoRef)
	assert.Equal(t, "valid-id-token", resident.Profile.ValidIDRef)
}

func TestApproveUpdateMergesChanges(t *testing.T) {
	store, _, svc := newRegistrationFixture(t)
	ctx := context.Background()
	require.NoError(t, store.Residents().Create(ctx, &models.Resident{
		Username: "john_doe",
		Email:    "john@example.com",
		Status:   models.ResidentActive,
		Profile:  models.Profile{FirstName: "John", LastName: "Doe", Address: "123 Main St"},
	}))

	request, err := svc.SubmitUpdate(ctx, dto.UpdateRequestPayload{
		Username: "john_doe",
		Changes:  map[string]string{"email": "john.new@example.com", "contact": "0911122233334"},
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, request.ID, "staff")
	require.NoError(t, err)

	resident, err := store.Residents().GetByUsername(ctx, "john_doe")
	require.NoError(t, err)
	assert.Equal(t, "john.new@example.com", resident.Email)
	assert.Equal(t, "0911122233334", resident.Profile.Contact)
	assert.Equal(t, "123 Main St", resident.Profile.Address)
}

func TestSubmitUpdateRules(t *testing.T) {
	store, _, svc := newRegistrationFixture(t)
	ctx := context.Background()

	_, err := svc.SubmitUpdate(ctx, dto.UpdateRequestPayload{Username: "ghost", Changes: map[string]string{"address": "x"}})
	assertAppError(t, err, appErrors.ErrNotFound)

	require.NoError(t, store.Residents().Create(ctx, &models.Resident{Username: "ghost", Status: models.ResidentActive}))
	_, err = svc.SubmitUpdate(ctx, dto.UpdateRequestPayload{Username: "ghost", Changes: map[string]string{"status": "inactive"}})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestApproveOrRejectMissingRequestIsAlreadyHandled(t *testing.T) {
	_, _, svc := newRegistrationFixture(t)
	ctx := context.Background()

	outcome, err := svc.Approve(ctx, "gone", "staff")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyHandled)
	assert.Equal(t, "already handled", outcome.Message)

	outcome, err = svc.Reject(ctx, "gone", dto.RejectRequest{Confirm: true}, "staff")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyHandled)
}

func TestListRejectsUnknownKind(t *testing.T) {
	_, _, svc := newRegistrationFixture(t)
	_, err := svc.List(context.Background(), dto.RegistrationQuery{Kind: "transfer"})
	assertAppError(t, err, appErrors.ErrValidation)
}
