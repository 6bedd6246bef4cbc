package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/repository/memory"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

func preferencesWithLanding(page string) dto.PreferencesRequest {
	return dto.PreferencesRequest{DefaultLanding: &page}
}

func TestPreferencesDefaults(t *testing.T) {
	svc := NewPreferenceService(memory.NewStore().Preferences(), nil, nil, zap.NewNop())
	prefs, err := svc.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Manila", prefs.Timezone)
	assert.Equal(t, "12h", prefs.TimeFormat)
	assert.Empty(t, prefs.DefaultLanding)
}

func TestPreferencesLandingMustBePermitted(t *testing.T) {
	svc := NewPreferenceService(memory.NewStore().Preferences(), nil, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Update(ctx, "u-1", string(rbac.RoleLiveViewer), preferencesWithLanding(rbac.PageDashboard))
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "defaultLanding", appErr.Field)

	_, err = svc.Update(ctx, "u-1", string(rbac.RoleLiveViewer), preferencesWithLanding("index.html"))
	assertAppError(t, err, appErrors.ErrValidation)

	prefs, err := svc.Update(ctx, "u-1", string(rbac.RoleLiveViewer), preferencesWithLanding(rbac.PageSettings))
	require.NoError(t, err)
	assert.Equal(t, rbac.PageSettings, prefs.DefaultLanding)
}

func TestPreferencesPartialUpdate(t *testing.T) {
	svc := NewPreferenceService(memory.NewStore().Preferences(), nil, nil, zap.NewNop())
	ctx := context.Background()
	theme := "dark"
	zone := "Mars/Olympus"

	prefs, err := svc.Update(ctx, "u-2", string(rbac.RoleBarangayStaff), dto.PreferencesRequest{Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs.Theme)
	assert.Equal(t, "en", prefs.Language)

	_, err = svc.Update(ctx, "u-2", string(rbac.RoleBarangayStaff), dto.PreferencesRequest{Timezone: &zone})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = svc.Update(ctx, "", string(rbac.RoleLiveViewer), dto.PreferencesRequest{Theme: &theme})
	assertAppError(t, err, appErrors.ErrForbidden)

	saved, err := svc.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "dark", saved.Theme)
}

func TestAccessDestinationIgnoresForbiddenPreference(t *testing.T) {
	store := memory.NewStore()
	prefs := NewPreferenceService(store.Preferences(), nil, nil, zap.NewNop())
	access := NewAccessService(nil, prefs, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, rbac.PageDashboard, access.Destination(ctx, "u-3", string(rbac.RoleBarangayStaff)))
	_, err := prefs.Update(ctx, "u-3", string(rbac.RoleBarangayStaff), preferencesWithLanding(rbac.PageAmbulance))
	require.NoError(t, err)
	assert.Equal(t, rbac.PageAmbulance, access.Destination(ctx, "u-3", string(rbac.RoleBarangayStaff)))
	assert.Equal(t, rbac.PageRegisterStaff, access.Destination(ctx, "u-3", string(rbac.RoleSystemAdmin)))

	menu := access.Menu(string(rbac.RoleLiveViewer))
	labels := make([]string, 0, len(menu))
	for _, item := range menu {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "Reports Viewing")
	assert.NotContains(t, labels, "Dashboard")
	assert.True(t, access.Can(string(rbac.RoleResponder), rbac.CapAmbulance))
}
