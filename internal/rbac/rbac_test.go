package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLabelPrefersLongestKeyword(t *testing.T) {
	r := Default()

	capability, ok := r.ResolveLabel("  Reports Viewing ")
	require.True(t, ok)
	assert.Equal(t, CapReportsViewing, capability)

	capability, ok = r.ResolveLabel("reports")
	require.True(t, ok)
	assert.Equal(t, CapReports, capability)

	capability, ok = r.ResolveLabel("Staff Registration")
	require.True(t, ok)
	assert.Equal(t, CapRegistration, capability)

	_, ok = r.ResolveLabel("Analytics")
	assert.False(t, ok)
}

func TestIsVisibleForViewer(t *testing.T) {
	r := Default()

	assert.True(t, r.IsVisible(RoleLiveViewer, "Reports Viewing"))
	assert.False(t, r.IsVisible(RoleLiveViewer, "Reports"))
	assert.False(t, r.IsVisible(RoleLiveViewer, "Dashboard"))
	assert.True(t, r.IsVisible(RoleLiveViewer, "Settings"))
	assert.False(t, r.IsVisible(RoleLiveViewer, "Unknown Item"))
}

func TestCanAppliesAliasesAndFallback(t *testing.T) {
	r := Default()

	assert.True(t, r.Can(RoleAdmin, CapRegistration))
	assert.False(t, r.Can(RoleAdmin, CapDashboard))
	assert.True(t, r.Can(RoleResponder, CapAmbulance))
	assert.False(t, r.Can(RoleResponder, CapResidentManagement))
	assert.True(t, r.Can(Role("mystery"), CapSettings))
	assert.False(t, r.Can(Role("mystery"), CapReports))
}

func TestDenyWinsOverAllow(t *testing.T) {
	policies := DefaultPolicies()
	staff := policies[RoleBarangayStaff]
	staff.Deny = append(staff.Deny, CapAmbulance)
	policies[RoleBarangayStaff] = staff

	r, err := NewRegistry(DefaultMenu(), DefaultKeywords(), policies, DefaultAliases(), RoleSystemAdmin)
	require.NoError(t, err)

	assert.False(t, r.Can(RoleBarangayStaff, CapAmbulance))
	assert.False(t, r.IsVisible(RoleBarangayStaff, "Ambulance"))
	assert.True(t, r.Can(RoleBarangayStaff, CapReports))
}

func TestDenyWinsForCompositeLabels(t *testing.T) {
	r := Default()

	cases := []struct {
		name  string
		role  Role
		label string
		want  bool
	}{
		{"admin label with denied dashboard", RoleSystemAdmin, "Resident Management Dashboard", false},
		{"admin label with denied reports", RoleSystemAdmin, "Registration Reports", false},
		{"viewer label with denied ambulance", RoleLiveViewer, "Reports Viewing Ambulance", false},
		{"viewer nested keyword ignored", RoleLiveViewer, "Reports Viewing", true},
		{"viewer separate reports occurrence", RoleLiveViewer, "Reports Viewing and Reports", false},
		{"staff two allowed keywords", RoleBarangayStaff, "Dashboard Reports", true},
		{"admin allowed pair", RoleSystemAdmin, "Registration Settings", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.IsVisible(tc.role, tc.label))
		})
	}
}

func TestResolveLabelAllSkipsNestedMatches(t *testing.T) {
	r := Default()

	assert.Equal(t, []Capability{CapReportsViewing}, r.ResolveLabelAll("Reports Viewing"))
	assert.ElementsMatch(t,
		[]Capability{CapResidentManagement, CapDashboard},
		r.ResolveLabelAll("Resident Management Dashboard"))
	assert.Empty(t, r.ResolveLabelAll("  "))
}

func TestDestinationFor(t *testing.T) {
	r := Default()

	cases := []struct {
		name      string
		role      Role
		preferred string
		want      string
	}{
		{"admin default", RoleSystemAdmin, "", PageRegisterStaff},
		{"admin disallowed preference", RoleAdmin, PageDashboard, PageRegisterStaff},
		{"staff default", RoleBarangayStaff, "", PageDashboard},
		{"staff allowed preference", RoleBarangayStaff, PageAmbulance, PageAmbulance},
		{"viewer disallowed preference", RoleLiveViewer, PageDashboard, PageReportsViewing},
		{"viewer settings", RoleLiveViewer, PageSettings, PageSettings},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.DestinationFor(tc.role, tc.preferred))
		})
	}
}

func TestVisibleMenuPerRole(t *testing.T) {
	r := Default()

	pages := func(items []MenuItem) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Page)
		}
		return out
	}

	assert.Equal(t, []string{PageRegisterStaff, PageRegisterResident, PageResidentManagement, PageSettings}, pages(r.VisibleMenu(RoleSystemAdmin)))
	assert.Equal(t, []string{PageDashboard, PageReports, PageReportsViewing, PageAmbulance, PageSettings}, pages(r.VisibleMenu(RoleBarangayStaff)))
	assert.Equal(t, []string{PageReportsViewing, PageSettings}, pages(r.VisibleMenu(RoleLiveViewer)))
}

func TestNormalizeAccountRole(t *testing.T) {
	assert.Equal(t, RoleResponder, NormalizeAccountRole("Responder"))
	assert.Equal(t, RoleSystemAdmin, NormalizeAccountRole("SuperAdmin"))
	assert.Equal(t, RoleLiveViewer, NormalizeAccountRole("tv_viewer"))
	assert.Equal(t, RoleBarangayStaff, NormalizeAccountRole("clerk"))
}

func TestNewRegistryValidates(t *testing.T) {
	_, err := NewRegistry(DefaultMenu(), DefaultKeywords(), DefaultPolicies(), DefaultAliases(), Role("ghost"))
	assert.Error(t, err)

	menu := append(DefaultMenu(), MenuItem{Label: "Analytics", Page: "analytics.html", Capability: "analytics"})
	_, err = NewRegistry(menu, DefaultKeywords(), DefaultPolicies(), DefaultAliases(), RoleSystemAdmin)
	assert.Error(t, err)
}

func TestSnapshotIsCopy(t *testing.T) {
	r := Default()
	snap := r.Snapshot()
	snap.Menu[0].Label = "changed"
	assert.Equal(t, "Dashboard", r.Snapshot().Menu[0].Label)
	assert.Equal(t, "Resident Management", snap.Keywords[0].Text)
	snap.Keywords[0].Text = "changed"
	assert.Equal(t, "Resident Management", r.Snapshot().Keywords[0].Text)
}
