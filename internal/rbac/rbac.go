// Package rbac holds the role registry and the access controller that decides
// which dashboard menu items and pages a role may use. Everything here is a pure
// function of the static tables; nothing reads session or request state.
package rbac

import (
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleSystemAdmin   Role = "system_admin"
	RoleBarangayStaff Role = "barangay_staff"
	RoleLiveViewer    Role = "live_viewer"
	RoleResponder     Role = "responder"
	RoleAdmin         Role = "admin"
)

// Capability is the permission attached to a menu item.
type Capability string

const (
	CapDashboard          Capability = "dashboard"
	CapReports            Capability = "reports"
	CapReportsViewing     Capability = "reports_viewing"
	CapAmbulance          Capability = "ambulance"
	CapRegistration       Capability = "registration"
	CapResidentManagement Capability = "resident_management"
	CapSettings           Capability = "settings"
)

// Dashboard pages.
const (
	PageDashboard          = "dashboard.html"
	PageReports            = "reports.html"
	PageReportsViewing     = "reportsViewing.html"
	PageAmbulance          = "ambulance.html"
	PageRegisterStaff      = "register-staff.html"
	PageRegisterResident   = "register-resident.html"
	PageResidentManagement = "resident-management.html"
	PageSettings           = "settings.html"
)

// MenuItem is static navigation configuration.
type MenuItem struct {
	Label      string     `json:"label"`
	Page       string     `json:"page"`
	Capability Capability `json:"capability"`
}

// Policy is the allow/deny set, landing page and page allow list of one role.
type Policy struct {
	Allow   []Capability `json:"allow"`
	Deny    []Capability `json:"deny"`
	Landing string       `json:"landing"`
	Pages   []string     `json:"pages"`
}

// Keyword binds a capability to the display text that identifies it in labels.
type Keyword struct {
	Text       string     `json:"text"`
	Capability Capability `json:"capability"`
}

// Registry is the immutable role/menu configuration.
type Registry struct {
	menu     []MenuItem
	keywords []Keyword
	policies map[Role]Policy
	aliases  map[Role]Role
	fallback Role

	allow map[Role]map[Capability]bool
	deny  map[Role]map[Capability]bool
	pages map[Role]map[string]bool
}

// Snapshot is the registry rendered as data.
type Snapshot struct {
	Menu     []MenuItem      `json:"menu"`
	Keywords []Keyword       `json:"keywords"`
	Policies map[Role]Policy `json:"policies"`
	Aliases  map[Role]Role   `json:"aliases"`
	Fallback Role            `json:"fallback"`
}

// DefaultKeywords maps display text to capabilities.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{Text: "Dashboard", Capability: CapDashboard},
		{Text: "Reports", Capability: CapReports},
		{Text: "Reports Viewing", Capability: CapReportsViewing},
		{Text: "Ambulance", Capability: CapAmbulance},
		{Text: "Registration", Capability: CapRegistration},
		{Text: "Resident Management", Capability: CapResidentManagement},
		{Text: "Settings", Capability: CapSettings},
	}
}

// DefaultMenu is the dashboard navigation.
func DefaultMenu() []MenuItem {
	return []MenuItem{
		{Label: "Dashboard", Page: PageDashboard, Capability: CapDashboard},
		{Label: "Reports", Page: PageReports, Capability: CapReports},
		{Label: "Reports Viewing", Page: PageReportsViewing, Capability: CapReportsViewing},
		{Label: "Ambulance", Page: PageAmbulance, Capability: CapAmbulance},
		{Label: "Staff Registration", Page: PageRegisterStaff, Capability: CapRegistration},
		{Label: "Resident Registration", Page: PageRegisterResident, Capability: CapRegistration},
		{Label: "Resident Management", Page: PageResidentManagement, Capability: CapResidentManagement},
		{Label: "Settings", Page: PageSettings, Capability: CapSettings},
	}
}

// DefaultPolicies is the fixed policy table for the canonical roles.
func DefaultPolicies() map[Role]Policy {
	return map[Role]Policy{
		RoleSystemAdmin: {
			Allow:   []Capability{CapRegistration, CapResidentManagement, CapSettings},
			Deny:    []Capability{CapDashboard, CapReports, CapReportsViewing, CapAmbulance},
			Landing: PageRegisterStaff,
			Pages:   []string{PageRegisterStaff, PageRegisterResident, PageResidentManagement, PageSettings},
		},
		RoleBarangayStaff: {
			Allow:   []Capability{CapDashboard, CapReports, CapReportsViewing, CapAmbulance, CapSettings},
			Deny:    []Capability{CapRegistration, CapResidentManagement},
			Landing: PageDashboard,
			Pages:   []string{PageDashboard, PageReports, PageAmbulance, PageReportsViewing, PageSettings},
		},
		RoleLiveViewer: {
			Allow:   []Capability{CapReportsViewing, CapSettings},
			Deny:    []Capability{CapDashboard, CapReports, CapAmbulance, CapRegistration, CapResidentManagement},
			Landing: PageReportsViewing,
			Pages:   []string{PageReportsViewing, PageSettings},
		},
	}
}

// DefaultAliases maps roles that share another role's policy.
func DefaultAliases() map[Role]Role {
	return map[Role]Role{
		RoleAdmin:     RoleSystemAdmin,
		RoleResponder: RoleBarangayStaff,
	}
}

var defaultRegistry = mustRegistry(NewRegistry(DefaultMenu(), DefaultKeywords(), DefaultPolicies(), DefaultAliases(), RoleSystemAdmin))

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry validates and indexes the tables. Keywords are ordered longest
// first so a label resolves to its most specific capability.
func NewRegistry(menu []MenuItem, keywords []Keyword, policies map[Role]Policy, aliases map[Role]Role, fallback Role) (*Registry, error) {
	if _, ok := policies[fallback]; !ok {
		return nil, fmt.Errorf("fallback role %q has no policy", fallback)
	}
	for alias, target := range aliases {
		if _, ok := policies[target]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown role %q", alias, target)
		}
	}
	known := make(map[Capability]bool, len(keywords))
	for _, kw := range keywords {
		if strings.TrimSpace(kw.Text) == "" {
			return nil, fmt.Errorf("empty keyword for capability %q", kw.Capability)
		}
		known[kw.Capability] = true
	}
	for _, item := range menu {
		if !known[item.Capability] {
			return nil, fmt.Errorf("menu item %q uses unknown capability %q", item.Label, item.Capability)
		}
	}

	r := &Registry{
		menu:     append([]MenuItem(nil), menu...),
		keywords: append([]Keyword(nil), keywords...),
		policies: make(map[Role]Policy, len(policies)),
		aliases:  make(map[Role]Role, len(aliases)),
		fallback: fallback,
		allow:    make(map[Role]map[Capability]bool, len(policies)),
		deny:     make(map[Role]map[Capability]bool, len(policies)),
		pages:    make(map[Role]map[string]bool, len(policies)),
	}
	sort.SliceStable(r.keywords, func(i, j int) bool {
		return len(r.keywords[i].Text) > len(r.keywords[j].Text)
	})
	for alias, target := range aliases {
		r.aliases[alias] = target
	}
	for role, policy := range policies {
		r.policies[role] = policy
		r.allow[role] = toSet(policy.Allow)
		r.deny[role] = toSet(policy.Deny)
		pages := make(map[string]bool, len(policy.Pages))
		for _, p := range policy.Pages {
			pages[p] = true
		}
		r.pages[role] = pages
	}
	return r, nil
}

// PolicyRole resolves aliases and unknown roles to the role whose policy applies.
func (r *Registry) PolicyRole(role Role) Role {
	if _, ok := r.policies[role]; ok {
		return role
	}
	if target, ok := r.aliases[role]; ok {
		return target
	}
	return r.fallback
}

// Policy returns the effective policy for role.
func (r *Registry) Policy(role Role) Policy {
	return r.policies[r.PolicyRole(role)]
}

// ResolveLabel maps a display label to the capability of its longest
// matching keyword.
func (r *Registry) ResolveLabel(label string) (Capability, bool) {
	caps := r.ResolveLabelAll(label)
	if len(caps) == 0 {
		return "", false
	}
	return caps[0], true
}

// ResolveLabelAll returns every capability whose keyword occurs in label,
// longest keyword first. An occurrence lying inside a longer match is
// ignored, so "Reports Viewing" does not also yield Reports.
func (r *Registry) ResolveLabelAll(label string) []Capability {
	text := strings.ToLower(strings.TrimSpace(label))
	if text == "" {
		return nil
	}
	type span struct{ start, end int }
	var (
		taken []span
		caps  []Capability
		seen  = make(map[Capability]bool)
	)
	for _, kw := range r.keywords {
		needle := strings.ToLower(kw.Text)
		if needle == "" {
			continue
		}
		for offset := 0; offset < len(text); {
			idx := strings.Index(text[offset:], needle)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(needle)
			offset = start + 1

			covered := false
			for _, sp := range taken {
				if start >= sp.start && end <= sp.end {
					covered = true
					break
				}
			}
			if covered {
				continue
			}
			taken = append(taken, span{start, end})
			if !seen[kw.Capability] {
				seen[kw.Capability] = true
				caps = append(caps, kw.Capability)
			}
		}
	}
	return caps
}

// Can reports whether role holds capability. Deny wins over allow.
func (r *Registry) Can(role Role, capability Capability) bool {
	effective := r.PolicyRole(role)
	if r.deny[effective][capability] {
		return false
	}
	return r.allow[effective][capability]
}

// IsVisible reports whether a menu label is shown to role. The label must
// match an allowed capability, and any matched capability the role denies
// hides it.
func (r *Registry) IsVisible(role Role, label string) bool {
	effective := r.PolicyRole(role)
	allowed := false
	for _, capability := range r.ResolveLabelAll(label) {
		if r.deny[effective][capability] {
			return false
		}
		if r.allow[effective][capability] {
			allowed = true
		}
	}
	return allowed
}

// PageAllowed reports whether role may land on page.
func (r *Registry) PageAllowed(role Role, page string) bool {
	return r.pages[r.PolicyRole(role)][page]
}

// KnownPage reports whether page belongs to the menu.
func (r *Registry) KnownPage(page string) bool {
	for _, item := range r.menu {
		if item.Page == page {
			return true
		}
	}
	return false
}

// DestinationFor returns where role lands after login. A preferred page is
// honoured only when it is on the role's page allow list.
func (r *Registry) DestinationFor(role Role, preferred string) string {
	if preferred != "" && r.PageAllowed(role, preferred) {
		return preferred
	}
	if landing := r.Policy(role).Landing; landing != "" {
		return landing
	}
	return PageDashboard
}

// VisibleMenu filters the menu for role.
func (r *Registry) VisibleMenu(role Role) []MenuItem {
	items := make([]MenuItem, 0, len(r.menu))
	for _, item := range r.menu {
		if r.IsVisible(role, item.Label) {
			items = append(items, item)
		}
	}
	return items
}

// Snapshot exposes the registry as data.
func (r *Registry) Snapshot() Snapshot {
	policies := make(map[Role]Policy, len(r.policies))
	for role, p := range r.policies {
		policies[role] = p
	}
	aliases := make(map[Role]Role, len(r.aliases))
	for k, v := range r.aliases {
		aliases[k] = v
	}
	return Snapshot{
		Menu:     append([]MenuItem(nil), r.menu...),
		Keywords: append([]Keyword(nil), r.keywords...),
		Policies: policies,
		Aliases:  aliases,
		Fallback: r.fallback,
	}
}

// Known reports whether role is one of the defined role values.
func (role Role) Known() bool {
	switch role {
	case RoleSystemAdmin, RoleBarangayStaff, RoleLiveViewer, RoleResponder, RoleAdmin:
		return true
	}
	return false
}

// NormalizeAccountRole maps a stored account role string onto a role value.
func NormalizeAccountRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.Known() {
		return role
	}
	switch {
	case strings.Contains(string(role), "admin"):
		return RoleSystemAdmin
	case strings.Contains(string(role), "viewer"):
		return RoleLiveViewer
	default:
		return RoleBarangayStaff
	}
}

func toSet(values []Capability) map[Capability]bool {
	set := make(map[Capability]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func mustRegistry(r *Registry, err error) *Registry {
	if err != nil {
		panic(err)
	}
	return r
}
