package authz

import (
	"sort"
	"time"

	"github.com/adityamishra28203/healthvault/internal/staff"
)

// Resources and actions known to the permission catalog.
const (
	ResourcePatients      = "patients"
	ResourceDocuments     = "documents"
	ResourceTimeline      = "timeline"
	ResourceConsents      = "consents"
	ResourcePrescriptions = "prescriptions"
	ResourceLabResults    = "lab_results"
	ResourceBilling       = "billing"
	ResourceReports       = "reports"
	ResourceUsers         = "users"
	ResourceHospitals     = "hospitals"
	ResourceSettings      = "settings"
)

const (
	ActionCreate   = "create"
	ActionRead     = "read"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionUpload   = "upload"
	ActionDownload = "download"
	ActionShare    = "share"
	ActionVerify   = "verify"
	ActionRequest  = "request"
	ActionDispense = "dispense"
	ActionManage   = "manage"
)

// Catalog is the static role-permission table plus the per-role temporal
// restriction table. It is configuration: built once at startup, passed to
// the engine, and never mutated afterwards.
type Catalog struct {
	grants       map[staff.Role]map[string]map[string]bool
	restrictions map[staff.Role]TimeRestriction
	emergency    map[staff.Role]bool
}

// TimeRestriction confines a role to a daily window. Hours are local,
// half-open: [StartHour, EndHour). BlockWeekends shuts the role out on
// Saturday and Sunday regardless of the hour.
type TimeRestriction struct {
	StartHour     int
	EndHour       int
	BlockWeekends bool
}

type grant struct {
	resource string
	actions  []string
}

var roleGrants = map[staff.Role][]grant{
	staff.RoleDoctor: {
		{ResourcePatients, []string{ActionRead, ActionUpdate}},
		{ResourceDocuments, []string{ActionRead, ActionUpload, ActionDownload, ActionShare}},
		{ResourceTimeline, []string{ActionRead, ActionCreate}},
		{ResourceConsents, []string{ActionRequest, ActionRead}},
		{ResourcePrescriptions, []string{ActionCreate, ActionRead, ActionUpdate}},
		{ResourceLabResults, []string{ActionRead}},
	},
	staff.RoleNurse: {
		{ResourcePatients, []string{ActionRead}},
		{ResourceDocuments, []string{ActionRead, ActionUpload}},
		{ResourceTimeline, []string{ActionRead, ActionCreate}},
		{ResourceConsents, []string{ActionRead}},
		{ResourcePrescriptions, []string{ActionRead}},
		{ResourceLabResults, []string{ActionRead}},
	},
	staff.RoleBillingClerk: {
		{ResourceBilling, []string{ActionCreate, ActionRead, ActionUpdate}},
		{ResourcePatients, []string{ActionRead}},
		{ResourceReports, []string{ActionCreate, ActionRead}},
	},
	staff.RoleLabTechnician: {
		{ResourceLabResults, []string{ActionCreate, ActionRead, ActionUpdate}},
		{ResourceDocuments, []string{ActionRead, ActionUpload}},
		{ResourcePatients, []string{ActionRead}},
	},
	staff.RoleRadiologist: {
		{ResourceDocuments, []string{ActionRead, ActionUpload, ActionDownload}},
		{ResourceLabResults, []string{ActionRead}},
		{ResourcePatients, []string{ActionRead}},
		{ResourceTimeline, []string{ActionRead}},
	},
	staff.RolePharmacist: {
		{ResourcePrescriptions, []string{ActionRead, ActionDispense}},
		{ResourcePatients, []string{ActionRead}},
	},
	staff.RoleReceptionist: {
		{ResourcePatients, []string{ActionCreate, ActionRead, ActionUpdate}},
		{ResourceTimeline, []string{ActionRead, ActionCreate}},
		{ResourceConsents, []string{ActionRequest}},
	},
	staff.RoleViewer: {
		{ResourcePatients, []string{ActionRead}},
		{ResourceDocuments, []string{ActionRead}},
		{ResourceTimeline, []string{ActionRead}},
	},
}

// adminOnlyGrants are resources no other role touches; admin gets these on
// top of the union of every other role's grants.
var adminOnlyGrants = []grant{
	{ResourceUsers, []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}},
	{ResourceHospitals, []string{ActionCreate, ActionRead, ActionUpdate, ActionManage}},
	{ResourceSettings, []string{ActionRead, ActionUpdate}},
	{ResourceDocuments, []string{ActionDelete, ActionVerify}},
	{ResourcePatients, []string{ActionDelete}},
}

var roleRestrictions = map[staff.Role]TimeRestriction{
	staff.RoleBillingClerk:  {StartHour: 9, EndHour: 17, BlockWeekends: true},
	staff.RoleReceptionist:  {StartHour: 7, EndHour: 19, BlockWeekends: true},
	staff.RoleViewer:        {StartHour: 8, EndHour: 18, BlockWeekends: true},
	staff.RoleLabTechnician: {StartHour: 6, EndHour: 22},
	staff.RolePharmacist:    {StartHour: 8, EndHour: 20},
}

// emergencyRoles may act outside restricted windows and on weekends.
var emergencyRoles = []staff.Role{staff.RoleDoctor, staff.RoleNurse, staff.RoleRadiologist}

// NewCatalog builds the immutable permission catalog. Admin is constructed
// as the superset of every other role plus the admin-only grants.
func NewCatalog() *Catalog {
	c := &Catalog{
		grants:       make(map[staff.Role]map[string]map[string]bool),
		restrictions: make(map[staff.Role]TimeRestriction),
		emergency:    make(map[staff.Role]bool),
	}

	for role, grants := range roleGrants {
		for _, g := range grants {
			c.add(role, g.resource, g.actions)
		}
	}

	for _, grants := range roleGrants {
		for _, g := range grants {
			c.add(staff.RoleAdmin, g.resource, g.actions)
		}
	}
	for _, g := range adminOnlyGrants {
		c.add(staff.RoleAdmin, g.resource, g.actions)
	}

	for role, r := range roleRestrictions {
		c.restrictions[role] = r
	}
	for _, role := range emergencyRoles {
		c.emergency[role] = true
	}

	return c
}

func (c *Catalog) add(role staff.Role, resource string, actions []string) {
	if c.grants[role] == nil {
		c.grants[role] = make(map[string]map[string]bool)
	}
	if c.grants[role][resource] == nil {
		c.grants[role][resource] = make(map[string]bool)
	}
	for _, a := range actions {
		c.grants[role][resource][a] = true
	}
}

// Allows reports whether the role's static grants include (resource, action).
func (c *Catalog) Allows(role staff.Role, resource, action string) bool {
	return c.grants[role][resource][action]
}

// PermissionsFor flattens a role's grants to sorted resource:action strings.
func (c *Catalog) PermissionsFor(role staff.Role) []string {
	var perms []string
	for resource, actions := range c.grants[role] {
		for action := range actions {
			perms = append(perms, resource+":"+action)
		}
	}
	sort.Strings(perms)
	return perms
}

// IsEmergencyRole reports whether the role is on the temporal exemption list.
func (c *Catalog) IsEmergencyRole(role staff.Role) bool {
	return c.emergency[role]
}

// WithinAllowedHours evaluates the role's temporal restriction at the given
// time. Roles with no restriction entry are unrestricted; emergency roles
// bypass the weekend block.
func (c *Catalog) WithinAllowedHours(role staff.Role, at time.Time) bool {
	r, ok := c.restrictions[role]
	if !ok {
		return true
	}

	weekday := at.Weekday()
	if (weekday == time.Saturday || weekday == time.Sunday) && r.BlockWeekends {
		if !c.emergency[role] {
			return false
		}
	}

	hour := at.Hour()
	return hour >= r.StartHour && hour < r.EndHour
}
