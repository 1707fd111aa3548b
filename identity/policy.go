package identity

// Action identifies an operation a caller may be permitted to perform.
// Screens and service clients consult Can rather than re-implementing
// role checks per call site.
type Action string

const (
	ActionViewPatients       Action = "patients:view"
	ActionManagePatients     Action = "patients:manage"
	ActionViewDoctors        Action = "doctors:view"
	ActionManageDoctors      Action = "doctors:manage"
	ActionManageHospitals    Action = "hospitals:manage"
	ActionViewAppointments   Action = "appointments:view"
	ActionManageAppointments Action = "appointments:manage"
	ActionViewBilling        Action = "billing:view"
	ActionManageBilling      Action = "billing:manage"
	ActionManageUsers        Action = "users:manage"
	ActionSystemConfig       Action = "system:config"
)

// rolePermissions is the single authorization-policy table.
var rolePermissions = map[RoleType][]Action{
	RoleSuperAdmin: {
		ActionViewPatients, ActionManagePatients,
		ActionViewDoctors, ActionManageDoctors,
		ActionManageHospitals,
		ActionViewAppointments, ActionManageAppointments,
		ActionViewBilling, ActionManageBilling,
		ActionManageUsers, ActionSystemConfig,
	},
	RoleTechAdvisor: {
		ActionViewDoctors, ActionManageHospitals,
		ActionManageUsers, ActionSystemConfig,
	},
	RoleHospitalAdmin: {
		ActionViewPatients, ActionManagePatients,
		ActionViewDoctors, ActionManageDoctors,
		ActionViewAppointments, ActionManageAppointments,
		ActionViewBilling, ActionManageBilling,
		ActionManageUsers,
	},
	RoleDoctor: {
		ActionViewPatients, ActionManagePatients,
		ActionViewAppointments, ActionManageAppointments,
	},
	RoleNurse: {
		ActionViewPatients,
		ActionViewAppointments,
	},
	RoleReceptionist: {
		ActionViewPatients,
		ActionViewDoctors,
		ActionViewAppointments, ActionManageAppointments,
	},
	RoleBillingSpecialist: {
		ActionViewPatients,
		ActionViewBilling, ActionManageBilling,
	},
	RolePatient: {
		ActionViewAppointments,
	},
}

// Can reports whether the role is permitted to perform the action.
// Unknown roles are permitted nothing.
func (r RoleType) Can(action Action) bool {
	for _, a := range rolePermissions[r] {
		if a == action {
			return true
		}
	}
	return false
}

// Can reports whether the identity's role permits the action.
func (i Identity) Can(action Action) bool {
	return i.Role.Can(action)
}
