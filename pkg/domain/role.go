package domain

import dErrors "surasmart/pkg/domain-errors"

// Role is a closed enumeration of actor roles. Each role carries a fixed
// capability set checked at service boundaries, replacing ad-hoc permission
// lookups keyed by role name.
type Role string

const (
	RoleFamilyMember       Role = "family_member"
	RolePoliceOfficer      Role = "police_officer"
	RoleGovernmentOfficial Role = "government_official"
	RoleNGOWorker          Role = "ngo_worker"
)

// Capabilities enumerates what a role may do in the decision pipeline.
type Capabilities struct {
	CanVerifyMatches   bool
	CanSignAsFamily    bool
	CanSignAsAuthority bool
	CanAccessAllCases  bool
}

var roleCapabilities = map[Role]Capabilities{
	RoleFamilyMember: {
		CanSignAsFamily: true,
	},
	RolePoliceOfficer: {
		CanVerifyMatches:   true,
		CanSignAsAuthority: true,
	},
	RoleGovernmentOfficial: {
		CanVerifyMatches:   true,
		CanSignAsAuthority: true,
		CanAccessAllCases:  true,
	},
	RoleNGOWorker: {},
}

// ParseRole constructs a Role from external input, enforcing the allowlist.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleCapabilities[r]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown role %q", s)
	}
	return r, nil
}

// Capabilities returns the capability set for the role. Unknown roles get the
// zero set, which denies everything.
func (r Role) Capabilities() Capabilities {
	return roleCapabilities[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// SignatureRole identifies which of the two independent closure signatures an
// actor provides.
type SignatureRole string

const (
	SignatureFamily    SignatureRole = "family"
	SignatureAuthority SignatureRole = "authority"
)

// SignatureRoleFor maps an actor role to the closure signature it may provide.
// Roles without signing capability return an error.
func SignatureRoleFor(r Role) (SignatureRole, error) {
	caps := r.Capabilities()
	switch {
	case caps.CanSignAsFamily:
		return SignatureFamily, nil
	case caps.CanSignAsAuthority:
		return SignatureAuthority, nil
	default:
		return "", dErrors.Newf(dErrors.CodeForbidden, "role %q cannot sign case closures", r)
	}
}
