package auth

import "errors"

// Role determines what a bearer token may do with the control API.
type Role string

const (
	// RoleViewer may read tester state and stream events.
	RoleViewer Role = "viewer"

	// RoleOperator may also connect, send, publish and reconfigure testers.
	RoleOperator Role = "operator"
)

// ValidRoles lists every recognised role.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors. Use errors.Is() to check.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
	ErrNoSecret     = errors.New("jwt secret not configured")
)
