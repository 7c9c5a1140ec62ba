package ledger

import "fmt"

// Principal is the authenticated caller, as established by the auth layer.
type Principal struct {
	UserID   UserID
	Role     Role
	Username string
	Email    string
}

// RequireRole is the single capability check used by every protected route.
// Admin satisfies any role.
func RequireRole(p Principal, role Role) error {
	if p.UserID == "" {
		return ErrUnauthenticated
	}
	if p.Role == role || p.Role == RoleAdmin {
		return nil
	}
	return fmt.Errorf("%w: role %q required", ErrForbidden, role)
}
