package routes

import "fmt"

// Access is the requirement a route puts on the session. The zero value means
// the route takes its parent's requirement.
type Access int

const (
	AccessInherit Access = iota
	AccessNone
	AccessRequiresAuth
	AccessRequiresAdmin
)

func (a Access) String() string {
	switch a {
	case AccessInherit:
		return "inherit"
	case AccessNone:
		return "none"
	case AccessRequiresAuth:
		return "requiresAuth"
	case AccessRequiresAdmin:
		return "requiresAdmin"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// ParseAccess accepts the names String returns plus a few spellings seen in
// route files.
func ParseAccess(s string) (Access, error) {
	switch s {
	case "", "inherit":
		return AccessInherit, nil
	case "none", "public":
		return AccessNone, nil
	case "requiresAuth", "requires_auth", "auth":
		return AccessRequiresAuth, nil
	case "requiresAdmin", "requires_admin", "admin":
		return AccessRequiresAdmin, nil
	}
	return AccessInherit, fmt.Errorf("%w: unknown access requirement %q", ErrInvalidRoute, s)
}

func (a *Access) UnmarshalText(text []byte) error {
	parsed, err := ParseAccess(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// merge applies an explicit requirement on top of the inherited one. Loosening
// an inherited requirement is a conflict.
func merge(inherited, own Access) (Access, error) {
	if own == AccessInherit {
		return inherited, nil
	}
	if own < inherited {
		return inherited, fmt.Errorf("declares %s under a %s parent", own, inherited)
	}
	return own, nil
}
