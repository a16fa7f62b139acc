package provision

import "fmt"

// MissingIdentityError reports a request carrying neither a guest name
// nor an IP address. It is raised before any remote system is contacted.
type MissingIdentityError struct{}

func (e *MissingIdentityError) Error() string {
	return "must provide either a guest name or an IP address"
}

// IdentityResolutionError reports a DNS lookup that failed to resolve
// the missing half of the guest's identity. The pipeline never proceeds
// with an unresolved identity.
type IdentityResolutionError struct {
	// Kind is "name" or "address", whichever was being resolved.
	Kind  string
	Value string
	Err   error
}

func (e *IdentityResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve guest %s %q: %v", e.Kind, e.Value, e.Err)
}

func (e *IdentityResolutionError) Unwrap() error { return e.Err }
