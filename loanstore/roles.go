package loanstore

import "fmt"

// Role is the caller's role as supplied by the identity/session provider.
// The roles form an ordered hierarchy: REQUESTER < IH < LOGS < ADMIN.
// The store trusts this value; verifying identity is the provider's job.
type Role string

const (
	RoleRequester       Role = "REQUESTER"
	RoleInventoryHolder Role = "IH"
	RoleLogistics       Role = "LOGS"
	RoleAdmin           Role = "ADMIN"
)

// rank maps each role onto the ordered hierarchy. Unknown roles rank below
// every known role so that a mistyped role never gains capabilities.
func (r Role) rank() int {
	switch r {
	case RoleRequester:
		return 1
	case RoleInventoryHolder:
		return 2
	case RoleLogistics:
		return 3
	case RoleAdmin:
		return 4
	default:
		return 0
	}
}

// Capability is a category of operations gated by the authorization gate.
type Capability string

const (
	// CapManageLoans covers the whole loan lifecycle (create, approve, reject,
	// update, delete, return) as well as item master data.
	CapManageLoans Capability = "manage-loans"

	// CapManageUsers covers user and inventory-holder group administration.
	CapManageUsers Capability = "manage-users"

	// CapManageLocations covers storage location administration.
	CapManageLocations Capability = "manage-locations"

	// CapViewCatalogue covers read access to the item catalogue.
	CapViewCatalogue Capability = "view-catalogue"
)

// minimumRank returns the lowest role rank allowed to exercise the capability.
func (c Capability) minimumRank() int {
	switch c {
	case CapManageUsers:
		return RoleAdmin.rank()
	case CapManageLoans, CapManageLocations:
		return RoleLogistics.rank()
	case CapViewCatalogue:
		return RoleRequester.rank()
	default:
		return RoleAdmin.rank() + 1 // unknown capabilities are never granted
	}
}

// Can reports whether the role may exercise the capability.
// This is a pure, stateless mapping consulted on every call.
func (r Role) Can(c Capability) bool {
	return r.rank() >= c.minimumRank()
}

// Authorize checks the role against the capability and returns
// ErrNotAuthorized before anything has been read or written.
func Authorize(r Role, c Capability) error {
	if !r.Can(c) {
		return fmt.Errorf("%w: role %q lacks capability %q", ErrNotAuthorized, string(r), string(c))
	}

	return nil
}
