package loanstore

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item is a physical item in the club's inventory.
//
// OnShelfQty is the stored quantity and is never negative. It is decremented
// only when an expendable item is approved for loan (permanent consumption);
// for non-expendable items the quantity out is tracked purely through the
// ON_LOAN aggregate of loan lines.
type Item struct {
	ID          uuid.UUID
	Description string
	Unit        string
	OnShelfQty  int
	Unloanable  bool
	Expendable  bool
	LocationID  uuid.NullUUID
	HolderID    uuid.NullUUID
}

// User is a person known to the system. Handle is an optional external
// identity handle (e.g. a messenger username), NUSNETID an optional campus
// account id; both are unique when present.
type User struct {
	ID       uuid.UUID
	Name     string
	Role     Role
	Handle   string
	NUSNETID string
}

// HolderType classifies an inventory holder.
type HolderType string

const (
	HolderTypeIndividual HolderType = "INDIVIDUAL"
	HolderTypeGroup      HolderType = "GROUP"
	HolderTypeDepartment HolderType = "DEPARTMENT"
)

// InventoryHolder is the custodian of zero or more items.
type InventoryHolder struct {
	ID   uuid.UUID
	Name string
	Type HolderType
}

// HolderMember links a user into a holder group; at most one member is
// flagged as the primary point of contact.
type HolderMember struct {
	UserID     uuid.UUID
	PrimaryPOC bool
}

// StorageLocation is a physical storage location assigned to items.
type StorageLocation struct {
	ID   uuid.UUID
	Name string
}

// LoanLine is one line of a loan request, referencing exactly one item.
type LoanLine struct {
	ID     uuid.UUID
	RefNo  int64
	ItemID uuid.UUID
	Qty    int
	Status LineStatus
}

// LoanRequest is a request to move items temporarily to a requester.
// RefNo is auto-assigned by the store on creation.
type LoanRequest struct {
	RefNo        int64
	StartDate    time.Time
	EndDate      time.Time
	RequesterID  uuid.UUID
	Organisation string
	Event        string
	Status       LoanStatus
	Lines        []LoanLine
}

// LoanItemSpec is one requested item line when creating or updating a loan.
type LoanItemSpec struct {
	ItemID uuid.UUID
	Qty    int
}

// NewRequester carries the details for creating a requester on the fly
// during loan creation. The handle is normalized before use.
type NewRequester struct {
	Name     string
	Handle   string
	NUSNETID string
}

// CreateLoanSpec is the input of the CreateLoan operation. Exactly one of
// RequesterID (non-nil UUID) or NewRequester must be supplied.
type CreateLoanSpec struct {
	StartDate    time.Time
	EndDate      time.Time
	RequesterID  uuid.UUID
	NewRequester *NewRequester
	Organisation string
	Event        string
	Items        []LoanItemSpec
}

// Validate checks the spec before the store is touched.
func (s CreateLoanSpec) Validate() error {
	if err := validateDates(s.StartDate, s.EndDate); err != nil {
		return err
	}

	if s.RequesterID == uuid.Nil && s.NewRequester == nil {
		return ErrMissingRequester
	}

	if s.NewRequester != nil && strings.TrimSpace(s.NewRequester.Name) == "" {
		return ErrBlankRequester
	}

	return validateItemSpecs(s.Items)
}

// UpdateLoanSpec is the input of the UpdateLoan operation. The line items
// replace the existing set wholesale; the requester cannot be changed.
type UpdateLoanSpec struct {
	StartDate    time.Time
	EndDate      time.Time
	Organisation string
	Event        string
	Items        []LoanItemSpec
}

// Validate checks the spec before the store is touched.
func (s UpdateLoanSpec) Validate() error {
	if err := validateDates(s.StartDate, s.EndDate); err != nil {
		return err
	}

	return validateItemSpecs(s.Items)
}

func validateDates(start time.Time, end time.Time) error {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return ErrInvalidDateRange
	}

	return nil
}

func validateItemSpecs(items []LoanItemSpec) error {
	if len(items) == 0 {
		return ErrNoItemsRequested
	}

	for _, item := range items {
		if item.Qty < 1 {
			return ErrInvalidQuantity
		}
	}

	return nil
}

// NormalizeHandle canonicalizes an external identity handle:
// surrounding whitespace and a leading "@" are stripped, the rest lowercased.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
