package loanstore

import (
	"fmt"
	"time"
)

// ValidateRequestedLine checks the creation-time rules for one requested
// line: the item must be loanable and the requested quantity must not exceed
// the full on-shelf quantity. Pending reservations by other requests reduce
// availability advisorily in catalogue reads but are not a hard ceiling here.
func ValidateRequestedLine(item Item, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	if item.Unloanable {
		return fmt.Errorf("%w: %s", ErrItemUnloanable, item.Description)
	}

	if qty > item.OnShelfQty {
		return fmt.Errorf("%w: requested %d of %q but only %d on shelf",
			ErrInsufficientStock, qty, item.Description, item.OnShelfQty)
	}

	return nil
}

// ApproveLine checks the approval-time stock rule for one line and returns
// the item's new on-shelf quantity. The check is tighter than at creation:
// quantity already out on approved loans (onLoan) is subtracted, guarding
// against stock consumed by loans approved in the interim. Expendable items
// are consumed permanently, so their on-shelf quantity drops by the loaned
// quantity; non-expendable items keep their stored quantity unchanged.
func ApproveLine(item Item, qty int, onLoan int) (newOnShelf int, err error) {
	if qty > item.OnShelfQty-onLoan {
		return item.OnShelfQty, fmt.Errorf("%w: requested %d of %q but only %d available against approved loans",
			ErrInsufficientStock, qty, item.Description, item.OnShelfQty-onLoan)
	}

	if item.Expendable {
		return item.OnShelfQty - qty, nil
	}

	return item.OnShelfQty, nil
}

// ReturnOutcome decides the terminal status of a returned line by comparing
// the moment of return against the parent loan's end date: strictly after
// the end date is late, on or before is a regular return.
func ReturnOutcome(returnedAt time.Time, loanEnd time.Time) LineStatus {
	if returnedAt.After(loanEnd) {
		return LineStatusReturnedLate
	}

	return LineStatusReturned
}

// AllLinesTerminal reports whether every line has finished its lifecycle,
// which is the condition for the parent request to complete.
func AllLinesTerminal(statuses []LineStatus) bool {
	if len(statuses) == 0 {
		return false
	}

	for _, status := range statuses {
		if !status.IsTerminal() {
			return false
		}
	}

	return true
}

// EnsurePending guards the transitions that are only legal while a request
// is PENDING (approve, reject, update, delete).
func EnsurePending(status LoanStatus) error {
	if status != LoanStatusPending {
		return fmt.Errorf("%w: status is %s", ErrLoanNotPending, status)
	}

	return nil
}
