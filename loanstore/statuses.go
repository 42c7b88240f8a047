package loanstore

// LoanStatus represents the lifecycle state of a whole loan request.
// A request is created PENDING, moves to ONGOING on approval or REJECTED on
// rejection, and reaches COMPLETED once every line has reached a terminal state.
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "PENDING"
	LoanStatusOngoing   LoanStatus = "ONGOING"
	LoanStatusRejected  LoanStatus = "REJECTED"
	LoanStatusCompleted LoanStatus = "COMPLETED"
)

// IsTerminal reports whether no further transitions are allowed from this status.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusRejected || s == LoanStatusCompleted
}

// LineStatus represents the lifecycle state of a single loan line.
// Lines mirror their parent request but transition independently: each line
// is returned separately, and lateness is decided per return.
type LineStatus string

const (
	LineStatusPending      LineStatus = "PENDING"
	LineStatusOnLoan       LineStatus = "ON_LOAN"
	LineStatusReturned     LineStatus = "RETURNED"
	LineStatusReturnedLate LineStatus = "RETURNED_LATE"
	LineStatusRejected     LineStatus = "REJECTED"
)

// IsTerminal reports whether the line has finished its lifecycle.
// Once every line of a request is terminal, the request completes.
func (s LineStatus) IsTerminal() bool {
	switch s {
	case LineStatusReturned, LineStatusReturnedLate, LineStatusRejected:
		return true
	default:
		return false
	}
}

// IsReturned reports whether the line has already been handed back,
// late or not. Returning such a line again is an idempotent no-op.
func (s LineStatus) IsReturned() bool {
	return s == LineStatusReturned || s == LineStatusReturnedLate
}
