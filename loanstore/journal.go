package loanstore

import (
	"time"

	"github.com/google/uuid"
)

// Journal entry types, one per committed loan-lifecycle mutation.
const (
	JournalLoanCreated  = "LoanRequestCreated"
	JournalLoanApproved = "LoanRequestApproved"
	JournalLoanRejected = "LoanRequestRejected"
	JournalLoanUpdated  = "LoanRequestUpdated"
	JournalLoanDeleted  = "LoanRequestDeleted"
	JournalItemReturned = "LoanItemReturned"
)

// JournalEntry is one audit record of the loan journal. Entries are written
// in the same transaction as the mutation they describe, so the journal
// never records a change that was rolled back.
type JournalEntry struct {
	ID         uuid.UUID
	RefNo      int64
	EntryType  string
	OccurredAt time.Time
	Payload    []byte // JSON document describing the mutation
}
