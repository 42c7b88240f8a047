package loanstore

import "errors"

// Authorization errors - reported before any data is read or written.
var ErrNotAuthorized = errors.New("caller is not authorized for this operation")

// Validation errors - malformed input caught before touching the store.
var (
	ErrInvalidQuantity  = errors.New("requested quantity must be at least 1")
	ErrInvalidDateRange = errors.New("loan end date must not be before the start date")
	ErrNoItemsRequested = errors.New("a loan request must contain at least one item")
	ErrMissingRequester = errors.New("either an existing requester or new requester details must be supplied")
	ErrBlankRequester   = errors.New("new requester details must include a name")
)

// Business-rule violations - detected inside the atomic transaction and
// causing a full rollback.
var (
	ErrItemNotFound      = errors.New("item does not exist")
	ErrItemUnloanable    = errors.New("item is flagged as unloanable")
	ErrInsufficientStock = errors.New("insufficient stock for the requested quantity")
	ErrLoanNotFound      = errors.New("loan request does not exist")
	ErrLoanNotPending    = errors.New("loan request is not pending")
	ErrLineNotFound      = errors.New("loan item detail does not exist")
	ErrLineNotOnLoan     = errors.New("loan item detail is not on loan")
	ErrRequesterNotFound = errors.New("requester does not exist")
	ErrDuplicateHandle   = errors.New("a user with this handle already exists")
	ErrDuplicateNUSNET   = errors.New("a user with this NUSNET id already exists")
)

// Store-level errors - driver failures mapped to descriptive errors at the
// operation boundary; the raw driver error is joined for diagnostics.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrConcurrencyConflict   = errors.New("concurrency conflict, the transaction was not committed")
	ErrBeginTxFailed         = errors.New("failed to begin transaction")
	ErrCommitFailed          = errors.New("failed to commit transaction")
	ErrBuildQueryFailed      = errors.New("failed to build query")
	ErrQueryFailed           = errors.New("database query execution failed")
	ErrExecFailed            = errors.New("database execution failed")
	ErrScanRowFailed         = errors.New("failed to scan database row")
	ErrUniqueViolation       = errors.New("unique constraint violation")
)
