package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/postgresengine/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	tableItems         = "items"
	tableUsers         = "users"
	tableHolders       = "inventory_holders"
	tableHolderMembers = "inventory_holder_members"
	tableLocations     = "storage_locations"
	tableLoans         = "loan_requests"
	tableLines         = "loan_lines"
	tableJournal       = "loan_journal"

	opCreateLoan         = "create_loan"
	opApproveLoan        = "approve_loan"
	opRejectLoan         = "reject_loan"
	opUpdateLoan         = "update_loan"
	opDeleteLoan         = "delete_loan"
	opReturnItem         = "return_item"
	opAddItem            = "add_item"
	opRegisterUser       = "register_user"
	opAddHolder          = "add_inventory_holder"
	opAddLocation        = "add_storage_location"
	opCreateSchema       = "create_schema"
	opCatalogue          = "catalogue"
	opItemAvailability   = "item_availability"
	opGetLoan            = "get_loan"
	opLoansForRequester  = "loans_for_requester"
	opLoanHistory        = "loan_history"

	logMsgOperation           = "loanstore operation: "
	logMsgSQLExecuted         = "executed sql for: "
	logMsgConcurrencyConflict = "concurrency conflict detected"

	logAttrError      = "error"
	logAttrQuery      = "query"
	logAttrDurationMS = "duration_ms"
	logAttrOperation  = "operation"
	logAttrRefNo      = "ref_no"

	metricCommandDuration      = "loanstore_command_duration_seconds"
	metricQueryDuration        = "loanstore_query_duration_seconds"
	metricCommandErrors        = "loanstore_command_errors_total"
	metricConcurrencyConflicts = "loanstore_concurrency_conflicts_total"

	spanNamePrefix    = "loanstore."
	spanAttrOperation = "operation"
	spanAttrErrorType = "error_type"
	statusSuccess     = "success"
	statusError       = "error"

	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeUniqueViolation      = "23505"
)

var pgDialect = goqu.Dialect(dialectPostgres)

// LoanStore is the transactional store for loan requests, loan lines, items,
// and the surrounding master data. Every mutating operation checks the
// caller's role first, then runs as one serializable transaction: the reads
// used for validation (e.g. the current on-loan aggregate of an item) and
// the writes that depend on them observe the same snapshot, so two
// concurrent approvals of overlapping stock cannot both commit.
type LoanStore struct {
	db               adapters.DBAdapter
	tablePrefix      string
	logger           loanstore.Logger
	contextualLogger loanstore.ContextualLogger
	metricsCollector loanstore.MetricsCollector
	tracingCollector loanstore.TracingCollector
}

// NewLoanStoreFromPGXPool creates a new LoanStore using a pgx Pool with optional configuration.
func NewLoanStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (LoanStore, error) {
	if db == nil {
		return LoanStore{}, loanstore.ErrNilDatabaseConnection
	}

	return applyOptions(LoanStore{db: adapters.NewPGXAdapter(db)}, options)
}

// NewLoanStoreFromSQLDB creates a new LoanStore using a sql.DB with optional configuration.
func NewLoanStoreFromSQLDB(db *sql.DB, options ...Option) (LoanStore, error) {
	if db == nil {
		return LoanStore{}, loanstore.ErrNilDatabaseConnection
	}

	return applyOptions(LoanStore{db: adapters.NewSQLAdapter(db)}, options)
}

// NewLoanStoreFromSQLX creates a new LoanStore using a sqlx.DB with optional configuration.
func NewLoanStoreFromSQLX(db *sqlx.DB, options ...Option) (LoanStore, error) {
	if db == nil {
		return LoanStore{}, loanstore.ErrNilDatabaseConnection
	}

	return applyOptions(LoanStore{db: adapters.NewSQLXAdapter(db)}, options)
}

func applyOptions(ls LoanStore, options []Option) (LoanStore, error) {
	for _, option := range options {
		if err := option(&ls); err != nil {
			return LoanStore{}, err
		}
	}

	return ls, nil
}

// table prefixes every table name so multiple deployments can share a database.
func (ls LoanStore) table(name string) string {
	return ls.tablePrefix + name
}

// inTx runs fn inside one serializable transaction. Any error from fn aborts
// the whole unit; commit-time serialization failures are mapped to
// loanstore.ErrConcurrencyConflict so callers can retry.
func (ls LoanStore) inTx(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, beginErr := ls.db.BeginSerializableTx(ctx)
	if beginErr != nil {
		return mapDriverError(beginErr, loanstore.ErrBeginTxFailed)
	}

	if fnErr := fn(tx); fnErr != nil {
		_ = tx.Rollback(ctx)
		return fnErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		_ = tx.Rollback(ctx)
		return mapDriverError(commitErr, loanstore.ErrCommitFailed)
	}

	return nil
}

// execTx executes a statement inside the transaction and returns the number
// of affected rows, with debug query logging and driver error mapping.
func (ls LoanStore) execTx(ctx context.Context, tx adapters.DBTx, sqlQuery string) (int64, error) {
	start := time.Now()
	result, execErr := tx.Exec(ctx, sqlQuery)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if execErr != nil {
		return 0, mapDriverError(execErr, loanstore.ErrExecFailed)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return 0, errors.Join(loanstore.ErrExecFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// queryTx executes a query inside the transaction with debug query logging.
func (ls LoanStore) queryTx(ctx context.Context, tx adapters.DBTx, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := tx.Query(ctx, sqlQuery)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if queryErr != nil {
		return nil, mapDriverError(queryErr, loanstore.ErrQueryFailed)
	}

	return rows, nil
}

// exec executes a statement outside any transaction (schema bootstrap).
func (ls LoanStore) exec(ctx context.Context, sqlQuery string) (int64, error) {
	start := time.Now()
	result, execErr := ls.db.Exec(ctx, sqlQuery)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if execErr != nil {
		return 0, mapDriverError(execErr, loanstore.ErrExecFailed)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return 0, errors.Join(loanstore.ErrExecFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// query executes a read outside any transaction (catalogue views).
func (ls LoanStore) query(ctx context.Context, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := ls.db.Query(ctx, sqlQuery)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if queryErr != nil {
		return nil, mapDriverError(queryErr, loanstore.ErrQueryFailed)
	}

	return rows, nil
}

// closeRows safely closes database rows and logs any errors.
func (ls LoanStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		ls.logWarn(ctx, "failed to close database rows", logAttrError, closeErr.Error())
	}
}

// mapDriverError converts driver-level failures into the store's error
// taxonomy: serialization failures and deadlocks become concurrency
// conflicts, unique violations become ErrUniqueViolation, everything else
// is joined with the supplied fallback so nothing raw crosses the boundary.
func mapDriverError(err error, fallback error) error {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		if mapped := mapSQLStateError(pgxErr.Code, err); mapped != nil {
			return mapped
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if mapped := mapSQLStateError(string(pqErr.Code), err); mapped != nil {
			return mapped
		}
	}

	return errors.Join(fallback, err)
}

func mapSQLStateError(code string, err error) error {
	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected:
		return errors.Join(loanstore.ErrConcurrencyConflict, err)
	case pgCodeUniqueViolation:
		return errors.Join(loanstore.ErrUniqueViolation, err)
	default:
		return nil
	}
}

// isNoRows reports whether a single-row scan found nothing.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
