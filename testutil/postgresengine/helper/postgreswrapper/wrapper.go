package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/clublogistics/loanstore-go/loanstore/postgresengine"
	"github.com/clublogistics/loanstore-go/testutil/postgresengine/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// allTables lists every loan store table, dependents first, for cleanup.
const allTables = "loan_journal, loan_lines, loan_requests, inventory_holder_members, items, inventory_holders, users, storage_locations"

// Wrapper abstracts over the different adapter types in tests.
type Wrapper interface {
	GetLoanStore() postgresengine.LoanStore
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool *pgxpool.Pool
	ls   postgresengine.LoanStore
}

func (w *PGXPoolWrapper) GetLoanStore() postgresengine.LoanStore {
	return w.ls
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db *sql.DB
	ls postgresengine.LoanStore
}

func (w *SQLDBWrapper) GetLoanStore() postgresengine.LoanStore {
	return w.ls
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db *sqlx.DB
	ls postgresengine.LoanStore
}

func (w *SQLXWrapper) GetLoanStore() postgresengine.LoanStore {
	return w.ls
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper matching the ADAPTER_TYPE
// environment variable (pgx.pool when unset) and bootstraps the schema.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var wrapper Wrapper

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolTestConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		ls, err := postgresengine.NewLoanStoreFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating loan store")

		wrapper = &PGXPoolWrapper{pool: connPool, ls: ls}

	case typeSQLDB:
		db := config.PostgresSQLDBTestConfig()

		ls, err := postgresengine.NewLoanStoreFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating loan store")

		wrapper = &SQLDBWrapper{db: db, ls: ls}

	case typeSQLXDB:
		db := config.PostgresSQLXTestConfig()

		ls, err := postgresengine.NewLoanStoreFromSQLX(db, options...)
		assert.NoError(t, err, "error creating loan store")

		wrapper = &SQLXWrapper{db: db, ls: ls}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}

	store := wrapper.GetLoanStore()
	assert.NoError(t, store.CreateSchema(context.Background()), "error creating schema in test setup")

	return wrapper
}

// CleanUp empties all loan store tables for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	query := "TRUNCATE TABLE " + allTables + " RESTART IDENTITY CASCADE"

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := w.pool.Exec(context.Background(), query)
		assert.NoError(t, err, "error cleaning up the loan store tables")

	case *SQLDBWrapper:
		_, err := w.db.Exec(query)
		assert.NoError(t, err, "error cleaning up the loan store tables")

	case *SQLXWrapper:
		_, err := w.db.Exec(query)
		assert.NoError(t, err, "error cleaning up the loan store tables")

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}
}

// CountRows returns the number of rows in a table for the given wrapper.
func CountRows(t testing.TB, wrapper Wrapper, table string) int {
	query := "SELECT count(*) FROM " + table

	var count int
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		err = w.pool.QueryRow(context.Background(), query).Scan(&count)

	case *SQLDBWrapper:
		err = w.db.QueryRow(query).Scan(&count)

	case *SQLXWrapper:
		err = w.db.QueryRow(query).Scan(&count)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	assert.NoError(t, err, "error counting rows")

	return count
}
