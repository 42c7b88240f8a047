// Package postgresengine implements the loan store on PostgreSQL.
//
// It supports multiple database adapters (pgx pool, database/sql, sqlx)
// through an internal abstraction; pick one via the matching constructor.
// Every mutating operation runs in a single serializable transaction, so
// the stock checks and the writes that depend on them observe one
// consistent snapshot. Concurrent operations that would overcommit stock
// fail at commit with loanstore.ErrConcurrencyConflict and can be retried.
//
// All SQL is built with goqu and interpolated, keeping the store free of
// prepared statement management across the three adapters.
package postgresengine
