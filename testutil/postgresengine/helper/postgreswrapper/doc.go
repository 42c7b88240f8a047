// Package postgreswrapper builds the loan store from the adapter selected
// via the ADAPTER_TYPE environment variable, so the engine test suite runs
// identically against pgx.pool, sql.db, and sqlx.db.
package postgreswrapper
