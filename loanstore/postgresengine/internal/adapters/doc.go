// Package adapters provides database adapter implementations for the PostgreSQL loan store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database
// libraries: pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality
// through a common DBAdapter interface, including serializable transactions for the
// store's multi-statement mutations, allowing the loan store to work seamlessly with
// any supported database connection type.
package adapters
