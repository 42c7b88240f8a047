package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the loan store.
// Reads used purely for catalogue views run outside a transaction; every mutation
// runs inside a serializable transaction obtained from BeginSerializableTx.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	BeginSerializableTx(ctx context.Context) (DBTx, error)
}

// DBTx defines the interface for operations inside one atomic unit. Reads
// observe the transaction snapshot, so validation aggregates and the writes
// that depend on them are consistent; Commit fails with a serialization
// error if a concurrent transaction invalidated that snapshot.
type DBTx interface {
	Query(ctx context.Context, query string) (DBRows, error)
	QueryRow(ctx context.Context, query string) DBRow
	Exec(ctx context.Context, query string) (DBResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBRow defines the interface for a single-row query result.
type DBRow interface {
	Scan(dest ...any) error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
