package postgresengine

import (
	"context"
	"fmt"
)

// CreateSchema creates all tables and indexes of the loan store if they do
// not exist yet. The configured table prefix is applied throughout, so
// multiple stores can be bootstrapped side by side in one database.
func (ls LoanStore) CreateSchema(ctx context.Context) error {
	ctx, finish := ls.observeCommand(ctx, opCreateSchema)

	for _, statement := range ls.schemaStatements() {
		if _, execErr := ls.exec(ctx, statement); execErr != nil {
			finish(execErr)

			return execErr
		}
	}

	finish(nil)

	return nil
}

func (ls LoanStore) schemaStatements() []string {
	locations := ls.table(tableLocations)
	users := ls.table(tableUsers)
	holders := ls.table(tableHolders)
	holderMembers := ls.table(tableHolderMembers)
	items := ls.table(tableItems)
	loans := ls.table(tableLoans)
	lines := ls.table(tableLines)
	journal := ls.table(tableJournal)

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`, locations),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			handle TEXT NOT NULL DEFAULT '',
			nusnet_id TEXT NOT NULL DEFAULT ''
		)`, users),

		// absent handles and NUSNET ids are stored as '' so uniqueness
		// only binds when a value is present
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_handle_key ON %s (handle) WHERE handle <> ''`,
			users, users),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_nusnet_key ON %s (nusnet_id) WHERE nusnet_id <> ''`,
			users, users),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			holder_type TEXT NOT NULL
		)`, holders),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			holder_id UUID NOT NULL REFERENCES %s (id),
			user_id UUID NOT NULL REFERENCES %s (id),
			primary_poc BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (holder_id, user_id)
		)`, holderMembers, holders, users),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			description TEXT NOT NULL,
			unit TEXT NOT NULL DEFAULT '',
			on_shelf_qty INTEGER NOT NULL CHECK (on_shelf_qty >= 0),
			unloanable BOOLEAN NOT NULL DEFAULT FALSE,
			expendable BOOLEAN NOT NULL DEFAULT FALSE,
			location_id UUID REFERENCES %s (id),
			holder_id UUID REFERENCES %s (id)
		)`, items, locations, holders),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ref_no BIGSERIAL PRIMARY KEY,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			requester_id UUID NOT NULL REFERENCES %s (id),
			organisation TEXT NOT NULL DEFAULT '',
			event TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL
		)`, loans, users),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			ref_no BIGINT NOT NULL REFERENCES %s (ref_no),
			item_id UUID NOT NULL REFERENCES %s (id),
			qty INTEGER NOT NULL CHECK (qty >= 1),
			status TEXT NOT NULL
		)`, lines, loans, items),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_item_status_idx ON %s (item_id, status)`,
			lines, lines),

		// no FK on ref_no: journal entries outlive deleted requests
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			ref_no BIGINT NOT NULL,
			entry_type TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		)`, journal),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_ref_idx ON %s (ref_no, occurred_at)`,
			journal, journal),
	}
}
