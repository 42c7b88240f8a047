package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/clublogistics/loanstore-go/loanstore"
)

const (
	pendingQtySQL = "COALESCE(SUM(CASE WHEN l.status = 'PENDING' THEN l.qty ELSE 0 END), 0)"
	onLoanQtySQL  = "COALESCE(SUM(CASE WHEN l.status = 'ON_LOAN' THEN l.qty ELSE 0 END), 0)"
)

// Catalogue returns every item with its derived availability. The pending
// and on-loan aggregates are computed per read from the committed loan
// lines, never stored.
func (ls LoanStore) Catalogue(ctx context.Context, caller loanstore.Role) ([]loanstore.CatalogueEntry, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapViewCatalogue); authErr != nil {
		return nil, authErr
	}

	ctx, finish := ls.observeQuery(ctx, opCatalogue)

	entries, err := ls.queryCatalogue(ctx, nil)
	finish(err)

	return entries, err
}

// ItemAvailability returns one item with its derived availability.
func (ls LoanStore) ItemAvailability(ctx context.Context, caller loanstore.Role, itemID uuid.UUID) (loanstore.CatalogueEntry, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapViewCatalogue); authErr != nil {
		return loanstore.CatalogueEntry{}, authErr
	}

	ctx, finish := ls.observeQuery(ctx, opItemAvailability)

	entries, err := ls.queryCatalogue(ctx, goqu.Ex{"i.id": itemID.String()})
	if err == nil && len(entries) == 0 {
		err = fmt.Errorf("%w: %s", loanstore.ErrItemNotFound, itemID)
	}

	finish(err)

	if err != nil {
		return loanstore.CatalogueEntry{}, err
	}

	return entries[0], nil
}

func (ls LoanStore) queryCatalogue(ctx context.Context, where goqu.Ex) ([]loanstore.CatalogueEntry, error) {
	builder := pgDialect.
		From(goqu.T(ls.table(tableItems)).As("i")).
		LeftJoin(
			goqu.T(ls.table(tableLines)).As("l"),
			goqu.On(goqu.I("l.item_id").Eq(goqu.I("i.id"))),
		).
		Select(
			goqu.I("i.id"), goqu.I("i.description"), goqu.I("i.unit"), goqu.I("i.on_shelf_qty"),
			goqu.I("i.unloanable"), goqu.I("i.expendable"), goqu.I("i.location_id"), goqu.I("i.holder_id"),
			goqu.L(pendingQtySQL).As("pending_qty"),
			goqu.L(onLoanQtySQL).As("on_loan_qty"),
		).
		GroupBy(
			goqu.I("i.id"), goqu.I("i.description"), goqu.I("i.unit"), goqu.I("i.on_shelf_qty"),
			goqu.I("i.unloanable"), goqu.I("i.expendable"), goqu.I("i.location_id"), goqu.I("i.holder_id"),
		).
		Order(goqu.I("i.description").Asc())

	if where != nil {
		builder = builder.Where(where)
	}

	sqlQuery, _, buildErr := builder.ToSQL()
	if buildErr != nil {
		return nil, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rows, queryErr := ls.query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer ls.closeRows(ctx, rows)

	var entries []loanstore.CatalogueEntry

	for rows.Next() {
		var item loanstore.Item
		var pending, onLoan int

		scanErr := rows.Scan(
			&item.ID, &item.Description, &item.Unit, &item.OnShelfQty,
			&item.Unloanable, &item.Expendable, &item.LocationID, &item.HolderID,
			&pending, &onLoan,
		)
		if scanErr != nil {
			return nil, errors.Join(loanstore.ErrScanRowFailed, scanErr)
		}

		entries = append(entries, loanstore.CatalogueEntry{
			Item:         item,
			Availability: loanstore.AvailabilityFromAggregates(item.OnShelfQty, pending, onLoan),
		})
	}

	return entries, nil
}

// GetLoan returns one loan request with all its lines.
func (ls LoanStore) GetLoan(ctx context.Context, caller loanstore.Role, refNo int64) (loanstore.LoanRequest, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return loanstore.LoanRequest{}, authErr
	}

	ctx, finish := ls.observeQuery(ctx, opGetLoan)

	loans, err := ls.queryLoans(ctx, goqu.Ex{"ref_no": refNo})
	if err == nil && len(loans) == 0 {
		err = fmt.Errorf("%w: ref no %d", loanstore.ErrLoanNotFound, refNo)
	}

	finish(err)

	if err != nil {
		return loanstore.LoanRequest{}, err
	}

	return loans[0], nil
}

// ListLoansForRequester returns all loan requests of one requester, newest
// first. Requesters use this to follow their own requests.
func (ls LoanStore) ListLoansForRequester(ctx context.Context, caller loanstore.Role, requesterID uuid.UUID) ([]loanstore.LoanRequest, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapViewCatalogue); authErr != nil {
		return nil, authErr
	}

	ctx, finish := ls.observeQuery(ctx, opLoansForRequester)

	loans, err := ls.queryLoans(ctx, goqu.Ex{"requester_id": requesterID.String()})
	finish(err)

	return loans, err
}

func (ls LoanStore) queryLoans(ctx context.Context, where goqu.Ex) ([]loanstore.LoanRequest, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableLoans)).
		Select("ref_no", "start_date", "end_date", "requester_id", "organisation", "event", "status").
		Where(where).
		Order(goqu.C("ref_no").Desc()).
		ToSQL()
	if buildErr != nil {
		return nil, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rows, queryErr := ls.query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer ls.closeRows(ctx, rows)

	var loans []loanstore.LoanRequest
	refNos := make([]any, 0)

	for rows.Next() {
		var loan loanstore.LoanRequest
		scanErr := rows.Scan(
			&loan.RefNo, &loan.StartDate, &loan.EndDate,
			&loan.RequesterID, &loan.Organisation, &loan.Event, &loan.Status,
		)
		if scanErr != nil {
			return nil, errors.Join(loanstore.ErrScanRowFailed, scanErr)
		}

		loans = append(loans, loan)
		refNos = append(refNos, loan.RefNo)
	}

	if len(loans) == 0 {
		return nil, nil
	}

	linesByRefNo, linesErr := ls.queryLinesByRefNos(ctx, refNos)
	if linesErr != nil {
		return nil, linesErr
	}

	for idx := range loans {
		loans[idx].Lines = linesByRefNo[loans[idx].RefNo]
	}

	return loans, nil
}

func (ls LoanStore) queryLinesByRefNos(ctx context.Context, refNos []any) (map[int64][]loanstore.LoanLine, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableLines)).
		Select("id", "ref_no", "item_id", "qty", "status").
		Where(goqu.C("ref_no").In(refNos...)).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rows, queryErr := ls.query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer ls.closeRows(ctx, rows)

	linesByRefNo := make(map[int64][]loanstore.LoanLine)

	for rows.Next() {
		var line loanstore.LoanLine
		if scanErr := rows.Scan(&line.ID, &line.RefNo, &line.ItemID, &line.Qty, &line.Status); scanErr != nil {
			return nil, errors.Join(loanstore.ErrScanRowFailed, scanErr)
		}

		linesByRefNo[line.RefNo] = append(linesByRefNo[line.RefNo], line)
	}

	return linesByRefNo, nil
}

// LoanHistory returns the journal entries of one loan request in order of
// occurrence, oldest first.
func (ls LoanStore) LoanHistory(ctx context.Context, caller loanstore.Role, refNo int64) ([]loanstore.JournalEntry, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return nil, authErr
	}

	ctx, finish := ls.observeQuery(ctx, opLoanHistory)

	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableJournal)).
		Select("id", "ref_no", "entry_type", "occurred_at", "payload").
		Where(goqu.C("ref_no").Eq(refNo)).
		Order(goqu.C("occurred_at").Asc(), goqu.C("id").Asc()).
		ToSQL()
	if buildErr != nil {
		buildErr = errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
		finish(buildErr)

		return nil, buildErr
	}

	rows, queryErr := ls.query(ctx, sqlQuery)
	if queryErr != nil {
		finish(queryErr)

		return nil, queryErr
	}
	defer ls.closeRows(ctx, rows)

	var entries []loanstore.JournalEntry

	for rows.Next() {
		var entry loanstore.JournalEntry
		scanErr := rows.Scan(&entry.ID, &entry.RefNo, &entry.EntryType, &entry.OccurredAt, &entry.Payload)
		if scanErr != nil {
			scanErr = errors.Join(loanstore.ErrScanRowFailed, scanErr)
			finish(scanErr)

			return nil, scanErr
		}

		entries = append(entries, entry)
	}

	finish(nil)

	return entries, nil
}
