package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/postgresengine/internal/adapters"
)

// loadItemTx reads one item inside the transaction.
func (ls LoanStore) loadItemTx(ctx context.Context, tx adapters.DBTx, itemID uuid.UUID) (loanstore.Item, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableItems)).
		Select("id", "description", "unit", "on_shelf_qty", "unloanable", "expendable", "location_id", "holder_id").
		Where(goqu.C("id").Eq(itemID.String())).
		ToSQL()
	if buildErr != nil {
		return loanstore.Item{}, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	start := time.Now()
	row := tx.QueryRow(ctx, sqlQuery)

	var item loanstore.Item
	scanErr := row.Scan(
		&item.ID, &item.Description, &item.Unit, &item.OnShelfQty,
		&item.Unloanable, &item.Expendable, &item.LocationID, &item.HolderID,
	)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if scanErr != nil {
		if isNoRows(scanErr) {
			return loanstore.Item{}, fmt.Errorf("%w: %s", loanstore.ErrItemNotFound, itemID)
		}

		return loanstore.Item{}, mapDriverError(scanErr, loanstore.ErrScanRowFailed)
	}

	return item, nil
}

// onLoanQtyTx derives the quantity of an item currently out on approved
// loans, observed on the transaction's serializable snapshot.
func (ls LoanStore) onLoanQtyTx(ctx context.Context, tx adapters.DBTx, itemID uuid.UUID) (int, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableLines)).
		Select(goqu.COALESCE(goqu.SUM("qty"), 0)).
		Where(
			goqu.C("item_id").Eq(itemID.String()),
			goqu.C("status").Eq(string(loanstore.LineStatusOnLoan)),
		).
		ToSQL()
	if buildErr != nil {
		return 0, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	start := time.Now()
	row := tx.QueryRow(ctx, sqlQuery)

	var onLoan int
	scanErr := row.Scan(&onLoan)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if scanErr != nil {
		return 0, mapDriverError(scanErr, loanstore.ErrScanRowFailed)
	}

	return onLoan, nil
}

// loadLoanTx reads one loan request header (no lines) inside the transaction.
func (ls LoanStore) loadLoanTx(ctx context.Context, tx adapters.DBTx, refNo int64) (loanstore.LoanRequest, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableLoans)).
		Select("ref_no", "start_date", "end_date", "requester_id", "organisation", "event", "status").
		Where(goqu.C("ref_no").Eq(refNo)).
		ToSQL()
	if buildErr != nil {
		return loanstore.LoanRequest{}, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	start := time.Now()
	row := tx.QueryRow(ctx, sqlQuery)

	var loan loanstore.LoanRequest
	scanErr := row.Scan(
		&loan.RefNo, &loan.StartDate, &loan.EndDate,
		&loan.RequesterID, &loan.Organisation, &loan.Event, &loan.Status,
	)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if scanErr != nil {
		if isNoRows(scanErr) {
			return loanstore.LoanRequest{}, fmt.Errorf("%w: ref no %d", loanstore.ErrLoanNotFound, refNo)
		}

		return loanstore.LoanRequest{}, mapDriverError(scanErr, loanstore.ErrScanRowFailed)
	}

	return loan, nil
}

// loadLinesTx reads all lines of a loan request inside the transaction.
func (ls LoanStore) loadLinesTx(ctx context.Context, tx adapters.DBTx, refNo int64) ([]loanstore.LoanLine, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableLines)).
		Select("id", "ref_no", "item_id", "qty", "status").
		Where(goqu.C("ref_no").Eq(refNo)).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if buildErr != nil {
		return nil, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rows, queryErr := ls.queryTx(ctx, tx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer ls.closeRows(ctx, rows)

	var lines []loanstore.LoanLine

	for rows.Next() {
		var line loanstore.LoanLine
		if scanErr := rows.Scan(&line.ID, &line.RefNo, &line.ItemID, &line.Qty, &line.Status); scanErr != nil {
			return nil, errors.Join(loanstore.ErrScanRowFailed, scanErr)
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// loadLineTx reads one loan line by its id inside the transaction.
func (ls LoanStore) loadLineTx(ctx context.Context, tx adapters.DBTx, loanDetailID uuid.UUID) (loanstore.LoanLine, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(ls.table(tableLines)).
		Select("id", "ref_no", "item_id", "qty", "status").
		Where(goqu.C("id").Eq(loanDetailID.String())).
		ToSQL()
	if buildErr != nil {
		return loanstore.LoanLine{}, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	start := time.Now()
	row := tx.QueryRow(ctx, sqlQuery)

	var line loanstore.LoanLine
	scanErr := row.Scan(&line.ID, &line.RefNo, &line.ItemID, &line.Qty, &line.Status)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if scanErr != nil {
		if isNoRows(scanErr) {
			return loanstore.LoanLine{}, fmt.Errorf("%w: %s", loanstore.ErrLineNotFound, loanDetailID)
		}

		return loanstore.LoanLine{}, mapDriverError(scanErr, loanstore.ErrScanRowFailed)
	}

	return line, nil
}

// resolveRequesterTx returns the id of the loan's requester, verifying an
// existing one or creating a new requester on the fly.
func (ls LoanStore) resolveRequesterTx(ctx context.Context, tx adapters.DBTx, spec loanstore.CreateLoanSpec) (uuid.UUID, error) {
	if spec.RequesterID != uuid.Nil {
		exists, err := ls.existsTx(ctx, tx, ls.table(tableUsers), goqu.Ex{"id": spec.RequesterID.String()})
		if err != nil {
			return uuid.Nil, err
		}

		if !exists {
			return uuid.Nil, fmt.Errorf("%w: %s", loanstore.ErrRequesterNotFound, spec.RequesterID)
		}

		return spec.RequesterID, nil
	}

	return ls.createRequesterTx(ctx, tx, *spec.NewRequester)
}

// createRequesterTx inserts a new REQUESTER user after normalizing the
// handle and checking handle and NUSNET id uniqueness. The partial unique
// indexes on the users table back the checks up at commit time.
func (ls LoanStore) createRequesterTx(ctx context.Context, tx adapters.DBTx, requester loanstore.NewRequester) (uuid.UUID, error) {
	handle := loanstore.NormalizeHandle(requester.Handle)
	nusnetID := strings.TrimSpace(requester.NUSNETID)

	if handle != "" {
		exists, err := ls.existsTx(ctx, tx, ls.table(tableUsers), goqu.Ex{"handle": handle})
		if err != nil {
			return uuid.Nil, err
		}

		if exists {
			return uuid.Nil, fmt.Errorf("%w: %s", loanstore.ErrDuplicateHandle, handle)
		}
	}

	if nusnetID != "" {
		exists, err := ls.existsTx(ctx, tx, ls.table(tableUsers), goqu.Ex{"nusnet_id": nusnetID})
		if err != nil {
			return uuid.Nil, err
		}

		if exists {
			return uuid.Nil, fmt.Errorf("%w: %s", loanstore.ErrDuplicateNUSNET, nusnetID)
		}
	}

	userID := uuid.New()

	sqlQuery, _, buildErr := pgDialect.
		Insert(ls.table(tableUsers)).
		Rows(goqu.Record{
			"id":        userID.String(),
			"name":      strings.TrimSpace(requester.Name),
			"role":      string(loanstore.RoleRequester),
			"handle":    handle,
			"nusnet_id": nusnetID,
		}).
		ToSQL()
	if buildErr != nil {
		return uuid.Nil, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	if _, execErr := ls.execTx(ctx, tx, sqlQuery); execErr != nil {
		return uuid.Nil, execErr
	}

	return userID, nil
}

// existsTx reports whether at least one row matches inside the transaction.
func (ls LoanStore) existsTx(ctx context.Context, tx adapters.DBTx, tableName string, where goqu.Ex) (bool, error) {
	sqlQuery, _, buildErr := pgDialect.
		From(tableName).
		Select(goqu.COUNT(goqu.Star())).
		Where(where).
		ToSQL()
	if buildErr != nil {
		return false, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	start := time.Now()
	row := tx.QueryRow(ctx, sqlQuery)

	var count int
	scanErr := row.Scan(&count)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if scanErr != nil {
		return false, mapDriverError(scanErr, loanstore.ErrScanRowFailed)
	}

	return count > 0, nil
}

// insertLoanHeaderTx inserts a new PENDING loan request and returns the
// store-assigned reference number.
func (ls LoanStore) insertLoanHeaderTx(
	ctx context.Context,
	tx adapters.DBTx,
	spec loanstore.CreateLoanSpec,
	requesterID uuid.UUID,
) (int64, error) {
	sqlQuery, _, buildErr := pgDialect.
		Insert(ls.table(tableLoans)).
		Rows(goqu.Record{
			"start_date":   spec.StartDate.UTC(),
			"end_date":     spec.EndDate.UTC(),
			"requester_id": requesterID.String(),
			"organisation": spec.Organisation,
			"event":        spec.Event,
			"status":       string(loanstore.LoanStatusPending),
		}).
		Returning("ref_no").
		ToSQL()
	if buildErr != nil {
		return 0, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	start := time.Now()
	row := tx.QueryRow(ctx, sqlQuery)

	var refNo int64
	scanErr := row.Scan(&refNo)
	ls.logQueryWithDuration(ctx, sqlQuery, time.Since(start))

	if scanErr != nil {
		return 0, mapDriverError(scanErr, loanstore.ErrScanRowFailed)
	}

	return refNo, nil
}

// validateAndInsertLinesTx runs the creation-time check for every requested
// line against the transaction's snapshot and inserts them as PENDING.
// Any failing line aborts the whole set.
func (ls LoanStore) validateAndInsertLinesTx(
	ctx context.Context,
	tx adapters.DBTx,
	refNo int64,
	items []loanstore.LoanItemSpec,
) ([]loanstore.LoanLine, error) {
	lines := make([]loanstore.LoanLine, 0, len(items))
	records := make([]any, 0, len(items))

	for _, itemSpec := range items {
		item, loadErr := ls.loadItemTx(ctx, tx, itemSpec.ItemID)
		if loadErr != nil {
			return nil, loadErr
		}

		if validateErr := loanstore.ValidateRequestedLine(item, itemSpec.Qty); validateErr != nil {
			return nil, validateErr
		}

		line := loanstore.LoanLine{
			ID:     uuid.New(),
			RefNo:  refNo,
			ItemID: itemSpec.ItemID,
			Qty:    itemSpec.Qty,
			Status: loanstore.LineStatusPending,
		}
		lines = append(lines, line)
		records = append(records, goqu.Record{
			"id":      line.ID.String(),
			"ref_no":  line.RefNo,
			"item_id": line.ItemID.String(),
			"qty":     line.Qty,
			"status":  string(line.Status),
		})
	}

	sqlQuery, _, buildErr := pgDialect.
		Insert(ls.table(tableLines)).
		Rows(records...).
		ToSQL()
	if buildErr != nil {
		return nil, errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	if _, execErr := ls.execTx(ctx, tx, sqlQuery); execErr != nil {
		return nil, execErr
	}

	return lines, nil
}

// updateLoanStatusTx moves a loan request header to a new status.
func (ls LoanStore) updateLoanStatusTx(ctx context.Context, tx adapters.DBTx, refNo int64, status loanstore.LoanStatus) error {
	sqlQuery, _, buildErr := pgDialect.
		Update(ls.table(tableLoans)).
		Set(goqu.Record{"status": string(status)}).
		Where(goqu.C("ref_no").Eq(refNo)).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rowsAffected, execErr := ls.execTx(ctx, tx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: ref no %d", loanstore.ErrLoanNotFound, refNo)
	}

	return nil
}

// updateLineStatusTx moves one loan line to a new status.
func (ls LoanStore) updateLineStatusTx(ctx context.Context, tx adapters.DBTx, loanDetailID uuid.UUID, status loanstore.LineStatus) error {
	sqlQuery, _, buildErr := pgDialect.
		Update(ls.table(tableLines)).
		Set(goqu.Record{"status": string(status)}).
		Where(goqu.C("id").Eq(loanDetailID.String())).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rowsAffected, execErr := ls.execTx(ctx, tx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", loanstore.ErrLineNotFound, loanDetailID)
	}

	return nil
}

// updateAllLineStatusesTx moves every line of a request to a new status.
func (ls LoanStore) updateAllLineStatusesTx(ctx context.Context, tx adapters.DBTx, refNo int64, status loanstore.LineStatus) error {
	sqlQuery, _, buildErr := pgDialect.
		Update(ls.table(tableLines)).
		Set(goqu.Record{"status": string(status)}).
		Where(goqu.C("ref_no").Eq(refNo)).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	_, execErr := ls.execTx(ctx, tx, sqlQuery)

	return execErr
}

// updateItemQtyTx sets an item's on-shelf quantity (expendable consumption).
func (ls LoanStore) updateItemQtyTx(ctx context.Context, tx adapters.DBTx, itemID uuid.UUID, newOnShelf int) error {
	sqlQuery, _, buildErr := pgDialect.
		Update(ls.table(tableItems)).
		Set(goqu.Record{"on_shelf_qty": newOnShelf}).
		Where(goqu.C("id").Eq(itemID.String())).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rowsAffected, execErr := ls.execTx(ctx, tx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", loanstore.ErrItemNotFound, itemID)
	}

	return nil
}

// deleteLinesTx removes every line of a request.
func (ls LoanStore) deleteLinesTx(ctx context.Context, tx adapters.DBTx, refNo int64) error {
	sqlQuery, _, buildErr := pgDialect.
		Delete(ls.table(tableLines)).
		Where(goqu.C("ref_no").Eq(refNo)).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	_, execErr := ls.execTx(ctx, tx, sqlQuery)

	return execErr
}

// deleteLoanHeaderTx removes the request header itself.
func (ls LoanStore) deleteLoanHeaderTx(ctx context.Context, tx adapters.DBTx, refNo int64) error {
	sqlQuery, _, buildErr := pgDialect.
		Delete(ls.table(tableLoans)).
		Where(goqu.C("ref_no").Eq(refNo)).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	rowsAffected, execErr := ls.execTx(ctx, tx, sqlQuery)
	if execErr != nil {
		return execErr
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: ref no %d", loanstore.ErrLoanNotFound, refNo)
	}

	return nil
}
