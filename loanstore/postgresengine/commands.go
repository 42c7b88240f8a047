package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/postgresengine/internal/adapters"
)

// CreateLoan validates and stores a new loan request with all its lines in
// one serializable transaction and returns the assigned reference number.
// A new requester named in the spec is created on the fly; normalized
// handles and NUSNET ids must be unique.
func (ls LoanStore) CreateLoan(ctx context.Context, caller loanstore.Role, spec loanstore.CreateLoanSpec) (int64, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return 0, authErr
	}

	if validateErr := spec.Validate(); validateErr != nil {
		return 0, validateErr
	}

	ctx, finish := ls.observeCommand(ctx, opCreateLoan)

	var refNo int64
	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		requesterID, err := ls.resolveRequesterTx(ctx, tx, spec)
		if err != nil {
			return err
		}

		createdRefNo, err := ls.insertLoanHeaderTx(ctx, tx, spec, requesterID)
		if err != nil {
			return err
		}

		lines, err := ls.validateAndInsertLinesTx(ctx, tx, createdRefNo, spec.Items)
		if err != nil {
			return err
		}

		journalErr := ls.appendJournalTx(ctx, tx, createdRefNo, loanstore.JournalLoanCreated,
			newLoanJournalPayload(createdRefNo, loanstore.LoanStatusPending, lines))
		if journalErr != nil {
			return journalErr
		}

		refNo = createdRefNo

		return nil
	})

	finish(txErr)

	if txErr != nil {
		return 0, txErr
	}

	return refNo, nil
}

// ApproveLoan moves a PENDING request to ONGOING. Every line is re-checked
// against the quantity already out on approved loans, observed on the same
// serializable snapshot as the writes; expendable items lose the loaned
// quantity from their on-shelf stock. Any failing line aborts the whole
// approval.
func (ls LoanStore) ApproveLoan(ctx context.Context, caller loanstore.Role, refNo int64) error {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return authErr
	}

	ctx, finish := ls.observeCommand(ctx, opApproveLoan)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		loan, err := ls.loadLoanTx(ctx, tx, refNo)
		if err != nil {
			return err
		}

		if err = loanstore.EnsurePending(loan.Status); err != nil {
			return err
		}

		lines, err := ls.loadLinesTx(ctx, tx, refNo)
		if err != nil {
			return err
		}

		for idx, line := range lines {
			item, loadErr := ls.loadItemTx(ctx, tx, line.ItemID)
			if loadErr != nil {
				return loadErr
			}

			onLoan, aggErr := ls.onLoanQtyTx(ctx, tx, line.ItemID)
			if aggErr != nil {
				return aggErr
			}

			newOnShelf, approveErr := loanstore.ApproveLine(item, line.Qty, onLoan)
			if approveErr != nil {
				return approveErr
			}

			if newOnShelf != item.OnShelfQty {
				if updateErr := ls.updateItemQtyTx(ctx, tx, line.ItemID, newOnShelf); updateErr != nil {
					return updateErr
				}
			}

			if updateErr := ls.updateLineStatusTx(ctx, tx, line.ID, loanstore.LineStatusOnLoan); updateErr != nil {
				return updateErr
			}

			lines[idx].Status = loanstore.LineStatusOnLoan
		}

		if err = ls.updateLoanStatusTx(ctx, tx, refNo, loanstore.LoanStatusOngoing); err != nil {
			return err
		}

		return ls.appendJournalTx(ctx, tx, refNo, loanstore.JournalLoanApproved,
			newLoanJournalPayload(refNo, loanstore.LoanStatusOngoing, lines))
	})

	finish(txErr)

	return txErr
}

// RejectLoan moves a PENDING request and all its lines to REJECTED.
// Stock is never touched.
func (ls LoanStore) RejectLoan(ctx context.Context, caller loanstore.Role, refNo int64) error {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return authErr
	}

	ctx, finish := ls.observeCommand(ctx, opRejectLoan)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		loan, err := ls.loadLoanTx(ctx, tx, refNo)
		if err != nil {
			return err
		}

		if err = loanstore.EnsurePending(loan.Status); err != nil {
			return err
		}

		if err = ls.updateAllLineStatusesTx(ctx, tx, refNo, loanstore.LineStatusRejected); err != nil {
			return err
		}

		if err = ls.updateLoanStatusTx(ctx, tx, refNo, loanstore.LoanStatusRejected); err != nil {
			return err
		}

		return ls.appendJournalTx(ctx, tx, refNo, loanstore.JournalLoanRejected,
			newLoanJournalPayload(refNo, loanstore.LoanStatusRejected, nil))
	})

	finish(txErr)

	return txErr
}

// UpdateLoan replaces a PENDING request's dates, metadata, and entire line
// set atomically. The new lines go through the same validation as at
// creation; the requester cannot be changed.
func (ls LoanStore) UpdateLoan(ctx context.Context, caller loanstore.Role, refNo int64, spec loanstore.UpdateLoanSpec) error {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return authErr
	}

	if validateErr := spec.Validate(); validateErr != nil {
		return validateErr
	}

	ctx, finish := ls.observeCommand(ctx, opUpdateLoan)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		loan, err := ls.loadLoanTx(ctx, tx, refNo)
		if err != nil {
			return err
		}

		if err = loanstore.EnsurePending(loan.Status); err != nil {
			return err
		}

		if err = ls.updateLoanHeaderTx(ctx, tx, refNo, spec); err != nil {
			return err
		}

		if err = ls.deleteLinesTx(ctx, tx, refNo); err != nil {
			return err
		}

		lines, err := ls.validateAndInsertLinesTx(ctx, tx, refNo, spec.Items)
		if err != nil {
			return err
		}

		return ls.appendJournalTx(ctx, tx, refNo, loanstore.JournalLoanUpdated,
			newLoanJournalPayload(refNo, loanstore.LoanStatusPending, lines))
	})

	finish(txErr)

	return txErr
}

// DeleteLoan removes a PENDING request together with its lines.
func (ls LoanStore) DeleteLoan(ctx context.Context, caller loanstore.Role, refNo int64) error {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return authErr
	}

	ctx, finish := ls.observeCommand(ctx, opDeleteLoan)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		loan, err := ls.loadLoanTx(ctx, tx, refNo)
		if err != nil {
			return err
		}

		if err = loanstore.EnsurePending(loan.Status); err != nil {
			return err
		}

		if err = ls.deleteLinesTx(ctx, tx, refNo); err != nil {
			return err
		}

		if err = ls.deleteLoanHeaderTx(ctx, tx, refNo); err != nil {
			return err
		}

		return ls.appendJournalTx(ctx, tx, refNo, loanstore.JournalLoanDeleted,
			newLoanJournalPayload(refNo, loanstore.LoanStatusPending, nil))
	})

	finish(txErr)

	return txErr
}

// ReturnItem records the return of one loan line. Returning an already
// returned line is an idempotent no-op; any other non-ON_LOAN state is an
// error. A return strictly after the parent's end date is recorded as
// RETURNED_LATE. On-shelf quantity is never restored; when every sibling
// line has finished its lifecycle the parent request completes.
func (ls LoanStore) ReturnItem(ctx context.Context, caller loanstore.Role, loanDetailID uuid.UUID) error {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return authErr
	}

	ctx, finish := ls.observeCommand(ctx, opReturnItem)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		line, err := ls.loadLineTx(ctx, tx, loanDetailID)
		if err != nil {
			return err
		}

		if line.Status.IsReturned() {
			return nil
		}

		if line.Status != loanstore.LineStatusOnLoan {
			return fmt.Errorf("%w: status is %s", loanstore.ErrLineNotOnLoan, line.Status)
		}

		loan, err := ls.loadLoanTx(ctx, tx, line.RefNo)
		if err != nil {
			return err
		}

		returnedAt := time.Now().UTC()
		outcome := loanstore.ReturnOutcome(returnedAt, loan.EndDate)

		if err = ls.updateLineStatusTx(ctx, tx, line.ID, outcome); err != nil {
			return err
		}

		siblings, err := ls.loadLinesTx(ctx, tx, line.RefNo)
		if err != nil {
			return err
		}

		statuses := make([]loanstore.LineStatus, 0, len(siblings))
		for _, sibling := range siblings {
			statuses = append(statuses, sibling.Status)
		}

		if loanstore.AllLinesTerminal(statuses) {
			if err = ls.updateLoanStatusTx(ctx, tx, line.RefNo, loanstore.LoanStatusCompleted); err != nil {
				return err
			}
		}

		return ls.appendJournalTx(ctx, tx, line.RefNo, loanstore.JournalItemReturned,
			returnJournalPayload{
				RefNo:        line.RefNo,
				LoanDetailID: line.ID.String(),
				Outcome:      string(outcome),
				ReturnedAt:   returnedAt,
			})
	})

	finish(txErr)

	return txErr
}

// updateLoanHeaderTx rewrites the mutable header fields of a request.
func (ls LoanStore) updateLoanHeaderTx(ctx context.Context, tx adapters.DBTx, refNo int64, spec loanstore.UpdateLoanSpec) error {
	sqlQuery, _, buildErr := pgDialect.
		Update(ls.table(tableLoans)).
		Set(goqu.Record{
			"start_date":   spec.StartDate.UTC(),
			"end_date":     spec.EndDate.UTC(),
			"organisation": spec.Organisation,
			"event":        spec.Event,
		}).
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
