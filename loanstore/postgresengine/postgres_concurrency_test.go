package postgresengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/shell"
	"github.com/clublogistics/loanstore-go/testutil/postgresengine/helper/postgreswrapper"
)

// Two pending loans of 7 chairs each compete for a stock of 10. Run
// serializable, at most one approval can commit; the loser fails with either
// the business check or a serialization conflict, never by overcommitting.
func Test_ApproveLoan_ConcurrentApprovals_NeverOvercommit(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")

	refNos := []int64{
		givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7}),
		givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7}),
	}

	// act
	results := make([]error, len(refNos))
	var wg sync.WaitGroup

	for idx, refNo := range refNos {
		wg.Add(1)

		go func(idx int, refNo int64) {
			defer wg.Done()
			results[idx] = ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo)
		}(idx, refNo)
	}

	wg.Wait()

	// assert
	successes := 0

	for _, err := range results {
		if err == nil {
			successes++
			continue
		}

		isExpected := errors.Is(err, loanstore.ErrInsufficientStock) ||
			errors.Is(err, loanstore.ErrConcurrencyConflict)
		assert.True(t, isExpected, "unexpected approval error: %v", err)
	}

	assert.LessOrEqual(t, successes, 1, "only one of the competing approvals may commit")

	entry, err := ls.ItemAvailability(ctx, loanstore.RoleRequester, chairsID)
	require.NoError(t, err)
	assert.LessOrEqual(t, entry.Availability.OnLoan, entry.Item.OnShelfQty, "stock must never be overcommitted")
}

// Conflicting approvals retried through the backoff helper settle into the
// serial outcome: one loan approved, the other rejected by the stock check.
func Test_ApproveLoan_WithRetry_SettlesConflictsDeterministically(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")

	refNos := []int64{
		givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7}),
		givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7}),
	}

	// act
	results := make([]error, len(refNos))
	var wg sync.WaitGroup

	for idx, refNo := range refNos {
		wg.Add(1)

		go func(idx int, refNo int64) {
			defer wg.Done()

			_, results[idx] = shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
				return ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo)
			})
		}(idx, refNo)
	}

	wg.Wait()

	// assert: retries absorb the serialization conflicts, so exactly one
	// approval commits and the other hits the business check
	successes := 0
	insufficient := 0

	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, loanstore.ErrInsufficientStock):
			insufficient++
		default:
			t.Errorf("unexpected approval error after retries: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	entry, err := ls.ItemAvailability(ctx, loanstore.RoleRequester, chairsID)
	require.NoError(t, err)
	assert.Equal(t, 7, entry.Availability.OnLoan)
}

func Test_CreateLoan_ConcurrentNewRequesters_OnlyOneWinsTheHandle(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)

	const workers = 4

	// act: every worker tries to create a loan for the same brand-new handle,
	// retrying serialization conflicts like a caller would
	results := make([]error, workers)
	var wg sync.WaitGroup

	for idx := range workers {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			spec := givenLoanSpec(uuid.Nil, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
			spec.NewRequester = &loanstore.NewRequester{Name: "John Doe", Handle: "@johndoe"}

			_, results[idx] = shell.RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
				_, createErr := ls.CreateLoan(ctx, loanstore.RoleLogistics, spec)

				return createErr
			})
		}(idx)
	}

	wg.Wait()

	// assert
	successes := 0

	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, loanstore.ErrDuplicateHandle) || errors.Is(err, loanstore.ErrUniqueViolation):
			// losers of the race
		default:
			t.Errorf("unexpected creation error after retries: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one creation may claim the handle")
	assert.Equal(t, 1, postgreswrapper.CountRows(t, wrapper, "users"))
}
