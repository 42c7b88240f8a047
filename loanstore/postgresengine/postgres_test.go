package postgresengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/postgresengine"
	"github.com/clublogistics/loanstore-go/testutil/postgresengine/helper/postgreswrapper"
)

const testTimeout = 10 * time.Second

func givenStoreWithCleanTables(t *testing.T) (postgreswrapper.Wrapper, postgresengine.LoanStore) {
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	postgreswrapper.CleanUp(t, wrapper)

	return wrapper, wrapper.GetLoanStore()
}

func givenItem(
	t *testing.T,
	ctx context.Context,
	ls postgresengine.LoanStore,
	description string,
	qty int,
	expendable bool,
	unloanable bool,
) uuid.UUID {
	itemID, err := ls.AddItem(ctx, loanstore.RoleAdmin, loanstore.Item{
		Description: description,
		Unit:        "pcs",
		OnShelfQty:  qty,
		Expendable:  expendable,
		Unloanable:  unloanable,
	})
	require.NoError(t, err, "error in arranging test data: item")

	return itemID
}

func givenRequester(t *testing.T, ctx context.Context, ls postgresengine.LoanStore, name string, handle string) uuid.UUID {
	userID, err := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{
		Name:   name,
		Role:   loanstore.RoleRequester,
		Handle: handle,
	})
	require.NoError(t, err, "error in arranging test data: requester")

	return userID
}

func givenLoanSpec(requesterID uuid.UUID, items ...loanstore.LoanItemSpec) loanstore.CreateLoanSpec {
	return loanstore.CreateLoanSpec{
		StartDate:    time.Now().UTC(),
		EndDate:      time.Now().UTC().Add(7 * 24 * time.Hour),
		RequesterID:  requesterID,
		Organisation: "Chess Club",
		Event:        "Open Tournament",
		Items:        items,
	}
}

func givenPendingLoan(
	t *testing.T,
	ctx context.Context,
	ls postgresengine.LoanStore,
	requesterID uuid.UUID,
	items ...loanstore.LoanItemSpec,
) int64 {
	refNo, err := ls.CreateLoan(ctx, loanstore.RoleLogistics, givenLoanSpec(requesterID, items...))
	require.NoError(t, err, "error in arranging test data: loan")

	return refNo
}

func Test_CreateLoan_HappyPath(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")

	// act
	refNo, err := ls.CreateLoan(ctx, loanstore.RoleLogistics,
		givenLoanSpec(requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 3}))

	// assert
	assert.NoError(t, err)
	assert.Positive(t, refNo)

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	assert.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusPending, loan.Status)
	assert.Equal(t, requesterID, loan.RequesterID)
	require.Len(t, loan.Lines, 1)
	assert.Equal(t, loanstore.LineStatusPending, loan.Lines[0].Status)
	assert.Equal(t, 3, loan.Lines[0].Qty)
}

func Test_CreateLoan_WithNewRequester_CreatesUserOnTheFly(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	spec := givenLoanSpec(uuid.Nil, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	spec.NewRequester = &loanstore.NewRequester{Name: "John Doe", Handle: "@JohnDoe", NUSNETID: "e0123456"}

	// act
	refNo, err := ls.CreateLoan(ctx, loanstore.RoleLogistics, spec)

	// assert
	assert.NoError(t, err)
	assert.Positive(t, refNo)
	assert.Equal(t, 1, postgreswrapper.CountRows(t, wrapper, "users"))

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	assert.NoError(t, err)

	loans, err := ls.ListLoansForRequester(ctx, loanstore.RoleRequester, loan.RequesterID)
	assert.NoError(t, err)
	assert.Len(t, loans, 1)
}

func Test_CreateLoan_WithNewRequester_FailsOnDuplicateHandle(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	spec := givenLoanSpec(uuid.Nil, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	spec.NewRequester = &loanstore.NewRequester{Name: "Impostor", Handle: "  @JaneDoe "} // normalizes to the taken handle

	// act
	_, err := ls.CreateLoan(ctx, loanstore.RoleLogistics, spec)

	// assert
	assert.ErrorIs(t, err, loanstore.ErrDuplicateHandle)
	assert.Equal(t, 1, postgreswrapper.CountRows(t, wrapper, "users"), "nothing may be created on failure")
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "loan_requests"))
}

func Test_CreateLoan_FailsForUnloanableItem(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Server rack", 1, false, true)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")

	// act
	_, err := ls.CreateLoan(ctx, loanstore.RoleLogistics,
		givenLoanSpec(requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1}))

	// assert
	assert.ErrorIs(t, err, loanstore.ErrItemUnloanable)
}

func Test_CreateLoan_FailsWhenQtyExceedsOnShelf(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")

	// act
	_, err := ls.CreateLoan(ctx, loanstore.RoleLogistics,
		givenLoanSpec(requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 11}))

	// assert
	assert.ErrorIs(t, err, loanstore.ErrInsufficientStock)
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "loan_requests"), "any failing line aborts the whole request")
}

func Test_CreateLoan_RollsBackWholeRequest_WhenOneLineFails(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	goodItemID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	badItemID := givenItem(t, ctx, ls, "Projector", 1, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")

	// act
	_, err := ls.CreateLoan(ctx, loanstore.RoleLogistics, givenLoanSpec(requesterID,
		loanstore.LoanItemSpec{ItemID: goodItemID, Qty: 2},
		loanstore.LoanItemSpec{ItemID: badItemID, Qty: 5},
	))

	// assert
	assert.ErrorIs(t, err, loanstore.ErrInsufficientStock)
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "loan_requests"))
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "loan_lines"))
}

func Test_CreateLoan_Unauthorized_ForRequesterRole(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, err := ls.CreateLoan(ctx, loanstore.RoleRequester, givenLoanSpec(uuid.New(),
		loanstore.LoanItemSpec{ItemID: uuid.New(), Qty: 1}))

	// assert
	assert.ErrorIs(t, err, loanstore.ErrNotAuthorized)
}

// Lifecycle scenario: 10 folding chairs on the shelf. A loan of 7 is
// approved, so a second loan of 4 can still be created (creation checks the
// full on-shelf quantity) but not approved (approval checks against what is
// already out). Once the first loan is returned, the second can be approved.
func Test_LoanLifecycle_ApprovalChecksAgainstOutstandingLoans(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	firstRefNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7})

	// act + assert: approve the first loan
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, firstRefNo))

	firstLoan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, firstRefNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusOngoing, firstLoan.Status)
	require.Len(t, firstLoan.Lines, 1)
	assert.Equal(t, loanstore.LineStatusOnLoan, firstLoan.Lines[0].Status)

	// act + assert: a second loan of 4 can still be created
	secondRefNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 4})

	// act + assert: but not approved while 7 chairs are out
	err = ls.ApproveLoan(ctx, loanstore.RoleLogistics, secondRefNo)
	assert.ErrorIs(t, err, loanstore.ErrInsufficientStock)

	secondLoan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, secondRefNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusPending, secondLoan.Status, "failed approval leaves the request pending")

	// act + assert: return the first loan, then the second approval goes through
	require.NoError(t, ls.ReturnItem(ctx, loanstore.RoleLogistics, firstLoan.Lines[0].ID))

	firstLoan, err = ls.GetLoan(ctx, loanstore.RoleLogistics, firstRefNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusCompleted, firstLoan.Status)
	assert.Equal(t, loanstore.LineStatusReturned, firstLoan.Lines[0].Status)

	assert.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, secondRefNo))
}

func Test_ApproveLoan_DecrementsStockForExpendableItems(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	tiesID := givenItem(t, ctx, ls, "Cable ties", 100, true, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: tiesID, Qty: 30})

	// act
	err := ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.NoError(t, err)

	entry, err := ls.ItemAvailability(ctx, loanstore.RoleRequester, tiesID)
	assert.NoError(t, err)
	assert.Equal(t, 70, entry.Item.OnShelfQty, "expendable stock is consumed permanently")
	assert.Equal(t, 30, entry.Availability.OnLoan)
}

func Test_ApproveLoan_FailsWhenNotPending(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo))

	// act
	err := ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.ErrorIs(t, err, loanstore.ErrLoanNotPending)
}

func Test_RejectLoan_MarksRequestAndLines_WithoutTouchingStock(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	tiesID := givenItem(t, ctx, ls, "Cable ties", 100, true, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: tiesID, Qty: 30})

	// act
	err := ls.RejectLoan(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.NoError(t, err)

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusRejected, loan.Status)
	require.Len(t, loan.Lines, 1)
	assert.Equal(t, loanstore.LineStatusRejected, loan.Lines[0].Status)

	entry, err := ls.ItemAvailability(ctx, loanstore.RoleRequester, tiesID)
	assert.NoError(t, err)
	assert.Equal(t, 100, entry.Item.OnShelfQty)
}

func Test_UpdateLoan_ReplacesLinesWholesale(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	cordID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7})

	// act
	err := ls.UpdateLoan(ctx, loanstore.RoleLogistics, refNo, loanstore.UpdateLoanSpec{
		StartDate:    time.Now().UTC(),
		EndDate:      time.Now().UTC().Add(48 * time.Hour),
		Organisation: "Debate Society",
		Event:        "Finals",
		Items: []loanstore.LoanItemSpec{
			{ItemID: chairsID, Qty: 2},
			{ItemID: cordID, Qty: 1},
		},
	})

	// assert
	assert.NoError(t, err)

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	assert.Equal(t, "Debate Society", loan.Organisation)
	assert.Equal(t, loanstore.LoanStatusPending, loan.Status)
	assert.Len(t, loan.Lines, 2)
}

func Test_UpdateLoan_FailsWithInvalidLines_AndKeepsOldState(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 7})

	// act
	err := ls.UpdateLoan(ctx, loanstore.RoleLogistics, refNo, loanstore.UpdateLoanSpec{
		StartDate: time.Now().UTC(),
		EndDate:   time.Now().UTC().Add(48 * time.Hour),
		Items:     []loanstore.LoanItemSpec{{ItemID: chairsID, Qty: 99}},
	})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrInsufficientStock)

	loan, getErr := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, getErr)
	require.Len(t, loan.Lines, 1)
	assert.Equal(t, 7, loan.Lines[0].Qty, "failed update must leave the old lines untouched")
}

func Test_UpdateLoan_FailsWhenNotPending(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	require.NoError(t, ls.RejectLoan(ctx, loanstore.RoleLogistics, refNo))

	// act
	err := ls.UpdateLoan(ctx, loanstore.RoleLogistics, refNo, loanstore.UpdateLoanSpec{
		StartDate: time.Now().UTC(),
		EndDate:   time.Now().UTC().Add(time.Hour),
		Items:     []loanstore.LoanItemSpec{{ItemID: itemID, Qty: 1}},
	})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrLoanNotPending)
}

func Test_DeleteLoan_RemovesRequestAndLines(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})

	// act
	err := ls.DeleteLoan(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "loan_requests"))
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "loan_lines"))

	_, err = ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	assert.ErrorIs(t, err, loanstore.ErrLoanNotFound)
}

func Test_DeleteLoan_FailsWhenNotPending(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo))

	// act
	err := ls.DeleteLoan(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.ErrorIs(t, err, loanstore.ErrLoanNotPending)
}

func Test_ReturnItem_IsIdempotent(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo))

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	lineID := loan.Lines[0].ID
	require.NoError(t, ls.ReturnItem(ctx, loanstore.RoleLogistics, lineID))

	// act
	err = ls.ReturnItem(ctx, loanstore.RoleLogistics, lineID)

	// assert
	assert.NoError(t, err, "returning an already returned line is a no-op success")

	loan, err = ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LineStatusReturned, loan.Lines[0].Status)
}

func Test_ReturnItem_LateAfterEndDate(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange: a loan whose end date has already passed
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	spec := givenLoanSpec(requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	spec.StartDate = time.Now().UTC().Add(-72 * time.Hour)
	spec.EndDate = time.Now().UTC().Add(-24 * time.Hour)
	refNo, err := ls.CreateLoan(ctx, loanstore.RoleLogistics, spec)
	require.NoError(t, err)
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo))

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)

	// act
	err = ls.ReturnItem(ctx, loanstore.RoleLogistics, loan.Lines[0].ID)

	// assert
	assert.NoError(t, err)

	loan, err = ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LineStatusReturnedLate, loan.Lines[0].Status)
	assert.Equal(t, loanstore.LoanStatusCompleted, loan.Status)
}

func Test_ReturnItem_FailsForPendingLine(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)

	// act
	err = ls.ReturnItem(ctx, loanstore.RoleLogistics, loan.Lines[0].ID)

	// assert
	assert.ErrorIs(t, err, loanstore.ErrLineNotOnLoan)
}

func Test_ReturnItem_CompletesParent_OnlyWhenAllLinesTerminal(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	cordID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID,
		loanstore.LoanItemSpec{ItemID: chairsID, Qty: 2},
		loanstore.LoanItemSpec{ItemID: cordID, Qty: 1},
	)
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo))

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	require.Len(t, loan.Lines, 2)

	// act + assert: first return leaves the request ongoing
	require.NoError(t, ls.ReturnItem(ctx, loanstore.RoleLogistics, loan.Lines[0].ID))

	loan, err = ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusOngoing, loan.Status)

	// act + assert: last return completes it
	require.NoError(t, ls.ReturnItem(ctx, loanstore.RoleLogistics, loan.Lines[1].ID))

	loan, err = ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	assert.Equal(t, loanstore.LoanStatusCompleted, loan.Status)
}

func Test_Catalogue_DerivesAvailabilityPerRead(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	chairsID := givenItem(t, ctx, ls, "Folding chair", 10, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 4})
	approvedRefNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: chairsID, Qty: 3})
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, approvedRefNo))

	// act
	entries, err := ls.Catalogue(ctx, loanstore.RoleRequester)

	// assert
	assert.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, chairsID, entries[0].Item.ID)
	assert.Equal(t, loanstore.Availability{OnShelf: 10, Pending: 4, OnLoan: 3, Total: 13, Net: 6}, entries[0].Availability)
}

func Test_ItemAvailability_UnknownItem(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, err := ls.ItemAvailability(ctx, loanstore.RoleRequester, uuid.New())

	// assert
	assert.ErrorIs(t, err, loanstore.ErrItemNotFound)
}

func Test_GetLoan_Unauthorized_ForRequesterRole(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, err := ls.GetLoan(ctx, loanstore.RoleRequester, 1)

	// assert
	assert.ErrorIs(t, err, loanstore.ErrNotAuthorized)
}

func Test_LoanHistory_RecordsEveryMutation(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	require.NoError(t, ls.ApproveLoan(ctx, loanstore.RoleLogistics, refNo))

	loan, err := ls.GetLoan(ctx, loanstore.RoleLogistics, refNo)
	require.NoError(t, err)
	require.NoError(t, ls.ReturnItem(ctx, loanstore.RoleLogistics, loan.Lines[0].ID))

	// act
	entries, err := ls.LoanHistory(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, loanstore.JournalLoanCreated, entries[0].EntryType)
	assert.Equal(t, loanstore.JournalLoanApproved, entries[1].EntryType)
	assert.Equal(t, loanstore.JournalItemReturned, entries[2].EntryType)

	for _, entry := range entries {
		assert.Equal(t, refNo, entry.RefNo)
		assert.NotEmpty(t, entry.Payload)
	}
}

func Test_LoanHistory_SurvivesDeletedRequest(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	itemID := givenItem(t, ctx, ls, "Extension cord", 5, false, false)
	requesterID := givenRequester(t, ctx, ls, "Jane Doe", "@janedoe")
	refNo := givenPendingLoan(t, ctx, ls, requesterID, loanstore.LoanItemSpec{ItemID: itemID, Qty: 1})
	require.NoError(t, ls.DeleteLoan(ctx, loanstore.RoleLogistics, refNo))

	// act
	entries, err := ls.LoanHistory(ctx, loanstore.RoleLogistics, refNo)

	// assert
	assert.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, loanstore.JournalLoanCreated, entries[0].EntryType)
	assert.Equal(t, loanstore.JournalLoanDeleted, entries[1].EntryType)
}
