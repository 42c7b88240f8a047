package postgresengine_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_AddItem_WithLocationAndHolder(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	locationID, err := ls.AddStorageLocation(ctx, loanstore.RoleLogistics, "Storeroom B2")
	require.NoError(t, err)

	holderID, err := ls.AddInventoryHolder(ctx, loanstore.RoleAdmin,
		loanstore.InventoryHolder{Name: "Tech Crew", Type: loanstore.HolderTypeGroup}, nil)
	require.NoError(t, err)

	// act
	itemID, err := ls.AddItem(ctx, loanstore.RoleLogistics, loanstore.Item{
		Description: "HDMI cable",
		Unit:        "pcs",
		OnShelfQty:  12,
		LocationID:  uuid.NullUUID{UUID: locationID, Valid: true},
		HolderID:    uuid.NullUUID{UUID: holderID, Valid: true},
	})

	// assert
	assert.NoError(t, err)

	entry, err := ls.ItemAvailability(ctx, loanstore.RoleRequester, itemID)
	require.NoError(t, err)
	assert.Equal(t, locationID, entry.Item.LocationID.UUID)
	assert.True(t, entry.Item.LocationID.Valid)
	assert.Equal(t, holderID, entry.Item.HolderID.UUID)
}

func Test_AddItem_RejectsNegativeQuantity(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, err := ls.AddItem(ctx, loanstore.RoleLogistics, loanstore.Item{Description: "Broken", OnShelfQty: -1})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrInvalidQuantity)
}

func Test_RegisterUser_DefaultsToRequesterRole(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	userID, err := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "Jane Doe"})

	// assert
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, userID)
	assert.Equal(t, 1, postgreswrapper.CountRows(t, wrapper, "users"))
}

func Test_RegisterUser_RequiresAdminRole(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, err := ls.RegisterUser(ctx, loanstore.RoleLogistics, loanstore.User{Name: "Jane Doe"})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrNotAuthorized)
	assert.Equal(t, 0, postgreswrapper.CountRows(t, wrapper, "users"))
}

func Test_RegisterUser_RejectsDuplicateNUSNETID(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	_, err := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "Jane Doe", NUSNETID: "e0123456"})
	require.NoError(t, err)

	// act
	_, err = ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "John Doe", NUSNETID: "e0123456"})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrDuplicateNUSNET)
}

func Test_RegisterUser_AllowsManyUsersWithoutHandles(t *testing.T) {
	// setup: missing handles and NUSNET ids must not collide with each other
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, firstErr := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "Jane Doe"})
	_, secondErr := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "John Doe"})

	// assert
	assert.NoError(t, firstErr)
	assert.NoError(t, secondErr)
	assert.Equal(t, 2, postgreswrapper.CountRows(t, wrapper, "users"))
}

func Test_AddInventoryHolder_WithMembers(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// arrange
	firstUserID, err := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "Jane Doe"})
	require.NoError(t, err)
	secondUserID, err := ls.RegisterUser(ctx, loanstore.RoleAdmin, loanstore.User{Name: "John Doe"})
	require.NoError(t, err)

	// act
	holderID, err := ls.AddInventoryHolder(ctx, loanstore.RoleAdmin,
		loanstore.InventoryHolder{Name: "Logistics Cell", Type: loanstore.HolderTypeDepartment},
		[]loanstore.HolderMember{
			{UserID: firstUserID, PrimaryPOC: true},
			{UserID: secondUserID},
		})

	// assert
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, holderID)
	assert.Equal(t, 1, postgreswrapper.CountRows(t, wrapper, "inventory_holders"))
	assert.Equal(t, 2, postgreswrapper.CountRows(t, wrapper, "inventory_holder_members"))
}

func Test_AddStorageLocation_RequiresLogisticsRole(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	wrapper, ls := givenStoreWithCleanTables(t)
	defer wrapper.Close()

	// act
	_, err := ls.AddStorageLocation(ctx, loanstore.RoleInventoryHolder, "Storeroom B2")

	// assert
	assert.ErrorIs(t, err, loanstore.ErrNotAuthorized)
}
