package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/postgresengine/internal/adapters"
)

// AddItem stores a new inventory item and returns its id. A zero item id is
// replaced with a fresh one.
func (ls LoanStore) AddItem(ctx context.Context, caller loanstore.Role, item loanstore.Item) (uuid.UUID, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLoans); authErr != nil {
		return uuid.Nil, authErr
	}

	if item.OnShelfQty < 0 {
		return uuid.Nil, fmt.Errorf("%w: on-shelf quantity %d", loanstore.ErrInvalidQuantity, item.OnShelfQty)
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	ctx, finish := ls.observeCommand(ctx, opAddItem)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		sqlQuery, _, buildErr := pgDialect.
			Insert(ls.table(tableItems)).
			Rows(goqu.Record{
				"id":           item.ID.String(),
				"description":  item.Description,
				"unit":         item.Unit,
				"on_shelf_qty": item.OnShelfQty,
				"unloanable":   item.Unloanable,
				"expendable":   item.Expendable,
				"location_id":  item.LocationID,
				"holder_id":    item.HolderID,
			}).
			ToSQL()
		if buildErr != nil {
			return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
		}

		_, execErr := ls.execTx(ctx, tx, sqlQuery)

		return execErr
	})

	finish(txErr)

	if txErr != nil {
		return uuid.Nil, txErr
	}

	return item.ID, nil
}

// RegisterUser stores a new user and returns their id. The handle is
// normalized first; a taken handle or NUSNET id fails the registration.
// A user without an explicit role becomes a REQUESTER.
func (ls LoanStore) RegisterUser(ctx context.Context, caller loanstore.Role, user loanstore.User) (uuid.UUID, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageUsers); authErr != nil {
		return uuid.Nil, authErr
	}

	if strings.TrimSpace(user.Name) == "" {
		return uuid.Nil, loanstore.ErrBlankRequester
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	if user.Role == "" {
		user.Role = loanstore.RoleRequester
	}

	handle := loanstore.NormalizeHandle(user.Handle)
	nusnetID := strings.TrimSpace(user.NUSNETID)

	ctx, finish := ls.observeCommand(ctx, opRegisterUser)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		if handle != "" {
			exists, err := ls.existsTx(ctx, tx, ls.table(tableUsers), goqu.Ex{"handle": handle})
			if err != nil {
				return err
			}

			if exists {
				return fmt.Errorf("%w: %s", loanstore.ErrDuplicateHandle, handle)
			}
		}

		if nusnetID != "" {
			exists, err := ls.existsTx(ctx, tx, ls.table(tableUsers), goqu.Ex{"nusnet_id": nusnetID})
			if err != nil {
				return err
			}

			if exists {
				return fmt.Errorf("%w: %s", loanstore.ErrDuplicateNUSNET, nusnetID)
			}
		}

		sqlQuery, _, buildErr := pgDialect.
			Insert(ls.table(tableUsers)).
			Rows(goqu.Record{
				"id":        user.ID.String(),
				"name":      strings.TrimSpace(user.Name),
				"role":      string(user.Role),
				"handle":    handle,
				"nusnet_id": nusnetID,
			}).
			ToSQL()
		if buildErr != nil {
			return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
		}

		_, execErr := ls.execTx(ctx, tx, sqlQuery)

		return execErr
	})

	finish(txErr)

	if txErr != nil {
		return uuid.Nil, txErr
	}

	return user.ID, nil
}

// AddInventoryHolder stores a new holder with its members. At most one
// member should be flagged as the primary point of contact.
func (ls LoanStore) AddInventoryHolder(
	ctx context.Context,
	caller loanstore.Role,
	holder loanstore.InventoryHolder,
	members []loanstore.HolderMember,
) (uuid.UUID, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageUsers); authErr != nil {
		return uuid.Nil, authErr
	}

	if holder.ID == uuid.Nil {
		holder.ID = uuid.New()
	}

	ctx, finish := ls.observeCommand(ctx, opAddHolder)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		sqlQuery, _, buildErr := pgDialect.
			Insert(ls.table(tableHolders)).
			Rows(goqu.Record{
				"id":          holder.ID.String(),
				"name":        holder.Name,
				"holder_type": string(holder.Type),
			}).
			ToSQL()
		if buildErr != nil {
			return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
		}

		if _, execErr := ls.execTx(ctx, tx, sqlQuery); execErr != nil {
			return execErr
		}

		if len(members) == 0 {
			return nil
		}

		records := make([]any, 0, len(members))
		for _, member := range members {
			records = append(records, goqu.Record{
				"holder_id":   holder.ID.String(),
				"user_id":     member.UserID.String(),
				"primary_poc": member.PrimaryPOC,
			})
		}

		sqlQuery, _, buildErr = pgDialect.
			Insert(ls.table(tableHolderMembers)).
			Rows(records...).
			ToSQL()
		if buildErr != nil {
			return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
		}

		_, execErr := ls.execTx(ctx, tx, sqlQuery)

		return execErr
	})

	finish(txErr)

	if txErr != nil {
		return uuid.Nil, txErr
	}

	return holder.ID, nil
}

// AddStorageLocation stores a new storage location and returns its id.
func (ls LoanStore) AddStorageLocation(ctx context.Context, caller loanstore.Role, name string) (uuid.UUID, error) {
	if authErr := loanstore.Authorize(caller, loanstore.CapManageLocations); authErr != nil {
		return uuid.Nil, authErr
	}

	locationID := uuid.New()

	ctx, finish := ls.observeCommand(ctx, opAddLocation)

	txErr := ls.inTx(ctx, func(tx adapters.DBTx) error {
		sqlQuery, _, buildErr := pgDialect.
			Insert(ls.table(tableLocations)).
			Rows(goqu.Record{
				"id":   locationID.String(),
				"name": name,
			}).
			ToSQL()
		if buildErr != nil {
			return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
		}

		_, execErr := ls.execTx(ctx, tx, sqlQuery)

		return execErr
	})

	finish(txErr)

	if txErr != nil {
		return uuid.Nil, txErr
	}

	return locationID, nil
}
