package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/clublogistics/loanstore-go/loanstore"
	"github.com/clublogistics/loanstore-go/loanstore/postgresengine/internal/adapters"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// journalLinePayload describes one loan line inside a journal payload.
type journalLinePayload struct {
	LoanDetailID string `json:"loanDetailId"`
	ItemID       string `json:"itemId"`
	Qty          int    `json:"qty"`
	Status       string `json:"status"`
}

// loanJournalPayload is the payload of request-level journal entries.
type loanJournalPayload struct {
	RefNo  int64                `json:"refNo"`
	Status string               `json:"status"`
	Lines  []journalLinePayload `json:"lines,omitempty"`
}

// returnJournalPayload is the payload of a line return journal entry.
type returnJournalPayload struct {
	RefNo        int64     `json:"refNo"`
	LoanDetailID string    `json:"loanDetailId"`
	Outcome      string    `json:"outcome"`
	ReturnedAt   time.Time `json:"returnedAt"`
}

func newLoanJournalPayload(refNo int64, status loanstore.LoanStatus, lines []loanstore.LoanLine) loanJournalPayload {
	payload := loanJournalPayload{
		RefNo:  refNo,
		Status: string(status),
	}

	for _, line := range lines {
		payload.Lines = append(payload.Lines, journalLinePayload{
			LoanDetailID: line.ID.String(),
			ItemID:       line.ItemID.String(),
			Qty:          line.Qty,
			Status:       string(line.Status),
		})
	}

	return payload
}

// appendJournalTx writes one audit entry inside the surrounding transaction,
// so a rolled-back mutation never leaves a journal record behind.
func (ls LoanStore) appendJournalTx(
	ctx context.Context,
	tx adapters.DBTx,
	refNo int64,
	entryType string,
	payload any,
) error {
	raw, marshalErr := jsonAPI.Marshal(payload)
	if marshalErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, marshalErr)
	}

	sqlQuery, _, buildErr := pgDialect.
		Insert(ls.table(tableJournal)).
		Rows(goqu.Record{
			"id":          uuid.New().String(),
			"ref_no":      refNo,
			"entry_type":  entryType,
			"occurred_at": time.Now().UTC(),
			"payload":     goqu.L("?::jsonb", string(raw)),
		}).
		ToSQL()
	if buildErr != nil {
		return errors.Join(loanstore.ErrBuildQueryFailed, buildErr)
	}

	_, execErr := ls.execTx(ctx, tx, sqlQuery)

	return execErr
}
