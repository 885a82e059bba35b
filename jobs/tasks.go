// Package jobs carries the background side of the ledger: the
// spreadsheet-sync tasks enqueued after committed changes, the Asynq
// worker that drains them, and the redis staging area an exporter
// polls. Nothing here participates in the financial transaction; a
// lost task is re-derived from Postgres, never the other way around.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSheetSyncTransaction carries a transaction snapshot to the
	// sheet staging area.
	TaskSheetSyncTransaction = "sheet:sync_transaction"
	// TaskSheetSyncWalletEntry carries a wallet ledger row to the sheet
	// staging area.
	TaskSheetSyncWalletEntry = "sheet:sync_wallet_entry"
)

// TransactionSyncPayload is the snapshot of one transaction as it
// stood when the change committed. Derived fields travel with it so
// the exporter never recomputes anything.
type TransactionSyncPayload struct {
	EventID       string `json:"eventId"`
	TxnID         int64  `json:"txnId"`
	VendorCode    string `json:"vendorCode"`
	VendorName    string `json:"vendorName"`
	District      string `json:"district"`
	Month         string `json:"month"`
	FinancialYear string `json:"financialYear"`

	ExpectedAmount    float64 `json:"expectedAmount"`
	AdvanceAmount     float64 `json:"advanceAmount"`
	GSTPercent        float64 `json:"gstPercent"`
	GSTAmount         float64 `json:"gstAmount"`
	GSTBalance        float64 `json:"gstBalance"`
	BillsReceived     float64 `json:"billsReceived"`
	RemainingExpected float64 `json:"remainingExpected"`
	Profit            float64 `json:"profit"`
	Status            string  `json:"status"`

	OccurredAt time.Time `json:"occurredAt"`
}

// WalletEntrySyncPayload mirrors one appended ledger row. Entries are
// append-only so a row is synced at most once per EventID.
type WalletEntrySyncPayload struct {
	EventID     string    `json:"eventId"`
	EntryID     int64     `json:"entryId"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	TxnID       *int64    `json:"txnId,omitempty"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Balance     float64   `json:"balance"`
	Type        string    `json:"type"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewTransactionSyncTask constructs an Asynq task for a transaction
// snapshot. A fresh EventID is minted when the payload has none.
func NewTransactionSyncTask(payload TransactionSyncPayload) (*asynq.Task, error) {
	if payload.EventID == "" {
		payload.EventID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSheetSyncTransaction, data, asynq.TaskID(payload.EventID)), nil
}

// NewWalletEntrySyncTask constructs an Asynq task for a ledger row.
func NewWalletEntrySyncTask(payload WalletEntrySyncPayload) (*asynq.Task, error) {
	if payload.EventID == "" {
		payload.EventID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSheetSyncWalletEntry, data, asynq.TaskID(payload.EventID)), nil
}
