package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gstledger/gstledger/internal/billing"
	"github.com/gstledger/gstledger/internal/wallet"
)

// Notifier adapts the Asynq client to the billing engine's sync hook.
// Enqueue errors surface to the caller, which logs and moves on; the
// committed change is already durable in Postgres.
type Notifier struct {
	client *Client
	now    func() time.Time
}

var _ billing.SyncNotifier = (*Notifier)(nil)

// NewNotifier constructs a Notifier instance.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client, now: time.Now}
}

// TransactionChanged enqueues a snapshot of the changed transaction.
func (n *Notifier) TransactionChanged(ctx context.Context, txn billing.Transaction) error {
	payload := TransactionSyncPayload{
		EventID:           uuid.NewString(),
		TxnID:             txn.ID,
		VendorCode:        txn.VendorCode,
		VendorName:        txn.VendorName,
		District:          txn.District,
		Month:             txn.Month,
		FinancialYear:     txn.FinancialYear,
		ExpectedAmount:    txn.ExpectedAmount,
		AdvanceAmount:     txn.AdvanceAmount,
		GSTPercent:        txn.GSTPercent,
		GSTAmount:         txn.GSTAmount,
		GSTBalance:        txn.GSTBalance,
		BillsReceived:     txn.BillsReceived,
		RemainingExpected: txn.RemainingExpected,
		Profit:            txn.Profit,
		Status:            string(txn.Status),
		OccurredAt:        n.now().UTC(),
	}
	_, err := n.client.EnqueueTransactionSync(ctx, payload)
	return err
}

// WalletEntryAppended enqueues the appended ledger row.
func (n *Notifier) WalletEntryAppended(ctx context.Context, entry wallet.Entry) error {
	payload := WalletEntrySyncPayload{
		EventID:     uuid.NewString(),
		EntryID:     entry.ID,
		Date:        entry.Date,
		Description: entry.Description,
		TxnID:       entry.TxnID,
		Debit:       entry.Debit,
		Credit:      entry.Credit,
		Balance:     entry.Balance,
		Type:        string(entry.Type),
		OccurredAt:  n.now().UTC(),
	}
	_, err := n.client.EnqueueWalletEntrySync(ctx, payload)
	return err
}
