package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Staging keys the exporter polls. Each hash holds the latest synced
// snapshot per entity, keyed by entity id.
const (
	stagingTransactionsKey  = "sheetsync:staging:transactions"
	stagingWalletEntriesKey = "sheetsync:staging:wallet_entries"
)

// Syncer applies sheet-sync tasks: it lands the entity snapshot in the
// redis staging hash and advances the stream cursor. The spreadsheet
// exporter reads the staging area on its own schedule.
type Syncer struct {
	rdb    *redis.Client
	cursor *CursorStore
	logger *slog.Logger
}

// NewSyncer constructs a Syncer instance.
func NewSyncer(rdb *redis.Client, logger *slog.Logger) *Syncer {
	return &Syncer{rdb: rdb, cursor: NewCursorStore(rdb), logger: logger}
}

// HandleTransactionTask processes TaskSheetSyncTransaction tasks.
// Last write wins per transaction; derived fields are carried as-is.
func (s *Syncer) HandleTransactionTask(ctx context.Context, t *asynq.Task) error {
	var payload TransactionSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := s.rdb.HSet(ctx, stagingTransactionsKey, strconv.FormatInt(payload.TxnID, 10), t.Payload()).Err(); err != nil {
		return err
	}
	if _, err := s.cursor.Advance(ctx, CursorTransactions, payload.TxnID); err != nil {
		return err
	}
	s.logger.Info("sheet sync staged",
		slog.String("task", TaskSheetSyncTransaction),
		slog.Int64("txn_id", payload.TxnID),
		slog.String("status", payload.Status))
	return nil
}

// HandleWalletEntryTask processes TaskSheetSyncWalletEntry tasks.
// Ledger rows are append-only, so a re-delivered row overwrites the
// staging hash with identical content.
func (s *Syncer) HandleWalletEntryTask(ctx context.Context, t *asynq.Task) error {
	var payload WalletEntrySyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := s.rdb.HSet(ctx, stagingWalletEntriesKey, strconv.FormatInt(payload.EntryID, 10), t.Payload()).Err(); err != nil {
		return err
	}
	if _, err := s.cursor.Advance(ctx, CursorWalletEntries, payload.EntryID); err != nil {
		return err
	}
	s.logger.Info("sheet sync staged",
		slog.String("task", TaskSheetSyncWalletEntry),
		slog.Int64("entry_id", payload.EntryID),
		slog.String("type", payload.Type))
	return nil
}
