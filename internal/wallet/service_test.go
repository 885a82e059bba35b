package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	entries []Entry
	nextID  int64
	// txnExists reports which txn ids still resolve, for orphan checks.
	txnExists map[int64]bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{txnExists: make(map[int64]bool)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListEntries(ctx context.Context, limit, offset int) ([]Entry, error) {
	out := append([]Entry(nil), r.entries...)
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) CurrentBalance(ctx context.Context) (float64, error) {
	if len(r.entries) == 0 {
		return 0, nil
	}
	return r.entries[len(r.entries)-1].Balance, nil
}

func (r *memoryRepo) ListOrphaned(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.TxnID != nil && !r.txnExists[*e.TxnID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (tx *memoryTx) Append(ctx context.Context, in AppendInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	prior, _ := tx.repo.CurrentBalance(ctx)
	tx.repo.nextID++
	e := Entry{
		ID:          tx.repo.nextID,
		Date:        in.Date,
		Description: in.Description,
		TxnID:       in.TxnID,
		Debit:       in.Debit,
		Credit:      in.Credit,
		Balance:     NextBalance(prior, in.Debit, in.Credit),
		Type:        in.Type,
		CreatedAt:   time.Now(),
	}
	tx.repo.entries = append(tx.repo.entries, e)
	return e, nil
}

func (tx *memoryTx) LastBalance(ctx context.Context) (float64, error) {
	return tx.repo.CurrentBalance(ctx)
}

func TestManualEntryChainsBalances(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo)

	e1, err := svc.ManualEntry(ctx, "opening float", 0, 1000)
	require.NoError(t, err)
	require.InDelta(t, 1000.00, e1.Balance, 1e-9)

	e2, err := svc.ManualEntry(ctx, "office rent", 350.25, 0)
	require.NoError(t, err)
	require.InDelta(t, 649.75, e2.Balance, 1e-9)

	balance, err := svc.CurrentBalance(ctx)
	require.NoError(t, err)
	require.InDelta(t, 649.75, balance, 1e-9)
}

func TestManualEntryRejectsEmptyMovement(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryRepo())

	_, err := svc.ManualEntry(ctx, "noop", 0, 0)
	require.Error(t, err)

	_, err = svc.ManualEntry(ctx, "", 10, 0)
	require.Error(t, err)

	_, err = svc.ManualEntry(ctx, "negative", -5, 0)
	require.Error(t, err)

	balance, err := svc.CurrentBalance(ctx)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestSetBalanceAppendsDelta(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo)

	entry, err := svc.SetBalance(ctx, 5000)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.InDelta(t, 5000.00, entry.Credit, 1e-9)
	require.InDelta(t, 5000.00, entry.Balance, 1e-9)
	require.Equal(t, EntryManual, entry.Type)

	entry, err = svc.SetBalance(ctx, 1200.50)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.InDelta(t, 3799.50, entry.Debit, 1e-9)
	require.InDelta(t, 1200.50, entry.Balance, 1e-9)

	// Setting the current balance again is a no-op.
	entry, err = svc.SetBalance(ctx, 1200.50)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Len(t, repo.entries, 2)
}

func TestReplayReproducesBalances(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.ManualEntry(ctx, "seed", 0, 250.10)
	require.NoError(t, err)
	_, err = svc.ManualEntry(ctx, "stamp paper", 33.33, 0)
	require.NoError(t, err)
	_, err = svc.SetBalance(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx))

	// A mutated snapshot must be caught.
	repo.entries[1].Balance += 0.01
	require.Error(t, svc.Verify(ctx))
}

func TestOrphanedEntriesSurface(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo)

	txnID := int64(42)
	repo.txnExists[txnID] = true
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, e := tx.Append(ctx, AppendInput{Description: "advance", TxnID: &txnID, Debit: 500, Type: EntryAdvance})
		return e
	})
	require.NoError(t, err)

	orphans, err := svc.Orphaned(ctx)
	require.NoError(t, err)
	require.Empty(t, orphans)

	// Deleting the transaction leaves the entry behind, flagged.
	delete(repo.txnExists, txnID)
	orphans, err = svc.Orphaned(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, EntryAdvance, orphans[0].Type)
}
