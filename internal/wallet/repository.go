package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gstledger/gstledger/internal/shared"
)

// ErrEntryNotFound indicates a missing ledger entry.
var ErrEntryNotFound = fmt.Errorf("%w: wallet entry", shared.ErrNotFound)

// Repository defines ledger data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListEntries(ctx context.Context, limit, offset int) ([]Entry, error)
	CurrentBalance(ctx context.Context) (float64, error)
	// ListOrphaned returns entries whose txn reference no longer
	// resolves. Deleted transactions leave their ledger rows behind;
	// these surface for manual review.
	ListOrphaned(ctx context.Context) ([]Entry, error)
}

// TxRepository defines ledger operations inside a transaction.
type TxRepository interface {
	Append(ctx context.Context, in AppendInput) (Entry, error)
	LastBalance(ctx context.Context) (float64, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

// walletLockID is the advisory lock serializing appends. A single
// ledger means a single lock key.
const walletLockID = 702001

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTxRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const entryColumns = `id, entry_date, description, txn_id, debit, credit, balance, entry_type, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.Date, &e.Description, &e.TxnID, &e.Debit, &e.Credit, &e.Balance, &e.Type, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *pgRepository) ListEntries(ctx context.Context, limit, offset int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_entries ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgRepository) CurrentBalance(ctx context.Context) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx,
		`SELECT balance FROM wallet_entries ORDER BY id DESC LIMIT 1`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (r *pgRepository) ListOrphaned(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM wallet_entries w
		 WHERE w.txn_id IS NOT NULL
		   AND NOT EXISTS (SELECT 1 FROM transactions t WHERE t.id = w.txn_id)
		 ORDER BY w.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) Append(ctx context.Context, in AppendInput) (Entry, error) {
	return AppendTx(ctx, r.tx, in)
}

func (r *pgTxRepository) LastBalance(ctx context.Context) (float64, error) {
	return lastBalanceTx(ctx, r.tx)
}

// AppendTx appends one ledger entry inside an existing transaction.
// The billing repository calls this so a lifecycle write and its
// ledger entry commit as one unit. An advisory lock serializes
// concurrent appends so balance snapshots chain correctly.
func AppendTx(ctx context.Context, tx pgx.Tx, in AppendInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, walletLockID); err != nil {
		return Entry{}, fmt.Errorf("wallet: acquire append lock: %w", err)
	}
	prior, err := lastBalanceTx(ctx, tx)
	if err != nil {
		return Entry{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	e := Entry{
		Date:        date,
		Description: in.Description,
		TxnID:       in.TxnID,
		Debit:       in.Debit,
		Credit:      in.Credit,
		Balance:     NextBalance(prior, in.Debit, in.Credit),
		Type:        in.Type,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO wallet_entries (entry_date, description, txn_id, debit, credit, balance, entry_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 RETURNING id, created_at`,
		e.Date, e.Description, e.TxnID, e.Debit, e.Credit, e.Balance, e.Type).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("wallet: append entry: %w", err)
	}
	return e, nil
}

func lastBalanceTx(ctx context.Context, tx pgx.Tx) (float64, error) {
	var balance float64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM wallet_entries ORDER BY id DESC LIMIT 1`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}
