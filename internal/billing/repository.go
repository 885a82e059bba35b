package billing

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gstledger/gstledger/internal/platform/db"
	"github.com/gstledger/gstledger/internal/wallet"
)

// Repository defines reconciliation data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	GetTransactionWithBills(ctx context.Context, id int64) (TransactionWithBills, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	ListBills(ctx context.Context, txnID int64) ([]Bill, error)
}

// TxRepository defines operations inside one atomic user action. A
// lifecycle write and its wallet append go through the same instance
// so both commit or neither does.
type TxRepository interface {
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, txn Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	GetBill(ctx context.Context, id int64) (Bill, error)
	InsertBill(ctx context.Context, bill Bill) (int64, error)
	UpdateBill(ctx context.Context, bill Bill) error
	DeleteBill(ctx context.Context, id int64) error
	ListBills(ctx context.Context, txnID int64) ([]Bill, error)

	AppendWalletEntry(ctx context.Context, in wallet.AppendInput) (wallet.Entry, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed reconciliation repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const txnColumns = `id, vendor_code, vendor_name, district, month, financial_year,
	expected_amount, advance_amount, gst_percent,
	gst_amount, gst_balance, bills_received, remaining_expected,
	closed_by_district, confirmed_by_admin, profit, status, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.VendorCode, &t.VendorName, &t.District, &t.Month, &t.FinancialYear,
		&t.ExpectedAmount, &t.AdvanceAmount, &t.GSTPercent,
		&t.GSTAmount, &t.GSTBalance, &t.BillsReceived, &t.RemainingExpected,
		&t.ClosedByDistrict, &t.ConfirmedByAdmin, &t.Profit, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *pgRepository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *pgRepository) GetTransactionWithBills(ctx context.Context, id int64) (TransactionWithBills, error) {
	txn, err := r.GetTransaction(ctx, id)
	if err != nil {
		return TransactionWithBills{}, err
	}
	bills, err := r.ListBills(ctx, id)
	if err != nil {
		return TransactionWithBills{}, err
	}
	return TransactionWithBills{Transaction: txn, Bills: bills}, nil
}

func (r *pgRepository) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE 1=1`
	args := []any{}
	idx := 1
	if req.District != "" {
		query += ` AND district = $` + itoa(idx)
		args = append(args, req.District)
		idx++
	}
	if req.VendorCode != "" {
		query += ` AND vendor_code = $` + itoa(idx)
		args = append(args, req.VendorCode)
		idx++
	}
	if req.Status != "" {
		query += ` AND status = $` + itoa(idx)
		args = append(args, req.Status)
		idx++
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY id DESC LIMIT $` + itoa(idx) + ` OFFSET $` + itoa(idx+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const billColumns = `id, txn_id, bill_number, bill_date, bill_amount, gst_percent, gst_amount, total_amount, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.TxnID, &b.BillNumber, &b.BillDate, &b.BillAmount, &b.GSTPercent, &b.GSTAmount, &b.TotalAmount, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	if err != nil {
		return Bill{}, err
	}
	return b, nil
}

func (r *pgRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
}

func (r *pgRepository) ListBills(ctx context.Context, txnID int64) ([]Bill, error) {
	return listBills(ctx, r.pool, txnID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listBills(ctx context.Context, q querier, txnID int64) ([]Bill, error) {
	rows, err := q.Query(ctx, `SELECT `+billColumns+` FROM bills WHERE txn_id = $1 ORDER BY id`, txnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.tx.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
}

func (r *pgTxRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO transactions (vendor_code, vendor_name, district, month, financial_year,
			expected_amount, advance_amount, gst_percent,
			gst_amount, gst_balance, bills_received, remaining_expected,
			closed_by_district, confirmed_by_admin, profit, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
		 RETURNING id`,
		t.VendorCode, t.VendorName, t.District, t.Month, t.FinancialYear,
		t.ExpectedAmount, t.AdvanceAmount, t.GSTPercent,
		t.GSTAmount, t.GSTBalance, t.BillsReceived, t.RemainingExpected,
		t.ClosedByDistrict, t.ConfirmedByAdmin, t.Profit, t.Status).Scan(&id)
	return id, err
}

func (r *pgTxRepository) UpdateTransaction(ctx context.Context, t Transaction) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE transactions SET
			expected_amount=$2, advance_amount=$3, gst_percent=$4, month=$5,
			gst_amount=$6, gst_balance=$7, bills_received=$8, remaining_expected=$9,
			closed_by_district=$10, confirmed_by_admin=$11, profit=$12, status=$13, updated_at=now()
		 WHERE id=$1`,
		t.ID, t.ExpectedAmount, t.AdvanceAmount, t.GSTPercent, t.Month,
		t.GSTAmount, t.GSTBalance, t.BillsReceived, t.RemainingExpected,
		t.ClosedByDistrict, t.ConfirmedByAdmin, t.Profit, t.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM bills WHERE txn_id=$1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *pgTxRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	return scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1 FOR UPDATE`, id))
}

func (r *pgTxRepository) InsertBill(ctx context.Context, b Bill) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO bills (txn_id, bill_number, bill_date, bill_amount, gst_percent, gst_amount, total_amount, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		 RETURNING id`,
		b.TxnID, b.BillNumber, b.BillDate, b.BillAmount, b.GSTPercent, b.GSTAmount, b.TotalAmount).Scan(&id)
	return id, err
}

func (r *pgTxRepository) UpdateBill(ctx context.Context, b Bill) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE bills SET bill_number=$2, bill_date=$3, bill_amount=$4, gst_percent=$5,
			gst_amount=$6, total_amount=$7, updated_at=now()
		 WHERE id=$1`,
		b.ID, b.BillNumber, b.BillDate, b.BillAmount, b.GSTPercent, b.GSTAmount, b.TotalAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *pgTxRepository) DeleteBill(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM bills WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *pgTxRepository) ListBills(ctx context.Context, txnID int64) ([]Bill, error) {
	return listBills(ctx, r.tx, txnID)
}

func (r *pgTxRepository) AppendWalletEntry(ctx context.Context, in wallet.AppendInput) (wallet.Entry, error) {
	return wallet.AppendTx(ctx, r.tx, in)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
