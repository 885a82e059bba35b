package billing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gstledger/gstledger/internal/shared"
	"github.com/gstledger/gstledger/internal/vendors"
	"github.com/gstledger/gstledger/internal/wallet"
)

type memoryRepo struct {
	txns       map[int64]Transaction
	bills      map[int64]Bill
	ledger     []wallet.Entry
	nextTxnID  int64
	nextBillID int64
	nextEntry  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		txns:  make(map[int64]Transaction),
		bills: make(map[int64]Bill),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, ok := r.txns[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (r *memoryRepo) GetTransactionWithBills(ctx context.Context, id int64) (TransactionWithBills, error) {
	t, err := r.GetTransaction(ctx, id)
	if err != nil {
		return TransactionWithBills{}, err
	}
	bills, _ := r.ListBills(ctx, id)
	return TransactionWithBills{Transaction: t, Bills: bills}, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error) {
	var out []Transaction
	for _, t := range r.txns {
		if req.Status != "" && t.Status != req.Status {
			continue
		}
		if req.District != "" && t.District != req.District {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepo) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (r *memoryRepo) ListBills(ctx context.Context, txnID int64) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if b.TxnID == txnID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return tx.repo.GetTransaction(ctx, id)
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	tx.repo.nextTxnID++
	t.ID = tx.repo.nextTxnID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	tx.repo.txns[t.ID] = t
	return t.ID, nil
}

func (tx *memoryTx) UpdateTransaction(ctx context.Context, t Transaction) error {
	if _, ok := tx.repo.txns[t.ID]; !ok {
		return ErrTransactionNotFound
	}
	t.UpdatedAt = time.Now()
	tx.repo.txns[t.ID] = t
	return nil
}

func (tx *memoryTx) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := tx.repo.txns[id]; !ok {
		return ErrTransactionNotFound
	}
	delete(tx.repo.txns, id)
	for billID, b := range tx.repo.bills {
		if b.TxnID == id {
			delete(tx.repo.bills, billID)
		}
	}
	return nil
}

func (tx *memoryTx) GetBill(ctx context.Context, id int64) (Bill, error) {
	return tx.repo.GetBill(ctx, id)
}

func (tx *memoryTx) InsertBill(ctx context.Context, b Bill) (int64, error) {
	tx.repo.nextBillID++
	b.ID = tx.repo.nextBillID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	tx.repo.bills[b.ID] = b
	return b.ID, nil
}

func (tx *memoryTx) UpdateBill(ctx context.Context, b Bill) error {
	if _, ok := tx.repo.bills[b.ID]; !ok {
		return ErrBillNotFound
	}
	b.UpdatedAt = time.Now()
	tx.repo.bills[b.ID] = b
	return nil
}

func (tx *memoryTx) DeleteBill(ctx context.Context, id int64) error {
	if _, ok := tx.repo.bills[id]; !ok {
		return ErrBillNotFound
	}
	delete(tx.repo.bills, id)
	return nil
}

func (tx *memoryTx) ListBills(ctx context.Context, txnID int64) ([]Bill, error) {
	return tx.repo.ListBills(ctx, txnID)
}

func (tx *memoryTx) AppendWalletEntry(ctx context.Context, in wallet.AppendInput) (wallet.Entry, error) {
	if err := in.Validate(); err != nil {
		return wallet.Entry{}, err
	}
	prior := 0.0
	if len(tx.repo.ledger) > 0 {
		prior = tx.repo.ledger[len(tx.repo.ledger)-1].Balance
	}
	tx.repo.nextEntry++
	e := wallet.Entry{
		ID:          tx.repo.nextEntry,
		Date:        in.Date,
		Description: in.Description,
		TxnID:       in.TxnID,
		Debit:       in.Debit,
		Credit:      in.Credit,
		Balance:     wallet.NextBalance(prior, in.Debit, in.Credit),
		Type:        in.Type,
	}
	tx.repo.ledger = append(tx.repo.ledger, e)
	return e, nil
}

func (r *memoryRepo) walletBalance() float64 {
	if len(r.ledger) == 0 {
		return 0
	}
	return r.ledger[len(r.ledger)-1].Balance
}

type stubDirectory struct {
	vendors map[string]vendors.Vendor
}

func (d *stubDirectory) GetByCode(ctx context.Context, code string) (vendors.Vendor, error) {
	v, ok := d.vendors[code]
	if !ok {
		return vendors.Vendor{}, vendors.ErrVendorNotFound
	}
	return v, nil
}

func newTestService(repo *memoryRepo) *Service {
	dir := &stubDirectory{vendors: map[string]vendors.Vendor{
		"WAR24CEM001": {Code: "WAR24CEM001", Name: "Alpha Traders", District: "Warangal"},
	}}
	svc := NewService(repo, dir, slog.Default())
	svc.WithNow(func() time.Time { return time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func create(t *testing.T, svc *Service, expected, advance, pct float64) Transaction {
	t.Helper()
	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		VendorCode:     "WAR24CEM001",
		ExpectedAmount: expected,
		AdvanceAmount:  advance,
		GSTPercent:     pct,
		Month:          "August",
		FinancialYear:  "2024-25",
	})
	require.NoError(t, err)
	return txn
}

func TestCreateTransactionDerivesFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	txn := create(t, svc, 300950, 5000, 4)
	require.InDelta(t, 12038.00, txn.GSTAmount, 1e-9)
	require.InDelta(t, 7038.00, txn.GSTBalance, 1e-9)
	require.InDelta(t, 300950.00, txn.RemainingExpected, 1e-9)
	require.Zero(t, txn.BillsReceived)
	require.Equal(t, StatusOpen, txn.Status)
	require.False(t, txn.ClosedByDistrict)
	require.False(t, txn.ConfirmedByAdmin)
	require.Zero(t, txn.Profit)
	// Vendor identity is denormalized at creation.
	require.Equal(t, "Alpha Traders", txn.VendorName)
	require.Equal(t, "Warangal", txn.District)

	// The advance debits the wallet at creation time.
	require.Len(t, repo.ledger, 1)
	require.Equal(t, wallet.EntryAdvance, repo.ledger[0].Type)
	require.InDelta(t, 5000.00, repo.ledger[0].Debit, 1e-9)
	require.InDelta(t, -5000.00, repo.walletBalance(), 1e-9)
}

func TestCreateTransactionNoAdvanceNoEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	create(t, svc, 200000, 0, 5)
	require.Empty(t, repo.ledger)
}

func TestCreateTransactionValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	cases := []CreateTransactionInput{
		{VendorCode: "WAR24CEM001", ExpectedAmount: 0, GSTPercent: 4, Month: "August", FinancialYear: "2024-25"},
		{VendorCode: "WAR24CEM001", ExpectedAmount: 1000, AdvanceAmount: -1, GSTPercent: 4, Month: "August", FinancialYear: "2024-25"},
		{VendorCode: "WAR24CEM001", ExpectedAmount: 1000, GSTPercent: 9, Month: "August", FinancialYear: "2024-25"},
		{VendorCode: "NOPE", ExpectedAmount: 1000, GSTPercent: 4, Month: "August", FinancialYear: "2024-25"},
		{VendorCode: "WAR24CEM001", ExpectedAmount: 1000, GSTPercent: 4, FinancialYear: "2024-25"},
	}
	for i, in := range cases {
		_, err := svc.CreateTransaction(ctx, in)
		require.Error(t, err, "case %d", i)
	}
	// Rejected operations leave no state behind.
	require.Empty(t, repo.txns)
	require.Empty(t, repo.ledger)
}

func TestSubmitBillRecomputesAggregates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 0, 4)

	billDate := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.SubmitBill(ctx, SubmitBillInput{TxnID: txn.ID, BillNumber: "B-1", BillDate: billDate, BillAmount: 40000, GSTPercent: 4})
	require.NoError(t, err)
	_, err = svc.SubmitBill(ctx, SubmitBillInput{TxnID: txn.ID, BillNumber: "B-2", BillDate: billDate, BillAmount: 40000, GSTPercent: 2})
	require.NoError(t, err)

	got := repo.txns[txn.ID]
	require.InDelta(t, 80000.00, got.BillsReceived, 1e-9)
	require.InDelta(t, 5600.00, got.RemainingExpected, 1e-9)
}

func TestSubmitBillRejectsFutureDateAndClosedTxn(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 0, 4)

	_, err := svc.SubmitBill(ctx, SubmitBillInput{
		TxnID: txn.ID, BillNumber: "B-1",
		BillDate:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		BillAmount: 1000, GSTPercent: 4,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RequestDistrictClose(ctx, txn.ID)
	require.NoError(t, err)
	_, err = svc.SubmitBill(ctx, SubmitBillInput{
		TxnID: txn.ID, BillNumber: "B-2",
		BillDate:   time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		BillAmount: 1000, GSTPercent: 4,
	})
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestEditAndDeleteBillRecompute(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 0, 4)
	billDate := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	bill, err := svc.SubmitBill(ctx, SubmitBillInput{TxnID: txn.ID, BillNumber: "B-1", BillDate: billDate, BillAmount: 40000, GSTPercent: 4})
	require.NoError(t, err)

	newAmount := 50000.0
	updated, err := svc.EditBill(ctx, bill.ID, BillPatch{BillAmount: &newAmount})
	require.NoError(t, err)
	require.InDelta(t, 59000.00, updated.TotalAmount, 1e-9)
	require.InDelta(t, 2000.00, updated.GSTAmount, 1e-9)

	got := repo.txns[txn.ID]
	require.InDelta(t, 50000.00, got.BillsReceived, 1e-9)
	require.InDelta(t, 41000.00, got.RemainingExpected, 1e-9)

	require.NoError(t, svc.DeleteBill(ctx, bill.ID))
	got = repo.txns[txn.ID]
	require.Zero(t, got.BillsReceived)
	require.InDelta(t, 100000.00, got.RemainingExpected, 1e-9)
}

func TestEditTransactionRecomputesDerived(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 300950, 5000, 4)

	newRate := 5.0
	updated, err := svc.EditTransaction(ctx, txn.ID, TransactionPatch{GSTPercent: &newRate})
	require.NoError(t, err)
	require.InDelta(t, 15047.50, updated.GSTAmount, 1e-9)
	require.InDelta(t, 10047.50, updated.GSTBalance, 1e-9)
	// Remaining is untouched by a rate change.
	require.InDelta(t, 300950.00, updated.RemainingExpected, 1e-9)

	newExpected := 200000.0
	updated, err = svc.EditTransaction(ctx, txn.ID, TransactionPatch{ExpectedAmount: &newExpected})
	require.NoError(t, err)
	require.InDelta(t, 10000.00, updated.GSTAmount, 1e-9)
	require.InDelta(t, 200000.00, updated.RemainingExpected, 1e-9)
}

func TestEditRejectedAfterClose(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 0, 4)
	_, err := svc.RequestDistrictClose(ctx, txn.ID)
	require.NoError(t, err)

	amount := 90000.0
	_, err = svc.EditTransaction(ctx, txn.ID, TransactionPatch{ExpectedAmount: &amount})
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestCloseThenConfirmFlow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 200000, 0, 5)
	require.InDelta(t, 10000.00, txn.GSTAmount, 1e-9)

	closed, err := svc.RequestDistrictClose(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingClose, closed.Status)
	require.True(t, closed.ClosedByDistrict)
	require.Zero(t, closed.RemainingExpected)
	require.Len(t, repo.ledger, 1)
	require.Equal(t, wallet.EntryGST, repo.ledger[0].Type)
	require.InDelta(t, 10000.00, repo.ledger[0].Debit, 1e-9)

	confirmed, err := svc.ConfirmAdminClose(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, confirmed.Status)
	require.True(t, confirmed.ConfirmedByAdmin)
	require.InDelta(t, 16000.00, confirmed.Profit, 1e-9)
	require.Len(t, repo.ledger, 2)
	require.Equal(t, wallet.EntryProfit, repo.ledger[1].Type)
	require.InDelta(t, 16000.00, repo.ledger[1].Credit, 1e-9)
	require.InDelta(t, 6000.00, repo.walletBalance(), 1e-9)

	// Confirming again must fail and not move the wallet.
	_, err = svc.ConfirmAdminClose(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	require.Len(t, repo.ledger, 2)
	require.InDelta(t, 6000.00, repo.walletBalance(), 1e-9)
}

func TestCloseSkipsGSTDebitWhenAdvanceCovers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// Advance exceeds GST owed: gstBalance < 0, no gst entry at close.
	txn := create(t, svc, 100000, 9000, 4)
	require.Len(t, repo.ledger, 1) // the advance debit

	_, err := svc.RequestDistrictClose(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, repo.ledger, 1)
}

func TestLifecycleMonotonic(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 0, 4)

	// Open → Closed directly is impossible.
	_, err := svc.ConfirmAdminClose(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	_, err = svc.RequestDistrictClose(ctx, txn.ID)
	require.NoError(t, err)

	// A second district close is rejected: only valid from Open.
	_, err = svc.RequestDistrictClose(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	_, err = svc.ConfirmAdminClose(ctx, txn.ID)
	require.NoError(t, err)

	// Closed is terminal.
	_, err = svc.RequestDistrictClose(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	_, err = svc.ConfirmAdminClose(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestForceCloseWithRemainingOutstanding(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 0, 4)
	_, err := svc.SubmitBill(ctx, SubmitBillInput{
		TxnID: txn.ID, BillNumber: "B-1",
		BillDate:   time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		BillAmount: 10000, GSTPercent: 4,
	})
	require.NoError(t, err)
	require.Greater(t, repo.txns[txn.ID].RemainingExpected, 0.0)

	// District discretion: close proceeds, remaining forced to zero.
	closed, err := svc.RequestDistrictClose(ctx, txn.ID)
	require.NoError(t, err)
	require.Zero(t, closed.RemainingExpected)
}

func TestDeleteTransactionKeepsLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 100000, 5000, 4)
	require.Len(t, repo.ledger, 1)

	require.NoError(t, svc.DeleteTransaction(ctx, txn.ID))
	_, err := svc.GetTransaction(ctx, txn.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// The advance debit survives as an audit-trail orphan.
	require.Len(t, repo.ledger, 1)
	require.InDelta(t, -5000.00, repo.walletBalance(), 1e-9)
}

func TestConcurrentActionsOnSameTransactionSerialized(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	txn := create(t, svc, 1000000, 0, 4)
	billDate := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(n int) {
			_, err := svc.SubmitBill(ctx, SubmitBillInput{
				TxnID: txn.ID, BillNumber: "B", BillDate: billDate,
				BillAmount: 1000, GSTPercent: 4,
			})
			done <- err
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	got := repo.txns[txn.ID]
	require.InDelta(t, 20000.00, got.BillsReceived, 1e-9)
	// 20 × round2(1000×1.18) = 23600
	require.InDelta(t, 976400.00, got.RemainingExpected, 1e-9)
}
