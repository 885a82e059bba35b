package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gstledger/gstledger/internal/money"
	"github.com/gstledger/gstledger/internal/shared"
	"github.com/gstledger/gstledger/internal/vendors"
	"github.com/gstledger/gstledger/internal/wallet"
)

// VendorDirectory is the read-only vendor lookup the engine consumes.
type VendorDirectory interface {
	GetByCode(ctx context.Context, code string) (vendors.Vendor, error)
}

// SyncNotifier receives fire-and-forget change notifications for the
// external sheet sync. Failures are logged and never block or roll
// back a committed state transition.
type SyncNotifier interface {
	TransactionChanged(ctx context.Context, txn Transaction) error
	WalletEntryAppended(ctx context.Context, entry wallet.Entry) error
}

// Service is the reconciliation engine: it owns every derived-value
// computation and the transaction lifecycle, and is the only writer
// of lifecycle-driven wallet entries.
type Service struct {
	repo    Repository
	vendors VendorDirectory
	locker  *shared.TxnLocker
	logger  *slog.Logger
	sync    SyncNotifier
	now     func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, dir VendorDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		vendors: dir,
		locker:  shared.NewTxnLocker(),
		logger:  logger,
		now:     time.Now,
	}
}

// SetSyncNotifier injects the outbound sheet-sync hook.
func (s *Service) SetSyncNotifier(n SyncNotifier) {
	s.sync = n
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// recompute refreshes every derived field from the transaction's
// current inputs and bill set. No caller persists a stale derivation
// while the transaction is Open.
func recompute(txn *Transaction, bills []Bill) {
	txn.GSTAmount = TransactionGST(txn.ExpectedAmount, txn.GSTPercent)
	txn.GSTBalance = GSTBalance(txn.GSTAmount, txn.AdvanceAmount)
	txn.BillsReceived, txn.RemainingExpected = Aggregate(txn.ExpectedAmount, bills)
}

// CreateTransaction validates the district's form, derives GST fields
// and, when an advance is paid, debits the wallet in the same unit.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (Transaction, error) {
	if in.ExpectedAmount <= 0 {
		return Transaction{}, fmt.Errorf("%w: expected amount must be positive", shared.ErrValidation)
	}
	if in.AdvanceAmount < 0 {
		return Transaction{}, fmt.Errorf("%w: advance amount must be non-negative", shared.ErrValidation)
	}
	if !ValidGSTRate(in.GSTPercent) {
		return Transaction{}, fmt.Errorf("%w: gst percent %.1f outside enumerated rates", shared.ErrValidation, in.GSTPercent)
	}
	if in.Month == "" || in.FinancialYear == "" {
		return Transaction{}, fmt.Errorf("%w: month and financial year are required", shared.ErrValidation)
	}
	vendor, err := s.vendors.GetByCode(ctx, in.VendorCode)
	if err != nil {
		return Transaction{}, ErrVendorNotFound
	}

	txn := Transaction{
		VendorCode:        vendor.Code,
		VendorName:        vendor.Name,
		District:          vendor.District,
		Month:             in.Month,
		FinancialYear:     in.FinancialYear,
		ExpectedAmount:    in.ExpectedAmount,
		AdvanceAmount:     in.AdvanceAmount,
		GSTPercent:        in.GSTPercent,
		GSTAmount:         TransactionGST(in.ExpectedAmount, in.GSTPercent),
		RemainingExpected: money.Round2(in.ExpectedAmount),
		Status:            StatusOpen,
	}
	txn.GSTBalance = GSTBalance(txn.GSTAmount, txn.AdvanceAmount)

	var advanceEntry *wallet.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = id
		// The advance is a wallet outflow at creation time, not at close.
		if txn.AdvanceAmount > 0 {
			entry, err := tx.AppendWalletEntry(ctx, wallet.AppendInput{
				Date:        s.now(),
				Description: fmt.Sprintf("Advance %s to %s (%s)", money.FormatINR(txn.AdvanceAmount), txn.VendorName, txn.VendorCode),
				TxnID:       &txn.ID,
				Debit:       txn.AdvanceAmount,
				Type:        wallet.EntryAdvance,
			})
			if err != nil {
				return err
			}
			advanceEntry = &entry
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	s.notify(ctx, txn, advanceEntry)
	return txn, nil
}

// EditTransaction amends an Open transaction and recomputes every
// derived field. PendingClose and Closed transactions are immutable.
func (s *Service) EditTransaction(ctx context.Context, txnID int64, patch TransactionPatch) (Transaction, error) {
	unlock := s.locker.Lock(txnID)
	defer unlock()

	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.Status != StatusOpen {
			return fmt.Errorf("%w: cannot edit %s transaction", shared.ErrInvalidStateTransition, txn.Status)
		}
		if patch.ExpectedAmount != nil {
			if *patch.ExpectedAmount <= 0 {
				return fmt.Errorf("%w: expected amount must be positive", shared.ErrValidation)
			}
			txn.ExpectedAmount = *patch.ExpectedAmount
		}
		if patch.AdvanceAmount != nil {
			if *patch.AdvanceAmount < 0 {
				return fmt.Errorf("%w: advance amount must be non-negative", shared.ErrValidation)
			}
			txn.AdvanceAmount = *patch.AdvanceAmount
		}
		if patch.GSTPercent != nil {
			if !ValidGSTRate(*patch.GSTPercent) {
				return fmt.Errorf("%w: gst percent %.1f outside enumerated rates", shared.ErrValidation, *patch.GSTPercent)
			}
			txn.GSTPercent = *patch.GSTPercent
		}
		if patch.Month != nil {
			if *patch.Month == "" {
				return fmt.Errorf("%w: month is required", shared.ErrValidation)
			}
			txn.Month = *patch.Month
		}
		bills, err := tx.ListBills(ctx, txnID)
		if err != nil {
			return err
		}
		recompute(&txn, bills)
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.notify(ctx, out, nil)
	return out, nil
}

// DeleteTransaction removes a transaction and its bills from any
// state. Wallet entries already posted for it stay: the ledger is an
// append-only audit trail and surfaces such rows via the orphan
// review query instead of reversing them.
func (s *Service) DeleteTransaction(ctx context.Context, txnID int64) error {
	unlock := s.locker.Lock(txnID)
	defer unlock()

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetTransactionForUpdate(ctx, txnID); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, txnID)
	})
}

// SubmitBill records a bill against an Open transaction and
// recomputes the parent's aggregates in the same unit.
func (s *Service) SubmitBill(ctx context.Context, in SubmitBillInput) (Bill, error) {
	amounts, err := CalculateBill(in.BillAmount, in.GSTPercent)
	if err != nil {
		return Bill{}, err
	}
	if in.BillDate.After(s.now()) {
		return Bill{}, fmt.Errorf("%w: bill date cannot be in the future", shared.ErrValidation)
	}

	unlock := s.locker.Lock(in.TxnID)
	defer unlock()

	var bill Bill
	var out Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, in.TxnID)
		if err != nil {
			return err
		}
		if txn.Status != StatusOpen {
			return fmt.Errorf("%w: bills may only target open transactions", shared.ErrInvalidStateTransition)
		}
		bill = Bill{
			TxnID:       in.TxnID,
			BillNumber:  in.BillNumber,
			BillDate:    in.BillDate,
			BillAmount:  in.BillAmount,
			GSTPercent:  in.GSTPercent,
			GSTAmount:   amounts.GSTAmount,
			TotalAmount: amounts.TotalAmount,
		}
		id, err := tx.InsertBill(ctx, bill)
		if err != nil {
			return err
		}
		bill.ID = id
		bills, err := tx.ListBills(ctx, in.TxnID)
		if err != nil {
			return err
		}
		recompute(&txn, bills)
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.notify(ctx, out, nil)
	return bill, nil
}

// EditBill amends a bill while its parent is Open, re-deriving the
// bill's locked amounts and the parent's aggregates.
func (s *Service) EditBill(ctx context.Context, billID int64, patch BillPatch) (Bill, error) {
	existing, err := s.repo.GetBill(ctx, billID)
	if err != nil {
		return Bill{}, err
	}

	unlock := s.locker.Lock(existing.TxnID)
	defer unlock()

	var out Transaction
	var bill Bill
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, existing.TxnID)
		if err != nil {
			return err
		}
		if txn.Status != StatusOpen {
			return fmt.Errorf("%w: bills on %s transactions are frozen", shared.ErrInvalidStateTransition, txn.Status)
		}
		bill, err = tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if patch.BillNumber != nil {
			bill.BillNumber = *patch.BillNumber
		}
		if patch.BillDate != nil {
			if patch.BillDate.After(s.now()) {
				return fmt.Errorf("%w: bill date cannot be in the future", shared.ErrValidation)
			}
			bill.BillDate = *patch.BillDate
		}
		if patch.BillAmount != nil {
			bill.BillAmount = *patch.BillAmount
		}
		if patch.GSTPercent != nil {
			bill.GSTPercent = *patch.GSTPercent
		}
		amounts, err := CalculateBill(bill.BillAmount, bill.GSTPercent)
		if err != nil {
			return err
		}
		bill.GSTAmount = amounts.GSTAmount
		bill.TotalAmount = amounts.TotalAmount
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		bills, err := tx.ListBills(ctx, existing.TxnID)
		if err != nil {
			return err
		}
		recompute(&txn, bills)
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.notify(ctx, out, nil)
	return bill, nil
}

// DeleteBill removes a bill and re-runs the aggregate recomputation
// over the remaining bill set.
func (s *Service) DeleteBill(ctx context.Context, billID int64) error {
	existing, err := s.repo.GetBill(ctx, billID)
	if err != nil {
		return err
	}

	unlock := s.locker.Lock(existing.TxnID)
	defer unlock()

	var out Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, existing.TxnID)
		if err != nil {
			return err
		}
		if txn.Status != StatusOpen {
			return fmt.Errorf("%w: bills on %s transactions are frozen", shared.ErrInvalidStateTransition, txn.Status)
		}
		if err := tx.DeleteBill(ctx, billID); err != nil {
			return err
		}
		bills, err := tx.ListBills(ctx, existing.TxnID)
		if err != nil {
			return err
		}
		recompute(&txn, bills)
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, out, nil)
	return nil
}

// RequestDistrictClose moves Open → PendingClose. The district may
// force-close with remaining expected outstanding; that is district
// discretion, not a validation gap. A positive GST balance is debited
// from the wallet in the same unit. Irreversible from the district
// side.
func (s *Service) RequestDistrictClose(ctx context.Context, txnID int64) (Transaction, error) {
	unlock := s.locker.Lock(txnID)
	defer unlock()

	var out Transaction
	var gstEntry *wallet.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.Status != StatusOpen {
			return fmt.Errorf("%w: close requires an open transaction, got %s", shared.ErrInvalidStateTransition, txn.Status)
		}
		gstBal := GSTBalance(txn.GSTAmount, txn.AdvanceAmount)
		if gstBal > 0 {
			entry, err := tx.AppendWalletEntry(ctx, wallet.AppendInput{
				Date:        s.now(),
				Description: fmt.Sprintf("GST settlement %s for %s (%s)", money.FormatINR(gstBal), txn.VendorName, txn.VendorCode),
				TxnID:       &txn.ID,
				Debit:       gstBal,
				Type:        wallet.EntryGST,
			})
			if err != nil {
				return err
			}
			gstEntry = &entry
		}
		txn.ClosedByDistrict = true
		txn.RemainingExpected = 0
		txn.Status = StatusPendingClose
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.notify(ctx, out, gstEntry)
	return out, nil
}

// ConfirmAdminClose moves PendingClose → Closed and credits the fixed
// profit share of the expected amount. Confirming a Closed transaction
// is rejected and never appends a second profit credit.
func (s *Service) ConfirmAdminClose(ctx context.Context, txnID int64) (Transaction, error) {
	unlock := s.locker.Lock(txnID)
	defer unlock()

	var out Transaction
	var profitEntry *wallet.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.Status != StatusPendingClose {
			return fmt.Errorf("%w: confirm requires a pending-close transaction, got %s", shared.ErrInvalidStateTransition, txn.Status)
		}
		profit := ProfitAmount(txn.ExpectedAmount)
		entry, err := tx.AppendWalletEntry(ctx, wallet.AppendInput{
			Date:        s.now(),
			Description: fmt.Sprintf("Profit %s on %s (%s)", money.FormatINR(profit), txn.VendorName, txn.VendorCode),
			TxnID:       &txn.ID,
			Credit:      profit,
			Type:        wallet.EntryProfit,
		})
		if err != nil {
			return err
		}
		profitEntry = &entry
		txn.ConfirmedByAdmin = true
		txn.Profit = profit
		txn.Status = StatusClosed
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.notify(ctx, out, profitEntry)
	return out, nil
}

// GetTransaction returns a transaction with its stored derived values.
func (s *Service) GetTransaction(ctx context.Context, txnID int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, txnID)
}

// GetTransactionWithBills returns a transaction and its bill set.
func (s *Service) GetTransactionWithBills(ctx context.Context, txnID int64) (TransactionWithBills, error) {
	return s.repo.GetTransactionWithBills(ctx, txnID)
}

// ListTransactions lists transactions for display.
func (s *Service) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, req)
}

// ListBills lists a transaction's bills.
func (s *Service) ListBills(ctx context.Context, txnID int64) ([]Bill, error) {
	return s.repo.ListBills(ctx, txnID)
}

// GetBill returns one bill.
func (s *Service) GetBill(ctx context.Context, billID int64) (Bill, error) {
	return s.repo.GetBill(ctx, billID)
}

// notify pushes committed changes to the sheet-sync adjunct. Errors
// are logged and swallowed; the local transition already committed.
func (s *Service) notify(ctx context.Context, txn Transaction, entry *wallet.Entry) {
	if s.sync == nil {
		return
	}
	if err := s.sync.TransactionChanged(ctx, txn); err != nil {
		s.logger.Warn("sheet sync enqueue failed", slog.Int64("txn_id", txn.ID), slog.Any("error", err))
	}
	if entry != nil {
		if err := s.sync.WalletEntryAppended(ctx, *entry); err != nil {
			s.logger.Warn("sheet sync enqueue failed", slog.Int64("entry_id", entry.ID), slog.Any("error", err))
		}
	}
}
