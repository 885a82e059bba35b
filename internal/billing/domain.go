// Package billing holds the reconciliation engine: transactions, the
// bills claimed against them, the locked GST formulas, and the
// Open → PendingClose → Closed lifecycle that drives the wallet.
package billing

import (
	"fmt"
	"time"

	"github.com/gstledger/gstledger/internal/shared"
)

// Status enumerates transaction lifecycle states. Transitions only
// move forward and never skip a state.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusPendingClose Status = "PENDING_CLOSE"
	StatusClosed       Status = "CLOSED"
)

// Sentinel errors wrapping the shared kinds.
var (
	ErrTransactionNotFound = fmt.Errorf("%w: transaction", shared.ErrNotFound)
	ErrBillNotFound        = fmt.Errorf("%w: bill", shared.ErrNotFound)
	ErrVendorNotFound      = fmt.Errorf("%w: vendor", shared.ErrNotFound)
)

// Transaction is the central reconciliation unit: the expected
// procurement value for one vendor in one month, with GST and
// remaining-amount fields derived from it and its bills. Derived
// fields are always recomputed from inputs, never hand-edited.
type Transaction struct {
	ID            int64
	VendorCode    string
	VendorName    string
	District      string
	Month         string
	FinancialYear string

	ExpectedAmount float64
	AdvanceAmount  float64
	GSTPercent     float64

	GSTAmount         float64
	GSTBalance        float64
	BillsReceived     float64
	RemainingExpected float64

	ClosedByDistrict bool
	ConfirmedByAdmin bool
	Profit           float64
	Status           Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bill is an itemized claim against one transaction. GSTAmount and
// TotalAmount are derived by the locked formulas in calculator.go.
type Bill struct {
	ID         int64
	TxnID      int64
	BillNumber string
	BillDate   time.Time
	BillAmount float64
	GSTPercent float64
	GSTAmount  float64
	TotalAmount float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TransactionWithBills bundles a transaction with its current bill set.
type TransactionWithBills struct {
	Transaction
	Bills []Bill
}

// CreateTransactionInput carries the district's new-transaction form.
type CreateTransactionInput struct {
	VendorCode     string
	ExpectedAmount float64
	AdvanceAmount  float64
	GSTPercent     float64
	Month          string
	FinancialYear  string
}

// TransactionPatch amends an Open transaction. Nil fields are left
// unchanged; any change recomputes the derived fields.
type TransactionPatch struct {
	ExpectedAmount *float64
	AdvanceAmount  *float64
	GSTPercent     *float64
	Month          *string
}

// SubmitBillInput carries a new bill against an Open transaction.
type SubmitBillInput struct {
	TxnID      int64
	BillNumber string
	BillDate   time.Time
	BillAmount float64
	GSTPercent float64
}

// BillPatch amends a bill on an Open transaction.
type BillPatch struct {
	BillNumber *string
	BillDate   *time.Time
	BillAmount *float64
	GSTPercent *float64
}

// ListTransactionsRequest filters transaction listings.
type ListTransactionsRequest struct {
	District   string
	VendorCode string
	Status     Status
	Limit      int
	Offset     int
}
