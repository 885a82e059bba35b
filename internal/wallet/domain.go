// Package wallet implements the admin cash ledger: an append-only
// sequence of debit/credit entries with a balance snapshot per row.
// Entries are never edited or deleted after append; corrections are
// new entries layered on top.
package wallet

import (
	"fmt"
	"time"

	"github.com/gstledger/gstledger/internal/money"
	"github.com/gstledger/gstledger/internal/shared"
)

// EntryType classifies the cash movement behind a ledger row.
type EntryType string

const (
	// EntryAdvance is the outflow posted when a transaction is created
	// with an advance against GST.
	EntryAdvance EntryType = "advance"
	// EntryGST is the outflow posted at district close for the unpaid
	// GST balance.
	EntryGST EntryType = "gst"
	// EntryProfit is the inflow posted on admin confirmation.
	EntryProfit EntryType = "profit"
	// EntryManual is an operator adjustment.
	EntryManual EntryType = "manual"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntryAdvance, EntryGST, EntryProfit, EntryManual:
		return true
	}
	return false
}

// Entry is one ledger row. Balance is the running balance after this
// entry was applied.
type Entry struct {
	ID          int64
	Date        time.Time
	Description string
	TxnID       *int64
	Debit       float64
	Credit      float64
	Balance     float64
	Type        EntryType
	CreatedAt   time.Time
}

// AppendInput carries everything needed to append one entry. Balance
// is computed at append time from the prior entry, never supplied.
type AppendInput struct {
	Date        time.Time
	Description string
	TxnID       *int64
	Debit       float64
	Credit      float64
	Type        EntryType
}

// Validate rejects malformed append input before anything is written.
func (in AppendInput) Validate() error {
	if in.Debit < 0 || in.Credit < 0 {
		return fmt.Errorf("%w: debit and credit must be non-negative", shared.ErrValidation)
	}
	if in.Debit == 0 && in.Credit == 0 {
		return fmt.Errorf("%w: entry must move money", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown entry type %q", shared.ErrValidation, in.Type)
	}
	return nil
}

// NextBalance derives the balance snapshot for an entry appended after
// a prior balance. The prior balance of an empty ledger is 0.
func NextBalance(prior, debit, credit float64) float64 {
	return money.Round2(prior - debit + credit)
}

// Replay walks entries in insertion order from an empty ledger and
// verifies every stored balance snapshot. A mismatch means a row was
// mutated after append.
func Replay(entries []Entry) error {
	prior := 0.0
	for i, e := range entries {
		want := NextBalance(prior, e.Debit, e.Credit)
		if e.Balance != want {
			return fmt.Errorf("wallet: entry %d (id=%d) balance %.2f, replay gives %.2f", i, e.ID, e.Balance, want)
		}
		prior = e.Balance
	}
	return nil
}
