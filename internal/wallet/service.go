package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/gstledger/gstledger/internal/money"
	"github.com/gstledger/gstledger/internal/shared"
)

// Service exposes the manual side of the ledger. Lifecycle-driven
// entries (advance, gst, profit) are appended by the billing engine in
// its own transactions; only operator adjustments come through here.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CurrentBalance returns the last entry's balance, or 0 for an empty
// ledger. There is no separately stored running total.
func (s *Service) CurrentBalance(ctx context.Context) (float64, error) {
	return s.repo.CurrentBalance(ctx)
}

// Entries lists ledger rows in insertion order.
func (s *Service) Entries(ctx context.Context, limit, offset int) ([]Entry, error) {
	return s.repo.ListEntries(ctx, limit, offset)
}

// Orphaned lists entries whose transaction reference no longer
// resolves. These are flagged for manual review, never auto-reversed.
func (s *Service) Orphaned(ctx context.Context) ([]Entry, error) {
	return s.repo.ListOrphaned(ctx)
}

// ManualEntry appends an arbitrary operator adjustment. Debit and
// credit may both be set; typical usage sets only one.
func (s *Service) ManualEntry(ctx context.Context, description string, debit, credit float64) (Entry, error) {
	if description == "" {
		return Entry{}, fmt.Errorf("%w: description required", shared.ErrValidation)
	}
	var out Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		out, e = tx.Append(ctx, AppendInput{
			Date:        s.now(),
			Description: description,
			Debit:       debit,
			Credit:      credit,
			Type:        EntryManual,
		})
		return e
	})
	return out, err
}

// SetBalance moves the running balance to target by appending a single
// manual delta entry. A zero delta appends nothing; the stored balance
// is never overwritten in place.
func (s *Service) SetBalance(ctx context.Context, target float64) (*Entry, error) {
	var out *Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LastBalance(ctx)
		if err != nil {
			return err
		}
		diff := money.Round2(target - current)
		if diff == 0 {
			return nil
		}
		in := AppendInput{
			Date: s.now(),
			Type: EntryManual,
		}
		if diff > 0 {
			in.Credit = diff
			in.Description = fmt.Sprintf("Balance set to %s", money.FormatINR(target))
		} else {
			in.Debit = -diff
			in.Description = fmt.Sprintf("Balance set to %s", money.FormatINR(target))
		}
		e, err := tx.Append(ctx, in)
		if err != nil {
			return err
		}
		out = &e
		return nil
	})
	return out, err
}

// Verify replays the full ledger and checks every balance snapshot.
func (s *Service) Verify(ctx context.Context) error {
	entries, err := s.repo.ListEntries(ctx, 0, 0)
	if err != nil {
		return err
	}
	return Replay(entries)
}
