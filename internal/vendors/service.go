package vendors

import (
	"context"
	"fmt"
	"time"

	"github.com/gstledger/gstledger/internal/shared"
)

// Service owns vendor registration and the contact-only amendment
// rule.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create registers a vendor, issuing its code from the count of
// vendors already holding the same (district, business type, year)
// combination. The count and insert share a transaction so concurrent
// registrations cannot issue the same serial.
func (s *Service) Create(ctx context.Context, in CreateVendorInput) (Vendor, error) {
	if in.Name == "" || in.District == "" || in.BusinessType == "" {
		return Vendor{}, fmt.Errorf("%w: name, district and business type are required", shared.ErrValidation)
	}
	year := in.RegistrationYear
	if year == 0 {
		year = s.now().Year()
	}
	if year < 2000 || year > s.now().Year() {
		return Vendor{}, fmt.Errorf("%w: registration year %d out of range", shared.ErrValidation, year)
	}

	var vendor Vendor
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.CountByCombination(ctx, in.District, in.BusinessType, year)
		if err != nil {
			return err
		}
		vendor = Vendor{
			Code:             GenerateCode(in.District, in.BusinessType, year, existing),
			Name:             in.Name,
			District:         in.District,
			BusinessType:     in.BusinessType,
			RegistrationYear: year,
			ContactPhone:     in.ContactPhone,
			ContactEmail:     in.ContactEmail,
		}
		return tx.Insert(ctx, vendor)
	})
	if err != nil {
		return Vendor{}, err
	}
	return vendor, nil
}

// GetByCode looks up a vendor by its issued code.
func (s *Service) GetByCode(ctx context.Context, code string) (Vendor, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns vendors, optionally scoped to a district.
func (s *Service) List(ctx context.Context, district string, limit, offset int) ([]Vendor, error) {
	return s.repo.List(ctx, district, limit, offset)
}

// UpdateContact amends the only mutable fields. Identity fields and
// the code never change after issue.
func (s *Service) UpdateContact(ctx context.Context, code string, patch ContactPatch) (Vendor, error) {
	existing, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Vendor{}, err
	}
	phone := existing.ContactPhone
	email := existing.ContactEmail
	if patch.ContactPhone != nil {
		phone = *patch.ContactPhone
	}
	if patch.ContactEmail != nil {
		email = *patch.ContactEmail
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateContact(ctx, code, phone, email)
	})
	if err != nil {
		return Vendor{}, err
	}
	return s.repo.GetByCode(ctx, code)
}
