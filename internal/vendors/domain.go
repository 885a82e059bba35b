// Package vendors is the vendor identity registry. Codes are assigned
// once at creation and never regenerated; only contact fields may
// change afterwards.
package vendors

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gstledger/gstledger/internal/shared"
)

// ErrVendorNotFound indicates a missing vendor.
var ErrVendorNotFound = fmt.Errorf("%w: vendor", shared.ErrNotFound)

// ErrDuplicateCode indicates a code collision on insert.
var ErrDuplicateCode = fmt.Errorf("%w: vendor code already issued", shared.ErrValidation)

// Vendor is an identity record. Everything except the contact fields
// is immutable once the code is issued.
type Vendor struct {
	Code             string
	Name             string
	District         string
	BusinessType     string
	RegistrationYear int
	ContactPhone     string
	ContactEmail     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateVendorInput carries a new vendor registration.
type CreateVendorInput struct {
	Name             string
	District         string
	BusinessType     string
	RegistrationYear int
	ContactPhone     string
	ContactEmail     string
}

// ContactPatch amends the mutable contact fields.
type ContactPatch struct {
	ContactPhone *string
	ContactEmail *string
}

// abbrev reduces a name to its first three letters, uppercased.
// Non-letters are skipped so "Sri Ram & Co" abbreviates to SRI.
func abbrev(name string) string {
	var b strings.Builder
	for _, r := range name {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() >= 3 {
			break
		}
	}
	return b.String()
}

// GenerateCode derives the vendor code
// {DistrictAbbrev}{YearYY}{BizAbbrev}{Serial:3} deterministically from
// (district, businessType, year, existing) where existing is the
// count of vendors already issued for the same combination. Re-running
// it during a rename must not change historical codes, so it is only
// ever called at creation.
func GenerateCode(district, businessType string, year, existing int) string {
	return fmt.Sprintf("%s%02d%s%03d", abbrev(district), year%100, abbrev(businessType), existing+1)
}
