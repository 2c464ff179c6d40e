package dedup

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Fingerprint is the normalized (mobile, email) pair used to recognize
// repeat submissions. Two drafts with the same fingerprint inside the dedup
// window are duplicates no matter what else differs.
type Fingerprint struct {
	Mobile string
	Email  string
}

// NewFingerprint normalizes the raw identity pair. Mobile keeps only its
// national significant digits so "+91 98765-43210" and "9876543210" collapse
// to the same value; email is trimmed and lower-cased.
func NewFingerprint(mobile, email, defaultRegion string) Fingerprint {
	return Fingerprint{
		Mobile: NormalizeMobile(mobile, defaultRegion),
		Email:  NormalizeEmail(email),
	}
}

// NormalizeMobile reduces a phone number to its national significant digits.
// Falls back to stripping everything but digits when parsing fails.
func NormalizeMobile(mobile, defaultRegion string) string {
	parsed, err := phonenumbers.Parse(mobile, defaultRegion)
	if err == nil {
		return phonenumbers.GetNationalSignificantNumber(parsed)
	}

	var digits strings.Builder
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return strings.TrimPrefix(digits.String(), "0")
}

// NormalizeEmail lower-cases and trims the address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Key returns the storage key for the fingerprint
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%s", f.Mobile, f.Email)
}

// IsZero reports whether the fingerprint carries no identity at all
func (f Fingerprint) IsZero() bool {
	return f.Mobile == "" && f.Email == ""
}
