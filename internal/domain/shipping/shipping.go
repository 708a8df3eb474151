package shipping

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoAddress is returned when a shipping cost is requested without a
// destination address.
var ErrNoAddress = errors.New("shipping address is required")

// Two-tier flat rate table: one rate for domestic (UK) destinations, one for
// everywhere else.
var (
	domesticRate      = decimal.RequireFromString("5.99")
	internationalRate = decimal.RequireFromString("8.99")
)

// Address is a shipping destination. It is a plain value; two addresses with
// the same fields are interchangeable.
type Address struct {
	ID            uuid.UUID
	Country       string
	CustomerEmail string
}

// IsDomestic reports whether the address is a UK destination. Only the exact
// spellings "UK" and "United Kingdom" qualify, compared case-insensitively.
// Abbreviations and constituent-country names ("U.K.", "England", "Britain")
// do not.
func (a Address) IsDomestic() bool {
	return strings.EqualFold(a.Country, "UK") || strings.EqualFold(a.Country, "United Kingdom")
}

// CalculateCost maps a destination address to its flat shipping cost.
// A nil address is a caller bug and yields ErrNoAddress.
func CalculateCost(addr *Address) (decimal.Decimal, error) {
	if addr == nil {
		return decimal.Zero, ErrNoAddress
	}
	if addr.IsDomestic() {
		return domesticRate, nil
	}
	return internationalRate, nil
}
