// Package units converts between human readable token amounts and wei.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals used by ether and by the LINK token.
const (
	EtherDecimals = 18
	GweiDecimals  = 9
	LinkDecimals  = 18
)

// ErrInvalidValue is returned when a value string cannot be parsed.
var ErrInvalidValue = errors.New("units: invalid value")

// suffixes are checked in order, so "gwei" must come before "wei" and
// "ether" before "eth".
var suffixes = []struct {
	name     string
	decimals int32
}{
	{"ether", EtherDecimals},
	{"eth", EtherDecimals},
	{"link", LinkDecimals},
	{"gwei", GweiDecimals},
	{"wei", 0},
}

// ParseValue parses value strings like "1ether", "0.5gwei", "0.1link" or
// "1000000000" into wei. Values without a suffix are taken as wei.
func ParseValue(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return big.NewInt(0), nil
	}

	var exp int32
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix.name) {
			exp = suffix.decimals
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix.name))
			break
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidValue, s)
	}

	wei := d.Shift(exp)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more precision than wei", ErrInvalidValue, s)
	}
	return wei.BigInt(), nil
}

// MustParseValue is like ParseValue but panics on error. Only use it for
// compile-time constants.
func MustParseValue(s string) *big.Int {
	v, err := ParseValue(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatToken renders a base-unit amount with the given number of decimals,
// dropping trailing zeros ("100000000000000000", 18 -> "0.1").
func FormatToken(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FormatEther renders wei as ether.
func FormatEther(wei *big.Int) string {
	return FormatToken(wei, EtherDecimals)
}
