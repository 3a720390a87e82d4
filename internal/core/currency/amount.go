// Package currency implements the fixed-point settlement currency used by the
// marketplace engine. All amounts are unsigned integers of micro-units: six
// decimal places, so "1.00" is 1_000_000 units. Rates are expressed in basis
// points (1/10000).
package currency

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a settlement-currency value in micro-units.
type Amount uint64

// UnitsPerWhole is the number of micro-units in one whole currency unit.
const UnitsPerWhole Amount = 1_000_000

// MaxBps is the largest legal basis-point rate (100%).
const MaxBps uint32 = 10_000

var ErrOverflow = errors.New("currency: amount overflow")

// FromWhole converts whole currency units to micro-units.
func FromWhole(whole uint64) Amount {
	return Amount(whole) * UnitsPerWhole
}

// Units returns the raw micro-unit value.
func (a Amount) Units() uint64 {
	return uint64(a)
}

func (a Amount) IsZero() bool {
	return a == 0
}

func (a Amount) IsPositive() bool {
	return a > 0
}

// Add returns a+b, failing on uint64 wraparound.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b. b must not exceed a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, fmt.Errorf("currency: subtraction underflow: %d - %d", a, b)
	}
	return a - b, nil
}

// SplitBps returns floor(a * bps / 10000). Truncation always rounds the split
// share down; the remainder stays with the residual recipient.
func (a Amount) SplitBps(bps uint32) Amount {
	return Amount(uint64(a) * uint64(bps) / uint64(MaxBps))
}

// String renders the amount with six decimal places, e.g. "92.500000".
func (a Amount) String() string {
	return fmt.Sprintf("%d.%06d", uint64(a)/uint64(UnitsPerWhole), uint64(a)%uint64(UnitsPerWhole))
}

// Parse reads a decimal string with up to six fractional digits.
func Parse(s string) (Amount, error) {
	if s == "" {
		return 0, errors.New("currency: empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("currency: negative amount %q", s)
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("currency: too many decimal places in %q", s)
	}
	// Right-pad the fraction to micro-units.
	frac += strings.Repeat("0", 6-len(frac))

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("currency: bad amount %q: %w", s, err)
	}
	f := uint64(0)
	if frac != "" {
		f, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("currency: bad amount %q: %w", s, err)
		}
	}

	if w > (1<<64-1)/uint64(UnitsPerWhole) {
		return 0, ErrOverflow
	}
	units := w * uint64(UnitsPerWhole)
	if units+f < units {
		return 0, ErrOverflow
	}
	return Amount(units + f), nil
}

// ValidBps reports whether a basis-point rate is in the legal 0..10000 range.
func ValidBps(bps uint32) bool {
	return bps <= MaxBps
}
