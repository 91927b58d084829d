package fixedn

import (
	"errors"

	"github.com/holiman/uint256"
)

// AmountFromString parses a non-negative decimal amount of native units into
// the smallest value units.
func AmountFromString(s string) (*uint256.Int, error) {
	bi, err := FromString(s, Precision)
	if err != nil {
		return nil, err
	}
	if bi.Sign() < 0 {
		return nil, errors.New("negative amount")
	}
	v, overflow := uint256.FromBig(bi)
	if overflow {
		return nil, errors.New("amount is too big")
	}
	return v, nil
}

// AmountToString formats the amount of the smallest value units as a
// decimal amount of native units.
func AmountToString(v *uint256.Int) string {
	return ToString(v.ToBig(), Precision)
}
