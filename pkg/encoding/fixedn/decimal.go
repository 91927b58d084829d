package fixedn

import (
	"errors"
	"math/big"
	"strings"
)

// Precision is the number of decimals of the native ledger value unit used
// for registration fees.
const Precision = 18

const maxAllowedPrecision = 77

// ErrInvalidFormat is returned when decimal format is invalid.
var ErrInvalidFormat = errors.New("invalid decimal format")

var _pow10 []*big.Int

func init() {
	for i := 0; i <= maxAllowedPrecision; i++ {
		_pow10 = append(_pow10, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(i)), nil))
	}
}

func pow10(n int) *big.Int {
	last := len(_pow10) - 1
	if n <= last {
		return _pow10[n]
	}
	p := new(big.Int).Set(_pow10[last])
	for i := last; i < n; i++ {
		p.Mul(p, _pow10[1])
	}
	return p
}

// ToString converts a big decimal with the specified precision to a string.
func ToString(bi *big.Int, precision int) string {
	var dp, fp big.Int
	dp.QuoRem(bi, pow10(precision), &fp)

	var s = dp.String()
	if fp.Sign() == 0 {
		return s
	}
	if bi.Sign() < 0 && dp.Sign() == 0 {
		s = "-" + s
	}
	frac := fp.Abs(&fp).String()
	for len(frac) < precision {
		frac = "0" + frac
	}
	return s + "." + strings.TrimRight(frac, "0")
}

// FromString converts a string to a big decimal with the specified precision.
func FromString(s string, precision int) (*big.Int, error) {
	parts := strings.SplitN(s, ".", 2)
	bi, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, ErrInvalidFormat
	}
	bi.Mul(bi, pow10(precision))
	if len(parts) == 1 {
		return bi, nil
	}

	if len(parts[1]) > precision {
		return nil, ErrInvalidFormat
	}
	fp, ok := new(big.Int).SetString(parts[1], 10)
	if !ok || fp.Sign() < 0 || strings.HasPrefix(parts[1], "+") {
		return nil, ErrInvalidFormat
	}
	fp.Mul(fp, pow10(precision-len(parts[1])))
	if strings.HasPrefix(parts[0], "-") {
		return bi.Sub(bi, fp), nil
	}
	return bi.Add(bi, fp), nil
}
