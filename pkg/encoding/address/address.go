/*
Package address implements conversion of account identifiers to/from
human-readable base58check addresses.
*/
package address

import (
	"errors"

	"github.com/somnia-names/somns/pkg/encoding/base58"
	"github.com/somnia-names/somns/pkg/util"
)

// DefaultPrefix is the first byte of an address, it makes all addresses
// start with 'N'.
const DefaultPrefix byte = 0x35

// Prefix is the byte used to prepend to addresses when encoding them, it can
// be changed and defaults to DefaultPrefix.
var Prefix = DefaultPrefix

// Uint160ToString returns the address from the given Uint160.
func Uint160ToString(u util.Uint160) string {
	b := append([]byte{Prefix}, u.BytesBE()...)
	return base58.CheckEncode(b)
}

// StringToUint160 attempts to decode the given address string
// into a Uint160.
func StringToUint160(s string) (u util.Uint160, err error) {
	b, err := base58.CheckDecode(s)
	if err != nil {
		return u, err
	}
	if len(b) != util.Uint160Size+1 {
		return u, errors.New("invalid address length")
	}
	if b[0] != Prefix {
		return u, errors.New("wrong address prefix")
	}
	return util.Uint160DecodeBytesBE(b[1:21])
}

// ParseAccount parses an account identifier given either as an address or as
// a 0x-prefixed little-endian hex string.
func ParseAccount(s string) (util.Uint160, error) {
	if len(s) == 2+2*util.Uint160Size && (s[:2] == "0x" || s[:2] == "0X") {
		return util.Uint160DecodeStringLE(s[2:])
	}
	return StringToUint160(s)
}
