/*
Package hash contains wrappers for the hashing algorithms used to derive
account and contract identifiers and address checksums.
*/
package hash

import (
	"crypto/sha256"

	"github.com/somnia-names/somns/pkg/util"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

// Sha256 hashes the incoming byte slice using the sha256 algorithm.
func Sha256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// DoubleSha256 performs sha256 twice on the given data.
func DoubleSha256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}

// RipeMD160 performs the RIPEMD160 hash algorithm on the given data.
func RipeMD160(data []byte) util.Uint160 {
	var hash util.Uint160
	hasher := ripemd160.New()
	_, _ = hasher.Write(data)

	hasher.Sum(hash[:0])
	return hash
}

// Hash160 performs sha256 and then ripemd160 on the given data.
func Hash160(data []byte) util.Uint160 {
	return RipeMD160(Sha256(data))
}

// Checksum returns the checksum for a given piece of data
// using DoubleSha256 as the hash algorithm. It returns the
// first 4 bytes of the resulting slice.
func Checksum(data []byte) []byte {
	return DoubleSha256(data)[:4]
}
