package state

import (
	"math"

	"github.com/somnia-names/somns/pkg/io"
	"github.com/somnia-names/somns/pkg/util"
)

// MaxNameLength is the maximum length of a registered name in bytes.
const MaxNameLength = 255

// MaxMetadataLength is the decoding limit for metadata. Metadata length is
// not restricted by the registry, so any stored value must be readable.
const MaxMetadataLength = math.MaxInt32

// NameStatus is a lifecycle classification of a name at some point in time.
type NameStatus byte

// Name statuses. Expired is derived from the expiration time and never
// stored, an expired record stays in the storage until it's overwritten.
const (
	Unregistered NameStatus = iota
	Active
	Expired
)

// String implements the fmt.Stringer interface.
func (s NameStatus) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// NameRecord represents the ownership record of a registered name.
type NameRecord struct {
	Name      string
	Owner     util.Uint160
	Resolver  util.Uint160
	ExpiresAt uint64
	Metadata  string
}

// IsExpired returns true if the record is expired at the given time (in
// seconds). The record is still active at the exact expiration second.
func (r *NameRecord) IsExpired(now uint64) bool {
	return now > r.ExpiresAt
}

// Status returns the lifecycle status of the record at the given time.
// Nil record is Unregistered.
func (r *NameRecord) Status(now uint64) NameStatus {
	if r == nil {
		return Unregistered
	}
	if r.IsExpired(now) {
		return Expired
	}
	return Active
}

// Copy returns a copy of the record.
func (r *NameRecord) Copy() *NameRecord {
	cp := *r
	return &cp
}

// EncodeBinary implements the io.Serializable interface.
func (r *NameRecord) EncodeBinary(w *io.BinWriter) {
	w.WriteString(r.Name)
	r.Owner.EncodeBinary(w)
	r.Resolver.EncodeBinary(w)
	w.WriteU64LE(r.ExpiresAt)
	w.WriteString(r.Metadata)
}

// DecodeBinary implements the io.Serializable interface.
func (r *NameRecord) DecodeBinary(br *io.BinReader) {
	r.Name = br.ReadString(MaxNameLength)
	r.Owner.DecodeBinary(br)
	r.Resolver.DecodeBinary(br)
	r.ExpiresAt = br.ReadU64LE()
	r.Metadata = br.ReadString(MaxMetadataLength)
}
