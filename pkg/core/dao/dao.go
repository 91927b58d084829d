/*
Package dao provides a data access object for the registry storage. It
encodes registry entities into a key-value storage.Store and groups all
changes made by a single operation into one atomic changeset.
*/
package dao

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/io"
	"github.com/somnia-names/somns/pkg/util"
)

// ErrInvalidAmount is returned on an attempt to decode a malformed stored fee
// amount.
var ErrInvalidAmount = errors.New("invalid stored amount")

// indexMark is a value stored for the owner index entries.
var indexMark = []byte{1}

// Simple is memCached wrapper around DB, simple DAO implementation.
type Simple struct {
	Store *storage.MemCachedStore
}

// NewSimple creates a new simple dao using the provided backend store.
func NewSimple(backend storage.Store) *Simple {
	return &Simple{Store: storage.NewMemCachedStore(backend)}
}

// GetPrivate returns a new DAO instance with another layer of private
// MemCachedStore around the current DAO Store. Changes made to the private
// DAO are only visible to the lower one after Persist.
func (dao *Simple) GetPrivate() *Simple {
	return NewSimple(dao.Store)
}

// Persist flushes all the changes made into the lower layer. It's atomic
// with respect to readers of the lower layer.
func (dao *Simple) Persist() (int, error) {
	return dao.Store.Persist()
}

// GetAndDecode performs get operation and decoding with serializable structures.
func (dao *Simple) GetAndDecode(entity io.Serializable, key []byte) error {
	entityBytes, err := dao.Store.Get(key)
	if err != nil {
		return err
	}
	reader := io.NewBinReaderFromBuf(entityBytes)
	entity.DecodeBinary(reader)
	return reader.Err
}

// putWithBuffer performs put operation using buf as a pre-allocated buffer for serialization.
func (dao *Simple) putWithBuffer(entity io.Serializable, key []byte, buf *io.BufBinWriter) error {
	entity.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		return buf.Err
	}
	dao.Store.Put(key, buf.Bytes())
	return nil
}

// -- start name records.

func makeNameKey(name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = byte(storage.STNameRecord)
	copy(key[1:], name)
	return key
}

func makeOwnerIndexKey(owner util.Uint160, name string) []byte {
	key := make([]byte, 1+util.Uint160Size+len(name))
	key[0] = byte(storage.STOwnerIndex)
	copy(key[1:], owner.BytesBE())
	copy(key[1+util.Uint160Size:], name)
	return key
}

// GetNameRecord returns the record of the given name. storage.ErrKeyNotFound
// is returned for unknown names.
func (dao *Simple) GetNameRecord(name string) (*state.NameRecord, error) {
	r := new(state.NameRecord)
	err := dao.GetAndDecode(r, makeNameKey(name))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PutNameRecord stores the given record under its name.
func (dao *Simple) PutNameRecord(r *state.NameRecord) error {
	return dao.putWithBuffer(r, makeNameKey(r.Name), io.NewBufBinWriter())
}

// SeekNameRecords iterates over all stored records in the order of names
// until f returns false.
func (dao *Simple) SeekNameRecords(f func(r *state.NameRecord) bool) error {
	var err error
	dao.Store.Seek(storage.SeekRange{Prefix: storage.STNameRecord.Bytes()}, func(k, v []byte) bool {
		r := new(state.NameRecord)
		br := io.NewBinReaderFromBuf(v)
		r.DecodeBinary(br)
		if br.Err != nil {
			err = fmt.Errorf("bad record for %q: %w", k[1:], br.Err)
			return false
		}
		return f(r)
	})
	return err
}

// PutOwnerIndex marks the name as owned by the given account.
func (dao *Simple) PutOwnerIndex(owner util.Uint160, name string) {
	dao.Store.Put(makeOwnerIndexKey(owner, name), indexMark)
}

// DeleteOwnerIndex removes the name from the set of names owned by the
// given account.
func (dao *Simple) DeleteOwnerIndex(owner util.Uint160, name string) {
	dao.Store.Delete(makeOwnerIndexKey(owner, name))
}

// GetNamesOf returns names owned by the given account sorted in ascending
// order. It never returns nil.
func (dao *Simple) GetNamesOf(owner util.Uint160) []string {
	var (
		prefix = makeOwnerIndexKey(owner, "")
		names  = []string{}
	)
	dao.Store.Seek(storage.SeekRange{Prefix: prefix}, func(k, _ []byte) bool {
		names = append(names, string(k[len(prefix):]))
		return true
	})
	return names
}

// -- end name records.

// -- start resolver.

func makeResolverKey(name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = byte(storage.STResolverAddr)
	copy(key[1:], name)
	return key
}

// GetResolvedAddr returns the address the name resolves to.
// storage.ErrKeyNotFound is returned if there is none.
func (dao *Simple) GetResolvedAddr(name string) (util.Uint160, error) {
	var u util.Uint160
	err := dao.GetAndDecode(&u, makeResolverKey(name))
	return u, err
}

// PutResolvedAddr sets the address the name resolves to.
func (dao *Simple) PutResolvedAddr(name string, addr util.Uint160) {
	dao.Store.Put(makeResolverKey(name), addr.BytesBE())
}

// DeleteResolvedAddr drops the address entry of the name.
func (dao *Simple) DeleteResolvedAddr(name string) {
	dao.Store.Delete(makeResolverKey(name))
}

// -- end resolver.

// -- other.

func (dao *Simple) getAmount(key storage.KeyPrefix) (*uint256.Int, error) {
	b, err := dao.Store.Get(key.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAmount, len(b))
	}
	return new(uint256.Int).SetBytes32(b), nil
}

func (dao *Simple) putAmount(key storage.KeyPrefix, v *uint256.Int) {
	b := v.Bytes32()
	dao.Store.Put(key.Bytes(), b[:])
}

// GetPrice returns the current registration fee, zero if not set.
func (dao *Simple) GetPrice() (*uint256.Int, error) {
	return dao.getAmount(storage.SYSPrice)
}

// PutPrice stores the registration fee.
func (dao *Simple) PutPrice(v *uint256.Int) {
	dao.putAmount(storage.SYSPrice, v)
}

// GetBalance returns the accumulated fee balance, zero if not set.
func (dao *Simple) GetBalance() (*uint256.Int, error) {
	return dao.getAmount(storage.SYSBalance)
}

// PutBalance stores the accumulated fee balance.
func (dao *Simple) PutBalance(v *uint256.Int) {
	dao.putAmount(storage.SYSBalance, v)
}

// GetAdmin returns the stored admin account. storage.ErrKeyNotFound is
// returned if it was never set.
func (dao *Simple) GetAdmin() (util.Uint160, error) {
	var u util.Uint160
	err := dao.GetAndDecode(&u, storage.SYSAdmin.Bytes())
	return u, err
}

// PutAdmin stores the admin account.
func (dao *Simple) PutAdmin(u util.Uint160) {
	dao.Store.Put(storage.SYSAdmin.Bytes(), u.BytesBE())
}

// GetVersion attempts to get the current version stored in the
// underlying store.
func (dao *Simple) GetVersion() (string, error) {
	version, err := dao.Store.Get(storage.SYSVersion.Bytes())
	if err != nil {
		return "", err
	}
	return string(version), nil
}

// PutVersion stores the given version in the underlying store.
func (dao *Simple) PutVersion(v string) {
	dao.Store.Put(storage.SYSVersion.Bytes(), []byte(v))
}
