/*
Package resolver implements the address table that maps names to the
addresses they resolve to. Entries are managed by the name owners known to
the registry, the registry itself only refers to the resolver by its hash.
*/
package resolver

import (
	"errors"
	"sync"

	"github.com/somnia-names/somns/pkg/core/dao"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/crypto/hash"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/util"
	"go.uber.org/zap"
)

// Hash is the identifier of the resolver contract, it's the value to be
// used as a name resolver in the registry.
var Hash = hash.Hash160([]byte("SomResolver"))

// ErrNotOwner is returned when the caller doesn't own the name in the
// registry.
var ErrNotOwner = errors.New("not owner")

// Owners is the part of the registry the resolver needs.
type Owners interface {
	OwnerOf(name string) util.Uint160
	ResolverOf(name string) util.Uint160
}

// Resolver is the name address table.
type Resolver struct {
	lock   sync.RWMutex
	store  storage.Store
	owners Owners
	log    *zap.Logger
}

// New returns a resolver over the given store.
func New(st storage.Store, owners Owners, log *zap.Logger) (*Resolver, error) {
	if owners == nil {
		return nil, errors.New("no registry")
	}
	if log == nil {
		return nil, errors.New("empty logger")
	}
	return &Resolver{
		store:  st,
		owners: owners,
		log:    log.With(zap.String("service", "resolver")),
	}, nil
}

// SetAddr sets the address the name resolves to, zero address removes the
// entry. Only the current owner of the name can do that, expired names can
// still be managed by their owner.
func (r *Resolver) SetAddr(ic *interop.Context, name string, addr util.Uint160) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	owner := r.owners.OwnerOf(name)
	if owner.IsZero() || !owner.Equals(ic.Caller) {
		return ErrNotOwner
	}
	d := dao.NewSimple(r.store)
	if addr.IsZero() {
		d.DeleteResolvedAddr(name)
	} else {
		d.PutResolvedAddr(name, addr)
	}
	_, err := d.Persist()
	if err != nil {
		return err
	}
	r.log.Debug("address set", zap.String("name", name), zap.String("addr", address.Uint160ToString(addr)))
	return nil
}

// Addr returns the address stored for the name, zero if there is none.
func (r *Resolver) Addr(name string) util.Uint160 {
	r.lock.RLock()
	defer r.lock.RUnlock()

	u, err := dao.NewSimple(r.store).GetResolvedAddr(name)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			r.log.Error("failed to get address", zap.String("name", name), zap.Error(err))
		}
		return util.Uint160{}
	}
	return u
}

// Resolve returns the address of the name if the registry refers to this
// resolver for it. Zero address is returned otherwise.
func (r *Resolver) Resolve(name string) util.Uint160 {
	if !r.owners.ResolverOf(name).Equals(Hash) {
		return util.Uint160{}
	}
	return r.Addr(name)
}
