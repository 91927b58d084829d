/*
Package registry implements the name registry. It owns name records, enforces
the registration fee, expiration and ownership rules for mutating operations
and exposes read accessors for name resolution.

Every mutating operation is executed under a single registry-wide lock and
commits all of its changes in one storage changeset, so it either completely
succeeds or leaves no trace.
*/
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/pkg/config"
	"github.com/somnia-names/somns/pkg/core/dao"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/crypto/hash"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/encoding/fixedn"
	"github.com/somnia-names/somns/pkg/util"
	"go.uber.org/zap"
)

// storageVersion is the version of the registry storage schema.
const storageVersion = "0.1.0"

// Hash is the identifier of the registry contract.
var Hash = hash.Hash160([]byte("SomRegistry"))

// Config contains registry parameters.
type Config struct {
	config.RegistryConfiguration
	// CacheSize is the number of records kept in memory.
	CacheSize int
	// Now returns the current ledger time, time.Now is used if not set.
	Now func() time.Time
}

// Registry is the name registry.
type Registry struct {
	lock sync.RWMutex

	store  storage.Store
	dao    *dao.Simple
	cache  *lru.Cache
	log    *zap.Logger
	now    func() time.Time
	period uint64
	admin  util.Uint160

	// pending contains events of the current call, it's protected by lock.
	pending []Event
	events  *eventDispatcher
}

// New creates a registry over the given store. A fresh store is initialized
// with the configured admin and price, an already initialized one keeps its
// admin and price.
func New(cfg Config, st storage.Store, log *zap.Logger) (*Registry, error) {
	if log == nil {
		return nil, errors.New("empty logger")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = config.DefaultCacheSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	period := cfg.PeriodSeconds()
	if period == 0 {
		return nil, errors.New("zero registration period")
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	r := &Registry{
		store:  st,
		dao:    dao.NewSimple(st),
		cache:  cache,
		log:    log.With(zap.String("service", "registry")),
		now:    cfg.Now,
		period: period,
		events: newEventDispatcher(),
	}
	err = r.init(cfg.RegistryConfiguration)
	if err != nil {
		r.events.close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) init(cfg config.RegistryConfiguration) error {
	ver, err := r.dao.GetVersion()
	if err == nil {
		if ver != storageVersion {
			return fmt.Errorf("storage version mismatch (expected=%s, actual=%s)", storageVersion, ver)
		}
		r.admin, err = r.dao.GetAdmin()
		if err != nil {
			return fmt.Errorf("failed to get admin: %w", err)
		}
		if cfg.Admin != "" {
			if confAdmin, err := cfg.AdminAccount(); err == nil && !confAdmin.Equals(r.admin) {
				r.log.Warn("configured admin differs from the stored one, using stored",
					zap.String("stored", address.Uint160ToString(r.admin)),
					zap.String("configured", address.Uint160ToString(confAdmin)))
			}
		}
		r.log.Info("restored registry from storage", zap.String("admin", address.Uint160ToString(r.admin)))
		return nil
	}
	if !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("failed to get storage version: %w", err)
	}

	admin, err := cfg.AdminAccount()
	if err != nil {
		return fmt.Errorf("invalid admin: %w", err)
	}
	price, err := cfg.InitialPrice()
	if err != nil {
		return fmt.Errorf("invalid price: %w", err)
	}
	d := dao.NewSimple(r.store)
	d.PutVersion(storageVersion)
	d.PutAdmin(admin)
	d.PutPrice(price)
	if _, err = d.Persist(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	r.admin = admin
	r.log.Info("initialized new registry",
		zap.String("admin", address.Uint160ToString(admin)),
		zap.String("price", fixedn.AmountToString(price)),
		zap.Uint64("period", r.period))
	return nil
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events.close()
	r.cache.Purge()
	return r.store.Close()
}

// Period returns the registration period in seconds.
func (r *Registry) Period() uint64 {
	return r.period
}

// Admin returns the admin account.
func (r *Registry) Admin() util.Uint160 {
	return r.admin
}

func (r *Registry) currentTime() uint64 {
	return uint64(r.now().Unix())
}

// invoke runs a mutating operation f for the given name. All changes made by
// f are committed only if it succeeds.
func (r *Registry) invoke(method string, name string, f func(d *dao.Simple, now uint64) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	var (
		d   = dao.NewSimple(r.store)
		now = r.currentTime()
	)
	err := f(d, now)
	if err == nil {
		_, err = d.Persist()
		if err != nil {
			err = fmt.Errorf("failed to persist changes: %w", err)
		}
	}
	if name != "" {
		r.cache.Remove(name)
	}
	if err == nil {
		for i := range r.pending {
			r.pending[i].Time = now
			r.events.send(r.pending[i])
		}
	}
	r.pending = r.pending[:0]
	updateInvocationMetric(method, err)
	if err != nil {
		r.log.Debug("call failed", zap.String("method", method), zap.String("name", name), zap.Error(err))
	}
	return err
}

// getRecord returns a record that must not be modified by the caller, it's
// supposed to be called with lock held (read lock is enough).
func (r *Registry) getRecord(d *dao.Simple, name string) (*state.NameRecord, error) {
	if v, ok := r.cache.Get(name); ok {
		return v.(*state.NameRecord), nil
	}
	rec, err := d.GetNameRecord(name)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrNameNotFound
		}
		return nil, err
	}
	r.cache.Add(name, rec)
	return rec, nil
}

// getOwnedRecord returns a copy of the record if it's owned by the caller.
func (r *Registry) getOwnedRecord(ic *interop.Context, d *dao.Simple, name string) (*state.NameRecord, error) {
	rec, err := r.getRecord(d, name)
	if err != nil {
		return nil, err
	}
	if !rec.Owner.Equals(ic.Caller) {
		return nil, ErrNotOwner
	}
	return rec.Copy(), nil
}

func checkName(name string) error {
	if len(name) == 0 || len(name) > state.MaxNameLength {
		return fmt.Errorf("%w: length %d", ErrInvalidName, len(name))
	}
	return nil
}

// collectFee checks the attached payment against the current price and
// adds it to the balance.
func collectFee(ic *interop.Context, d *dao.Simple) error {
	price, err := d.GetPrice()
	if err != nil {
		return err
	}
	paid := ic.PaidValue()
	if paid.Lt(price) {
		return fmt.Errorf("%w: %s < %s", ErrInsufficientFee, fixedn.AmountToString(paid), fixedn.AmountToString(price))
	}
	balance, err := d.GetBalance()
	if err != nil {
		return err
	}
	sum := new(uint256.Int).Add(balance, paid)
	if sum.Lt(balance) {
		return fmt.Errorf("%w: balance", ErrOverflow)
	}
	d.PutBalance(sum)
	return nil
}

func (r *Registry) extend(expiresAt uint64) (uint64, error) {
	res := expiresAt + r.period
	if res < expiresAt {
		return 0, fmt.Errorf("%w: expiration time", ErrOverflow)
	}
	return res, nil
}

// Register registers the name for the caller with the given resolver and
// metadata. Zero resolver means no resolver. The attached payment must cover
// the current price and is retained in full. Expired names can be registered
// again by anyone, the previous record is overwritten then.
func (r *Registry) Register(ic *interop.Context, name string, resolver util.Uint160, metadata string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if ic.Caller.IsZero() {
		return ErrInvalidAddress
	}
	return r.invoke("register", name, func(d *dao.Simple, now uint64) error {
		if err := collectFee(ic, d); err != nil {
			return err
		}
		old, err := r.getRecord(d, name)
		if err != nil && !errors.Is(err, ErrNameNotFound) {
			return err
		}
		if old != nil && !old.IsExpired(now) {
			return fmt.Errorf("%w: %s", ErrNameAlreadyRegistered, name)
		}
		expiresAt, err := r.extend(now)
		if err != nil {
			return err
		}
		if old != nil {
			d.DeleteOwnerIndex(old.Owner, name)
		}
		rec := &state.NameRecord{
			Name:      name,
			Owner:     ic.Caller,
			Resolver:  resolver,
			ExpiresAt: expiresAt,
			Metadata:  metadata,
		}
		if err := d.PutNameRecord(rec); err != nil {
			return err
		}
		d.PutOwnerIndex(ic.Caller, name)
		r.emit(EventRegister, ic, rec, ic.PaidValue())
		r.log.Info("name registered",
			zap.String("name", name),
			zap.String("owner", address.Uint160ToString(ic.Caller)),
			zap.Uint64("expiresAt", expiresAt),
			zap.Bool("reclaimed", old != nil))
		return nil
	})
}

// Renew extends the expiration time of the name by the registration period.
// Time left before the expiration is kept, expired names can be renewed by
// their owner too.
func (r *Registry) Renew(ic *interop.Context, name string) error {
	return r.invoke("renew", name, func(d *dao.Simple, _ uint64) error {
		rec, err := r.getOwnedRecord(ic, d, name)
		if err != nil {
			return err
		}
		if err := collectFee(ic, d); err != nil {
			return err
		}
		rec.ExpiresAt, err = r.extend(rec.ExpiresAt)
		if err != nil {
			return err
		}
		r.log.Debug("name renewed", zap.String("name", name), zap.Uint64("expiresAt", rec.ExpiresAt))
		r.emit(EventRenew, ic, rec, ic.PaidValue())
		return d.PutNameRecord(rec)
	})
}

// Transfer makes newOwner the owner of the name. Resolver and metadata are
// left unchanged.
func (r *Registry) Transfer(ic *interop.Context, name string, newOwner util.Uint160) error {
	if newOwner.IsZero() {
		return ErrInvalidAddress
	}
	return r.invoke("transfer", name, func(d *dao.Simple, _ uint64) error {
		rec, err := r.getOwnedRecord(ic, d, name)
		if err != nil {
			return err
		}
		d.DeleteOwnerIndex(rec.Owner, name)
		d.PutOwnerIndex(newOwner, name)
		rec.Owner = newOwner
		r.emit(EventTransfer, ic, rec, nil)
		r.log.Info("name transferred",
			zap.String("name", name),
			zap.String("from", address.Uint160ToString(ic.Caller)),
			zap.String("to", address.Uint160ToString(newOwner)))
		return d.PutNameRecord(rec)
	})
}

// SetResolver replaces the resolver of the name. The resolver is not checked
// in any way, zero value unsets it.
func (r *Registry) SetResolver(ic *interop.Context, name string, resolver util.Uint160) error {
	return r.invoke("setResolver", name, func(d *dao.Simple, _ uint64) error {
		rec, err := r.getOwnedRecord(ic, d, name)
		if err != nil {
			return err
		}
		rec.Resolver = resolver
		r.emit(EventSetResolver, ic, rec, nil)
		return d.PutNameRecord(rec)
	})
}

// SetMetadata replaces the metadata of the name.
func (r *Registry) SetMetadata(ic *interop.Context, name string, metadata string) error {
	return r.invoke("setMetadata", name, func(d *dao.Simple, _ uint64) error {
		rec, err := r.getOwnedRecord(ic, d, name)
		if err != nil {
			return err
		}
		rec.Metadata = metadata
		r.emit(EventSetMetadata, ic, rec, nil)
		return d.PutNameRecord(rec)
	})
}

// SetPrice sets the fee for all subsequent registrations and renewals.
func (r *Registry) SetPrice(ic *interop.Context, price *uint256.Int) error {
	if price == nil {
		return errors.New("nil price")
	}
	return r.invoke("setPrice", "", func(d *dao.Simple, _ uint64) error {
		if !ic.Caller.Equals(r.admin) {
			return ErrNotAdmin
		}
		d.PutPrice(price)
		r.emit(EventSetPrice, ic, nil, price)
		r.log.Info("price changed", zap.String("price", fixedn.AmountToString(price)))
		return nil
	})
}

// Withdraw moves the whole accumulated balance to the given account and
// returns the amount withdrawn. Withdrawing zero balance is not an error.
func (r *Registry) Withdraw(ic *interop.Context, to util.Uint160) (*uint256.Int, error) {
	var amount *uint256.Int
	err := r.invoke("withdraw", "", func(d *dao.Simple, _ uint64) error {
		if !ic.Caller.Equals(r.admin) {
			return ErrNotAdmin
		}
		if to.IsZero() {
			return ErrInvalidAddress
		}
		var err error
		amount, err = d.GetBalance()
		if err != nil {
			return err
		}
		d.PutBalance(new(uint256.Int))
		r.emit(EventWithdraw, ic, &state.NameRecord{Owner: to}, amount)
		r.log.Info("balance withdrawn",
			zap.String("to", address.Uint160ToString(to)),
			zap.String("amount", fixedn.AmountToString(amount)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// view runs a read-only function over the committed registry state.
func (r *Registry) view(f func(d *dao.Simple) error) error {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return f(dao.NewSimple(r.store))
}

// GetRecord returns a copy of the record of the name, ErrNameNotFound is
// returned for unregistered names.
func (r *Registry) GetRecord(name string) (*state.NameRecord, error) {
	var rec *state.NameRecord
	err := r.view(func(d *dao.Simple) error {
		cached, err := r.getRecord(d, name)
		if err != nil {
			return err
		}
		rec = cached.Copy()
		return nil
	})
	return rec, err
}

// lookup returns the record or nil for unregistered names and names that
// can't be read.
func (r *Registry) lookup(name string) *state.NameRecord {
	rec, err := r.GetRecord(name)
	if err != nil {
		if !errors.Is(err, ErrNameNotFound) {
			r.log.Error("failed to read name record", zap.String("name", name), zap.Error(err))
		}
		return nil
	}
	return rec
}

// OwnerOf returns the owner of the name, zero for unregistered names.
// Expired names still have an owner.
func (r *Registry) OwnerOf(name string) util.Uint160 {
	if rec := r.lookup(name); rec != nil {
		return rec.Owner
	}
	return util.Uint160{}
}

// ResolverOf returns the resolver of the name, zero for unregistered names.
func (r *Registry) ResolverOf(name string) util.Uint160 {
	if rec := r.lookup(name); rec != nil {
		return rec.Resolver
	}
	return util.Uint160{}
}

// ExpiresAt returns the expiration time of the name in seconds, zero for
// unregistered names.
func (r *Registry) ExpiresAt(name string) uint64 {
	if rec := r.lookup(name); rec != nil {
		return rec.ExpiresAt
	}
	return 0
}

// MetadataOf returns the metadata of the name, empty string for
// unregistered names.
func (r *Registry) MetadataOf(name string) string {
	if rec := r.lookup(name); rec != nil {
		return rec.Metadata
	}
	return ""
}

// StatusOf returns the lifecycle status of the name at the current time.
func (r *Registry) StatusOf(name string) state.NameStatus {
	return r.lookup(name).Status(r.currentTime())
}

// GetNamesOfOwner returns the names owned by the account in ascending
// order, expired ones included. Empty slice is returned for accounts owning
// nothing.
func (r *Registry) GetNamesOfOwner(owner util.Uint160) []string {
	var names []string
	_ = r.view(func(d *dao.Simple) error {
		names = d.GetNamesOf(owner)
		return nil
	})
	return names
}

// Price returns the current registration fee.
func (r *Registry) Price() (*uint256.Int, error) {
	var price *uint256.Int
	err := r.view(func(d *dao.Simple) error {
		var err error
		price, err = d.GetPrice()
		return err
	})
	return price, err
}

// Balance returns the accumulated fee balance.
func (r *Registry) Balance() (*uint256.Int, error) {
	var balance *uint256.Int
	err := r.view(func(d *dao.Simple) error {
		var err error
		balance, err = d.GetBalance()
		return err
	})
	return balance, err
}

// ForEachRecord calls f for every stored record (expired ones included) in
// the order of names until f returns false.
func (r *Registry) ForEachRecord(f func(*state.NameRecord) bool) error {
	return r.view(func(d *dao.Simple) error {
		return d.SeekNameRecords(f)
	})
}

// Stats contains the summary of the registry state.
type Stats struct {
	Active  int
	Expired int
	Balance *uint256.Int
	Price   *uint256.Int
}

// GetStats traverses all records and returns the registry summary. It also
// updates the corresponding metrics.
func (r *Registry) GetStats() (Stats, error) {
	var s Stats
	now := r.currentTime()
	err := r.view(func(d *dao.Simple) error {
		err := d.SeekNameRecords(func(rec *state.NameRecord) bool {
			if rec.IsExpired(now) {
				s.Expired++
			} else {
				s.Active++
			}
			return true
		})
		if err != nil {
			return err
		}
		s.Balance, err = d.GetBalance()
		if err != nil {
			return err
		}
		s.Price, err = d.GetPrice()
		return err
	})
	if err != nil {
		return Stats{}, err
	}
	updateStatsMetrics(s)
	return s, nil
}
