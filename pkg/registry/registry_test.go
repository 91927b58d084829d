package registry

import (
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/internal/random"
	"github.com/somnia-names/somns/pkg/config"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/io"
	"github.com/somnia-names/somns/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	day    = 24 * 3600
	period = 365 * day
	t0     = 1_700_000_000
)

var oneUnit = uint256.NewInt(1_000_000_000_000_000_000)

type testClock struct {
	lock sync.Mutex
	now  int64
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return time.Unix(c.now, 0)
}

func (c *testClock) Set(sec int64) {
	c.lock.Lock()
	c.now = sec
	c.lock.Unlock()
}

type testRegistry struct {
	*Registry
	clock *testClock
	admin util.Uint160
	store storage.Store
}

func newTestRegistryWithStore(t *testing.T, st storage.Store) *testRegistry {
	admin := random.Uint160()
	clock := &testClock{now: t0}
	r, err := New(Config{
		RegistryConfiguration: config.RegistryConfiguration{
			Admin:              address.Uint160ToString(admin),
			Price:              "1",
			RegistrationPeriod: period * time.Second,
		},
		CacheSize: 16,
		Now:       clock.Now,
	}, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	return &testRegistry{Registry: r, clock: clock, admin: admin, store: st}
}

func newTestRegistry(t *testing.T) *testRegistry {
	return newTestRegistryWithStore(t, storage.NewMemoryStore())
}

func paid(caller util.Uint160) *interop.Context {
	return interop.NewContext(caller, oneUnit)
}

func unpaid(caller util.Uint160) *interop.Context {
	return interop.NewContext(caller, nil)
}

func TestNew(t *testing.T) {
	t.Run("no logger", func(t *testing.T) {
		_, err := New(Config{}, storage.NewMemoryStore(), nil)
		require.Error(t, err)
	})
	t.Run("zero period", func(t *testing.T) {
		_, err := New(Config{}, storage.NewMemoryStore(), zaptest.NewLogger(t))
		require.Error(t, err)
	})
	t.Run("bad admin", func(t *testing.T) {
		_, err := New(Config{RegistryConfiguration: config.RegistryConfiguration{
			Admin:              "bad",
			RegistrationPeriod: time.Hour,
		}}, storage.NewMemoryStore(), zaptest.NewLogger(t))
		require.Error(t, err)
	})
	t.Run("restore", func(t *testing.T) {
		st := storage.NewMemoryStore()
		r := newTestRegistryWithStore(t, st)
		owner := random.Uint160()
		require.NoError(t, r.Register(paid(owner), "alice", util.Uint160{}, "meta"))

		// Another admin and price in the configuration are ignored for
		// an existing registry.
		r2 := newTestRegistryWithStore(t, st)
		require.Equal(t, r.admin, r2.Admin())
		require.Equal(t, owner, r2.OwnerOf("alice"))
		price, err := r2.Price()
		require.NoError(t, err)
		require.Equal(t, oneUnit, price)
	})
	t.Run("version mismatch", func(t *testing.T) {
		st := storage.NewMemoryStore()
		require.NoError(t, st.PutChangeSet(map[string][]byte{string(storage.SYSVersion.Bytes()): []byte("0.0.1")}))
		_, err := New(Config{RegistryConfiguration: config.RegistryConfiguration{
			Admin:              address.Uint160ToString(random.Uint160()),
			RegistrationPeriod: time.Hour,
		}}, st, zaptest.NewLogger(t))
		require.ErrorContains(t, err, "version mismatch")
	})
}

func TestRegister(t *testing.T) {
	r := newTestRegistry(t)
	owner := random.Uint160()
	resolver := random.Uint160()

	t.Run("insufficient fee", func(t *testing.T) {
		ic := interop.NewContext(owner, new(uint256.Int).Sub(oneUnit, uint256.NewInt(1)))
		require.ErrorIs(t, r.Register(ic, "alice", resolver, "meta"), ErrInsufficientFee)
		require.ErrorIs(t, r.Register(unpaid(owner), "alice", resolver, "meta"), ErrInsufficientFee)
		require.Equal(t, state.Unregistered, r.StatusOf("alice"))
	})
	t.Run("invalid name", func(t *testing.T) {
		require.ErrorIs(t, r.Register(paid(owner), "", resolver, ""), ErrInvalidName)
		long := make([]byte, state.MaxNameLength+1)
		for i := range long {
			long[i] = 'a'
		}
		require.ErrorIs(t, r.Register(paid(owner), string(long), resolver, ""), ErrInvalidName)
	})
	t.Run("zero caller", func(t *testing.T) {
		require.ErrorIs(t, r.Register(paid(util.Uint160{}), "alice", resolver, ""), ErrInvalidAddress)
	})
	t.Run("good", func(t *testing.T) {
		require.NoError(t, r.Register(paid(owner), "alice", resolver, "Alice metadata"))
		require.Equal(t, owner, r.OwnerOf("alice"))
		require.Equal(t, resolver, r.ResolverOf("alice"))
		require.Equal(t, "Alice metadata", r.MetadataOf("alice"))
		require.Equal(t, uint64(t0+period), r.ExpiresAt("alice"))
		require.Equal(t, state.Active, r.StatusOf("alice"))
		require.Equal(t, []string{"alice"}, r.GetNamesOfOwner(owner))
	})
	t.Run("overpayment is retained", func(t *testing.T) {
		ic := interop.NewContext(owner, uint256.NewInt(3_000_000_000_000_000_000))
		require.NoError(t, r.Register(ic, "bob", util.Uint160{}, ""))
		balance, err := r.Balance()
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(4_000_000_000_000_000_000), balance)
		require.Equal(t, []string{"alice", "bob"}, r.GetNamesOfOwner(owner))
	})
	t.Run("already registered", func(t *testing.T) {
		other := random.Uint160()
		require.ErrorIs(t, r.Register(paid(other), "alice", util.Uint160{}, "stolen"), ErrNameAlreadyRegistered)
		require.ErrorIs(t, r.Register(paid(owner), "alice", util.Uint160{}, "again"), ErrNameAlreadyRegistered)
		require.Equal(t, owner, r.OwnerOf("alice"))
		require.Equal(t, "Alice metadata", r.MetadataOf("alice"))

		// Fee is checked first.
		require.ErrorIs(t, r.Register(unpaid(other), "alice", util.Uint160{}, ""), ErrInsufficientFee)

		balance, err := r.Balance()
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(4_000_000_000_000_000_000), balance)
	})
}

func TestExpiredReRegistration(t *testing.T) {
	r := newTestRegistry(t)
	a, b := random.Uint160(), random.Uint160()
	resolver := random.Uint160()
	require.NoError(t, r.Register(paid(a), "alice", resolver, "meta"))

	// Still active at the exact expiration second.
	r.clock.Set(t0 + period)
	require.Equal(t, state.Active, r.StatusOf("alice"))
	require.ErrorIs(t, r.Register(paid(b), "alice", util.Uint160{}, ""), ErrNameAlreadyRegistered)

	r.clock.Set(t0 + period + 1)
	require.Equal(t, state.Expired, r.StatusOf("alice"))
	// Reads are not filtered by expiration.
	require.Equal(t, a, r.OwnerOf("alice"))
	require.Equal(t, resolver, r.ResolverOf("alice"))
	require.Equal(t, "meta", r.MetadataOf("alice"))

	require.NoError(t, r.Register(paid(b), "alice", util.Uint160{}, "new"))
	require.Equal(t, b, r.OwnerOf("alice"))
	require.Equal(t, util.Uint160{}, r.ResolverOf("alice"))
	require.Equal(t, "new", r.MetadataOf("alice"))
	require.Equal(t, uint64(t0+2*period+1), r.ExpiresAt("alice"))
	require.Empty(t, r.GetNamesOfOwner(a))
	require.Equal(t, []string{"alice"}, r.GetNamesOfOwner(b))

	require.ErrorIs(t, r.SetMetadata(unpaid(a), "alice", "old owner"), ErrNotOwner)
}

func TestRenew(t *testing.T) {
	r := newTestRegistry(t)
	a, b := random.Uint160(), random.Uint160()
	require.NoError(t, r.Register(paid(a), "carol", util.Uint160{}, ""))

	require.ErrorIs(t, r.Renew(paid(a), "dave"), ErrNameNotFound)
	require.ErrorIs(t, r.Renew(paid(b), "carol"), ErrNotOwner)
	require.ErrorIs(t, r.Renew(unpaid(a), "carol"), ErrInsufficientFee)
	require.Equal(t, uint64(t0+period), r.ExpiresAt("carol"))

	require.NoError(t, r.Renew(paid(a), "carol"))
	require.NoError(t, r.Renew(paid(a), "carol"))
	require.Equal(t, uint64(t0+3*period), r.ExpiresAt("carol"))

	// Expired names are extended from their previous expiration time.
	r.clock.Set(t0 + 5*period)
	require.Equal(t, state.Expired, r.StatusOf("carol"))
	require.NoError(t, r.Renew(paid(a), "carol"))
	require.Equal(t, uint64(t0+4*period), r.ExpiresAt("carol"))
	require.Equal(t, state.Expired, r.StatusOf("carol"))

	balance, err := r.Balance()
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(4_000_000_000_000_000_000), balance)
}

func TestTransfer(t *testing.T) {
	r := newTestRegistry(t)
	a, b := random.Uint160(), random.Uint160()
	resolver := random.Uint160()
	require.NoError(t, r.Register(paid(a), "dave", resolver, "Dave metadata"))

	require.ErrorIs(t, r.Transfer(unpaid(a), "dave", util.Uint160{}), ErrInvalidAddress)
	require.ErrorIs(t, r.Transfer(unpaid(a), "eve", b), ErrNameNotFound)
	require.ErrorIs(t, r.Transfer(unpaid(b), "dave", b), ErrNotOwner)

	require.NoError(t, r.Transfer(unpaid(a), "dave", b))
	require.Equal(t, b, r.OwnerOf("dave"))
	require.Equal(t, resolver, r.ResolverOf("dave"))
	require.Equal(t, "Dave metadata", r.MetadataOf("dave"))
	require.Equal(t, uint64(t0+period), r.ExpiresAt("dave"))
	require.Empty(t, r.GetNamesOfOwner(a))
	require.Equal(t, []string{"dave"}, r.GetNamesOfOwner(b))

	require.ErrorIs(t, r.Transfer(unpaid(a), "dave", a), ErrNotOwner)
}

func TestSetResolverAndMetadata(t *testing.T) {
	r := newTestRegistry(t)
	a, b := random.Uint160(), random.Uint160()
	require.NoError(t, r.Register(paid(a), "eve", random.Uint160(), "Eve metadata"))
	before, err := r.GetRecord("eve")
	require.NoError(t, err)

	require.ErrorIs(t, r.SetResolver(unpaid(b), "eve", b), ErrNotOwner)
	require.ErrorIs(t, r.SetMetadata(unpaid(b), "eve", "x"), ErrNotOwner)
	require.ErrorIs(t, r.SetResolver(unpaid(a), "frank", b), ErrNameNotFound)
	require.ErrorIs(t, r.SetMetadata(unpaid(a), "frank", "x"), ErrNameNotFound)
	after, err := r.GetRecord("eve")
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.NoError(t, r.SetResolver(unpaid(a), "eve", b))
	require.Equal(t, b, r.ResolverOf("eve"))
	require.NoError(t, r.SetResolver(unpaid(a), "eve", util.Uint160{}))
	require.Equal(t, util.Uint160{}, r.ResolverOf("eve"))

	require.NoError(t, r.SetMetadata(unpaid(a), "eve", "Updated metadata"))
	require.Equal(t, "Updated metadata", r.MetadataOf("eve"))
	require.NoError(t, r.SetMetadata(unpaid(a), "eve", ""))
	require.Equal(t, "", r.MetadataOf("eve"))
}

func TestHugeMetadata(t *testing.T) {
	r := newTestRegistry(t)
	a, b := random.Uint160(), random.Uint160()
	big := strings.Repeat("x", io.MaxArraySize+1)
	require.NoError(t, r.Register(paid(a), "big", util.Uint160{}, "small"))
	require.NoError(t, r.SetMetadata(unpaid(a), "big", big))
	r.cache.Purge()

	require.Equal(t, a, r.OwnerOf("big"))
	require.True(t, r.MetadataOf("big") == big)
	require.NoError(t, r.Transfer(unpaid(a), "big", b))
	require.Equal(t, b, r.OwnerOf("big"))
	require.ErrorIs(t, r.Register(paid(a), "big", util.Uint160{}, ""), ErrNameAlreadyRegistered)
	require.NoError(t, r.SetMetadata(unpaid(b), "big", "small again"))
	require.Equal(t, "small again", r.MetadataOf("big"))
}

func TestReadDefaults(t *testing.T) {
	r := newTestRegistry(t)
	require.Equal(t, util.Uint160{}, r.OwnerOf("nobody"))
	require.Equal(t, util.Uint160{}, r.ResolverOf("nobody"))
	require.Equal(t, uint64(0), r.ExpiresAt("nobody"))
	require.Equal(t, "", r.MetadataOf("nobody"))
	require.Equal(t, state.Unregistered, r.StatusOf("nobody"))
	names := r.GetNamesOfOwner(random.Uint160())
	require.NotNil(t, names)
	require.Empty(t, names)
	_, err := r.GetRecord("nobody")
	require.ErrorIs(t, err, ErrNameNotFound)
}

func TestAdmin(t *testing.T) {
	r := newTestRegistry(t)
	user := random.Uint160()
	to := random.Uint160()

	t.Run("set price", func(t *testing.T) {
		require.ErrorIs(t, r.SetPrice(unpaid(user), uint256.NewInt(5)), ErrNotAdmin)
		require.NoError(t, r.SetPrice(unpaid(r.admin), uint256.NewInt(5)))
		price, err := r.Price()
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(5), price)

		require.ErrorIs(t, r.Register(interop.NewContext(user, uint256.NewInt(4)), "grace", util.Uint160{}, ""), ErrInsufficientFee)
		require.NoError(t, r.Register(interop.NewContext(user, uint256.NewInt(5)), "grace", util.Uint160{}, ""))

		require.NoError(t, r.SetPrice(unpaid(r.admin), new(uint256.Int)))
		require.NoError(t, r.Register(unpaid(user), "free", util.Uint160{}, ""))
	})
	t.Run("withdraw", func(t *testing.T) {
		_, err := r.Withdraw(unpaid(user), to)
		require.ErrorIs(t, err, ErrNotAdmin)
		_, err = r.Withdraw(unpaid(r.admin), util.Uint160{})
		require.ErrorIs(t, err, ErrInvalidAddress)

		amount, err := r.Withdraw(unpaid(r.admin), to)
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(5), amount)

		balance, err := r.Balance()
		require.NoError(t, err)
		require.True(t, balance.IsZero())

		amount, err = r.Withdraw(unpaid(r.admin), to)
		require.NoError(t, err)
		require.True(t, amount.IsZero())
	})
	t.Run("no ownership override", func(t *testing.T) {
		require.ErrorIs(t, r.Transfer(unpaid(r.admin), "grace", r.admin), ErrNotOwner)
	})
}

func TestScenario(t *testing.T) {
	r := newTestRegistry(t)
	a, b := random.Uint160(), random.Uint160()

	require.NoError(t, r.Register(paid(a), "alice", util.Uint160{}, ""))
	require.Equal(t, uint64(t0+365*day), r.ExpiresAt("alice"))

	r.clock.Set(t0 + 10*day)
	require.NoError(t, r.Renew(paid(a), "alice"))
	require.Equal(t, uint64(t0+375*day), r.ExpiresAt("alice"))

	require.NoError(t, r.Transfer(unpaid(a), "alice", b))
	require.Equal(t, b, r.OwnerOf("alice"))
	require.NoError(t, r.SetMetadata(unpaid(b), "alice", "new"))
	require.ErrorIs(t, r.SetMetadata(unpaid(a), "alice", "old"), ErrNotOwner)
	require.Equal(t, "new", r.MetadataOf("alice"))
}

func TestConcurrentRegister(t *testing.T) {
	r := newTestRegistry(t)
	const n = 16
	var (
		wg      sync.WaitGroup
		success = make(chan util.Uint160, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			caller := random.Uint160()
			if r.Register(paid(caller), "contested", util.Uint160{}, "") == nil {
				success <- caller
			}
		}()
	}
	wg.Wait()
	close(success)
	require.Equal(t, 1, len(success))
	winner := <-success
	require.Equal(t, winner, r.OwnerOf("contested"))
}

func TestPersistence(t *testing.T) {
	st := storage.NewMemoryStore()
	r := newTestRegistryWithStore(t, st)
	owner := random.Uint160()
	require.NoError(t, r.Register(paid(owner), "alice", util.Uint160{}, "meta"))
	require.ErrorIs(t, r.SetMetadata(unpaid(random.Uint160()), "alice", "x"), ErrNotOwner)

	// Only committed changes reach the store.
	d := newTestRegistryWithStore(t, st)
	rec, err := d.GetRecord("alice")
	require.NoError(t, err)
	require.Equal(t, &state.NameRecord{
		Name:      "alice",
		Owner:     owner,
		ExpiresAt: t0 + period,
		Metadata:  "meta",
	}, rec)
}

func TestGetStats(t *testing.T) {
	r := newTestRegistry(t)
	owner := random.Uint160()
	require.NoError(t, r.Register(paid(owner), "a", util.Uint160{}, ""))
	r.clock.Set(t0 + 10)
	require.NoError(t, r.Register(paid(owner), "b", util.Uint160{}, ""))
	r.clock.Set(t0 + period + 5)

	s, err := r.GetStats()
	require.NoError(t, err)
	require.Equal(t, 1, s.Active)
	require.Equal(t, 1, s.Expired)
	require.Equal(t, uint256.NewInt(2_000_000_000_000_000_000), s.Balance)
	require.Equal(t, oneUnit, s.Price)
}

func TestGetRecordIsCopy(t *testing.T) {
	r := newTestRegistry(t)
	owner := random.Uint160()
	require.NoError(t, r.Register(paid(owner), "alice", util.Uint160{}, "meta"))
	rec, err := r.GetRecord("alice")
	require.NoError(t, err)
	rec.Metadata = "changed"
	require.Equal(t, "meta", r.MetadataOf("alice"))
}

func TestForEachRecord(t *testing.T) {
	r := newTestRegistry(t)
	owner := random.Uint160()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(paid(owner), name, util.Uint160{}, name))
	}
	var names []string
	require.NoError(t, r.ForEachRecord(func(rec *state.NameRecord) bool {
		names = append(names, rec.Name)
		require.Equal(t, rec.Name, rec.Metadata)
		return len(names) < 2
	}))
	require.Equal(t, []string{"a", "b"}, names)
}

func TestEvents(t *testing.T) {
	r := newTestRegistry(t)
	ch := make(chan Event, 8)
	r.SubscribeForEvents(ch)
	a, b := random.Uint160(), random.Uint160()

	require.NoError(t, r.Register(paid(a), "alice", util.Uint160{}, "meta"))
	require.ErrorIs(t, r.Transfer(unpaid(b), "alice", b), ErrNotOwner)
	require.NoError(t, r.Transfer(unpaid(a), "alice", b))
	_, err := r.Withdraw(unpaid(r.admin), a)
	require.NoError(t, err)

	receive := func() Event {
		select {
		case ev := <-ch:
			return ev
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no event")
		}
		return Event{}
	}
	ev := receive()
	require.Equal(t, EventRegister, ev.Type)
	require.Equal(t, "alice", ev.Name)
	require.Equal(t, a, ev.Caller)
	require.Equal(t, a, ev.Owner)
	require.Equal(t, "meta", ev.Metadata)
	require.Equal(t, uint64(t0+period), ev.ExpiresAt)
	require.Equal(t, uint64(t0), ev.Time)
	require.Equal(t, oneUnit, ev.Amount)

	ev = receive()
	require.Equal(t, EventTransfer, ev.Type)
	require.Equal(t, a, ev.Caller)
	require.Equal(t, b, ev.Owner)
	require.Nil(t, ev.Amount)

	ev = receive()
	require.Equal(t, EventWithdraw, ev.Type)
	require.Equal(t, a, ev.Owner)
	require.Equal(t, oneUnit, ev.Amount)

	r.UnsubscribeFromEvents(ch)
	require.NoError(t, r.SetMetadata(unpaid(b), "alice", "x"))
	require.NoError(t, r.Close())
	require.Equal(t, 0, len(ch))
}

func TestEventsStalledReceiver(t *testing.T) {
	const calls = 200
	r := newTestRegistry(t)
	ch := make(chan Event)
	r.SubscribeForEvents(ch)
	a := random.Uint160()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if err := r.Register(paid(a), "slow", util.Uint160{}, ""); err != nil {
			return
		}
		for i := 0; i < calls; i++ {
			if err := r.SetMetadata(unpaid(a), "slow", strconv.Itoa(i)); err != nil {
				return
			}
		}
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "registry is blocked by the receiver")
	}
	require.Equal(t, strconv.Itoa(calls-1), r.MetadataOf("slow"))

	// Nothing is lost and the order is kept.
	require.Equal(t, EventRegister, (<-ch).Type)
	for i := 0; i < calls; i++ {
		ev := <-ch
		require.Equal(t, EventSetMetadata, ev.Type)
		require.Equal(t, strconv.Itoa(i), ev.Metadata)
	}
	r.UnsubscribeFromEvents(ch)
}
