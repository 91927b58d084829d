package dao

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/internal/random"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/stretchr/testify/require"
)

func TestPutGetNameRecord(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())
	r := &state.NameRecord{
		Name:      "alice",
		Owner:     random.Uint160(),
		ExpiresAt: 42,
		Metadata:  "meta",
	}
	require.NoError(t, dao.PutNameRecord(r))

	actual, err := dao.GetNameRecord("alice")
	require.NoError(t, err)
	require.Equal(t, r, actual)

	_, err = dao.GetNameRecord("bob")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestPrivatePersist(t *testing.T) {
	base := NewSimple(storage.NewMemoryStore())
	priv := base.GetPrivate()
	r := &state.NameRecord{Name: "alice", Owner: random.Uint160(), ExpiresAt: 1}
	require.NoError(t, priv.PutNameRecord(r))
	priv.PutOwnerIndex(r.Owner, r.Name)

	_, err := base.GetNameRecord("alice")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
	require.Empty(t, base.GetNamesOf(r.Owner))

	n, err := priv.Persist()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	actual, err := base.GetNameRecord("alice")
	require.NoError(t, err)
	require.Equal(t, r, actual)
	require.Equal(t, []string{"alice"}, base.GetNamesOf(r.Owner))
}

func TestOwnerIndex(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())
	a, b := random.Uint160(), random.Uint160()

	require.NotNil(t, dao.GetNamesOf(a))
	require.Empty(t, dao.GetNamesOf(a))

	dao.PutOwnerIndex(a, "zed")
	dao.PutOwnerIndex(a, "alice")
	dao.PutOwnerIndex(b, "bob")
	require.Equal(t, []string{"alice", "zed"}, dao.GetNamesOf(a))
	require.Equal(t, []string{"bob"}, dao.GetNamesOf(b))

	dao.DeleteOwnerIndex(a, "zed")
	require.Equal(t, []string{"alice"}, dao.GetNamesOf(a))
}

func TestSeekNameRecords(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, dao.PutNameRecord(&state.NameRecord{Name: name, ExpiresAt: 1}))
	}
	var names []string
	require.NoError(t, dao.SeekNameRecords(func(r *state.NameRecord) bool {
		names = append(names, r.Name)
		return true
	}))
	require.Equal(t, []string{"a", "b", "c"}, names)

	names = names[:0]
	require.NoError(t, dao.SeekNameRecords(func(r *state.NameRecord) bool {
		names = append(names, r.Name)
		return false
	}))
	require.Equal(t, []string{"a"}, names)

	dao.Store.Put([]byte{byte(storage.STNameRecord), 'x'}, []byte{0xff})
	require.Error(t, dao.SeekNameRecords(func(r *state.NameRecord) bool { return true }))
}

func TestAmounts(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	p, err := dao.GetPrice()
	require.NoError(t, err)
	require.True(t, p.IsZero())

	dao.PutPrice(uint256.NewInt(100))
	p, err = dao.GetPrice()
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(100), p)

	dao.PutBalance(uint256.NewInt(7))
	b, err := dao.GetBalance()
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(7), b)

	dao.Store.Put(storage.SYSBalance.Bytes(), []byte{1, 2, 3})
	_, err = dao.GetBalance()
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAdminAndVersion(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())

	_, err := dao.GetAdmin()
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
	admin := random.Uint160()
	dao.PutAdmin(admin)
	actual, err := dao.GetAdmin()
	require.NoError(t, err)
	require.Equal(t, admin, actual)

	_, err = dao.GetVersion()
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
	dao.PutVersion("0.1.0")
	v, err := dao.GetVersion()
	require.NoError(t, err)
	require.Equal(t, "0.1.0", v)
}

func TestResolvedAddr(t *testing.T) {
	dao := NewSimple(storage.NewMemoryStore())
	_, err := dao.GetResolvedAddr("alice")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)

	addr := random.Uint160()
	dao.PutResolvedAddr("alice", addr)
	actual, err := dao.GetResolvedAddr("alice")
	require.NoError(t, err)
	require.Equal(t, addr, actual)

	dao.DeleteResolvedAddr("alice")
	_, err = dao.GetResolvedAddr("alice")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}
