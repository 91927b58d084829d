package resolver

import (
	"testing"

	"github.com/somnia-names/somns/internal/random"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type nameRecord struct {
	owner    util.Uint160
	resolver util.Uint160
}

type testOwners map[string]nameRecord

func (o testOwners) OwnerOf(name string) util.Uint160 {
	return o[name].owner
}

func (o testOwners) ResolverOf(name string) util.Uint160 {
	return o[name].resolver
}

func TestNew(t *testing.T) {
	_, err := New(storage.NewMemoryStore(), nil, zaptest.NewLogger(t))
	require.Error(t, err)
	_, err = New(storage.NewMemoryStore(), testOwners{}, nil)
	require.Error(t, err)
}

func TestSetAddr(t *testing.T) {
	owner := random.Uint160()
	owners := testOwners{
		"alice": {owner: owner, resolver: Hash},
		"bob":   {owner: owner, resolver: random.Uint160()},
	}
	r, err := New(storage.NewMemoryStore(), owners, zaptest.NewLogger(t))
	require.NoError(t, err)

	addr := random.Uint160()
	require.ErrorIs(t, r.SetAddr(interop.NewContext(random.Uint160(), nil), "alice", addr), ErrNotOwner)
	require.ErrorIs(t, r.SetAddr(interop.NewContext(owner, nil), "carol", addr), ErrNotOwner)
	require.ErrorIs(t, r.SetAddr(interop.NewContext(util.Uint160{}, nil), "carol", addr), ErrNotOwner)
	require.Equal(t, util.Uint160{}, r.Addr("alice"))

	require.NoError(t, r.SetAddr(interop.NewContext(owner, nil), "alice", addr))
	require.Equal(t, addr, r.Addr("alice"))
	require.Equal(t, addr, r.Resolve("alice"))

	t.Run("other resolver", func(t *testing.T) {
		require.NoError(t, r.SetAddr(interop.NewContext(owner, nil), "bob", addr))
		require.Equal(t, addr, r.Addr("bob"))
		require.Equal(t, util.Uint160{}, r.Resolve("bob"))
	})
	t.Run("unset", func(t *testing.T) {
		require.NoError(t, r.SetAddr(interop.NewContext(owner, nil), "alice", util.Uint160{}))
		require.Equal(t, util.Uint160{}, r.Addr("alice"))
		require.Equal(t, util.Uint160{}, r.Resolve("alice"))
	})
	t.Run("new owner", func(t *testing.T) {
		newOwner := random.Uint160()
		owners["alice"] = nameRecord{owner: newOwner, resolver: Hash}
		require.ErrorIs(t, r.SetAddr(interop.NewContext(owner, nil), "alice", addr), ErrNotOwner)
		require.NoError(t, r.SetAddr(interop.NewContext(newOwner, nil), "alice", addr))
		require.Equal(t, addr, r.Resolve("alice"))
	})
}
