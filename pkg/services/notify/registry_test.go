package notify

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/internal/random"
	"github.com/somnia-names/somns/pkg/config"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/storage"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/registry"
	"github.com/somnia-names/somns/pkg/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testRegistry struct {
	*registry.Registry
}

func newRegistryForTest(t *testing.T) *testRegistry {
	r, err := registry.New(registry.Config{
		RegistryConfiguration: config.RegistryConfiguration{
			Admin:              address.Uint160ToString(random.Uint160()),
			Price:              "1",
			RegistrationPeriod: time.Hour,
		},
	}, storage.NewMemoryStore(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return &testRegistry{r}
}

func (r *testRegistry) register(t *testing.T, name string) {
	ic := interop.NewContext(random.Uint160(), uint256.NewInt(1_000_000_000_000_000_000))
	require.NoError(t, r.Register(ic, name, util.Uint160{}, ""))
}
