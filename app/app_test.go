package app

import (
	"context"
	"testing"

	"collateral/config"
	"collateral/custody"
	"collateral/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.InMemory = true
	cfg.Log.Level = "error"
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	a, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	c := a.GetContainer()
	assert.NotNil(t, c.DB)
	assert.NotNil(t, c.Authority)
	assert.Same(t, c.Executor, a.Executor())
	assert.False(t, c.Authority.Initialized())

	bank, err := a.MemoryCustodian()
	require.NoError(t, err)
	require.NoError(t, bank.Mint(custody.WalletAccount("alice"), 10))

	ctx := context.Background()
	x := a.Executor()
	require.NoError(t, x.InitializeAuthority(ctx, "admin", []types.Identity{"program"}))
	_, err = x.CreateVault(ctx, "alice")
	require.NoError(t, err)
	v, err := x.Deposit(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), v.TotalBalance)
	assert.Equal(t, uint64(1), c.DB.IndexMgr.Count())
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Vault.MaxAuthorizedPrograms = 0
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

type otherCustodian struct{ custody.Custodian }

func TestMemoryCustodianOnlyForMemory(t *testing.T) {
	a, err := New(memoryConfig(), otherCustodian{custody.NewMemory(nil)})
	require.NoError(t, err)
	defer a.Close()
	_, err = a.MemoryCustodian()
	assert.ErrorIs(t, err, ErrNoMemoryCustodian)
}
