package custody_test

import (
	"context"
	"errors"
	"testing"

	"collateral/custody"
	"collateral/logs"
	"collateral/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountNamesAreStable(t *testing.T) {
	assert.Equal(t, "wallet:alice", custody.WalletAccount("alice"))
	assert.Equal(t, custody.VaultAccount("alice"), custody.VaultAccount("alice"))
	assert.NotEqual(t, custody.VaultAccount("alice"), custody.VaultAccount("bob"))
}

func TestPrepareCommitMovesFunds(t *testing.T) {
	ctx := context.Background()
	m := custody.NewMemory(logs.NewNopLogger())
	wallet, vault := custody.WalletAccount("alice"), custody.VaultAccount("alice")
	require.NoError(t, m.Mint(wallet, 1000))

	ticket, err := m.Prepare(ctx, custody.Plan{
		Open:  []string{vault},
		Moves: []custody.Move{{From: wallet, To: vault, Amount: 600}},
	})
	require.NoError(t, err)
	// 预留期间余额不变
	bal, _ := m.BalanceOf(wallet)
	assert.Equal(t, uint64(1000), bal)

	require.NoError(t, m.Commit(ctx, ticket))
	bal, _ = m.BalanceOf(wallet)
	assert.Equal(t, uint64(400), bal)
	bal, ok := m.BalanceOf(vault)
	require.True(t, ok)
	assert.Equal(t, uint64(600), bal)
	assert.Equal(t, 0, m.Pending())
}

func TestPrepareReservesFunds(t *testing.T) {
	ctx := context.Background()
	m := custody.NewMemory(nil)
	require.NoError(t, m.Mint("a", 100))
	require.NoError(t, m.Mint("b", 0))

	first, err := m.Prepare(ctx, custody.Plan{Moves: []custody.Move{{From: "a", To: "b", Amount: 70}}})
	require.NoError(t, err)

	// 第二笔只能用剩下的 30
	_, err = m.Prepare(ctx, custody.Plan{Moves: []custody.Move{{From: "a", To: "b", Amount: 31}}})
	assert.True(t, errors.Is(err, types.ErrInsufficientBalance))

	require.NoError(t, m.Abort(ctx, first))
	second, err := m.Prepare(ctx, custody.Plan{Moves: []custody.Move{{From: "a", To: "b", Amount: 100}}})
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, second))
	bal, _ := m.BalanceOf("b")
	assert.Equal(t, uint64(100), bal)
}

func TestPrepareFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	m := custody.NewMemory(nil)
	require.NoError(t, m.Mint("a", 10))

	_, err := m.Prepare(ctx, custody.Plan{
		Open:  []string{"new"},
		Moves: []custody.Move{{From: "a", To: "new", Amount: 5}, {From: "a", To: "new", Amount: 6}},
	})
	assert.True(t, errors.Is(err, types.ErrInsufficientBalance))
	assert.Equal(t, 0, m.Pending())

	// "new" 没有被占用
	ticket, err := m.Prepare(ctx, custody.Plan{Open: []string{"new"}})
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, ticket))
}

func TestCloseRequiresEmptyAccount(t *testing.T) {
	ctx := context.Background()
	m := custody.NewMemory(nil)
	require.NoError(t, m.Mint("full", 1))
	require.NoError(t, m.Mint("empty", 0))

	_, err := m.Prepare(ctx, custody.Plan{Close: []string{"full"}})
	assert.True(t, errors.Is(err, types.ErrCustodyAccount))

	ticket, err := m.Prepare(ctx, custody.Plan{Close: []string{"empty"}})
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, ticket))
	_, ok := m.BalanceOf("empty")
	assert.False(t, ok)
}

func TestDuplicateOpenRejected(t *testing.T) {
	ctx := context.Background()
	m := custody.NewMemory(nil)
	ticket, err := m.Prepare(ctx, custody.Plan{Open: []string{"x"}})
	require.NoError(t, err)

	_, err = m.Prepare(ctx, custody.Plan{Open: []string{"x"}})
	assert.True(t, errors.Is(err, types.ErrCustodyAccount))

	require.NoError(t, m.Commit(ctx, ticket))
	_, err = m.Prepare(ctx, custody.Plan{Open: []string{"x"}})
	assert.True(t, errors.Is(err, types.ErrCustodyAccount))
}

func TestUnknownTicket(t *testing.T) {
	m := custody.NewMemory(nil)
	assert.Error(t, m.Commit(context.Background(), "nope"))
	assert.Error(t, m.Abort(context.Background(), "nope"))
}
