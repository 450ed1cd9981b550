package authority_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"collateral/authority"
	"collateral/db"
	"collateral/logs"
	"collateral/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newStore(t *testing.T) *db.Manager {
	t.Helper()
	mgr, err := db.NewInMemoryManager(logs.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestRegistryScenario(t *testing.T) {
	ctx := context.Background()
	reg, err := authority.Load(newStore(t), 10, logs.NewNopLogger())
	require.NoError(t, err)

	_, err = reg.Initialize(ctx, "admin", []types.Identity{"program-1"})
	require.NoError(t, err)
	assert.Len(t, reg.Programs(), 1)

	_, err = reg.AddProgram(ctx, "admin", "program-2")
	require.NoError(t, err)
	assert.Len(t, reg.Programs(), 2)

	_, err = reg.RemoveProgram(ctx, "admin", "program-1")
	require.NoError(t, err)
	assert.Equal(t, []types.Identity{"program-2"}, reg.Programs())
	assert.False(t, reg.IsAuthorized("program-1"))

	_, err = reg.AddProgram(ctx, "mallory", "program-3")
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	assert.Len(t, reg.Programs(), 1)
}

func TestRegistryErrors(t *testing.T) {
	ctx := context.Background()
	reg, err := authority.Load(newStore(t), 3, logs.NewNopLogger())
	require.NoError(t, err)

	// 未初始化
	_, err = reg.AddProgram(ctx, "admin", "p")
	assert.True(t, errors.Is(err, types.ErrAuthorityNotInitialized))
	_, err = reg.Admin()
	assert.True(t, errors.Is(err, types.ErrAuthorityNotInitialized))

	// 初始白名单去重
	_, err = reg.Initialize(ctx, "admin", []types.Identity{"p1", "p2", "p1"})
	require.NoError(t, err)
	assert.Equal(t, []types.Identity{"p1", "p2"}, reg.Programs())

	_, err = reg.Initialize(ctx, "other", nil)
	assert.True(t, errors.Is(err, types.ErrAlreadyInitialized))

	_, err = reg.AddProgram(ctx, "admin", "p1")
	assert.True(t, errors.Is(err, types.ErrDuplicateProgram))

	_, err = reg.RemoveProgram(ctx, "admin", "ghost")
	assert.True(t, errors.Is(err, types.ErrProgramNotFound))

	_, err = reg.RemoveProgram(ctx, "p1", "p2")
	assert.True(t, errors.Is(err, types.ErrUnauthorized))

	_, err = reg.AddProgram(ctx, "admin", "p3")
	require.NoError(t, err)
	_, err = reg.AddProgram(ctx, "admin", "p4")
	assert.True(t, errors.Is(err, types.ErrTooManyPrograms))
	assert.Equal(t, []types.Identity{"p1", "p2", "p3"}, reg.Programs())
}

func TestRegistryInitializeRejectsTooManyPrograms(t *testing.T) {
	reg, err := authority.Load(newStore(t), 2, logs.NewNopLogger())
	require.NoError(t, err)

	_, err = reg.Initialize(context.Background(), "admin", []types.Identity{"a", "b", "c"})
	assert.True(t, errors.Is(err, types.ErrTooManyPrograms))
	assert.False(t, reg.Initialized())
}

func TestRegistryRemovePreservesOrder(t *testing.T) {
	ctx := context.Background()
	reg, err := authority.Load(newStore(t), 10, logs.NewNopLogger())
	require.NoError(t, err)
	_, err = reg.Initialize(ctx, "admin", []types.Identity{"a", "b", "c", "d"})
	require.NoError(t, err)

	_, err = reg.RemoveProgram(ctx, "admin", "b")
	require.NoError(t, err)
	assert.Equal(t, []types.Identity{"a", "c", "d"}, reg.Programs())
}

func TestRegistrySurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	reg, err := authority.Load(store, 10, logs.NewNopLogger())
	require.NoError(t, err)
	_, err = reg.Initialize(ctx, "admin", []types.Identity{"p1"})
	require.NoError(t, err)
	_, err = reg.AddProgram(ctx, "admin", "p2")
	require.NoError(t, err)

	reloaded, err := authority.Load(store, 10, logs.NewNopLogger())
	require.NoError(t, err)
	admin, err := reloaded.Admin()
	require.NoError(t, err)
	assert.Equal(t, types.Identity("admin"), admin)
	assert.Equal(t, []types.Identity{"p1", "p2"}, reloaded.Programs())
	assert.True(t, reloaded.IsAuthorized("p2"))

	events, err := store.Events(0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventAuthorityInitialized, events[0].Type)
	assert.Equal(t, types.EventProgramAuthorized, events[1].Type)
	assert.Equal(t, types.Identity("p2"), events[1].Counterparty)
}

func TestRegistryConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	reg, err := authority.Load(newStore(t), 64, logs.NewNopLogger())
	require.NoError(t, err)
	_, err = reg.Initialize(ctx, "admin", nil)
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		program := types.Identity(fmt.Sprintf("program-%02d", i))
		g.Go(func() error {
			_, err := reg.AddProgram(ctx, "admin", program)
			return err
		})
		g.Go(func() error {
			_ = reg.IsAuthorized(program)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, reg.Programs(), 32)
}
