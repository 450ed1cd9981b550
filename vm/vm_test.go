package vm_test

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"collateral/interfaces"
	"collateral/keys"
	"collateral/types"
	"collateral/vm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== Mock数据库实现 ==========

type MockDB struct {
	mu       sync.RWMutex
	data     map[string][]byte
	events   []*types.Event
	nextIdx  uint32
	failNext error // 下一次 ApplyWrites 返回的错误
	commits  int
}

var _ interfaces.Store = (*MockDB)(nil)

func NewMockDB() *MockDB {
	return &MockDB{data: make(map[string][]byte)}
}

func (db *MockDB) Get(key string) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, exists := db.data[key]
	if !exists {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

func (db *MockDB) Scan(prefix string) (map[string][]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range db.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (db *MockDB) ApplyWrites(ops []interfaces.WriteOp, events []*types.Event) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failNext != nil {
		err := db.failNext
		db.failNext = nil
		return err
	}
	for _, op := range ops {
		if op.Del {
			delete(db.data, op.Key)
		} else {
			db.data[op.Key] = append([]byte(nil), op.Value...)
		}
	}
	for _, ev := range events {
		ev.Seq = uint64(len(db.events) + 1)
		cp := *ev
		db.events = append(db.events, &cp)
	}
	db.commits++
	return nil
}

func (db *MockDB) NextIndex() (uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextIdx++
	return db.nextIdx, nil
}

func (db *MockDB) Events(afterSeq uint64, limit int) ([]*types.Event, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []*types.Event
	for _, ev := range db.events {
		if ev.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

func (db *MockDB) FailNextCommit(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failNext = err
}

// Dump 所有状态的副本，用于比较操作前后是否完全一致
func (db *MockDB) Dump() map[string][]byte {
	out, _ := db.Scan("")
	return out
}

// ========== StateView ==========

func TestStateViewSnapshot(t *testing.T) {
	readFn := func(key string) ([]byte, error) {
		if key == "test_key" {
			return []byte("initial_value"), nil
		}
		return nil, nil
	}
	sv := vm.NewStateView(readFn, nil)

	// 初始状态
	val, exists, err := sv.Get("test_key")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "initial_value", string(val))

	// 创建快照后修改
	snap1 := sv.Snapshot()
	sv.Set("test_key", []byte("modified_value"))
	sv.Set("new_key", []byte("new_value"))

	val, _, _ = sv.Get("test_key")
	assert.Equal(t, "modified_value", string(val))

	// 回滚到快照
	require.NoError(t, sv.Revert(snap1))
	val, exists, _ = sv.Get("test_key")
	assert.True(t, exists)
	assert.Equal(t, "initial_value", string(val))
	_, exists, _ = sv.Get("new_key")
	assert.False(t, exists)

	assert.ErrorIs(t, sv.Revert(99), vm.ErrInvalidSnapshot)
	assert.Empty(t, sv.Diff())
}

func TestStateViewDiffAndScan(t *testing.T) {
	base := map[string][]byte{
		keys.KeyVault("alice"): []byte("a"),
		keys.KeyVault("bob"):   []byte("b"),
	}
	read := func(key string) ([]byte, error) { return base[key], nil }
	scan := func(prefix string) (map[string][]byte, error) {
		out := make(map[string][]byte)
		for k, v := range base {
			if strings.HasPrefix(k, prefix) {
				out[k] = v
			}
		}
		return out, nil
	}
	sv := vm.NewStateView(read, scan)

	sv.Del(keys.KeyVault("alice"))
	sv.SetWithMeta(keys.KeyVault("carol"), []byte("c"), keys.CategoryVault)

	_, exists, err := sv.Get(keys.KeyVault("alice"))
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := sv.Scan(keys.KeyVaultPrefix())
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		keys.KeyVault("bob"):   []byte("b"),
		keys.KeyVault("carol"): []byte("c"),
	}, got)

	diff := sv.Diff()
	require.Len(t, diff, 2)
	assert.True(t, sort.SliceIsSorted(diff, func(i, j int) bool { return diff[i].Key < diff[j].Key }))
	assert.Equal(t, keys.KeyVault("alice"), diff[0].Key)
	assert.True(t, diff[0].Del)
	assert.Equal(t, keys.CategoryVault, diff[1].Category)
}

// ========== HandlerRegistry ==========

type nopHandler struct{ kind string }

func (h nopHandler) Kind() string                              { return h.kind }
func (h nopHandler) Targets(op *vm.Operation) []types.Identity { return nil }
func (h nopHandler) DryRun(op *vm.Operation, sv vm.StateView) (*vm.Effect, error) {
	return &vm.Effect{}, nil
}

func TestHandlerRegistry(t *testing.T) {
	reg := vm.NewHandlerRegistry()
	require.NoError(t, vm.RegisterDefaultHandlers(reg, nil, NewMockDB()))
	assert.Equal(t, []string{
		vm.KindCloseVault, vm.KindCreateVault, vm.KindDeposit, vm.KindLock,
		vm.KindTransfer, vm.KindUnlock, vm.KindWithdraw,
	}, reg.List())

	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(nopHandler{}))
	assert.Error(t, reg.Register(nopHandler{kind: vm.KindDeposit}))
	require.NoError(t, reg.Register(nopHandler{kind: "noop"}))

	h, ok := reg.Get("noop")
	require.True(t, ok)
	assert.Equal(t, "noop", h.Kind())
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestMockDBFailNextCommit(t *testing.T) {
	db := NewMockDB()
	boom := errors.New("disk full")
	db.FailNextCommit(boom)
	assert.ErrorIs(t, db.ApplyWrites(nil, nil), boom)
	assert.NoError(t, db.ApplyWrites(nil, nil))
}
