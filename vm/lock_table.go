package vm

import (
	"sync"

	"collateral/types"
)

// lockTable 每个金库一把互斥锁，按引用计数回收。
// 多金库操作按 owner 字节序加锁，任何两个操作的加锁顺序一致，不会形成环
type lockTable struct {
	mu    sync.Mutex
	locks map[types.Identity]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[types.Identity]*lockEntry)}
}

// acquire 排序去重后依次加锁，返回的函数按相反顺序释放
func (t *lockTable) acquire(ids ...types.Identity) func() {
	ordered := types.SortIdentities(ids...)
	entries := make([]*lockEntry, len(ordered))
	for i, id := range ordered {
		t.mu.Lock()
		e, ok := t.locks[id]
		if !ok {
			e = &lockEntry{}
			t.locks[id] = e
		}
		e.refs++
		t.mu.Unlock()

		e.mu.Lock()
		entries[i] = e
	}

	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
			t.mu.Lock()
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(t.locks, ordered[i])
			}
			t.mu.Unlock()
		}
	}
}

// size 当前表中的锁数量
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
