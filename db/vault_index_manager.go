package db

import (
	"fmt"

	"collateral/keys"
	"collateral/logs"
	"collateral/types"

	"github.com/RoaringBitmap/roaring"
)

// VaultIndexManager 负责：
//  1. 启动时扫描 DB，恢复打开金库的索引到 RoaringBitmap；
//  2. 提交成功后实时 Add / Remove；
//  3. 按索引列出打开的金库。
type VaultIndexManager struct {
	bitmap *roaring.Bitmap
	mgr    *Manager
	Logger logs.Logger
}

// ----------  初始化 / 恢复  ----------

func NewVaultIndexManager(mgr *Manager, logger logs.Logger) (*VaultIndexManager, error) {
	m := &VaultIndexManager{
		mgr:    mgr,
		bitmap: roaring.New(),
		Logger: logger,
	}
	if err := m.RebuildBitmapFromDB(); err != nil {
		return nil, err
	}
	return m, nil
}

// RebuildBitmapFromDB 在一次迭代里扫描所有 "indexToVault_*" 键，填充 bitmap。
func (m *VaultIndexManager) RebuildBitmapFromDB() error {
	kvs, err := m.mgr.Scan(keys.NameOfKeyIndexToVault())
	if err != nil {
		return err
	}
	rebuilt := roaring.New()
	for k := range kvs {
		idx, ok := keys.IndexFromKey(k)
		if !ok {
			continue
		}
		rebuilt.Add(idx)
	}

	// 位图的读写都在 Manager 的锁下进行
	m.mgr.mu.Lock()
	m.bitmap = rebuilt
	m.mgr.mu.Unlock()
	m.Logger.Info("[VaultIndexManager] rebuilt bitmap with %d vaults", rebuilt.GetCardinality())
	return nil
}

// ----------  运行时维护（调用方持有 Manager 写锁）  ----------

func (m *VaultIndexManager) Add(idx uint32) {
	m.bitmap.Add(idx)
}

func (m *VaultIndexManager) Remove(idx uint32) {
	m.bitmap.Remove(idx)
}

// ----------  查询  ----------

// Count 打开的金库数量
func (m *VaultIndexManager) Count() uint64 {
	m.mgr.mu.RLock()
	defer m.mgr.mu.RUnlock()
	return m.bitmap.GetCardinality()
}

// Contains 索引是否对应一个打开的金库
func (m *VaultIndexManager) Contains(idx uint32) bool {
	m.mgr.mu.RLock()
	defer m.mgr.mu.RUnlock()
	return m.bitmap.Contains(idx)
}

// SnapshotIndices 按升序返回所有打开金库的索引
func (m *VaultIndexManager) SnapshotIndices() []uint32 {
	m.mgr.mu.RLock()
	defer m.mgr.mu.RUnlock()
	return m.bitmap.ToArray()
}

// GetOwnerByIndex 通过索引查找金库 owner，索引上没有金库时 ok=false
func (m *VaultIndexManager) GetOwnerByIndex(idx uint32) (types.Identity, bool, error) {
	raw, err := m.mgr.Get(keys.KeyIndexToVault(idx))
	if err != nil {
		return "", false, err
	}
	if raw == nil {
		return "", false, nil
	}
	return types.Identity(raw), true, nil
}

// OpenOwners 按索引顺序（即开户顺序）列出打开的金库 owner
func (m *VaultIndexManager) OpenOwners() ([]types.Identity, error) {
	indices := m.SnapshotIndices()
	owners := make([]types.Identity, 0, len(indices))
	for _, idx := range indices {
		owner, ok, err := m.GetOwnerByIndex(idx)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		if !ok {
			continue // 快照之后被关闭
		}
		owners = append(owners, owner)
	}
	return owners, nil
}
