package db

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"collateral/config"
	"collateral/interfaces"
	"collateral/keys"
	"collateral/logs"
	"collateral/types"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru"
)

// Manager 封装 BadgerDB 的管理器
type Manager struct {
	Db *badger.DB
	// mu 保护 Db 指针，同时串行化“提交 + 缓存更新”：
	// 提交持写锁，读缓存未命中后回填持读锁，回填不会盖掉更新的值
	mu sync.RWMutex

	IndexMgr *VaultIndexManager
	eventSeq *badger.Sequence // 事件序号发号器
	indexSeq *badger.Sequence // 金库索引发号器
	cache    *lru.Cache       // key -> []byte，只缓存存在的值
	Logger   logs.Logger
	cfg      *config.Config
}

var _ interfaces.Store = (*Manager)(nil)

// NewManager 创建一个新的 DBManager 实例
func NewManager(path string, logger logs.Logger) (*Manager, error) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = path
	return NewManagerWithConfig(logger, cfg)
}

// NewInMemoryManager 不落盘的 Manager，测试使用
func NewInMemoryManager(logger logs.Logger) (*Manager, error) {
	cfg := config.DefaultConfig()
	cfg.Database.InMemory = true
	cfg.Database.Path = ""
	return NewManagerWithConfig(logger, cfg)
}

// NewManagerWithConfig 创建 DBManager，可选注入整份 Config
func NewManagerWithConfig(logger logs.Logger, cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logs.NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var opts badger.Options
	if cfg.Database.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// badger v2 不自动创建父目录，需要手动创建
		if err := os.MkdirAll(cfg.Database.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Database.Path).WithSyncWrites(cfg.Database.SyncWrites)
	}
	opts = opts.WithLogger(nil)
	opts.ValueLogFileSize = cfg.Database.ValueLogFileSize

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	// ① 创建 Sequence（一次预取一段号，可按业务量调大/调小）
	eventSeq, err := db.GetSequence([]byte(keys.KeyEventSequence()), cfg.Database.SequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create event sequence: %w", err)
	}
	indexSeq, err := db.GetSequence([]byte(keys.KeyIndexSequence()), cfg.Database.SequenceBandwidth)
	if err != nil {
		_ = eventSeq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index sequence: %w", err)
	}

	cache, err := lru.New(cfg.Database.ReadCacheSize)
	if err != nil {
		_ = eventSeq.Release()
		_ = indexSeq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("failed to create read cache: %w", err)
	}

	manager := &Manager{
		Db:       db,
		eventSeq: eventSeq,
		indexSeq: indexSeq,
		cache:    cache,
		Logger:   logger,
		cfg:      cfg,
	}

	// ② 从已有数据恢复打开金库的位图
	indexMgr, err := NewVaultIndexManager(manager, logger)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to create index manager: %w", err)
	}
	manager.IndexMgr = indexMgr

	return manager, nil
}

// Get 读取已提交的值，不存在时返回 (nil, nil)
func (manager *Manager) Get(key string) ([]byte, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	if manager.Db == nil {
		return nil, fmt.Errorf("database is not initialized or closed")
	}
	// 1. 先查缓存
	if v, ok := manager.cache.Get(key); ok {
		return cloneBytes(v.([]byte)), nil
	}

	// 2. 从 KV 读取
	var value []byte
	err := manager.Db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	// 3. 回填缓存（只缓存状态数据，事件流水不缓存）
	if keys.IsStatefulKey(key) {
		manager.cache.Add(key, cloneBytes(value))
	}
	return value, nil
}

// Scan 前缀扫描
func (manager *Manager) Scan(prefix string) (map[string][]byte, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	if manager.Db == nil {
		return nil, fmt.Errorf("database is not initialized or closed")
	}
	result := make(map[string][]byte)
	err := manager.Db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(k)] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return result, nil
}

// ApplyWrites 在一个 badger 事务里提交所有写操作和事件。
// 事件序号在写锁内分配，因此按 key 排序的事件就是提交顺序
func (manager *Manager) ApplyWrites(ops []interfaces.WriteOp, events []*types.Event) error {
	if len(ops) == 0 && len(events) == 0 {
		return nil
	}
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.Db == nil {
		return fmt.Errorf("database is not initialized or closed")
	}

	// 1. 分配事件序号并编码
	all := make([]interfaces.WriteOp, 0, len(ops)+len(events))
	all = append(all, ops...)
	seqs := make([]uint64, len(events))
	for i, ev := range events {
		id, err := manager.eventSeq.Next()
		if err != nil {
			return fmt.Errorf("allocate event seq: %w", err)
		}
		seqs[i] = id + 1 // 序号从 1 开始，Events(0, n) 返回全部
		cp := *ev
		cp.Seq = seqs[i]
		data, err := types.EncodeEvent(&cp)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		all = append(all, interfaces.WriteOp{
			Key:      keys.KeyEvent(seqs[i]),
			Value:    data,
			Category: keys.CategoryEvent,
		})
	}

	// 2. 一个事务提交
	err := manager.Db.Update(func(txn *badger.Txn) error {
		for _, op := range all {
			var err error
			if op.Del {
				err = txn.Delete([]byte(op.Key))
			} else {
				err = txn.Set([]byte(op.Key), op.Value)
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", opName(op), op.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		manager.Logger.Error("[db.ApplyWrites] commit of %d ops failed: %v", len(all), err)
		return fmt.Errorf("commit: %w", err)
	}

	// 3. 提交成功后再回写事件序号、更新缓存和位图
	for i, ev := range events {
		ev.Seq = seqs[i]
	}
	for _, op := range ops {
		manager.afterCommit(op)
	}
	manager.Logger.Trace("[db.ApplyWrites] committed %d ops, %d events", len(ops), len(events))
	return nil
}

func (manager *Manager) afterCommit(op interfaces.WriteOp) {
	if op.Del {
		manager.cache.Remove(op.Key)
	} else if keys.IsStatefulKey(op.Key) {
		manager.cache.Add(op.Key, cloneBytes(op.Value))
	}
	if manager.IndexMgr == nil {
		return
	}
	if idx, ok := keys.IndexFromKey(op.Key); ok {
		if op.Del {
			manager.IndexMgr.Remove(idx)
		} else {
			manager.IndexMgr.Add(idx)
		}
	}
}

// NextIndex 金库稠密索引，从 1 开始
func (manager *Manager) NextIndex() (uint32, error) {
	manager.mu.RLock()
	seq := manager.indexSeq
	manager.mu.RUnlock()
	if seq == nil {
		return 0, fmt.Errorf("database is not initialized or closed")
	}
	id, err := seq.Next() // Badger 自动并发安全
	if err != nil {
		return 0, fmt.Errorf("allocate vault index: %w", err)
	}
	if id+1 > uint64(^uint32(0)) {
		return 0, fmt.Errorf("vault index space exhausted")
	}
	return uint32(id + 1), nil
}

// Events 返回序号大于 afterSeq 的事件，按提交顺序，最多 limit 条
func (manager *Manager) Events(afterSeq uint64, limit int) ([]*types.Event, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	if manager.Db == nil {
		return nil, fmt.Errorf("database is not initialized or closed")
	}
	var out []*types.Event
	err := manager.Db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keys.KeyEventPrefix())
		for it.Seek([]byte(keys.KeyEvent(afterSeq + 1))); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ev, err := types.DecodeEvent(v)
			if err != nil {
				return fmt.Errorf("event %s: %w", it.Item().Key(), err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close 释放发号器并关闭数据库
func (manager *Manager) Close() error {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.eventSeq != nil {
		_ = manager.eventSeq.Release() // 无须处理返回值；Close() 时 Badger 仍会安全落盘
		manager.eventSeq = nil
	}
	if manager.indexSeq != nil {
		_ = manager.indexSeq.Release()
		manager.indexSeq = nil
	}
	if manager.Db == nil {
		return nil
	}
	err := manager.Db.Close()
	manager.Db = nil
	manager.cache.Purge()
	return err
}

func opName(op interfaces.WriteOp) string {
	if op.Del {
		return "delete"
	}
	return "set"
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// OpenVaults 按开户顺序列出打开的金库 owner
func (manager *Manager) OpenVaults() ([]types.Identity, error) {
	if manager.IndexMgr == nil {
		return nil, fmt.Errorf("vault index not initialized")
	}
	return manager.IndexMgr.OpenOwners()
}
