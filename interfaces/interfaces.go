// interfaces/interfaces.go
package interfaces

import "collateral/types"

// 这个包是存储接口的定义中心：db 实现它，authority 和 vm 只依赖它，避免循环依赖

// WriteOp “要怎么改状态”的清单，一次操作产生的所有 WriteOp 必须在同一个事务里落库
type WriteOp struct {
	Key      string // 完整的 key（包括版本前缀）
	Value    []byte // 序列化后的值
	Del      bool   // true 表示删除
	Category string // 数据分类：vault, authority, index, event，便于追踪和调试
}

// Store 持久化存储接口
type Store interface {
	// Get 读取已提交的值，不存在时返回 (nil, nil)
	Get(key string) ([]byte, error)
	// Scan 前缀扫描，返回所有以 prefix 开头的键值对
	Scan(prefix string) (map[string][]byte, error)
	// ApplyWrites 原子提交一组写操作和事件：要么全部生效，要么全部不生效。
	// 事件序号在提交锁内分配，按序号排序即为提交顺序
	ApplyWrites(ops []WriteOp, events []*types.Event) error
	// NextIndex 金库稠密索引发号器
	NextIndex() (uint32, error)
	// Events 返回序号大于 afterSeq 的事件，最多 limit 条
	Events(afterSeq uint64, limit int) ([]*types.Event, error)
}
