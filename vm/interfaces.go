package vm

import "collateral/types"

// ========== 核心接口定义 ==========

// StateView 状态视图接口
type StateView interface {
	//读/写/删某个 key 的状态；写入只写进这个视图，不直接落到底层 DB。
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte)
	SetWithMeta(key string, val []byte, category string)
	Del(key string)
	//做一个快照点、必要时回滚到该点
	Snapshot() int
	Revert(snap int) error
	//把预执行期间累积的写入集合（写集）导出来，给后续“真正落库”用。
	Diff() []WriteOp
	// 扫描指定前缀下的所有键值对，overlay 中的写入覆盖底层结果
	Scan(prefix string) (map[string][]byte, error)
}

// OpHandler 操作处理器接口
type OpHandler interface {
	//标识这个 Handler 处理哪种操作（比如 "deposit"）。
	Kind() string
	//操作会触碰哪些金库，执行器据此按固定顺序加锁
	Targets(op *Operation) []types.Identity
	//在给定 StateView 上预执行，返回托管计划、事件和操作后的金库快照；写集留在 sv 里
	DryRun(op *Operation, sv StateView) (*Effect, error)
}

// Authorizer 授权程序判断，authority.Registry 实现它
type Authorizer interface {
	IsAuthorized(id types.Identity) bool
}

// IndexAllocator 金库稠密索引发号器
type IndexAllocator interface {
	NextIndex() (uint32, error)
}

// OpenVaultLister 存储层如果维护了打开金库的位图就直接用它
type OpenVaultLister interface {
	OpenVaults() ([]types.Identity, error)
}

// （读穿函数）
// 当 StateView.Get 本地 overlay 没命中时，定义“如何从底层存储读真实值”的函数签名
type ReadThroughFn func(key string) ([]byte, error)

// ScanFn 用于 StateView 从底层存储做前缀扫描
type ScanFn func(prefix string) (map[string][]byte, error)
