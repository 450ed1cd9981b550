package vm

import (
	"errors"

	"collateral/custody"
	"collateral/interfaces"
	"collateral/types"
)

// ========== 错误定义 ==========

var (
	ErrNilOperation    = errors.New("nil operation")
	ErrInvalidSnapshot = errors.New("invalid snapshot index")
)

// ========== 操作类型 ==========

const (
	KindCreateVault = "create_vault"
	KindDeposit     = "deposit"
	KindWithdraw    = "withdraw"
	KindLock        = "lock"
	KindUnlock      = "unlock"
	KindTransfer    = "transfer"
	KindCloseVault  = "close_vault"
)

const (
	StatusSucceed = "SUCCEED"
	StatusFailed  = "FAILED"
)

// WriteOp “要怎么改状态”的清单
type WriteOp = interfaces.WriteOp

// Operation 一次外部请求。Caller 已由外部验签
type Operation struct {
	ID     string // 为空时由执行器生成 uuid
	Kind   string
	Caller types.Identity
	Owner  types.Identity // lock/unlock 的目标金库；owner 类操作为空时取 Caller
	From   types.Identity // transfer 转出
	To     types.Identity // transfer 转入
	Amount string         // 十进制整数文本

	Timestamp int64 // unix 纳秒，由执行器填写
}

// target owner 类操作的目标金库
func (op *Operation) target() types.Identity {
	if op.Owner != "" {
		return op.Owner
	}
	return op.Caller
}

// Effect 预执行结果（写集在 StateView 里）
type Effect struct {
	Plan   custody.Plan
	Event  *types.Event
	Vaults []*types.Vault // 操作后的金库快照，关闭的金库不在其中
}

// 记录执行结果
type Receipt struct {
	OpID       string
	Kind       string
	Status     string // "SUCCEED" or "FAILED"
	Error      string
	Code       types.Code
	EventSeq   uint64
	Timestamp  int64
	WriteCount int
	Vaults     []*types.Vault

	// 账本已提交但托管方结算失败，需要对账
	SettlementFailed bool
}

// Clone 深拷贝，金库快照互不共享
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Vaults != nil {
		cp.Vaults = make([]*types.Vault, len(r.Vaults))
		for i, v := range r.Vaults {
			cp.Vaults[i] = v.Clone()
		}
	}
	return &cp
}

// Vault 按 owner 取回执中的金库快照
func (r *Receipt) Vault(owner types.Identity) *types.Vault {
	for _, v := range r.Vaults {
		if v.Owner == owner {
			return v
		}
	}
	return nil
}
