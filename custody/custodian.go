package custody

import (
	"context"

	"collateral/types"
	"collateral/utils"
)

// Move 从 From 托管账户划 Amount 到 To 托管账户
type Move struct {
	From   string
	To     string
	Amount uint64
}

// Plan 一次操作需要托管方完成的全部动作
type Plan struct {
	Open  []string // 需要新开的账户
	Moves []Move
	Close []string // 需要释放的账户（必须为空）
}

// Empty 没有任何动作
func (p *Plan) Empty() bool {
	return p == nil || (len(p.Open) == 0 && len(p.Moves) == 0 && len(p.Close) == 0)
}

// Custodian 外部托管方：两阶段执行。
// Prepare 校验并预留资金，返回票据；Commit 让预留生效；Abort 释放预留。
// Prepare 成功后 Commit 不允许因余额原因失败
type Custodian interface {
	Prepare(ctx context.Context, plan Plan) (ticket string, err error)
	Commit(ctx context.Context, ticket string) error
	Abort(ctx context.Context, ticket string) error
}

// WalletAccount owner 在托管方的外部账户，存入从这里来，提取回到这里
func WalletAccount(owner types.Identity) string {
	return "wallet:" + string(owner)
}

// VaultAccount 金库托管账户，由 owner 确定性推导
func VaultAccount(owner types.Identity) string {
	return "vault:" + utils.SipHashHex([]byte(owner))
}
