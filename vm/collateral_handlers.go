package vm

import (
	"collateral/ledger"
	"collateral/types"
)

// LockHandler 授权程序锁定金库的一部分可用余额，不移动资产
type LockHandler struct {
	Auth Authorizer
}

func (h *LockHandler) Kind() string { return KindLock }

func (h *LockHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.Owner}
}

func (h *LockHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	return adjustLock(h.Auth, op, sv, types.EventLock, ledger.Lock)
}

// UnlockHandler 授权程序释放已锁定的余额
type UnlockHandler struct {
	Auth Authorizer
}

func (h *UnlockHandler) Kind() string { return KindUnlock }

func (h *UnlockHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.Owner}
}

func (h *UnlockHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	return adjustLock(h.Auth, op, sv, types.EventUnlock, ledger.Unlock)
}

func adjustLock(auth Authorizer, op *Operation, sv StateView, evType types.EventType, apply func(*types.Vault, uint64) error) (*Effect, error) {
	// 1. 授权检查
	if err := requireProgram(auth, op); err != nil {
		return nil, err
	}
	if err := op.Owner.Validate(); err != nil {
		return nil, err
	}
	// 2. 读取金库并修改锁定额
	v, err := loadVault(sv, op.Owner)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseAmount(op.Amount)
	if err != nil {
		return nil, err
	}
	if err := apply(v, amount); err != nil {
		return nil, err
	}
	if err := saveVault(sv, v); err != nil {
		return nil, err
	}
	return &Effect{
		Event:  newEvent(op, evType, amount).WithVault(v),
		Vaults: []*types.Vault{v},
	}, nil
}
