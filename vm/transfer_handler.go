package vm

import (
	"collateral/custody"
	"collateral/ledger"
	"collateral/types"
)

// TransferHandler 授权程序在两个金库之间划转可用余额
type TransferHandler struct {
	Auth Authorizer
}

func (h *TransferHandler) Kind() string {
	return KindTransfer
}

func (h *TransferHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.From, op.To}
}

func (h *TransferHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	// 1. 授权检查
	if err := requireProgram(h.Auth, op); err != nil {
		return nil, err
	}
	if err := op.From.Validate(); err != nil {
		return nil, err
	}
	if err := op.To.Validate(); err != nil {
		return nil, err
	}
	if op.From == op.To {
		return nil, types.ErrSameVault
	}

	// 2. 读取双方金库
	from, err := loadVault(sv, op.From)
	if err != nil {
		return nil, err
	}
	to, err := loadVault(sv, op.To)
	if err != nil {
		return nil, err
	}

	// 3. 验证金额并执行划转
	amount, err := ledger.ParseAmount(op.Amount)
	if err != nil {
		return nil, err
	}
	if err := ledger.Transfer(from, to, amount); err != nil {
		return nil, err
	}

	// 4. 保存更新后的金库
	if err := saveVault(sv, from); err != nil {
		return nil, err
	}
	if err := saveVault(sv, to); err != nil {
		return nil, err
	}

	ev := newEvent(op, types.EventTransfer, amount).WithVault(from)
	ev.Counterparty = to.Owner
	return &Effect{
		Plan: custody.Plan{Moves: []custody.Move{{
			From:   from.CustodyAccount,
			To:     to.CustodyAccount,
			Amount: amount,
		}}},
		Event:  ev,
		Vaults: []*types.Vault{from, to},
	}, nil
}
