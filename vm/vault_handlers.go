package vm

import (
	"fmt"

	"collateral/custody"
	"collateral/keys"
	"collateral/ledger"
	"collateral/types"
)

// ========== create_vault ==========

// CreateVaultHandler 开户：absent -> open
type CreateVaultHandler struct {
	Indexes IndexAllocator
}

func (h *CreateVaultHandler) Kind() string { return KindCreateVault }

func (h *CreateVaultHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.Caller}
}

func (h *CreateVaultHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	owner, err := requireOwner(op)
	if err != nil {
		return nil, err
	}
	// 1. 每个 owner 只能有一个打开的金库
	_, exists, err := sv.Get(keys.KeyVault(string(owner)))
	if err != nil {
		return nil, fmt.Errorf("read vault %s: %w", owner, err)
	}
	if exists {
		return nil, types.WithMetadata(types.CodeAlreadyExists, "vault already exists", map[string]string{"owner": string(owner)})
	}

	// 2. 分配稠密索引，写金库与索引
	idx, err := h.Indexes.NextIndex()
	if err != nil {
		return nil, err
	}
	account := custody.VaultAccount(owner)
	v := ledger.NewVault(owner, account, idx, op.Timestamp/1e9)
	if err := saveVault(sv, v); err != nil {
		return nil, err
	}
	sv.SetWithMeta(keys.KeyIndexToVault(idx), []byte(owner), keys.CategoryIndex)

	// 3. 托管方开托管账户
	return &Effect{
		Plan:   custody.Plan{Open: []string{account}},
		Event:  newEvent(op, types.EventVaultInitialized, 0).WithVault(v),
		Vaults: []*types.Vault{v},
	}, nil
}

// ========== deposit ==========

// DepositHandler owner 从外部账户存入
type DepositHandler struct{}

func (h *DepositHandler) Kind() string { return KindDeposit }

func (h *DepositHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.target()}
}

func (h *DepositHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	owner, err := requireOwner(op)
	if err != nil {
		return nil, err
	}
	v, err := loadVault(sv, owner)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseAmount(op.Amount)
	if err != nil {
		return nil, err
	}
	if err := ledger.Deposit(v, amount); err != nil {
		return nil, err
	}
	if err := saveVault(sv, v); err != nil {
		return nil, err
	}
	return &Effect{
		Plan: custody.Plan{Moves: []custody.Move{{
			From:   custody.WalletAccount(owner),
			To:     v.CustodyAccount,
			Amount: amount,
		}}},
		Event:  newEvent(op, types.EventDeposit, amount).WithVault(v),
		Vaults: []*types.Vault{v},
	}, nil
}

// ========== withdraw ==========

// WithdrawHandler owner 提取可用余额
type WithdrawHandler struct{}

func (h *WithdrawHandler) Kind() string { return KindWithdraw }

func (h *WithdrawHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.target()}
}

func (h *WithdrawHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	owner, err := requireOwner(op)
	if err != nil {
		return nil, err
	}
	v, err := loadVault(sv, owner)
	if err != nil {
		return nil, err
	}
	amount, err := ledger.ParseAmount(op.Amount)
	if err != nil {
		return nil, err
	}
	if err := ledger.Withdraw(v, amount); err != nil {
		return nil, err
	}
	if err := saveVault(sv, v); err != nil {
		return nil, err
	}
	return &Effect{
		Plan: custody.Plan{Moves: []custody.Move{{
			From:   v.CustodyAccount,
			To:     custody.WalletAccount(owner),
			Amount: amount,
		}}},
		Event:  newEvent(op, types.EventWithdraw, amount).WithVault(v),
		Vaults: []*types.Vault{v},
	}, nil
}

// ========== close_vault ==========

// CloseVaultHandler owner 关闭空金库，记录和托管账户一起释放
type CloseVaultHandler struct{}

func (h *CloseVaultHandler) Kind() string { return KindCloseVault }

func (h *CloseVaultHandler) Targets(op *Operation) []types.Identity {
	return []types.Identity{op.target()}
}

func (h *CloseVaultHandler) DryRun(op *Operation, sv StateView) (*Effect, error) {
	owner, err := requireOwner(op)
	if err != nil {
		return nil, err
	}
	v, err := loadVault(sv, owner)
	if err != nil {
		return nil, err
	}
	if err := ledger.CanClose(v); err != nil {
		return nil, err
	}

	sv.Del(keys.KeyVault(string(owner)))
	sv.Del(keys.KeyIndexToVault(v.Index))

	ev := newEvent(op, types.EventVaultClosed, 0)
	ev.Vault = owner
	return &Effect{
		Plan:  custody.Plan{Close: []string{v.CustodyAccount}},
		Event: ev,
	}, nil
}
