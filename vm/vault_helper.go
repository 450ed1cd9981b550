package vm

import (
	"fmt"

	"collateral/keys"
	"collateral/ledger"
	"collateral/types"
)

// loadVault 读取金库，不存在返回 ErrVaultNotFound
func loadVault(sv StateView, owner types.Identity) (*types.Vault, error) {
	raw, ok, err := sv.Get(keys.KeyVault(string(owner)))
	if err != nil {
		return nil, fmt.Errorf("read vault %s: %w", owner, err)
	}
	if !ok {
		return nil, types.WithMetadata(types.CodeVaultNotFound, "vault not found", map[string]string{"owner": string(owner)})
	}
	return types.DecodeVault(raw)
}

// saveVault 写回金库记录，写入前检查不变量
func saveVault(sv StateView, v *types.Vault) error {
	if err := ledger.CheckInvariants(v); err != nil {
		return err
	}
	data, err := types.EncodeVault(v)
	if err != nil {
		return err
	}
	sv.SetWithMeta(keys.KeyVault(string(v.Owner)), data, keys.CategoryVault)
	return nil
}

// requireOwner owner 类操作：调用方必须是金库 owner
func requireOwner(op *Operation) (types.Identity, error) {
	if err := op.Caller.Validate(); err != nil {
		return "", err
	}
	owner := op.target()
	if owner != op.Caller {
		return "", types.WithMetadata(types.CodeUnauthorized, "caller does not own the vault", map[string]string{
			"caller": string(op.Caller),
			"owner":  string(owner),
		})
	}
	return owner, nil
}

// requireProgram 锁定类操作：调用方必须在授权白名单里
func requireProgram(auth Authorizer, op *Operation) error {
	if auth == nil || !auth.IsAuthorized(op.Caller) {
		return types.WithMetadata(types.CodeUnauthorizedProgram, "caller is not an authorized program", map[string]string{"caller": string(op.Caller)})
	}
	return nil
}

func newEvent(op *Operation, evType types.EventType, amount uint64) *types.Event {
	return &types.Event{
		ID:        op.ID,
		Type:      evType,
		Caller:    op.Caller,
		Amount:    amount,
		Timestamp: op.Timestamp,
	}
}
