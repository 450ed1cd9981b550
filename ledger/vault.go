package ledger

import (
	"strconv"

	"collateral/types"
)

// 金库状态迁移。每个函数先完整校验再修改，返回错误时 v 保持原样

// NewVault 新开金库，所有余额与计数器为 0
func NewVault(owner types.Identity, custodyAccount string, index uint32, createdAt int64) *types.Vault {
	return &types.Vault{
		Owner:          owner,
		CustodyAccount: custodyAccount,
		Index:          index,
		CreatedAt:      createdAt,
	}
}

// Deposit total += amount, deposited += amount
func Deposit(v *types.Vault, amount uint64) error {
	if err := RequirePositive(amount); err != nil {
		return err
	}
	total, err := SafeAdd(v.TotalBalance, amount)
	if err != nil {
		return overflow(v, "deposit", amount)
	}
	deposited, err := SafeAdd(v.TotalDeposited, amount)
	if err != nil {
		return overflow(v, "deposit counter", amount)
	}
	v.TotalBalance = total
	v.TotalDeposited = deposited
	return nil
}

// Withdraw total -= amount, withdrawn += amount，只能动可用部分
func Withdraw(v *types.Vault, amount uint64) error {
	if err := RequirePositive(amount); err != nil {
		return err
	}
	if amount > v.AvailableBalance() {
		return insufficientAvailable(v, amount)
	}
	withdrawn, err := SafeAdd(v.TotalWithdrawn, amount)
	if err != nil {
		return overflow(v, "withdraw counter", amount)
	}
	v.TotalBalance -= amount
	v.TotalWithdrawn = withdrawn
	return nil
}

// Lock locked += amount，不移动资产
func Lock(v *types.Vault, amount uint64) error {
	if err := RequirePositive(amount); err != nil {
		return err
	}
	if amount > v.AvailableBalance() {
		return insufficientAvailable(v, amount)
	}
	v.LockedBalance += amount
	return nil
}

// Unlock locked -= amount
func Unlock(v *types.Vault, amount uint64) error {
	if err := RequirePositive(amount); err != nil {
		return err
	}
	if amount > v.LockedBalance {
		return types.WithMetadata(types.CodeInsufficientLockedBalance, "unlock exceeds locked balance", meta(v, amount))
	}
	v.LockedBalance -= amount
	return nil
}

// Transfer from.total -= amount, to.total += amount。
// 转入方的 TotalDeposited 不变：这是金库间的内部划转，不是新的存入
func Transfer(from, to *types.Vault, amount uint64) error {
	if from.Owner == to.Owner {
		return types.ErrSameVault
	}
	if err := RequirePositive(amount); err != nil {
		return err
	}
	if amount > from.AvailableBalance() {
		return insufficientAvailable(from, amount)
	}
	toTotal, err := SafeAdd(to.TotalBalance, amount)
	if err != nil {
		return overflow(to, "transfer", amount)
	}
	from.TotalBalance -= amount
	to.TotalBalance = toTotal
	return nil
}

// CanClose total == 0 且 locked == 0
func CanClose(v *types.Vault) error {
	if !v.IsEmpty() {
		return types.WithMetadata(types.CodeVaultNotEmpty, "vault still holds collateral", map[string]string{
			"owner":  string(v.Owner),
			"total":  strconv.FormatUint(v.TotalBalance, 10),
			"locked": strconv.FormatUint(v.LockedBalance, 10),
		})
	}
	return nil
}

// CheckInvariants 提交前的最后一道检查
func CheckInvariants(v *types.Vault) error {
	if v.Owner == "" {
		return types.ErrInvalidIdentity
	}
	if v.LockedBalance > v.TotalBalance {
		return types.Errorf(types.CodeInsufficientLockedBalance, "vault %s: locked %d exceeds total %d", v.Owner, v.LockedBalance, v.TotalBalance)
	}
	return nil
}

// CheckCounters 计数器单调性：after 的两个计数器不能小于 before
func CheckCounters(before, after *types.Vault) error {
	if before == nil || after == nil {
		return nil
	}
	if after.TotalDeposited < before.TotalDeposited || after.TotalWithdrawn < before.TotalWithdrawn {
		return types.Errorf(types.CodeArithmeticOverflow, "vault %s: lifetime counter decreased", after.Owner)
	}
	return nil
}

func meta(v *types.Vault, amount uint64) map[string]string {
	return map[string]string{
		"owner":     string(v.Owner),
		"amount":    strconv.FormatUint(amount, 10),
		"total":     strconv.FormatUint(v.TotalBalance, 10),
		"locked":    strconv.FormatUint(v.LockedBalance, 10),
		"available": strconv.FormatUint(v.AvailableBalance(), 10),
	}
}

func insufficientAvailable(v *types.Vault, amount uint64) error {
	return types.WithMetadata(types.CodeInsufficientAvailableBalance, "amount exceeds available balance", meta(v, amount))
}

func overflow(v *types.Vault, what string, amount uint64) error {
	return types.WithMetadata(types.CodeArithmeticOverflow, what+" would overflow", meta(v, amount))
}
