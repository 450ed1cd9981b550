package types

// Vault 每个 owner 一条记录。可用余额不落库，永远由 TotalBalance - LockedBalance 推出
type Vault struct {
	Owner          Identity
	CustodyAccount string // 托管方持有该金库资产的账户
	TotalBalance   uint64
	LockedBalance  uint64
	TotalDeposited uint64 // 只在 deposit 时增长
	TotalWithdrawn uint64 // 只在 withdraw 时增长
	Index          uint32 // 稠密索引，用于打开金库的位图
	CreatedAt      int64  // unix 秒
}

// AvailableBalance 可提取、可再锁定的部分
func (v *Vault) AvailableBalance() uint64 {
	if v.LockedBalance > v.TotalBalance {
		return 0
	}
	return v.TotalBalance - v.LockedBalance
}

// Clone 深拷贝（字段都是值类型）
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// IsEmpty 满足关闭条件
func (v *Vault) IsEmpty() bool {
	return v.TotalBalance == 0 && v.LockedBalance == 0
}
