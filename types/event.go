package types

// ============================================
// 事件系统（与状态变更同一个事务写入）
// ============================================

type EventType string

const (
	EventAuthorityInitialized EventType = "authority.initialized"
	EventProgramAuthorized    EventType = "program.authorized"
	EventProgramDeauthorized  EventType = "program.deauthorized"
	EventVaultInitialized     EventType = "vault.initialized"
	EventDeposit              EventType = "vault.deposit"
	EventWithdraw             EventType = "vault.withdraw"
	EventLock                 EventType = "vault.lock"
	EventUnlock               EventType = "vault.unlock"
	EventTransfer             EventType = "vault.transfer"
	EventVaultClosed          EventType = "vault.closed"

	// 账本已提交、托管方结算失败
	EventSettlementFailed EventType = "custody.settlement_failed"
)

// Event 一次已提交操作的记录
type Event struct {
	Seq          uint64 // 提交顺序
	ID           string // uuid
	Type         EventType
	Caller       Identity
	Vault        Identity // 被操作的金库（transfer 时为转出方）
	Counterparty Identity // transfer 的转入方
	Amount       uint64

	// 操作完成后 Vault 的余额快照
	TotalBalance     uint64
	LockedBalance    uint64
	AvailableBalance uint64

	Programs  []Identity // 注册表事件：变更后的白名单
	Timestamp int64      // unix 纳秒
}

// WithVault 把金库的当前余额填进事件
func (e *Event) WithVault(v *Vault) *Event {
	if v == nil {
		return e
	}
	e.Vault = v.Owner
	e.TotalBalance = v.TotalBalance
	e.LockedBalance = v.LockedBalance
	e.AvailableBalance = v.AvailableBalance()
	return e
}
