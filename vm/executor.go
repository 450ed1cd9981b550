package vm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"collateral/authority"
	"collateral/config"
	"collateral/custody"
	"collateral/interfaces"
	"collateral/keys"
	"collateral/ledger"
	"collateral/logs"
	"collateral/stats"
	"collateral/types"

	"github.com/google/uuid"
)

// Executor 调度器：加锁 -> 预执行 -> 托管预留 -> 单事务落库 -> 托管结算
type Executor struct {
	Store     interfaces.Store
	Reg       *HandlerRegistry
	Auth      *authority.Registry
	Custodian custody.Custodian
	Logger    logs.Logger
	Stats     *stats.Stats

	locks    *lockTable
	receipts *receiptCache
	cfg      *config.Config
	now      func() time.Time
}

// Option 构造选项
type Option func(*Executor)

// WithClock 测试里固定时间
func WithClock(now func() time.Time) Option {
	return func(x *Executor) { x.now = now }
}

// WithHandlerRegistry 使用自定义的处理器注册表（不再注册默认处理器）
func WithHandlerRegistry(reg *HandlerRegistry) Option {
	return func(x *Executor) { x.Reg = reg }
}

// NewExecutor 注册表和托管方由调用方显式构造后传入
func NewExecutor(store interfaces.Store, auth *authority.Registry, custodian custody.Custodian, logger logs.Logger, cfg *config.Config, opts ...Option) (*Executor, error) {
	if store == nil || auth == nil || custodian == nil {
		return nil, errors.New("executor needs a store, an authority registry and a custodian")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logs.NewNopLogger()
	}
	receipts, err := newReceiptCache(cfg.Vault.ReceiptCacheSize)
	if err != nil {
		return nil, fmt.Errorf("receipt cache: %w", err)
	}

	x := &Executor{
		Store:     store,
		Auth:      auth,
		Custodian: custodian,
		Logger:    logger,
		Stats:     stats.NewStats(0),
		locks:     newLockTable(),
		receipts:  receipts,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.Reg == nil {
		x.Reg = NewHandlerRegistry()
		if err := RegisterDefaultHandlers(x.Reg, auth, store); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Execute 执行一次操作。失败时返回 FAILED 回执和错误，所有状态保持原样
func (x *Executor) Execute(ctx context.Context, in *Operation) (*Receipt, error) {
	if in == nil {
		return nil, ErrNilOperation
	}
	start := time.Now()
	r, err := x.execute(ctx, in)
	code := ""
	if err != nil {
		code = "error"
		if c := types.CodeOf(err); c != "" {
			code = string(c)
		}
	}
	x.Stats.Record(in.Kind, code, time.Since(start))
	return r, err
}

func (x *Executor) execute(ctx context.Context, in *Operation) (*Receipt, error) {
	op := *in
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Timestamp == 0 {
		op.Timestamp = x.now().UnixNano()
	}

	h, ok := x.Reg.Get(op.Kind)
	if !ok {
		return x.fail(&op, types.Errorf(types.CodeInvalidOperation, "unknown operation kind %q", op.Kind))
	}

	// 1. 按固定顺序锁住所有涉及的金库
	release := x.locks.acquire(h.Targets(&op)...)
	defer release()

	r, ok, err := x.receipts.Get(&op)
	if err != nil {
		return x.fail(&op, err)
	}
	if ok {
		x.Logger.Debug("[vm] op %s already executed, returning cached receipt", op.ID)
		if r.SettlementFailed {
			return r, types.Errorf(types.CodeCustodyAccount, "custody settlement failed after commit: %s", r.Error)
		}
		return r, nil
	}

	// 2. 预执行，只动 overlay；之后逐个金库检查不变量与累计计数器
	before, err := x.loadTargets(h.Targets(&op))
	if err != nil {
		return x.fail(&op, err)
	}
	sv := NewStateView(x.Store.Get, x.Store.Scan)
	eff, err := h.DryRun(&op, sv)
	if err != nil {
		return x.fail(&op, err)
	}
	for _, v := range eff.Vaults {
		if err := ledger.CheckInvariants(v); err != nil {
			return x.fail(&op, err)
		}
		if err := ledger.CheckCounters(before[v.Owner], v); err != nil {
			return x.fail(&op, err)
		}
	}
	writes := sv.Diff()

	// 3. 托管方预留
	var ticket string
	if !eff.Plan.Empty() {
		ticket, err = x.Custodian.Prepare(ctx, eff.Plan)
		if err != nil {
			return x.fail(&op, err)
		}
	}

	// 4. 写集与事件同一个事务提交
	var events []*types.Event
	if eff.Event != nil {
		events = []*types.Event{eff.Event}
	}
	if err := x.Store.ApplyWrites(writes, events); err != nil {
		if ticket != "" {
			if abortErr := x.Custodian.Abort(ctx, ticket); abortErr != nil {
				x.Logger.Error("[vm] op %s: abort custody ticket %s failed: %v", op.ID, ticket, abortErr)
			}
		}
		return x.fail(&op, fmt.Errorf("commit %s: %w", op.Kind, err))
	}

	r = &Receipt{
		OpID:       op.ID,
		Kind:       op.Kind,
		Status:     StatusSucceed,
		Timestamp:  op.Timestamp,
		WriteCount: len(writes),
		Vaults:     eff.Vaults,
	}
	if eff.Event != nil {
		r.EventSeq = eff.Event.Seq
	}

	// 5. 托管结算。Prepare 成功后结算失败说明托管方违约，账本已提交，只能告警
	if ticket != "" {
		if err := x.Custodian.Commit(ctx, ticket); err != nil {
			x.Logger.Error("[vm] op %s committed but custody ticket %s failed to settle: %v", op.ID, ticket, err)
			r.Error = err.Error()
			r.Code = types.CodeCustodyAccount
			r.SettlementFailed = true
			x.recordSettlementFailure(&op, eff.Event, err)
			x.receipts.Put(&op, r)
			return r, types.Wrap(types.CodeCustodyAccount, "custody settlement failed after commit", err)
		}
	}

	x.receipts.Put(&op, r)
	x.Logger.Info("[vm] %s op=%s caller=%s amount=%s seq=%d", op.Kind, op.ID, op.Caller, op.Amount, r.EventSeq)
	return r, nil
}

// loadTargets 读取操作前的金库，不存在的 owner 不出现在结果里
func (x *Executor) loadTargets(owners []types.Identity) (map[types.Identity]*types.Vault, error) {
	out := make(map[types.Identity]*types.Vault, len(owners))
	for _, owner := range owners {
		raw, err := x.Store.Get(keys.KeyVault(string(owner)))
		if err != nil {
			return nil, fmt.Errorf("read vault %s: %w", owner, err)
		}
		if raw == nil {
			continue
		}
		v, err := types.DecodeVault(raw)
		if err != nil {
			return nil, err
		}
		out[owner] = v
	}
	return out, nil
}

// recordSettlementFailure 单独记一条事件，供对账找出账本与托管不一致的操作
func (x *Executor) recordSettlementFailure(op *Operation, committed *types.Event, cause error) {
	ev := &types.Event{
		ID:        op.ID,
		Type:      types.EventSettlementFailed,
		Caller:    op.Caller,
		Vault:     op.target(),
		Timestamp: op.Timestamp,
	}
	if committed != nil {
		ev.Vault = committed.Vault
		ev.Counterparty = committed.Counterparty
		ev.Amount = committed.Amount
		ev.TotalBalance = committed.TotalBalance
		ev.LockedBalance = committed.LockedBalance
		ev.AvailableBalance = committed.AvailableBalance
	}
	if err := x.Store.ApplyWrites(nil, []*types.Event{ev}); err != nil {
		x.Logger.Error("[vm] op %s: record settlement failure (%v) failed: %v", op.ID, cause, err)
	}
}

func (x *Executor) fail(op *Operation, err error) (*Receipt, error) {
	x.Logger.Debug("[vm] %s op=%s caller=%s rejected: %v", op.Kind, op.ID, op.Caller, err)
	return &Receipt{
		OpID:      op.ID,
		Kind:      op.Kind,
		Status:    StatusFailed,
		Error:     err.Error(),
		Code:      types.CodeOf(err),
		Timestamp: op.Timestamp,
	}, err
}

// ========== 带类型的入口 ==========

func (x *Executor) CreateVault(ctx context.Context, caller types.Identity) (*types.Vault, error) {
	r, err := x.Execute(ctx, &Operation{Kind: KindCreateVault, Caller: caller})
	return vaultOf(r, err, caller)
}

func (x *Executor) Deposit(ctx context.Context, caller types.Identity, amount uint64) (*types.Vault, error) {
	r, err := x.Execute(ctx, &Operation{Kind: KindDeposit, Caller: caller, Amount: ledger.FormatAmount(amount)})
	return vaultOf(r, err, caller)
}

func (x *Executor) Withdraw(ctx context.Context, caller types.Identity, amount uint64) (*types.Vault, error) {
	r, err := x.Execute(ctx, &Operation{Kind: KindWithdraw, Caller: caller, Amount: ledger.FormatAmount(amount)})
	return vaultOf(r, err, caller)
}

func (x *Executor) Lock(ctx context.Context, caller, owner types.Identity, amount uint64) (*types.Vault, error) {
	r, err := x.Execute(ctx, &Operation{Kind: KindLock, Caller: caller, Owner: owner, Amount: ledger.FormatAmount(amount)})
	return vaultOf(r, err, owner)
}

func (x *Executor) Unlock(ctx context.Context, caller, owner types.Identity, amount uint64) (*types.Vault, error) {
	r, err := x.Execute(ctx, &Operation{Kind: KindUnlock, Caller: caller, Owner: owner, Amount: ledger.FormatAmount(amount)})
	return vaultOf(r, err, owner)
}

// TransferCollateral 返回操作后的转出方和转入方
func (x *Executor) TransferCollateral(ctx context.Context, caller, from, to types.Identity, amount uint64) (*types.Vault, *types.Vault, error) {
	r, err := x.Execute(ctx, &Operation{Kind: KindTransfer, Caller: caller, From: from, To: to, Amount: ledger.FormatAmount(amount)})
	if !committed(r) {
		return nil, nil, err
	}
	return r.Vault(from), r.Vault(to), err
}

// committed 操作已落账（包括结算失败的情况）
func committed(r *Receipt) bool {
	return r != nil && r.Status == StatusSucceed
}

// vaultOf 已落账时即使有错误也返回金库快照
func vaultOf(r *Receipt, err error, owner types.Identity) (*types.Vault, error) {
	if !committed(r) {
		return nil, err
	}
	return r.Vault(owner), err
}

func (x *Executor) CloseVault(ctx context.Context, caller types.Identity) error {
	_, err := x.Execute(ctx, &Operation{Kind: KindCloseVault, Caller: caller})
	return err
}

// ========== 权限注册表 ==========

func (x *Executor) InitializeAuthority(ctx context.Context, admin types.Identity, programs []types.Identity) error {
	_, err := x.Auth.Initialize(ctx, admin, programs)
	return err
}

func (x *Executor) AddAuthorizedProgram(ctx context.Context, caller, program types.Identity) error {
	_, err := x.Auth.AddProgram(ctx, caller, program)
	return err
}

func (x *Executor) RemoveAuthorizedProgram(ctx context.Context, caller, program types.Identity) error {
	_, err := x.Auth.RemoveProgram(ctx, caller, program)
	return err
}

// ========== 查询 ==========

// GetVault 关闭或不存在的金库返回 ErrVaultNotFound
func (x *Executor) GetVault(owner types.Identity) (*types.Vault, error) {
	raw, err := x.Store.Get(keys.KeyVault(string(owner)))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, types.WithMetadata(types.CodeVaultNotFound, "vault not found", map[string]string{"owner": string(owner)})
	}
	return types.DecodeVault(raw)
}

// ListVaults 所有打开的金库，按 owner 排序
func (x *Executor) ListVaults() ([]*types.Vault, error) {
	kvs, err := x.Store.Scan(keys.KeyVaultPrefix())
	if err != nil {
		return nil, err
	}
	out := make([]*types.Vault, 0, len(kvs))
	for k, raw := range kvs {
		v, err := types.DecodeVault(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

// OpenVaults 打开金库的 owner，按开户顺序
func (x *Executor) OpenVaults() ([]types.Identity, error) {
	if lister, ok := x.Store.(OpenVaultLister); ok {
		return lister.OpenVaults()
	}
	kvs, err := x.Store.Scan(keys.NameOfKeyIndexToVault())
	if err != nil {
		return nil, err
	}
	type entry struct {
		idx   uint32
		owner types.Identity
	}
	entries := make([]entry, 0, len(kvs))
	for k, v := range kvs {
		if idx, ok := keys.IndexFromKey(k); ok {
			entries = append(entries, entry{idx: idx, owner: types.Identity(v)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
	owners := make([]types.Identity, len(entries))
	for i, e := range entries {
		owners[i] = e.owner
	}
	return owners, nil
}

// Events 序号大于 afterSeq 的事件，limit 超过配置上限时按上限截断
func (x *Executor) Events(afterSeq uint64, limit int) ([]*types.Event, error) {
	if limit <= 0 || limit > x.cfg.Vault.MaxEventPage {
		limit = x.cfg.Vault.MaxEventPage
	}
	return x.Store.Events(afterSeq, limit)
}
