package custody

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"collateral/ledger"
	"collateral/logs"
	"collateral/types"

	"github.com/google/uuid"
)

type account struct {
	balance  uint64
	reserved uint64 // 已 Prepare 未 Commit 的转出
	incoming uint64 // 已 Prepare 未 Commit 的转入
	closing  bool
}

func (a *account) free() uint64 { return a.balance - a.reserved }

type stage struct {
	plan Plan
}

// Memory 进程内托管方，测试和单机部署使用
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*account
	opening  map[string]struct{}
	stages   map[string]*stage
	logger   logs.Logger
}

var _ Custodian = (*Memory)(nil)

func NewMemory(logger logs.Logger) *Memory {
	if logger == nil {
		logger = logs.NewNopLogger()
	}
	return &Memory{
		accounts: make(map[string]*account),
		opening:  make(map[string]struct{}),
		stages:   make(map[string]*stage),
		logger:   logger,
	}
}

// Mint 给外部账户充值（账户不存在时创建）
func (m *Memory) Mint(acct string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[acct]
	if !ok {
		a = &account{}
		m.accounts[acct] = a
	}
	if _, err := ledger.SafeAdd(a.balance+a.incoming, amount); err != nil {
		return err
	}
	a.balance += amount
	return nil
}

// BalanceOf 已结算余额
func (m *Memory) BalanceOf(acct string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[acct]
	if !ok {
		return 0, false
	}
	return a.balance, true
}

// Pending 未结算的票据数量
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stages)
}

func (m *Memory) Prepare(ctx context.Context, plan Plan) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// 1. 开户：不能与已有账户或正在开的账户重名
	opening := make(map[string]struct{}, len(plan.Open))
	for _, name := range plan.Open {
		if _, ok := m.accounts[name]; ok {
			return "", types.Errorf(types.CodeCustodyAccount, "account %s already exists", name)
		}
		if _, ok := m.opening[name]; ok {
			return "", types.Errorf(types.CodeCustodyAccount, "account %s is being opened", name)
		}
		opening[name] = struct{}{}
	}

	// 2. 划转：逐笔检查，累计本计划内的预留，任何一笔失败都不留痕迹
	reserve := make(map[string]uint64)
	incoming := make(map[string]uint64)
	for _, mv := range plan.Moves {
		if mv.Amount == 0 {
			return "", types.ErrInvalidAmount
		}
		src, ok := m.accounts[mv.From]
		if !ok {
			// 从未入金的外部账户按余额 0 处理
			return "", types.WithMetadata(types.CodeInsufficientBalance, "source account has no funds", map[string]string{"account": mv.From})
		}
		if src.closing {
			return "", types.Errorf(types.CodeCustodyAccount, "source account %s is closing", mv.From)
		}
		if dst, ok := m.accounts[mv.To]; ok && dst.closing {
			return "", types.Errorf(types.CodeCustodyAccount, "destination account %s is closing", mv.To)
		} else if !ok {
			if _, planned := opening[mv.To]; !planned {
				return "", types.Errorf(types.CodeCustodyAccount, "destination account %s not found", mv.To)
			}
		}
		need, err := ledger.SafeAdd(reserve[mv.From], mv.Amount)
		if err != nil {
			return "", err
		}
		if need > src.free() {
			return "", types.WithMetadata(types.CodeInsufficientBalance, "insufficient balance in source account", map[string]string{
				"account":   mv.From,
				"requested": strconv.FormatUint(need, 10),
				"available": strconv.FormatUint(src.free(), 10),
			})
		}
		reserve[mv.From] = need
		in, err := ledger.SafeAdd(incoming[mv.To], mv.Amount)
		if err != nil {
			return "", err
		}
		incoming[mv.To] = in
	}
	for name, in := range incoming {
		var base uint64
		if dst, ok := m.accounts[name]; ok {
			base = dst.balance + dst.incoming
		}
		if _, err := ledger.SafeAdd(base, in); err != nil {
			return "", types.Errorf(types.CodeArithmeticOverflow, "account %s would overflow", name)
		}
	}

	// 3. 销户：账户必须存在，且本计划执行后余额为 0、无其它在途
	for _, name := range plan.Close {
		a, ok := m.accounts[name]
		if !ok || a.closing {
			return "", types.Errorf(types.CodeCustodyAccount, "account %s not found", name)
		}
		if a.reserved != 0 || a.incoming != 0 || incoming[name] != 0 || a.balance != reserve[name] {
			return "", types.Errorf(types.CodeCustodyAccount, "account %s is not empty", name)
		}
	}

	// 4. 校验全部通过，记账
	for name := range opening {
		m.opening[name] = struct{}{}
	}
	for name, amt := range reserve {
		m.accounts[name].reserved += amt
	}
	for name, amt := range incoming {
		if dst, ok := m.accounts[name]; ok {
			dst.incoming += amt
		}
	}
	for _, name := range plan.Close {
		m.accounts[name].closing = true
	}
	ticket := uuid.NewString()
	m.stages[ticket] = &stage{plan: plan}
	m.logger.Debug("[custody] prepared %s: open=%d moves=%d close=%d", ticket, len(plan.Open), len(plan.Moves), len(plan.Close))
	return ticket, nil
}

func (m *Memory) Commit(ctx context.Context, ticket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stages[ticket]
	if !ok {
		return fmt.Errorf("unknown custody ticket %s", ticket)
	}
	delete(m.stages, ticket)

	for _, name := range st.plan.Open {
		delete(m.opening, name)
		m.accounts[name] = &account{}
	}
	for _, mv := range st.plan.Moves {
		src := m.accounts[mv.From]
		dst := m.accounts[mv.To]
		src.reserved -= mv.Amount
		src.balance -= mv.Amount
		if dst.incoming >= mv.Amount {
			dst.incoming -= mv.Amount
		}
		dst.balance += mv.Amount
	}
	for _, name := range st.plan.Close {
		delete(m.accounts, name)
	}
	m.logger.Debug("[custody] committed %s", ticket)
	return nil
}

func (m *Memory) Abort(ctx context.Context, ticket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stages[ticket]
	if !ok {
		return fmt.Errorf("unknown custody ticket %s", ticket)
	}
	delete(m.stages, ticket)

	for _, name := range st.plan.Open {
		delete(m.opening, name)
	}
	for _, mv := range st.plan.Moves {
		m.accounts[mv.From].reserved -= mv.Amount
		if dst, ok := m.accounts[mv.To]; ok && dst.incoming >= mv.Amount {
			dst.incoming -= mv.Amount
		}
	}
	for _, name := range st.plan.Close {
		if a, ok := m.accounts[name]; ok {
			a.closing = false
		}
	}
	m.logger.Debug("[custody] aborted %s", ticket)
	return nil
}
