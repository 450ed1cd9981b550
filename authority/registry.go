package authority

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collateral/interfaces"
	"collateral/keys"
	"collateral/logs"
	"collateral/types"

	"github.com/google/uuid"
)

// Registry 全局唯一的 admin + 授权程序白名单。
// 由调用方显式构造后交给执行器，不使用包级全局变量
type Registry struct {
	mu          sync.RWMutex
	store       interfaces.Store
	logger      logs.Logger
	maxPrograms int
	now         func() time.Time

	record *types.Authority            // nil 表示尚未初始化
	index  map[types.Identity]struct{} // 成员判断 O(1)
}

// Option 构造选项
type Option func(*Registry)

// WithClock 测试里固定时间
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Load 从存储恢复注册表，存储里没有记录时返回一个未初始化的注册表
func Load(store interfaces.Store, maxPrograms int, logger logs.Logger, opts ...Option) (*Registry, error) {
	if logger == nil {
		logger = logs.NewNopLogger()
	}
	if maxPrograms <= 0 {
		return nil, fmt.Errorf("maxPrograms must be positive, got %d", maxPrograms)
	}
	r := &Registry{
		store:       store,
		logger:      logger,
		maxPrograms: maxPrograms,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	raw, err := store.Get(keys.KeyAuthority())
	if err != nil {
		return nil, fmt.Errorf("load authority: %w", err)
	}
	if raw != nil {
		rec, err := types.DecodeAuthority(raw)
		if err != nil {
			return nil, fmt.Errorf("load authority: %w", err)
		}
		r.setRecord(rec)
		logger.Info("[authority] loaded admin=%s programs=%d", rec.Admin, len(rec.Programs))
	}
	return r, nil
}

func (r *Registry) setRecord(rec *types.Authority) {
	r.record = rec
	r.index = make(map[types.Identity]struct{}, len(rec.Programs))
	for _, p := range rec.Programs {
		r.index[p] = struct{}{}
	}
}

// Initialize 创建注册表；initialPrograms 插入时去重
func (r *Registry) Initialize(ctx context.Context, admin types.Identity, initialPrograms []types.Identity) (*types.Event, error) {
	if err := admin.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.record != nil {
		return nil, types.ErrAlreadyInitialized
	}
	// 1. 去重，保持首次出现的顺序
	programs := make([]types.Identity, 0, len(initialPrograms))
	seen := make(map[types.Identity]struct{}, len(initialPrograms))
	for _, p := range initialPrograms {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		programs = append(programs, p)
	}
	if len(programs) > r.maxPrograms {
		return nil, types.Errorf(types.CodeTooManyPrograms, "%d programs exceeds limit %d", len(programs), r.maxPrograms)
	}

	// 2. 落库后再替换内存状态
	rec := &types.Authority{Admin: admin, Programs: programs, CreatedAt: r.now().Unix()}
	ev, err := r.persist(rec, types.EventAuthorityInitialized, admin, "")
	if err != nil {
		return nil, err
	}
	r.setRecord(rec)
	r.logger.Info("[authority] initialized admin=%s programs=%v", admin, programs)
	return ev, nil
}

// AddProgram admin 追加一个授权程序
func (r *Registry) AddProgram(ctx context.Context, caller, program types.Identity) (*types.Event, error) {
	if err := program.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, ok := r.index[program]; ok {
		return nil, types.WithMetadata(types.CodeDuplicateProgram, "program already authorized", map[string]string{"program": string(program)})
	}
	if len(r.record.Programs) >= r.maxPrograms {
		return nil, types.Errorf(types.CodeTooManyPrograms, "limit %d reached", r.maxPrograms)
	}

	next := r.record.Clone()
	next.Programs = append(next.Programs, program)
	ev, err := r.persist(next, types.EventProgramAuthorized, caller, program)
	if err != nil {
		return nil, err
	}
	r.setRecord(next)
	r.logger.Info("[authority] program %s authorized by %s", program, caller)
	return ev, nil
}

// RemoveProgram admin 移除一个授权程序，其余条目保持相对顺序
func (r *Registry) RemoveProgram(ctx context.Context, caller, program types.Identity) (*types.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if _, ok := r.index[program]; !ok {
		return nil, types.WithMetadata(types.CodeProgramNotFound, "program not authorized", map[string]string{"program": string(program)})
	}

	next := r.record.Clone()
	next.Programs = next.Programs[:0]
	for _, p := range r.record.Programs {
		if p != program {
			next.Programs = append(next.Programs, p)
		}
	}
	ev, err := r.persist(next, types.EventProgramDeauthorized, caller, program)
	if err != nil {
		return nil, err
	}
	r.setRecord(next)
	r.logger.Info("[authority] program %s removed by %s", program, caller)
	return ev, nil
}

// IsAuthorized 纯查询，读锁
func (r *Registry) IsAuthorized(id types.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// Initialized 注册表是否已创建
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.record != nil
}

// Admin 未初始化时返回 ErrAuthorityNotInitialized
func (r *Registry) Admin() (types.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.record == nil {
		return "", types.ErrAuthorityNotInitialized
	}
	return r.record.Admin, nil
}

// Programs 按插入顺序返回白名单副本
func (r *Registry) Programs() []types.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.record == nil {
		return nil
	}
	return append([]types.Identity(nil), r.record.Programs...)
}

// Snapshot 整条记录的副本
func (r *Registry) Snapshot() (*types.Authority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.record == nil {
		return nil, types.ErrAuthorityNotInitialized
	}
	return r.record.Clone(), nil
}

// requireAdmin 调用方持有写锁
func (r *Registry) requireAdmin(caller types.Identity) error {
	if r.record == nil {
		return types.ErrAuthorityNotInitialized
	}
	if caller != r.record.Admin {
		return types.WithMetadata(types.CodeUnauthorized, "caller is not the authority admin", map[string]string{"caller": string(caller)})
	}
	return nil
}

// persist 注册表记录和事件在同一个事务里落库
func (r *Registry) persist(rec *types.Authority, evType types.EventType, caller, program types.Identity) (*types.Event, error) {
	data, err := types.EncodeAuthority(rec)
	if err != nil {
		return nil, fmt.Errorf("encode authority: %w", err)
	}
	ev := &types.Event{
		ID:           uuid.NewString(),
		Type:         evType,
		Caller:       caller,
		Counterparty: program,
		Programs:     append([]types.Identity(nil), rec.Programs...),
		Timestamp:    r.now().UnixNano(),
	}
	op := interfaces.WriteOp{Key: keys.KeyAuthority(), Value: data, Category: keys.CategoryAuthority}
	if err := r.store.ApplyWrites([]interfaces.WriteOp{op}, []*types.Event{ev}); err != nil {
		r.logger.Error("[authority] persist %s failed: %v", evType, err)
		return nil, fmt.Errorf("persist authority: %w", err)
	}
	return ev, nil
}
