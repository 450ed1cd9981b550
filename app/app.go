// app/app.go
package app

import (
	"errors"
	"fmt"
	"sync"

	"collateral/authority"
	"collateral/config"
	"collateral/custody"
	"collateral/db"
	"collateral/logs"
	"collateral/vm"
)

// Container 依赖注入容器
type Container struct {
	Config    *config.Config
	Logger    logs.Logger
	DB        *db.Manager
	Authority *authority.Registry
	Custodian custody.Custodian
	Executor  *vm.Executor
}

// App 主应用结构
type App struct {
	container *Container
	closeOnce sync.Once
	closeErr  error
}

// New 按依赖顺序组装：数据库 -> 权限注册表 -> 执行器。
// custodian 为 nil 时使用内存托管方
func New(cfg *config.Config, custodian custody.Custodian) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := logs.NewNodeLogger(cfg.Log.Name, logs.ParseLevel(cfg.Log.Level))
	logs.SetLogger(logger)

	// 1. 数据库层
	dbManager, err := db.NewManagerWithConfig(logger.Named("db"), cfg)
	if err != nil {
		return nil, fmt.Errorf("db init failed: %w", err)
	}

	// 2. 权限注册表
	registry, err := authority.Load(dbManager, cfg.Vault.MaxAuthorizedPrograms, logger.Named("authority"))
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("authority init failed: %w", err)
	}

	// 3. 托管方与执行器
	if custodian == nil {
		custodian = custody.NewMemory(logger.Named("custody"))
	}
	executor, err := vm.NewExecutor(dbManager, registry, custodian, logger.Named("vm"), cfg)
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("executor init failed: %w", err)
	}

	logs.Info("collateral node ready, %d open vaults", dbManager.IndexMgr.Count())
	return &App{container: &Container{
		Config:    cfg,
		Logger:    logger,
		DB:        dbManager,
		Authority: registry,
		Custodian: custodian,
		Executor:  executor,
	}}, nil
}

// Close 关闭数据库，可重复调用
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		logs.Info("shutting down")
		if a.closeErr = a.container.DB.Close(); a.closeErr != nil {
			logs.Error("close database: %v", a.closeErr)
		}
	})
	return a.closeErr
}

// Executor 对外的调度入口
func (a *App) Executor() *vm.Executor {
	return a.container.Executor
}

// GetContainer 获取容器（用于测试或特殊场景）
func (a *App) GetContainer() *Container {
	return a.container
}

// ErrNoMemoryCustodian 当前托管方不是内存实现
var ErrNoMemoryCustodian = errors.New("custodian is not the in-memory implementation")

// MemoryCustodian 本地运行时取出内存托管方用于充值
func (a *App) MemoryCustodian() (*custody.Memory, error) {
	m, ok := a.container.Custodian.(*custody.Memory)
	if !ok {
		return nil, ErrNoMemoryCustodian
	}
	return m, nil
}
