// config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config 主配置结构
type Config struct {
	Database DatabaseConfig
	Vault    VaultConfig
	Log      LogConfig
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// BadgerDB配置
	Path             string `env:"COLLATERAL_DB_PATH"`           // 数据目录
	InMemory         bool   `env:"COLLATERAL_DB_IN_MEMORY"`      // true 时不落盘，测试使用
	ValueLogFileSize int64  `env:"COLLATERAL_DB_VALUE_LOG_SIZE"` // 64 << 20 (64MB)
	SyncWrites       bool   `env:"COLLATERAL_DB_SYNC_WRITES"`    // true

	// 缓存配置
	ReadCacheSize     int    `env:"COLLATERAL_DB_READ_CACHE_SIZE"`    // 4096 条记录
	SequenceBandwidth uint64 `env:"COLLATERAL_DB_SEQUENCE_BANDWIDTH"` // 1000
}

// VaultConfig 金库与权限相关配置
type VaultConfig struct {
	// 授权程序白名单上限
	MaxAuthorizedPrograms int `env:"COLLATERAL_MAX_AUTHORIZED_PROGRAMS"` // 10
	// Events 查询单次最多返回多少条
	MaxEventPage int `env:"COLLATERAL_MAX_EVENT_PAGE"` // 1000
	// 按操作 ID 缓存的成功回执条数
	ReceiptCacheSize int `env:"COLLATERAL_RECEIPT_CACHE_SIZE"` // 4096
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `env:"COLLATERAL_LOG_LEVEL"` // "info"
	Name  string `env:"COLLATERAL_LOG_NAME"`  // "collateral"
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:              "./data/collateral",
			InMemory:          false,
			ValueLogFileSize:  64 << 20,
			SyncWrites:        true,
			ReadCacheSize:     4096,
			SequenceBandwidth: 1000,
		},
		Vault: VaultConfig{
			MaxAuthorizedPrograms: 10,
			MaxEventPage:          1000,
			ReceiptCacheSize:      4096,
		},
		Log: LogConfig{
			Level: "info",
			Name:  "collateral",
		},
	}
}

// LoadFromEnv 在默认配置之上叠加 COLLATERAL_* 环境变量
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("Database.Path must be set unless InMemory")
	}
	if c.Database.ValueLogFileSize <= 0 {
		return fmt.Errorf("ValueLogFileSize must be positive")
	}
	if c.Database.ReadCacheSize <= 0 {
		return fmt.Errorf("ReadCacheSize must be positive")
	}
	if c.Database.SequenceBandwidth == 0 {
		return fmt.Errorf("SequenceBandwidth must be positive")
	}
	if c.Vault.MaxAuthorizedPrograms <= 0 {
		return fmt.Errorf("MaxAuthorizedPrograms must be positive")
	}
	if c.Vault.ReceiptCacheSize <= 0 {
		return fmt.Errorf("ReceiptCacheSize must be positive")
	}
	if c.Vault.MaxEventPage <= 0 {
		return fmt.Errorf("MaxEventPage must be positive")
	}
	return nil
}
