// keys/keys.go
// 统一的 Key 定义包，供 vm、authority 和 db 模块共同使用
package keys

import (
	"fmt"
	"strconv"
	"strings"
)

// ===================== 版本控制 =====================
// 设置全局 Key 版本前缀（例如 "v1" → 产出 "v1_<key>"）。
const KeyVersion = "v1"

// withVer 把版本号拼到最前面（保持下划线风格：v1_<...>）
func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// StripVersion 把带版本的键去掉版本前缀
func StripVersion(prefixed string) string {
	if KeyVersion == "" {
		return prefixed
	}
	return strings.TrimPrefix(prefixed, KeyVersion+"_")
}

// ===================== 权限相关 =====================

// KeyAuthority 全局唯一的权限注册表
// 例：v1_authority
func KeyAuthority() string {
	return withVer("authority")
}

// ===================== 金库相关 =====================

// KeyVault 金库记录
// 例：v1_vault_<owner>
func KeyVault(owner string) string {
	return withVer("vault_" + owner)
}

// KeyVaultPrefix 金库记录前缀
func KeyVaultPrefix() string {
	return withVer("vault_")
}

// OwnerFromVaultKey 从金库 key 中提取 owner，不是金库 key 时返回空串
func OwnerFromVaultKey(key string) string {
	prefix := KeyVaultPrefix()
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	return key[len(prefix):]
}

// KeyIndexToVault 稠密索引到金库 owner 的映射
// 例：v1_indexToVault_<idx>
func KeyIndexToVault(idx uint32) string {
	return withVer(fmt.Sprintf("indexToVault_%d", idx))
}

// NameOfKeyIndexToVault 索引到金库的前缀
func NameOfKeyIndexToVault() string {
	return withVer("indexToVault_")
}

// IndexFromKey 解析 KeyIndexToVault 中的索引
func IndexFromKey(key string) (uint32, bool) {
	prefix := NameOfKeyIndexToVault()
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	idx, err := strconv.ParseUint(key[len(prefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(idx), true
}

// ===================== 事件相关 =====================

// KeyEvent 事件记录（outbox），序号补零保证按字典序即按提交顺序
// 例：v1_event_00000000000000000042
func KeyEvent(seq uint64) string {
	return withVer("event_" + padUint(seq))
}

// KeyEventPrefix 事件前缀
func KeyEventPrefix() string {
	return withVer("event_")
}

// ===================== 元数据 =====================

// KeyEventSequence badger Sequence 使用的 key
func KeyEventSequence() string {
	return withVer("meta_event_seq")
}

// KeyIndexSequence 金库索引发号器
func KeyIndexSequence() string {
	return withVer("meta_max_index")
}

func padUint(v uint64) string {
	return fmt.Sprintf("%020d", v)
}
