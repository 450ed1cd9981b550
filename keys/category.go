// keys/category.go
// Key 分类模块：给 WriteOp 打分类标签，便于追踪和调试
package keys

import "strings"

// 数据分类
const (
	CategoryAuthority = "authority" // 权限注册表
	CategoryVault     = "vault"     // 金库状态
	CategoryIndex     = "index"     // 金库稠密索引
	CategoryEvent     = "event"     // 事件流水（不可变）
	CategoryMeta      = "meta"      // 发号器等元数据
	CategoryUnknown   = ""
)

// CategorizeKey 判断 key 属于哪一类数据
func CategorizeKey(key string) string {
	switch {
	case key == KeyAuthority():
		return CategoryAuthority
	case strings.HasPrefix(key, KeyVaultPrefix()):
		return CategoryVault
	case strings.HasPrefix(key, NameOfKeyIndexToVault()):
		return CategoryIndex
	case strings.HasPrefix(key, KeyEventPrefix()):
		return CategoryEvent
	case strings.HasPrefix(key, withVer("meta_")):
		return CategoryMeta
	default:
		return CategoryUnknown
	}
}

// IsStatefulKey 判断 key 是否属于可变状态
func IsStatefulKey(key string) bool {
	switch CategorizeKey(key) {
	case CategoryAuthority, CategoryVault, CategoryIndex:
		return true
	}
	return false
}

// IsFlowKey 判断 key 是否属于不可变流水
func IsFlowKey(key string) bool {
	return CategorizeKey(key) == CategoryEvent
}
