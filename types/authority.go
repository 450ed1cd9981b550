package types

// Authority 全局唯一的权限注册表记录
type Authority struct {
	Admin     Identity
	Programs  []Identity // 保留插入顺序，无重复
	CreatedAt int64
}

// Clone 深拷贝
func (a *Authority) Clone() *Authority {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Programs = append([]Identity(nil), a.Programs...)
	return &cp
}
