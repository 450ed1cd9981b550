package types

import "sort"

// Identity 已经过外部验签的调用方身份（owner、admin、program 共用）
type Identity string

// Validate 身份不能为空
func (id Identity) Validate() error {
	if id == "" {
		return ErrInvalidIdentity
	}
	return nil
}

func (id Identity) String() string { return string(id) }

// SortIdentities 按字节序排序并去重，返回新切片
func SortIdentities(ids ...Identity) []Identity {
	out := make([]Identity, 0, len(ids))
	seen := make(map[Identity]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
