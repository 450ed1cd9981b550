package vm

import (
	"encoding/hex"
	"strings"

	"collateral/types"
	"collateral/utils"

	lru "github.com/hashicorp/golang-lru"
)

// ========== 回执缓存 ==========

// receiptCache 按操作 ID 缓存成功回执：同一个 ID、同一个操作重复提交时直接返回上次的结果，不会二次执行
type receiptCache struct {
	c *lru.Cache
}

type cachedReceipt struct {
	fingerprint string
	receipt     *Receipt
}

func newReceiptCache(capacity int) (*receiptCache, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	c, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &receiptCache{c: c}, nil
}

// fingerprint 操作内容的摘要，Owner 按默认值归一化
func fingerprint(op *Operation) string {
	parts := []string{op.Kind, string(op.Caller), string(op.target()), string(op.From), string(op.To), op.Amount}
	return hex.EncodeToString(utils.Sha256Hash([]byte(strings.Join(parts, "\x00"))))
}

// Get 命中且内容一致时返回回执副本；ID 被另一个操作占用时返回 InvalidOperation
func (rc *receiptCache) Get(op *Operation) (*Receipt, bool, error) {
	if op.ID == "" {
		return nil, false, nil
	}
	v, ok := rc.c.Get(op.ID)
	if !ok {
		return nil, false, nil
	}
	entry := v.(*cachedReceipt)
	if entry.fingerprint != fingerprint(op) {
		return nil, false, types.WithMetadata(types.CodeInvalidOperation, "operation id reused", map[string]string{
			"id":   op.ID,
			"kind": entry.receipt.Kind,
		})
	}
	return entry.receipt.Clone(), true, nil
}

func (rc *receiptCache) Put(op *Operation, r *Receipt) {
	if r == nil || r.OpID == "" || r.Status != StatusSucceed {
		return
	}
	rc.c.Add(r.OpID, &cachedReceipt{fingerprint: fingerprint(op), receipt: r.Clone()})
}
