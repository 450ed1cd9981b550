package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeVaultNotEmpty, "close rejected", map[string]string{"owner": "alice"})
	assert.True(t, errors.Is(err, ErrVaultNotEmpty))
	assert.False(t, errors.Is(err, ErrVaultNotFound))

	wrapped := fmt.Errorf("execute: %w", err)
	assert.True(t, errors.Is(wrapped, ErrVaultNotEmpty))
	assert.Equal(t, CodeVaultNotEmpty, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestSortIdentities(t *testing.T) {
	assert.Equal(t, []Identity{"a", "b", "c"}, SortIdentities("c", "a", "b", "a"))
}

func TestVaultAvailableIsDerived(t *testing.T) {
	v := &Vault{Owner: "alice", TotalBalance: 1000, LockedBalance: 500}
	assert.Equal(t, uint64(500), v.AvailableBalance())
	assert.Equal(t, v.TotalBalance, v.LockedBalance+v.AvailableBalance())

	cp := v.Clone()
	cp.LockedBalance = 0
	assert.Equal(t, uint64(500), v.LockedBalance)
	assert.False(t, v.IsEmpty())
}
