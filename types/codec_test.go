package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultCodec(t *testing.T) {
	v := &Vault{
		Owner:          "alice",
		CustodyAccount: "custody:alice",
		TotalBalance:   800,
		LockedBalance:  300,
		TotalDeposited: 1000,
		TotalWithdrawn: 200,
		Index:          7,
		CreatedAt:      1700000000,
	}
	data, err := EncodeVault(v)
	require.NoError(t, err)

	got, err := DecodeVault(data)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	assert.Equal(t, uint64(500), got.AvailableBalance())
}

func TestVaultCodecRejectsTampering(t *testing.T) {
	data, err := EncodeVault(&Vault{Owner: "alice", TotalBalance: 10})
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff
	_, err = DecodeVault(flipped)
	assert.True(t, errors.Is(err, ErrCorruptRecord))

	_, err = DecodeVault(data[:5])
	assert.True(t, errors.Is(err, ErrCorruptRecord))

	// 权限记录不能当金库解码
	auth, err := EncodeAuthority(&Authority{Admin: "admin"})
	require.NoError(t, err)
	_, err = DecodeVault(auth)
	assert.True(t, errors.Is(err, ErrCorruptRecord))
}

func TestAuthorityCodecKeepsProgramOrder(t *testing.T) {
	a := &Authority{Admin: "admin", Programs: []Identity{"p3", "p1", "p2"}, CreatedAt: 42}
	data, err := EncodeAuthority(a)
	require.NoError(t, err)

	got, err := DecodeAuthority(data)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestEventCodec(t *testing.T) {
	e := &Event{
		Seq:          3,
		ID:           "id-3",
		Type:         EventTransfer,
		Caller:       "program",
		Counterparty: "bob",
		Amount:       100,
		Timestamp:    99,
	}
	e.WithVault(&Vault{Owner: "alice", TotalBalance: 700, LockedBalance: 300})

	data, err := EncodeEvent(e)
	require.NoError(t, err)
	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, uint64(400), got.AvailableBalance)
}
