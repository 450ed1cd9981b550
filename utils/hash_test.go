package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSipHashIsStable(t *testing.T) {
	a := SipHashHex([]byte("alice"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, SipHashHex([]byte("alice")))
	assert.NotEqual(t, a, SipHashHex([]byte("bob")))
}

func TestMurmurHash(t *testing.T) {
	data := []byte("vault record")
	assert.Len(t, MurmurHash(data), 8)
	assert.Equal(t, MurmurSum64(data), MurmurSum64([]byte("vault record")))
	assert.NotEqual(t, MurmurSum64(data), MurmurSum64([]byte("vault recorD")))
}
