package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/dchest/siphash"
	"github.com/spaolacci/murmur3"
)

// 固定的 SipHash 密钥：托管账户 ID 必须在所有节点、所有重启之间保持一致
const (
	sipKey0 uint64 = 0x636f6c6c61746572 // "collater"
	sipKey1 uint64 = 0x616c5f7661756c74 // "al_vault"
)

// MurmurHash 使用 Murmur3 哈希算法，返回小端 8 字节
func MurmurHash(data []byte) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, MurmurSum64(data))
	return b
}

// MurmurSum64 记录校验和
func MurmurSum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// SipHash 对任意数据做 SipHash-2-4
func SipHash(data []byte) uint64 {
	return siphash.Hash(sipKey0, sipKey1, data)
}

// SipHashHex SipHash 的 16 位十六进制表示
func SipHashHex(data []byte) string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, SipHash(data))
	return hex.EncodeToString(b)
}

func Sha256Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
