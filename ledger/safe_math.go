package ledger

import (
	"math/bits"

	"collateral/types"
)

// safe_math.go 提供带溢出检查的 uint64 运算，余额相关的加减都必须走这里

// SafeAdd 安全加法：a + b，溢出返回 ErrArithmeticOverflow
func SafeAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, types.ErrArithmeticOverflow
	}
	return sum, nil
}

// SafeSub 安全减法：a - b，a < b 时返回 ErrArithmeticOverflow（下溢）
func SafeSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, types.ErrArithmeticOverflow
	}
	return diff, nil
}
