package ledger

import (
	"fmt"
	"math"
	"strconv"

	"collateral/types"

	"github.com/shopspring/decimal"
)

var maxUint64 = decimal.RequireFromString(strconv.FormatUint(math.MaxUint64, 10))

// ParseAmount 严格解析金额字符串：正整数、不超过 uint64
// 支持 "10.0" 这种写法（兼容上游传来的 decimal 文本），"0.5" 直接拒绝
func ParseAmount(raw string) (uint64, error) {
	if raw == "" {
		return 0, types.ErrInvalidAmount
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, types.Wrap(types.CodeInvalidAmount, fmt.Sprintf("invalid amount %q", raw), err)
	}
	if !v.Equal(v.Truncate(0)) {
		return 0, types.Errorf(types.CodeInvalidAmount, "amount must be integer, got %s", v.String())
	}
	if v.Sign() <= 0 {
		return 0, types.Errorf(types.CodeInvalidAmount, "amount must be positive, got %s", v.String())
	}
	if v.GreaterThan(maxUint64) {
		return 0, types.ErrArithmeticOverflow
	}
	return v.BigInt().Uint64(), nil
}

// FormatAmount 金额转成十进制文本
func FormatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// RequirePositive 所有带金额的操作 amount 必须 > 0
func RequirePositive(amount uint64) error {
	if amount == 0 {
		return types.ErrInvalidAmount
	}
	return nil
}
