package types

import (
	"errors"
	"fmt"
)

// Code 机器可读的错误码，对外暴露的失败原因都在这里
type Code string

const (
	// 授权
	CodeUnauthorized        Code = "Unauthorized"
	CodeUnauthorizedProgram Code = "UnauthorizedProgram"

	// 余额
	CodeInsufficientAvailableBalance Code = "InsufficientAvailableBalance"
	CodeInsufficientLockedBalance    Code = "InsufficientLockedBalance"
	CodeArithmeticOverflow           Code = "ArithmeticOverflow"
	CodeInvalidAmount                Code = "InvalidAmount"

	// 生命周期
	CodeAlreadyExists           Code = "AlreadyExists"
	CodeAlreadyInitialized      Code = "AlreadyInitialized"
	CodeAuthorityNotInitialized Code = "AuthorityNotInitialized"
	CodeVaultNotEmpty           Code = "VaultNotEmpty"
	CodeVaultNotFound           Code = "VaultNotFound"
	CodeSameVault               Code = "SameVault"

	// 注册表
	CodeDuplicateProgram Code = "DuplicateProgram"
	CodeProgramNotFound  Code = "ProgramNotFound"
	CodeTooManyPrograms  Code = "TooManyPrograms"

	// 托管方
	CodeInsufficientBalance Code = "InsufficientBalance"
	CodeCustodyAccount      Code = "CustodyAccount"

	// 其它
	CodeInvalidIdentity  Code = "InvalidIdentity"
	CodeInvalidOperation Code = "InvalidOperation"
	CodeCorruptRecord    Code = "CorruptRecord"
)

// Error 带错误码的领域错误
type Error struct {
	Code     Code              // 错误码
	Message  string            // 给日志看的描述
	Metadata map[string]string // 附加上下文，例如 owner、amount
	Cause    error             // 底层错误
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 只按错误码匹配，errors.Is(err, ErrVaultNotEmpty) 对带 Metadata 的实例同样成立
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError 创建领域错误
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf 创建带格式化描述的领域错误
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata 创建带上下文的领域错误
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap 包装底层错误
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf 取出错误链上的第一个错误码，非领域错误返回空串
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// 哨兵错误，用 errors.Is 比较
var (
	ErrUnauthorized                 = NewError(CodeUnauthorized, "caller is not allowed to perform this operation")
	ErrUnauthorizedProgram          = NewError(CodeUnauthorizedProgram, "caller is not an authorized program")
	ErrInsufficientAvailableBalance = NewError(CodeInsufficientAvailableBalance, "amount exceeds available balance")
	ErrInsufficientLockedBalance    = NewError(CodeInsufficientLockedBalance, "amount exceeds locked balance")
	ErrArithmeticOverflow           = NewError(CodeArithmeticOverflow, "arithmetic overflow")
	ErrInvalidAmount                = NewError(CodeInvalidAmount, "amount must be a positive integer")
	ErrAlreadyExists                = NewError(CodeAlreadyExists, "vault already exists")
	ErrAlreadyInitialized           = NewError(CodeAlreadyInitialized, "authority already initialized")
	ErrAuthorityNotInitialized      = NewError(CodeAuthorityNotInitialized, "authority not initialized")
	ErrVaultNotEmpty                = NewError(CodeVaultNotEmpty, "vault still holds collateral")
	ErrVaultNotFound                = NewError(CodeVaultNotFound, "vault not found")
	ErrSameVault                    = NewError(CodeSameVault, "source and destination vault are the same")
	ErrDuplicateProgram             = NewError(CodeDuplicateProgram, "program already authorized")
	ErrProgramNotFound              = NewError(CodeProgramNotFound, "program not authorized")
	ErrTooManyPrograms              = NewError(CodeTooManyPrograms, "authorized program list is full")
	ErrInsufficientBalance          = NewError(CodeInsufficientBalance, "insufficient balance in source account")
	ErrCustodyAccount               = NewError(CodeCustodyAccount, "custody account error")
	ErrInvalidIdentity              = NewError(CodeInvalidIdentity, "identity must be non-empty")
	ErrInvalidOperation             = NewError(CodeInvalidOperation, "malformed operation")
	ErrCorruptRecord                = NewError(CodeCorruptRecord, "stored record is corrupt")
)
