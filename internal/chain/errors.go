package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNetworkNotConfigured is returned by the registry for unknown network keys.
var ErrNetworkNotConfigured = errors.New("network not configured")

// ErrorCode is the closed set of blockchain failure classes callers may
// switch on.
type ErrorCode string

const (
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	CodeNonceExpired      ErrorCode = "NONCE_EXPIRED"
	CodeGasUnpredictable  ErrorCode = "UNPREDICTABLE_GAS_LIMIT"
	CodeOther             ErrorCode = "OTHER"
)

// Error wraps a raw RPC failure with its classification. The original error
// is preserved for logs; UserMessage is what callers show users.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage translates the classification into a readable message.
func (e *Error) UserMessage() string {
	switch e.Code {
	case CodeInsufficientFunds:
		return "insufficient funds to cover gas for the transaction"
	case CodeNonceExpired:
		return "transaction nonce already used, please retry"
	case CodeGasUnpredictable:
		return "gas limit could not be determined for the transaction"
	default:
		return e.Err.Error()
	}
}

// Classify maps a raw node error onto the closed error set. Already
// classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return &Error{Code: CodeInsufficientFunds, Err: err}
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "replacement transaction underpriced"):
		return &Error{Code: CodeNonceExpired, Err: err}
	case strings.Contains(msg, "gas required exceeds allowance"),
		strings.Contains(msg, "cannot estimate gas"),
		strings.Contains(msg, "unpredictable gas limit"),
		strings.Contains(msg, "execution reverted"),
		strings.Contains(msg, "out of gas"):
		return &Error{Code: CodeGasUnpredictable, Err: err}
	default:
		return &Error{Code: CodeOther, Err: err}
	}
}

// IsCode reports whether err classifies as the given code.
func IsCode(err error, code ErrorCode) bool {
	ce := Classify(err)
	return ce != nil && ce.Code == code
}
