// internal/blockchain/solbc/errors.go
package solbc

import (
	"errors"
	"fmt"
	"strings"
)

// RPCError представляет ошибку RPC с именем метода
type RPCError struct {
	Method string
	Err    error
}

// Error реализует интерфейс error
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error [%s]: %v", e.Method, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *RPCError) Unwrap() error {
	return e.Err
}

// NewRPCError создает новую ошибку RPC
func NewRPCError(method string, err error) error {
	return &RPCError{Method: method, Err: err}
}

// IsRPCError проверяет, что ошибка пришла от RPC-узла (сетевая/транспортная).
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}
