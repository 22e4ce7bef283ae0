package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnsupportedDriver  = errors.New("unsupported database driver")
	ErrUnsafeStatement    = errors.New("statement rejected")
	ErrGatewayUnavailable = errors.New("llm gateway unavailable")
)
