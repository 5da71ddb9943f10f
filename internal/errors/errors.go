package errors

import (
	"errors"
	"fmt"
)

// Category groups errors by the part of the pipeline that produced them
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryTimeout   Category = "timeout"
	CategoryOutput    Category = "output"
	CategoryPolicy    Category = "policy"
	CategoryInput     Category = "input"
	CategoryStore     Category = "store"
	CategoryTransport Category = "transport"
	CategoryInternal  Category = "internal"
)

// BridgeError is the structured error type for the project
type BridgeError struct {
	Category  Category
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *BridgeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

func (e *BridgeError) Unwrap() error {
	return e.Cause
}

func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Category == t.Category
}

// IsRetryable checks whether an error is retryable.
// Returns false for nil errors or non-BridgeError types.
func IsRetryable(err error) bool {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the error category from a BridgeError.
// Returns an empty Category for nil errors or non-BridgeError types.
func GetCategory(err error) Category {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetUserMessage returns the text that is safe to show in a chat reply.
// For BridgeError it returns the Message field; for other errors it returns Error().
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
