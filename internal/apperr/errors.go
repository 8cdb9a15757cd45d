package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrStorage ErrorType = iota
	ErrNetwork
	ErrOffline
	ErrParse
	ErrValidation
	ErrConfig
	ErrUnknown
)

// ReaderError is the application error carried across the storage and
// task-dispatch layers. Type drives caller behavior; Context carries
// diagnostic key/values for logging.
type ReaderError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func New(errorType ErrorType, message string) *ReaderError {
	return &ReaderError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewWithCause(errorType ErrorType, message string, cause error) *ReaderError {
	return &ReaderError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *ReaderError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ReaderError) Unwrap() error {
	return e.Cause
}

func (e *ReaderError) WithContext(key string, value any) *ReaderError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrStorage:
		return "Storage"
	case ErrNetwork:
		return "Network"
	case ErrOffline:
		return "Offline"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var readerErr *ReaderError
	if errors.As(err, &readerErr) {
		return readerErr.Type == errorType
	}
	return false
}

func Wrap(err error, errorType ErrorType, message string) *ReaderError {
	return NewWithCause(errorType, message, err)
}
