package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Fallback decisions branch on these
// with errors.Is rather than on transport exceptions.
var (
	// Provider lifecycle.
	ErrProviderConfig     = fmt.Errorf("provider configuration invalid")
	ErrProviderNotFound   = fmt.Errorf("llm provider not found")
	ErrProviderCall       = fmt.Errorf("provider call failed")
	ErrAllProvidersFailed = fmt.Errorf("all llm providers failed")

	// Tool execution.
	ErrToolNotFound = fmt.Errorf("tool not found")
	ErrToolFailure  = fmt.Errorf("tool execution failed")

	// Remote gateway.
	ErrRemoteService = fmt.Errorf("remote service call failed")
	ErrAuthRejected  = fmt.Errorf("credential rejected")

	// Resilience.
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrContextOverflow = fmt.Errorf("context window exceeded")

	// Sessions.
	ErrSessionNotFound = fmt.Errorf("session not found")
)

// RemoteError details for ErrRemoteService wrapping: which leg failed.
const (
	RemoteFailTimeout = "timeout"
	RemoteFailStatus  = "status"
	RemoteFailDecode  = "decode"
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "Executor.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is transient and may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrRemoteService)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeProviderConfig     ErrorCode = "PROVIDER_CONFIG"
	CodeProviderNotFound   ErrorCode = "PROVIDER_NOT_FOUND"
	CodeProviderCall       ErrorCode = "PROVIDER_CALL"
	CodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"
	CodeToolNotFound       ErrorCode = "TOOL_NOT_FOUND"
	CodeToolFailure        ErrorCode = "TOOL_FAILURE"
	CodeRemoteService      ErrorCode = "REMOTE_SERVICE"
	CodeAuthRejected       ErrorCode = "AUTH_REJECTED"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeContextOverflow    ErrorCode = "CONTEXT_OVERFLOW"
	CodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrProviderConfig:     CodeProviderConfig,
	ErrProviderNotFound:   CodeProviderNotFound,
	ErrProviderCall:       CodeProviderCall,
	ErrAllProvidersFailed: CodeAllProvidersFailed,
	ErrToolNotFound:       CodeToolNotFound,
	ErrToolFailure:        CodeToolFailure,
	ErrRemoteService:      CodeRemoteService,
	ErrAuthRejected:       CodeAuthRejected,
	ErrRateLimit:          CodeRateLimit,
	ErrContextOverflow:    CodeContextOverflow,
	ErrSessionNotFound:    CodeSessionNotFound,
}

// ErrorCodeOf returns the machine-parseable code for the given error.
// It unwraps DomainError and walks the error chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
