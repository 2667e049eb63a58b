package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Batch-level failures surface these
// verbatim to the caller; item-level failures are swallowed into "weight
// unresolved for this item" by the fetcher.
var (
	ErrSourceUnreachable = fmt.Errorf("no source endpoint reachable")
	ErrAuthRequired      = fmt.Errorf("source requires authentication")
	ErrNotFound          = fmt.Errorf("not found")
	ErrNoIdentifiers     = fmt.Errorf("no identifiers found for batch")
	ErrNoWeightsResolved = fmt.Errorf("no weights resolved for batch")
	ErrNavigationPending = fmt.Errorf("agent navigation in progress")
	ErrTicketExpired     = fmt.Errorf("extraction ticket expired")
	ErrAgentDisconnected = fmt.Errorf("required agent disconnected")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")

	ErrGatewayAuthFailed = fmt.Errorf("gateway authentication failed")
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Fetcher.FetchWeights")
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

// IsRetryableError reports whether err is transient and may succeed on a
// caller-driven retry. Only navigation-pending qualifies; the core never
// auto-retries to avoid uncontrolled navigation loops.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrNavigationPending)
}

// ErrorCode is a machine-parseable error category for monitoring and the
// gateway's RPC error frames.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeSourceUnreachable ErrorCode = "SOURCE_UNREACHABLE"
	CodeAuthRequired      ErrorCode = "AUTH_REQUIRED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeNoIdentifiers     ErrorCode = "NO_IDENTIFIERS_FOUND"
	CodeNoWeightsResolved ErrorCode = "NO_WEIGHTS_RESOLVED"
	CodeNavigationPending ErrorCode = "NAVIGATION_PENDING"
	CodeTicketExpired     ErrorCode = "TICKET_EXPIRED"
	CodeAgentDisconnected ErrorCode = "AGENT_DISCONNECTED"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeGatewayAuth       ErrorCode = "GATEWAY_AUTH_FAILED"
	CodeMethodNotFound    ErrorCode = "METHOD_NOT_FOUND"
	CodeInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrSourceUnreachable: CodeSourceUnreachable,
	ErrAuthRequired:      CodeAuthRequired,
	ErrNotFound:          CodeNotFound,
	ErrNoIdentifiers:     CodeNoIdentifiers,
	ErrNoWeightsResolved: CodeNoWeightsResolved,
	ErrNavigationPending: CodeNavigationPending,
	ErrTicketExpired:     CodeTicketExpired,
	ErrAgentDisconnected: CodeAgentDisconnected,
	ErrConfigLoad:        CodeConfigLoad,
	ErrGatewayAuthFailed: CodeGatewayAuth,
	ErrRPCMethodNotFound: CodeMethodNotFound,
	ErrRPCInvalidPayload: CodeInvalidPayload,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
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
