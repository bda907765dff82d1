package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures crossing the orchestrator boundary.
type ErrorType string

const (
	ErrorTypeSplit          ErrorType = "split"
	ErrorTypeRegistration   ErrorType = "registration"
	ErrorTypePoll           ErrorType = "poll"
	ErrorTypeSignature      ErrorType = "signature"
	ErrorTypePaymentGateway ErrorType = "payment_gateway"
	ErrorTypeLookup         ErrorType = "lookup"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeIncomplete     ErrorType = "incomplete"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeIO             ErrorType = "io"
)

// Kind markers for errors.Is. A DomainError matches the marker of its Type.
var (
	ErrSplit          = &DomainError{Type: ErrorTypeSplit}
	ErrRegistration   = &DomainError{Type: ErrorTypeRegistration}
	ErrPoll           = &DomainError{Type: ErrorTypePoll}
	ErrSignature      = &DomainError{Type: ErrorTypeSignature}
	ErrPaymentGateway = &DomainError{Type: ErrorTypePaymentGateway}
	ErrLookup         = &DomainError{Type: ErrorTypeLookup}
	ErrValidation     = &DomainError{Type: ErrorTypeValidation}
	ErrIncomplete     = &DomainError{Type: ErrorTypeIncomplete}
)

// ErrSnapshotNotFound is returned by a SnapshotBackend when nothing was saved under a name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind marker with the same Type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Type == e.Type
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType of the first DomainError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err carries a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

func SplitFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeSplit, message, err)
}

func RegistrationFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeRegistration, message, err)
}

func PollFailure(message string, err error) *DomainError {
	return NewError(ErrorTypePoll, message, err)
}

func SignatureMismatch(message string, err error) *DomainError {
	return NewError(ErrorTypeSignature, message, err)
}

func PaymentGatewayFailure(message string, err error) *DomainError {
	return NewError(ErrorTypePaymentGateway, message, err)
}

func LookupFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeLookup, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func IncompleteError(message string, err error) *DomainError {
	return NewError(ErrorTypeIncomplete, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}
