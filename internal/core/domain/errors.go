package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUserInactive       = errors.New("user account is inactive")
)

// ErrorKind is the machine-readable category of an Error
type ErrorKind string

const (
	KindValidation           ErrorKind = "VALIDATION_ERROR"
	KindAuthentication       ErrorKind = "AUTHENTICATION_ERROR"
	KindAuthorization        ErrorKind = "AUTHORIZATION_ERROR"
	KindNotFound             ErrorKind = "NOT_FOUND"
	KindReferentialIntegrity ErrorKind = "REFERENTIAL_INTEGRITY_ERROR"
	KindOverpayment          ErrorKind = "OVERPAYMENT_ERROR"
	KindConflict             ErrorKind = "CONFLICT_ERROR"
	KindAuditPersistence     ErrorKind = "AUDIT_PERSISTENCE_FAILURE"
	KindStorageUnavailable   ErrorKind = "STORAGE_UNAVAILABLE"
)

// Error is the structured error returned by every core operation
type Error struct {
	Kind          ErrorKind
	Message       string
	Field         string
	Reason        string
	BlockingCount int64
	Excess        decimal.Decimal
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// NewValidationError reports malformed or missing input on a field
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// NewAuthenticationError reports a missing or inactive actor
func NewAuthenticationError(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Reason: ReasonUnauthenticated}
}

// NewAuthorizationError wraps a permission gate denial
func NewAuthorizationError(reason string) *Error {
	return &Error{Kind: KindAuthorization, Message: "not allowed: " + reason, Reason: reason}
}

// NewNotFoundError reports a missing entity
func NewNotFoundError(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found", Err: ErrNotFound}
}

// NewReferentialIntegrityError wraps a deletion guard denial
func NewReferentialIntegrityError(reason string, blocking int64) *Error {
	return &Error{
		Kind:          KindReferentialIntegrity,
		Message:       "cannot delete: " + reason,
		Reason:        reason,
		BlockingCount: blocking,
	}
}

// NewOverpaymentError names the amount exceeding what can be absorbed
func NewOverpaymentError(excess decimal.Decimal) *Error {
	return &Error{
		Kind:    KindOverpayment,
		Message: "payment exceeds outstanding balance by " + excess.StringFixed(2),
		Excess:  excess,
	}
}

// NewConflictError reports a unique-constraint violation or lost update
func NewConflictError(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// NewAuditPersistenceFailure reports a committed effect whose audit entry was not written
func NewAuditPersistenceFailure(err error) *Error {
	return &Error{
		Kind:    KindAuditPersistence,
		Message: "mutation committed but audit entry is pending; operator attention required",
		Err:     err,
	}
}

// NewStorageUnavailable reports a storage failure fatal to the request
func NewStorageUnavailable(err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: "storage unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not a domain error
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of kind k
func IsKind(err error, k ErrorKind) bool {
	return err != nil && KindOf(err) == k
}
