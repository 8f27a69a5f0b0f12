package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a portal error so callers can branch on the business
// outcome instead of matching message strings.
type Kind string

const (
	KindValidation             Kind = "validation_error"
	KindNotFound               Kind = "not_found"
	KindExpired                Kind = "expired"
	KindRevoked                Kind = "revoked"
	KindDuplicate              Kind = "duplicate"
	KindOutsideWindow          Kind = "outside_window"
	KindIntegrationUnavailable Kind = "integration_unavailable"
	KindCollision              Kind = "collision_exhausted"
	KindConflict               Kind = "conflict"
	KindAuthentication         Kind = "authentication_error"
	KindController             Kind = "controller_error"
	KindRetryExhausted         Kind = "retry_exhausted"
)

// PortalError is the standard error shape returned by the grant, voucher,
// booking and controller components.
type PortalError struct {
	Kind        Kind   `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// KindOf extracts the Kind from err, unwrapping as needed. Errors that are
// not PortalErrors report an empty Kind.
func KindOf(err error) Kind {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err represents a transient external failure
// that is worth handing to the retry queue. Permanent controller errors,
// authentication failures and all business outcomes are not transient.
func IsTransient(err error) bool {
	return IsKind(err, KindRetryExhausted)
}

func NewValidation(description string) *PortalError {
	return &PortalError{Kind: KindValidation, Description: description}
}

func NewNotFound(description string) *PortalError {
	return &PortalError{Kind: KindNotFound, Description: description}
}

func NewExpired(description string) *PortalError {
	return &PortalError{Kind: KindExpired, Description: description}
}

func NewRevoked(description string) *PortalError {
	return &PortalError{Kind: KindRevoked, Description: description}
}

func NewDuplicate(description string) *PortalError {
	return &PortalError{Kind: KindDuplicate, Description: description}
}

func NewOutsideWindow(description string) *PortalError {
	return &PortalError{Kind: KindOutsideWindow, Description: description}
}

func NewIntegrationUnavailable(description string) *PortalError {
	return &PortalError{Kind: KindIntegrationUnavailable, Description: description}
}

func NewCollision(description string) *PortalError {
	return &PortalError{Kind: KindCollision, Description: description}
}

func NewConflict(description string) *PortalError {
	return &PortalError{Kind: KindConflict, Description: description}
}

func NewAuthentication(description string) *PortalError {
	return &PortalError{Kind: KindAuthentication, Description: description}
}

func NewController(description string) *PortalError {
	return &PortalError{Kind: KindController, Description: description}
}

func NewRetryExhausted(description string) *PortalError {
	return &PortalError{Kind: KindRetryExhausted, Description: description}
}
