package domain

import "errors"

// Connection establishment errors
var (
	ErrCredentialRequired  = errors.New("credential required")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrExpired             = errors.New("credential expired")
	ErrMissingSubject      = errors.New("credential has no subject")
	ErrUnresolvedIdentity  = errors.New("identity could not be resolved")
)

// Messaging errors
var (
	ErrEmptyContent          = errors.New("message content is empty")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrPersistenceFailure    = errors.New("message could not be persisted")
	ErrPresenceLookupFailure = errors.New("presence lookup failed")
	ErrInvalidPagination     = errors.New("page must be >= 0 and size > 0")
)

// Identity store errors
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentitySync     = errors.New("identity sync failed")
	ErrUsernameTaken    = errors.New("username belongs to another identity")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrNotSessionOwner = errors.New("session belongs to another user")
)

// ReasonCode returns the wire code reported to clients for err.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrCredentialRequired):
		return "CREDENTIAL_REQUIRED"
	case errors.Is(err, ErrMalformedCredential):
		return "MALFORMED_CREDENTIAL"
	case errors.Is(err, ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrExpired):
		return "EXPIRED"
	case errors.Is(err, ErrMissingSubject):
		return "MISSING_SUBJECT"
	case errors.Is(err, ErrUnresolvedIdentity):
		return "UNRESOLVED_IDENTITY"
	case errors.Is(err, ErrEmptyContent):
		return "EMPTY_CONTENT"
	case errors.Is(err, ErrInvalidMessage):
		return "INVALID_MESSAGE"
	case errors.Is(err, ErrPersistenceFailure):
		return "PERSISTENCE_FAILURE"
	case errors.Is(err, ErrInvalidPagination):
		return "INVALID_PAGINATION"
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrSessionClosed):
		return "SESSION_CLOSED"
	case errors.Is(err, ErrNotSessionOwner):
		return "NOT_SESSION_OWNER"
	default:
		return "INTERNAL_ERROR"
	}
}
