package auth

import "fmt"

// Kind is the machine-readable failure classification surfaced in error
// payloads. Kinds through PermissionsClaimMissing map to HTTP 401;
// InsufficientPermissions maps to 403.
type Kind string

const (
	KindAuthHeaderMissing       Kind = "AuthHeaderMissing"
	KindAuthHeaderMalformed     Kind = "AuthHeaderMalformed"
	KindUnknownSigningKey       Kind = "UnknownSigningKey"
	KindTokenExpired            Kind = "TokenExpired"
	KindInvalidAudience         Kind = "InvalidAudience"
	KindInvalidSignature        Kind = "InvalidSignature"
	KindInvalidToken            Kind = "InvalidToken"
	KindPermissionsClaimMissing Kind = "PermissionsClaimMissing"
	KindInsufficientPermissions Kind = "InsufficientPermissions"
)

// Error is an authentication or authorization failure with a stable kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsAuthorization reports whether the error denies a held-token request
// rather than rejecting the token itself.
func (e *Error) IsAuthorization() bool {
	return e.Kind == KindInsufficientPermissions
}
