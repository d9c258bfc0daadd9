package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindNotAuthorized
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failure"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNotAuthorized:
		return "not_authorized"
	case KindInvariant:
		return "invariant_violation"
	}
	return "internal"
}

// Error is a failure the caller can act on. Code is stable and safe to
// return to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// Is matches on kind and code so wrapped copies with a message still match
// the named sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newError(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

var (
	ErrNotAuthorized            = newError(KindNotAuthorized, "not_authorized")
	ErrUserNotFound             = newError(KindNotFound, "user_not_found")
	ErrInstructorProfileMissing = newError(KindNotFound, "instructor_profile_missing")
	ErrMembershipNotFound       = newError(KindNotFound, "membership_not_found")
	ErrOwnerImmutable           = newError(KindInvariant, "owner_immutable")
	ErrRoleNotFound             = newError(KindNotFound, "role_not_found")
	ErrRoleNameTaken            = newError(KindConflict, "role_name_taken")
	ErrProtectedRole            = newError(KindInvariant, "protected_role")
	ErrSelfAction               = newError(KindInvariant, "self_action")
	ErrUsernameTaken            = newError(KindConflict, "username_taken")
	ErrEmailTaken               = newError(KindConflict, "email_taken")
	ErrInvalidTransition        = newError(KindInvariant, "invalid_status_transition")
	ErrUserReferenced           = newError(KindConflict, "user_referenced")
	ErrSchoolhouseNotFound      = newError(KindNotFound, "schoolhouse_not_found")
	ErrSlugTaken                = newError(KindConflict, "slug_taken")
	ErrSubdomainTaken           = newError(KindConflict, "subdomain_taken")
	ErrProfileNotFound          = newError(KindNotFound, "profile_not_found")
	ErrMediaNotFound            = newError(KindNotFound, "media_not_found")
	ErrClassNotFound            = newError(KindNotFound, "class_not_found")
	ErrClassSlugTaken           = newError(KindConflict, "class_slug_taken")
	ErrUnsupportedMedia         = newError(KindValidation, "unsupported_media")
	ErrUploadTooLarge           = newError(KindValidation, "upload_too_large")
	ErrInvalidMediaSignature    = newError(KindNotAuthorized, "invalid_media_signature")
	ErrInvalidCredentials       = newError(KindNotAuthorized, "invalid_credentials")
	ErrUserSuspended            = newError(KindNotAuthorized, "user_suspended")
	ErrUserBanned               = newError(KindNotAuthorized, "user_banned")
	ErrLoginLocked              = newError(KindNotAuthorized, "login_locked")
	ErrSessionNotFound          = newError(KindNotAuthorized, "session_not_found")
)

// Validation reports bad input. All validation failures share the code
// "validation_failure" and differ by message.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: "validation_failure", Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the client-facing code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}
