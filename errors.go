package auth

import (
	stderrors "errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "invalid_credentials"
	TextCodeEmptyPassword      = "empty_password"
	TextCodeTokenMissing       = "token_missing"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeTokenExpired       = "token_expired"
	TextCodeTokenSignature     = "token_signature_invalid"
	TextCodeTokenAlgorithm     = "token_algorithm_unsupported"
	TextCodeMissingToken       = "missing_token"
	TextCodeInvalidToken       = "invalid_token"
	TextCodeParseUUID          = "parse_uuid"
	TextCodeMissingParam       = "missing_param"
	TextCodeNotFound           = "not_found"
	TextCodeDatabase           = "database_error"
	TextCodeUniqueViolation    = "unique_violation"
	TextCodeInternal           = "internal_error"
	TextCodeValidation         = "validation_error"
	TextCodeUserExists         = "user_exists"
	TextCodeSessionNotFound    = "session_not_found"
	TextCodeForbidden          = "forbidden"
	TextCodeMissingSecret      = "missing_secret"
	TextCodeVerificationExpiry = "verification_expired"
)

// ErrInvalidCredentials is returned for an unknown username and for a
// wrong password alike.
var ErrInvalidCredentials = goerrors.New("incorrect username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the hasher level mismatch error.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match hash", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenMissing = goerrors.New("authentication token missing", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMalformed = goerrors.New("authentication token malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenSignature = goerrors.New("authentication token signature invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenAlgorithm = goerrors.New("authentication token algorithm not supported", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenAlgorithm).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingToken is returned when a handler requires the session token
// header and the request does not carry it.
var ErrMissingToken = goerrors.New("missing session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken is returned when a token is well formed but refers to
// nothing the caller may use.
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(http.StatusNotAcceptable)

var ErrParseUUID = goerrors.New("invalid identifier", goerrors.CategoryBadInput).
	WithTextCode(TextCodeParseUUID).
	WithCode(goerrors.CodeBadRequest)

var ErrMissingParam = goerrors.New("missing required parameter", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingParam).
	WithCode(goerrors.CodeBadRequest)

var ErrNotFound = goerrors.New("resource not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSessionNotFound is returned when a token refers to a session that
// no longer exists.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

var ErrUserExists = goerrors.New("username or email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeUserExists).
	WithCode(goerrors.CodeConflict)

var ErrForbidden = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrMissingSecret is a startup error, the token signing secret is empty.
var ErrMissingSecret = goerrors.New("token signing secret is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingSecret).
	WithCode(goerrors.CodeInternal)

var ErrVerificationExpired = goerrors.New("verification request expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeVerificationExpiry).
	WithCode(goerrors.CodeBadRequest)

// NewDBError wraps a storage failure. The caller sees a generic 500, the
// source error is kept for logging.
func NewDBError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr
	}

	textCode := TextCodeDatabase
	if isUniqueViolation(err) {
		textCode = TextCodeUniqueViolation
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "database error").
		WithTextCode(textCode).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"operation": operation})
}

// NewValidationError wraps payload validation failures.
func NewValidationError(err error, msg string) error {
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, msg).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}

// withSource returns a copy of base carrying err as its source and the
// optional metadata.
func withSource(base *goerrors.Error, err error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// HasTextCode reports whether err is a rich error with the given text code.
func HasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeTokenMalformed)
}

// IsAuthError reports whether err belongs to the authentication family.
func IsAuthError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth
}

// IsUniqueViolation reports whether err is a storage uniqueness failure.
func IsUniqueViolation(err error) bool {
	return HasTextCode(err, TextCodeUniqueViolation) || isUniqueViolation(err)
}

// AsRichError maps any error to the taxonomy. Unknown errors become
// internal errors and fiber errors keep their status.
func AsRichError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code == 0 {
			richErr = richErr.Clone().WithCode(codeForCategory(richErr.Category))
		}
		return richErr
	}

	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return goerrors.New(fiberErr.Message, categoryForStatus(fiberErr.Code)).
			WithCode(fiberErr.Code).
			WithTextCode(textCodeForStatus(fiberErr.Code))
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "internal server error").
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// HTTPStatus returns the status code the error serializes with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsRichError(err).Code
}

func codeForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return goerrors.CodeUnauthorized
	case goerrors.CategoryAuthz:
		return goerrors.CodeForbidden
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return goerrors.CodeBadRequest
	case goerrors.CategoryNotFound:
		return goerrors.CodeNotFound
	case goerrors.CategoryConflict:
		return goerrors.CodeConflict
	default:
		return goerrors.CodeInternal
	}
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	case http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	}
	if status >= 400 && status < 500 {
		return goerrors.CategoryBadInput
	}
	return goerrors.CategoryInternal
}

func textCodeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return TextCodeTokenMissing
	case http.StatusForbidden:
		return TextCodeForbidden
	case http.StatusNotFound:
		return TextCodeNotFound
	}
	if status >= 500 {
		return TextCodeInternal
	}
	return TextCodeValidation
}
