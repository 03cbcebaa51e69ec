package auth

import "safepath/internal/pkg/apperr"

var (
	ErrInvalidCredentials = apperr.New(apperr.KindAuthentication, "INVALID_CREDENTIALS", "Email or password is incorrect")
	ErrWrongPassword      = apperr.New(apperr.KindAuthentication, "INVALID_CURRENT_PASSWORD", "Current password is incorrect")
	ErrEmailAlreadyExists = apperr.New(apperr.KindConflict, "EMAIL_EXISTS", "This email is already registered")
	ErrWeakPassword       = apperr.New(apperr.KindValidation, "WEAK_PASSWORD", "Password must be between 8 and 72 bytes")
	ErrPrincipalNotFound  = apperr.New(apperr.KindNotFound, "USER_NOT_FOUND", "User not found")

	ErrNoToken          = apperr.New(apperr.KindAuthentication, "NO_TOKEN", "Token is missing")
	ErrTokenInvalid     = apperr.New(apperr.KindAuthentication, "INVALID_TOKEN", "Token is invalid")
	ErrTokenExpired     = apperr.New(apperr.KindAuthentication, "TOKEN_EXPIRED", "Token has expired")
	ErrTokenRevoked     = apperr.New(apperr.KindAuthentication, "TOKEN_REVOKED", "Token has been revoked")
	ErrTokenAlreadyUsed = apperr.New(apperr.KindConflict, "TOKEN_ALREADY_USED", "Token has already been used")
)
