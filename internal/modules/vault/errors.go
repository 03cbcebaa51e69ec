package vault

import (
	"errors"

	"safepath/internal/pkg/apperr"
	"safepath/internal/pkg/github"
)

var (
	ErrCredentialRejected   = apperr.New(apperr.KindValidation, "CREDENTIAL_REJECTED", "GitHub rejected the credential")
	ErrValidatorUnavailable = apperr.New(apperr.KindExternalService, "CREDENTIAL_UNVERIFIED", "The credential could not be verified right now")
	ErrNothingToRemove      = apperr.New(apperr.KindNotFound, "NOTHING_TO_REMOVE", "No credential is stored")
	ErrNoCredential         = apperr.New(apperr.KindNotFound, "CREDENTIAL_NOT_FOUND", "No usable credential is stored")
)

// ValidationRejectedError is returned by Store and Update when the
// validator does not report the secret as valid. Nothing is written.
type ValidationRejectedError struct {
	Outcome github.Outcome
	Reason  string
}

func rejected(res github.Result) *ValidationRejectedError {
	return &ValidationRejectedError{Outcome: res.Outcome, Reason: res.Reason}
}

func (e *ValidationRejectedError) Error() string {
	return "credential rejected: " + e.Reason
}

// Unwrap classifies the rejection: a definitive answer from GitHub is a
// validation failure, anything else means GitHub could not answer.
func (e *ValidationRejectedError) Unwrap() error {
	if e.Outcome == github.OutcomeInvalid {
		return ErrCredentialRejected
	}
	return ErrValidatorUnavailable
}

// IsRejected reports whether err carries a validator rejection and
// returns it.
func IsRejected(err error) (*ValidationRejectedError, bool) {
	var rej *ValidationRejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
