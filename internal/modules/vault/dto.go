package vault

import "time"

type StoreCredentialRequest struct {
	Secret string `json:"secret" binding:"required" validate:"notblank"`
}

type VerifyCredentialRequest struct {
	Candidate string `json:"candidate" binding:"required"`
}

// Description is the public view of a stored credential. It never
// carries the secret itself.
type Description struct {
	Present       bool       `json:"present"`
	MaskedSecret  string     `json:"masked_secret,omitempty"`
	Scopes        []string   `json:"scopes"`
	LastValidated *time.Time `json:"last_validated,omitempty"`
	Active        bool       `json:"active"`
}
