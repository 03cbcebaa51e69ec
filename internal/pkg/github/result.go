package github

import "time"

// Outcome classifies a validation attempt.
type Outcome int

const (
	OutcomeValid Outcome = iota + 1
	OutcomeInvalid
	OutcomeRateLimited
	OutcomeServiceError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeServiceError:
		return "service_error"
	default:
		return "unknown"
	}
}

const (
	ReasonInvalid     = "token is invalid or expired"
	ReasonRateLimited = "rate limited or insufficient scope"
	ReasonFailed      = "validation failed"
	ReasonEmptySecret = "token is empty"
)

// RateLimit is the authority's quota state as reported in response headers.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Result is the outcome of Validate. Scopes are set only for
// OutcomeValid. RateLimit is nil when the authority sent no counters.
type Result struct {
	Outcome   Outcome
	Scopes    []string
	RateLimit *RateLimit
	Reason    string
}

func (r Result) IsValid() bool { return r.Outcome == OutcomeValid }

// Definitive reports whether the authority gave a verdict about the
// token itself, as opposed to a quota or transport problem.
func (r Result) Definitive() bool {
	return r.Outcome == OutcomeValid || r.Outcome == OutcomeInvalid
}
