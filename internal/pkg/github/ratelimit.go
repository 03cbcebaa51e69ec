package github

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerScopes    = "X-OAuth-Scopes"
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"

	conservativeLimit  = 60
	conservativeWindow = time.Hour
)

// parseRateLimit reads the X-RateLimit-* headers. Returns nil if any of
// the three is missing or malformed.
func parseRateLimit(header http.Header) *RateLimit {
	limitStr := header.Get(headerLimit)
	remainingStr := header.Get(headerRemaining)
	resetStr := header.Get(headerReset)
	if limitStr == "" || remainingStr == "" || resetStr == "" {
		return nil
	}

	limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
	if err != nil {
		return nil
	}
	remaining, err := strconv.Atoi(strings.TrimSpace(remainingStr))
	if err != nil {
		return nil
	}
	resetUnix, err := strconv.ParseInt(strings.TrimSpace(resetStr), 10, 64)
	if err != nil {
		return nil
	}

	return &RateLimit{
		Limit:     limit,
		Remaining: remaining,
		Reset:     time.Unix(resetUnix, 0).UTC(),
	}
}

// conservativeRateLimit is reported when the authority rejects a token:
// the unauthenticated quota, none of it assumed left.
func conservativeRateLimit(now time.Time) *RateLimit {
	return &RateLimit{
		Limit:     conservativeLimit,
		Remaining: 0,
		Reset:     now.Add(conservativeWindow).UTC().Truncate(time.Second),
	}
}

func parseScopes(header http.Header) []string {
	raw := header.Get(headerScopes)
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// HasRequiredScopes reports whether every required scope is granted.
// Matching is exact and order-independent.
func HasRequiredScopes(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
