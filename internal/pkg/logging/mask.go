package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Fingerprint is a short, stable digest of a token or secret so log
// lines can correlate events without carrying the value itself.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:6])
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.Repeat("*", utf8.RuneCountInString(email))
	}
	_, size := utf8.DecodeRuneInString(email)
	local := email[:at]
	return local[:size] + strings.Repeat("*", utf8.RuneCountInString(local)-1) + email[at:]
}
