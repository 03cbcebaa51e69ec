package secretbox

import "strings"

const maskFiller = "*"

// Mask renders a secret for display without revealing it. Secrets of
// eight characters or fewer are fully filled; longer ones keep their
// first four and last four characters. The output has the input's length.
func Mask(secret string) string {
	n := len(secret)
	if n <= 8 {
		return strings.Repeat(maskFiller, n)
	}
	return secret[:4] + strings.Repeat(maskFiller, n-8) + secret[n-4:]
}
