package patient

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const (
	upiPrefix      = "HN"
	upiDigits      = 10
	maxUPIAttempts = 5
)

var (
	upiSpace   = new(big.Int).Exp(big.NewInt(10), big.NewInt(upiDigits), nil)
	upiPattern = regexp.MustCompile(`^HN[0-9]{10}$`)
)

// GenerateUPI returns a random Unique Patient Identifier: "HN" followed by
// ten digits.
func GenerateUPI() (string, error) {
	n, err := rand.Int(rand.Reader, upiSpace)
	if err != nil {
		return "", fmt.Errorf("generate upi: %w", err)
	}
	return fmt.Sprintf("%s%0*d", upiPrefix, upiDigits, n.Int64()), nil
}

func ValidUPI(s string) bool {
	return upiPattern.MatchString(s)
}
