package attendance

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	MinCodeLength     = 4
	MaxCodeLength     = 12
	DefaultCodeLength = 6
)

// GenerateCode returns a string of exactly length decimal digits, leading
// zeros permitted, drawn from crypto/rand. Predictable codes would let a
// student guess their way into a lecture they never attended.
func GenerateCode(length int) (string, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return "", fmt.Errorf("attendance: code length %d out of range [%d, %d]", length, MinCodeLength, MaxCodeLength)
	}

	limit := big.NewInt(10)
	limit.Exp(limit, big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
