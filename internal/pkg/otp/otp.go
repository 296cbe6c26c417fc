package otp

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	numericMin = 100000
	numericMax = 999999
)

// Generator produces a fresh one-time code.
type Generator interface {
	Generate() (string, error)
}

// Numeric draws six-digit codes uniformly from [100000, 999999], so a code
// never starts with zero.
type Numeric struct {
	span *big.Int
}

// NewNumeric returns a crypto/rand backed six-digit generator.
func NewNumeric() *Numeric {
	return &Numeric{span: big.NewInt(numericMax - numericMin + 1)}
}

// Generate returns a six-digit code.
func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(rand.Reader, n.span)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(v.Int64()+numericMin, 10), nil
}
