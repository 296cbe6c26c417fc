package hash

import "strings"

// Hash hashes a plaintext and verifies a plaintext against a stored hash.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

// NewPassword returns the password hasher named by algorithm.
//
// Unknown names fall back to bcrypt.
func NewPassword(algorithm string, cost int, pepper string) Hash {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "argon2id", "argon2":
		return NewArgon2id(pepper)
	default:
		return NewBcrypt(cost, pepper)
	}
}
