package security

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with bcrypt. Cost 10 matches the
// hashes already present in production data.
func HashPassword(password string, cost int) ([]byte, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// VerifyPassword reports whether the plaintext matches the stored hash.
// bcrypt's own comparison is constant-time at the digest step.
func VerifyPassword(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
