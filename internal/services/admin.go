package services

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKey gates administrative registration. The configured value is either
// the key itself or its bcrypt hash. An empty configuration rejects every key.
type AdminKey struct {
	configured string
}

func NewAdminKey(configured string) AdminKey {
	return AdminKey{configured: strings.TrimSpace(configured)}
}

func (a AdminKey) Verify(presented string) bool {
	if a.configured == "" || presented == "" {
		return false
	}
	if isBcryptHash(a.configured) {
		return bcrypt.CompareHashAndPassword([]byte(a.configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.configured), []byte(presented)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
