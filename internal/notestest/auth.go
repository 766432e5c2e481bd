package notestest

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"
	"golang.org/x/crypto/argon2"
)

const (
	tokenIssuer   = "notestest"
	tokenAudience = "notes-client"

	// Cheap parameters; these hashes only ever guard fixture accounts.
	argon2Memory      = 8 * 1024
	argon2Iterations  = 1
	argon2Parallelism = 1
	argon2SaltLength  = 16
	argon2KeyLength   = 32
)

// tokenIssuerService mints and verifies PASETO v4.local bearer tokens.
type tokenIssuerService struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
}

func newTokenIssuer(ttl time.Duration) *tokenIssuerService {
	return &tokenIssuerService{key: paseto.NewV4SymmetricKey(), ttl: ttl}
}

// issue returns a token naming userID as subject.
func (s *tokenIssuerService) issue(userID string) string {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(userID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.ttl))

	return token.V4Encrypt(s.key, nil)
}

// verify returns the subject of a valid, unexpired token.
func (s *tokenIssuerService) verify(tokenString string) (string, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return token.GetSubject()
}

// rotate invalidates every token issued so far.
func (s *tokenIssuerService) rotate() {
	s.key = paseto.NewV4SymmetricKey()
}

// hashPassword creates an argon2id hash in the PHC string format.
func hashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Iterations, argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// verifyPassword reports whether password matches an argon2id hash.
func verifyPassword(encodedHash, password string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	//nolint:gosec // hash length is argon2KeyLength
	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, candidate) == 1
}
