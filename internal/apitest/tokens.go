package apitest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signingKey is the HS256 secret of every token the fake backend mints.
var signingKey = []byte("apitest-signing-key")

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// SignJWT mints an access token for username expiring at exp and registers
// it as valid.
func (b *Backend) SignJWT(username string, exp time.Time) string {
	token := signToken(username, "access", exp)
	b.GrantAccess(token, username)
	return token
}

// IssueJWTs makes /token/, /token/refresh/ and /register/ hand out signed
// access tokens valid for ttl instead of opaque ones.
func (b *Backend) IssueJWTs(ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jwtTTL = ttl
}

func (b *Backend) mintAccessLocked(username string) string {
	return signToken(username, "access", NowTimeFunc().Add(b.jwtTTL))
}

// signToken builds claims shaped like the real API's SimpleJWT tokens.
func signToken(subject, tokenType string, exp time.Time) string {
	claims := jwt.MapClaims{
		"sub":        subject,
		"token_type": tokenType,
		"iat":        NowTimeFunc().Unix(),
		"exp":        exp.Unix(),
		"jti":        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}
