// Package auth verifies the bearer tokens that identify callers of the API
// and of the serverless functions. Tokens are HS256 JWTs whose subject is the
// user id; the patient profile sent to the consultation provider is read from
// the email claim and the user_metadata block.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrNoSubject is returned for a valid token without a subject.
	ErrNoSubject = errors.New("token has no subject")
)

// Caller is the authenticated principal.
type Caller struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// Metadata is the profile block carried in the token.
type Metadata struct {
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Claims is the token payload.
type Claims struct {
	Email        string   `json:"email,omitempty"`
	UserMetadata Metadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret. An empty secret rejects every
// token.
func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// ExtractToken returns the token of an "Authorization: Bearer <token>" value.
func ExtractToken(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// Verify parses and validates token.
func (v *Verifier) Verify(token string) (*Caller, error) {
	if len(v.secret) == 0 {
		return nil, ErrInvalidToken
	}
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return nil, ErrNoSubject
	}
	return &Caller{
		UserID: c.Subject,
		Email:  c.Email,
		Name:   c.UserMetadata.FullName,
		Phone:  c.UserMetadata.Phone,
	}, nil
}

// VerifyHeader extracts and verifies the token of an Authorization header.
func (v *Verifier) VerifyHeader(header string) (*Caller, error) {
	tok, err := ExtractToken(header)
	if err != nil {
		return nil, err
	}
	return v.Verify(tok)
}

// Issue signs a token for c valid for ttl. Used by the CLI to mint
// development tokens and by tests.
func (v *Verifier) Issue(c Caller, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrInvalidToken
	}
	now := time.Now()
	claims := Claims{
		Email:        c.Email,
		UserMetadata: Metadata{FullName: c.Name, Phone: c.Phone},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
