package devserver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "propman-devserver"
)

var (
	errInvalidToken = errors.New("invalid token")
	errWrongUse     = errors.New("wrong token use")
)

// sessionClaims are the JWT claims carried by both cookie tokens.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
}

// tokenSigner mints and verifies the HS256 cookie tokens. The signing key
// lives in a memguard enclave and is only materialized for the duration of
// each sign/verify call.
type tokenSigner struct {
	key *memguard.Enclave
}

func newTokenSigner() (*tokenSigner, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	// NewEnclave wipes the input slice.
	return &tokenSigner{key: memguard.NewEnclave(key)}, nil
}

func (s *tokenSigner) mint(acct *account, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   acct.Email,
		},
		UserID:    acct.ID,
		Email:     acct.Email,
		Role:      acct.Role,
		TokenType: tokenType,
	}

	buf, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
}

func (s *tokenSigner) verify(tokenString, wantType string) (*sessionClaims, error) {
	buf, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&sessionClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return buf.Bytes(), nil
		},
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, errWrongUse
	}
	return claims, nil
}
