package auth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a snapshot link token. The subject is the
// stored file name the token grants access to.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer issues HS256 tokens for snapshot links.
type Signer struct {
	key     []byte
	issuer  string
	ttl     time.Duration
	baseURL string
}

// NewSigner creates a signer. baseURL is the public origin of the API, e.g.
// https://sentara.example.
func NewSigner(key, issuer, baseURL string, ttl time.Duration) (*Signer, error) {
	if key == "" {
		return nil, errors.New("link signing key required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{
		key:     []byte(key),
		issuer:  issuer,
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Issue signs a token for fileName.
func (s *Signer) Issue(fileName string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fileName,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Link returns the public URL serving fileName.
func (s *Signer) Link(fileName string) (string, error) {
	token, _, err := s.Issue(fileName)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/api/snapshots/" + url.PathEscape(fileName) + "?token=" + url.QueryEscape(token), nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
