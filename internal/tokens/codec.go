package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and tokens of
	// the wrong kind.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired means the signature checked out but the expiry has
	// passed. Callers map it to user messaging different from ErrTokenInvalid.
	ErrTokenExpired = errors.New("token expired")
)

// Kind discriminates access tokens from refresh tokens via the "typ" claim,
// so a refresh token can never be presented as an access token or vice versa.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the access/refresh token pair. Secrets and TTLs
// are fixed at construction; a Codec is safe for concurrent use.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewCodec(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess signs a short-lived access token for the subject and returns
// it with its expiry.
func (c *Codec) IssueAccess(subjectID string) (string, time.Time, error) {
	return c.issue(subjectID, KindAccess, c.accessSecret, c.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the subject. Each refresh
// token carries a fresh JTI so two rotations within the same second still
// produce distinct token strings.
func (c *Codec) IssueRefresh(subjectID string) (string, time.Time, error) {
	return c.issue(subjectID, KindRefresh, c.refreshSecret, c.refreshTTL)
}

func (c *Codec) issue(subjectID string, kind Kind, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if kind == KindRefresh {
		claims.ID = uuid.NewString()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and kind, and returns the subject id.
// It fails with ErrTokenExpired only when the signature is valid and the
// expiry has passed; every other failure is ErrTokenInvalid.
func (c *Codec) Verify(raw string, kind Kind) (string, error) {
	secret := c.accessSecret
	if kind == KindRefresh {
		secret = c.refreshSecret
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !tkn.Valid || claims.Kind != kind || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
