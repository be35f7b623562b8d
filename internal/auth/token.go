package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "admin-panel-issuer"
	TokenAudience = "admin-panel"
)

var (
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")

	ErrRevocationDisabled = errors.New("token revocation disabled")
)

// Claims is the fixed payload of an admin session token.
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Principal is the admin identity asserted by a valid session token.
type Principal struct {
	Username  string
	IsAdmin   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

type Revoker interface {
	Revoke(jti string, expiresAt time.Time) error
	IsRevoked(jti string) bool
}

// TokenService issues and verifies admin session tokens. Tokens are self-contained:
// without a denylist nothing is stored server side and a token stays valid until it expires.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	denylist  Revoker
	// ability to inject time (for unit and dev testing)
	NowFunc func() time.Time
}

// NewTokenService creates the token service; denylist is optional.
func NewTokenService(secret string, expiresIn time.Duration, denylist Revoker) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		denylist:  denylist,
		NowFunc:   time.Now,
	}
}

func (s *TokenService) ExpiresIn() time.Duration {
	return s.expiresIn
}

// Issue signs a new admin token for an already authenticated username.
func (s *TokenService) Issue(username string) (string, time.Time, error) {
	if strings.TrimSpace(username) == "" {
		return "", time.Time{}, errors.New("issue token: username empty")
	}

	now := s.NowFunc()
	claims := Claims{
		Username: username,
		IsAdmin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, envelope and expiry, then the admin claims. Errors are one of
// ErrTokenMissing, ErrTokenExpired, ErrTokenMalformed or ErrTokenInvalid (use errors.Is).
func (s *TokenService) Verify(rawToken string) (*Principal, error) {
	if rawToken == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(*jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.NowFunc),
	)
	if err != nil {
		// the signature is checked before the claims, so an expired token here is a genuine one
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	if !claims.IsAdmin || strings.TrimSpace(claims.Username) == "" || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}

	if s.denylist != nil && claims.ID != "" && s.denylist.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: revoked", ErrTokenInvalid)
	}

	return &Principal{
		Username:  claims.Username,
		IsAdmin:   claims.IsAdmin,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		TokenID:   claims.ID,
	}, nil
}

// Revoke denylists a valid token until its natural expiry.
func (s *TokenService) Revoke(rawToken string) error {
	if s.denylist == nil {
		return ErrRevocationDisabled
	}

	principal, err := s.Verify(rawToken)
	if err != nil {
		return err
	}
	if principal.TokenID == "" {
		return fmt.Errorf("%w: no token id", ErrTokenInvalid)
	}

	return s.denylist.Revoke(principal.TokenID, principal.ExpiresAt)
}

// ErrorMessage maps a Verify error to the message returned to API clients.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "Authentication required"
	case errors.Is(err, ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, ErrTokenMalformed):
		return "Invalid token format"
	default:
		return "Invalid token"
	}
}
