package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL is used when no TTL is configured.
	DefaultAccessTokenTTL = 15 * time.Minute
	// MaxUserIDLength matches the width of the user id columns.
	MaxUserIDLength = 64
)

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = errors.New("jwt: invalid token")

// JWTConfig bundles the settings needed by JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims identifies the caller. The party engine only needs the stable user id.
type Claims struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the token subject handed to IssueToken.
type Identity struct {
	UserID      string
	DisplayName string
}

// JWTService issues and validates HS256 bearer tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt: secret must be provided")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}
	return &JWTService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl, now: now}, nil
}

// IssueToken signs a token for identity.
func (s *JWTService) IssueToken(identity Identity) (string, error) {
	userID := strings.TrimSpace(identity.UserID)
	if userID == "" {
		return "", errors.New("jwt: user id is required")
	}
	if len(userID) > MaxUserIDLength {
		return "", fmt.Errorf("jwt: user id exceeds %d bytes", MaxUserIDLength)
	}

	now := s.now()
	claims := &Claims{
		UserID:      userID,
		DisplayName: strings.TrimSpace(identity.DisplayName),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses token and returns its claims. Every failure wraps ErrInvalidToken.
func (s *JWTService) ValidateToken(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	if len(claims.UserID) > MaxUserIDLength {
		return nil, fmt.Errorf("%w: user id too long", ErrInvalidToken)
	}
	return &claims, nil
}
