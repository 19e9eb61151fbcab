// Package auth issues and validates the bearer tokens used by tour editors
// and site administrators, and the short-lived nonces that guard checkout.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is what a token holder may do.
type Role string

// Roles, from least to most privileged. Admins manage licenses; editors
// (and admins) write tours.
const (
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Allows reports whether r carries at least the privileges of required.
func (r Role) Allows(required Role) bool {
	switch required {
	case RoleEditor:
		return r == RoleEditor || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	}
	return false
}

// AccessTokenExpiry is how long an issued access token stays valid.
const AccessTokenExpiry = 15 * time.Minute

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptyUserID is returned when userID is empty.
	ErrEmptyUserID = errors.New("userID cannot be empty")

	// ErrUnknownRole is returned when a token would carry an unrecognized role.
	ErrUnknownRole = errors.New("unknown role")
)

// Claims represents custom JWT claims for the application.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

// JWTService handles JWT token operations.
// Tokens are signed with currentSecret and validate against either
// currentSecret or previousSecret, so secrets rotate without logouts.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService with a single signing secret.
func NewJWTService(secret string) *JWTService {
	return NewJWTServiceWithRotation(secret, "")
}

// NewJWTServiceWithRotation creates a JWTService that also accepts tokens
// signed with previousSecret. Pass "" when no rotation is in progress.
func NewJWTServiceWithRotation(currentSecret, previousSecret string) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway returns a copy of the service with a custom clock-skew leeway.
func (s *JWTService) WithLeeway(leeway time.Duration) *JWTService {
	cp := *s
	cp.leeway = leeway
	return &cp
}

// GenerateAccessToken creates an access token for userID with the given role.
func (s *JWTService) GenerateAccessToken(userID, email string, role Role) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}
	if role != RoleEditor && role != RoleAdmin {
		return "", ErrUnknownRole
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
		},
		Email: email,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	// An expired token signed with the current secret won't verify with the old one either.
	if s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		var prev *Claims
		if prev, err = s.parse(tokenString, s.previousSecret); err == nil {
			return prev, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
