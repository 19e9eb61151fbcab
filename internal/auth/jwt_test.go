package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	tests := []struct {
		name    string
		userID  string
		role    Role
		wantErr error
	}{
		{name: "editor", userID: "user-1", role: RoleEditor},
		{name: "admin", userID: "user-2", role: RoleAdmin},
		{name: "empty userID", userID: "", role: RoleAdmin, wantErr: ErrEmptyUserID},
		{name: "unknown role", userID: "user-3", role: Role("owner"), wantErr: ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.GenerateAccessToken(tt.userID, "editor@example.com", tt.role)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateAccessToken() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && strings.Count(token, ".") != 2 {
				t.Errorf("token %q is not a JWT", token)
			}
		})
	}
}

func TestValidateToken_Claims(t *testing.T) {
	svc := NewJWTService(testSecret)
	token, err := svc.GenerateAccessToken("user-1", "admin@example.com", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != AccessTokenExpiry {
		t.Errorf("expiry window = %v, want %v", got, AccessTokenExpiry)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService(testSecret).WithLeeway(0)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateAccessToken("user-1", "", RoleEditor)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken() error = %v, want %v", err, ErrExpiredToken)
	}
}

func TestValidateToken_Leeway(t *testing.T) {
	svc := NewJWTService(testSecret)
	issued := time.Now().Add(-AccessTokenExpiry - 10*time.Second)
	svc.now = func() time.Time { return issued }
	token, _ := svc.GenerateAccessToken("user-1", "", RoleEditor)

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("token 10s past expiry should pass with default leeway, got %v", err)
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewJWTService(testSecret)
	token, _ := svc.GenerateAccessToken("user-1", "", RoleEditor)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"tampered", token[:len(token)-2] + "xx"},
		{"wrong secret", mustSign(t, NewJWTService("another-secret"))},
		{"alg none", unsigned},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func mustSign(t *testing.T, svc *JWTService) string {
	t.Helper()
	token, err := svc.GenerateAccessToken("user-1", "", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

func TestKeyRotation(t *testing.T) {
	current, previous := "current-secret-key-12345678", "previous-secret-key-87654321"
	rotating := NewJWTServiceWithRotation(current, previous)

	t.Run("old tokens still validate", func(t *testing.T) {
		old := mustSign(t, NewJWTService(previous))
		if _, err := rotating.ValidateToken(old); err != nil {
			t.Errorf("ValidateToken() error = %v", err)
		}
	})

	t.Run("new tokens use the current secret", func(t *testing.T) {
		token := mustSign(t, rotating)
		if _, err := NewJWTService(current).ValidateToken(token); err != nil {
			t.Errorf("current-only service rejected token: %v", err)
		}
		if _, err := NewJWTService(previous).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("previous-only service error = %v, want %v", err, ErrInvalidToken)
		}
	})

	t.Run("unrelated secret still fails", func(t *testing.T) {
		stray := mustSign(t, NewJWTService("unrelated"))
		if _, err := rotating.ValidateToken(stray); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
		}
	})
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role, required Role
		want           bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleEditor, true},
		{RoleEditor, RoleEditor, true},
		{RoleEditor, RoleAdmin, false},
		{Role(""), RoleEditor, false},
		{RoleAdmin, Role("owner"), false},
	}
	for _, tt := range tests {
		if got := tt.role.Allows(tt.required); got != tt.want {
			t.Errorf("%q.Allows(%q) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}
