package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/umarmf343/PhantomViews/internal/auth"
)

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("middleware-test-secret")
	editor, _ := svc.GenerateAccessToken("u-1", "editor@example.com", auth.RoleEditor)
	admin, _ := svc.GenerateAccessToken("u-2", "admin@example.com", auth.RoleAdmin)
	foreign, _ := auth.NewJWTService("other").GenerateAccessToken("u-3", "", auth.RoleAdmin)

	tests := []struct {
		name       string
		header     string
		required   auth.Role
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", auth.RoleEditor, http.StatusUnauthorized, "auth_failed"},
		{"not bearer", "Basic abc", auth.RoleEditor, http.StatusUnauthorized, "auth_failed"},
		{"bad signature", "Bearer " + foreign, auth.RoleEditor, http.StatusUnauthorized, "auth_failed"},
		{"editor on editor route", "Bearer " + editor, auth.RoleEditor, http.StatusOK, ""},
		{"admin on editor route", "Bearer " + admin, auth.RoleEditor, http.StatusOK, ""},
		{"editor on admin route", "Bearer " + editor, auth.RoleAdmin, http.StatusForbidden, "forbidden"},
		{"admin on admin route", "Bearer " + admin, auth.RoleAdmin, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims *auth.Claims
			h := RequireRole(svc, tt.required)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims = ClaimsFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/license/activate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if code, _ := decodeError(t, rr.Body.Bytes()); code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
				return
			}
			if claims == nil {
				t.Fatal("claims should be in the handler context")
			}
			if !claims.Role.Allows(tt.required) {
				t.Errorf("role %q reached a %q route", claims.Role, tt.required)
			}
		})
	}
}
