package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tabletap/api/internal/auth"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
)

const testSecret = "middleware-test-secret"

func protectedHandler(t *testing.T, gotPrincipal **identity.Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotPrincipal = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	var p *identity.Principal
	h := Authenticate(testSecret)(protectedHandler(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_BadFormat(t *testing.T) {
	var p *identity.Principal
	h := Authenticate(testSecret)(protectedHandler(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	var p *identity.Principal
	h := Authenticate(testSecret)(protectedHandler(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.New()
	restaurantID := uuid.New()
	token, err := auth.GenerateToken(testSecret, auth.Claims{
		UserID:       userID,
		Email:        "admin@example.com",
		Role:         enum.RoleAdmin,
		RestaurantID: restaurantID,
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var p *identity.Principal
	h := Authenticate(testSecret)(protectedHandler(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if p == nil {
		t.Fatal("principal missing from context")
	}
	if p.UserID != userID || p.Role != enum.RoleAdmin || p.RestaurantID != restaurantID {
		t.Errorf("principal = %+v", p)
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RequireRole(enum.RoleAdmin, enum.RoleSuperAdmin)(next)

	cases := []struct {
		name string
		p    *identity.Principal
		want int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"wrong role", &identity.Principal{Role: enum.RoleWaiter}, http.StatusForbidden},
		{"admin", &identity.Principal{Role: enum.RoleAdmin}, http.StatusOK},
		{"superadmin", &identity.Principal{Role: enum.RoleSuperAdmin}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.p != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tc.p))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
