package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/tabletap/api/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	restaurantID := uuid.New()
	branchID := uuid.New()

	token, err := auth.GenerateToken(secret, auth.Claims{
		UserID:       userID,
		Email:        "chef@example.com",
		Role:         "KITCHEN",
		RestaurantID: restaurantID,
		BranchID:     &branchID,
		Permissions:  []string{"orders:transition"},
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.RestaurantID != restaurantID {
		t.Errorf("restaurant ID: got %v, want %v", claims.RestaurantID, restaurantID)
	}
	if claims.BranchID == nil || *claims.BranchID != branchID {
		t.Errorf("branch ID: got %v, want %v", claims.BranchID, branchID)
	}
	if claims.Role != "KITCHEN" {
		t.Errorf("role: got %v, want KITCHEN", claims.Role)
	}
	if len(claims.Permissions) != 1 || claims.Permissions[0] != "orders:transition" {
		t.Errorf("permissions: got %v", claims.Permissions)
	}
}

func TestGenerateTokenWithoutBranch(t *testing.T) {
	// Superadmins carry no branch scope; nil must round-trip as nil, not zero.
	token, err := auth.GenerateToken("secret", auth.Claims{
		UserID:       uuid.New(),
		Role:         "SUPERADMIN",
		RestaurantID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.BranchID != nil {
		t.Errorf("branch ID: got %v, want nil", claims.BranchID)
	}
}

func TestGenerateSessionToken(t *testing.T) {
	sessionID := uuid.New()
	restaurantID := uuid.New()
	branchID := uuid.New()

	token, err := auth.GenerateSessionToken("secret", sessionID, restaurantID, branchID)
	if err != nil {
		t.Fatalf("generate session token: %v", err)
	}

	claims, err := auth.ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("validate session token: %v", err)
	}
	if claims.Role != "CUSTOMER" {
		t.Errorf("role: got %v, want CUSTOMER", claims.Role)
	}
	if claims.SessionID == nil || *claims.SessionID != sessionID {
		t.Errorf("session ID: got %v, want %v", claims.SessionID, sessionID)
	}
	if claims.RestaurantID != restaurantID {
		t.Errorf("restaurant ID: got %v, want %v", claims.RestaurantID, restaurantID)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", auth.Claims{
		UserID:       uuid.New(),
		Role:         "ADMIN",
		RestaurantID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}
