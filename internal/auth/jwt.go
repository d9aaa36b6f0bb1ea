package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tabletap/api/internal/enum"
)

// Claims is the canonical token payload. BranchID is a pointer because
// superadmins and unassigned admins legitimately carry no branch scope.
// SessionID is set only on customer tokens minted when a table session starts.
type Claims struct {
	UserID       uuid.UUID  `json:"user_id"`
	Email        string     `json:"email,omitempty"`
	Role         string     `json:"role"`
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	BranchID     *uuid.UUID `json:"branch_id,omitempty"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
	Permissions  []string   `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken mints a staff access token.
func GenerateToken(secret string, c Claims) (string, error) {
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   c.UserID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}

// GenerateSessionToken mints a customer token bound to a table session.
// Customers have no account; the session id in the claims is what the
// authorization policy checks order creation against.
func GenerateSessionToken(secret string, sessionID, restaurantID, branchID uuid.UUID) (string, error) {
	b := branchID
	s := sessionID
	claims := Claims{
		UserID:       uuid.New(), // anonymous per-session identity
		Role:         enum.RoleCustomer,
		RestaurantID: restaurantID,
		BranchID:     &b,
		SessionID:    &s,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(6 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
