// Package identity normalizes heterogeneous authentication responses into one
// canonical Principal. Backends this system has fronted over time disagree on
// where the token lives (token / accessToken / jwt / access_token), whether
// the user object is nested or flattened into the response root, and how the
// role is spelled (role / authority / first element of an authorities list).
// The resolver tries an ordered list of extractors per field; the first hit
// wins and missing body fields fall back to the token claims.
package identity

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tabletap/api/internal/auth"
	"github.com/tabletap/api/internal/enum"
)

// ErrInvalidCredentialsResponse is returned when no role can be resolved from
// either the response body or the token claims, or when a token is present
// but structurally malformed.
var ErrInvalidCredentialsResponse = errors.New("invalid credentials response")

// Principal is the resolved identity + role + tenant scope used for every
// authorization decision. It is derived once per request and replaced, never
// mutated, on re-authentication.
type Principal struct {
	UserID       uuid.UUID
	Email        string
	Role         string
	RestaurantID uuid.UUID
	BranchID     *uuid.UUID
	SessionID    *uuid.UUID
	Permissions  []string
}

var tokenKeys = []string{"token", "accessToken", "jwt", "access_token"}

// Resolve normalizes a raw login response body into a Principal and the
// bearer token it carries.
func Resolve(body []byte) (*Principal, string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", ErrInvalidCredentialsResponse
	}

	token := firstString(raw, tokenKeys...)

	claims := map[string]any{}
	if token != "" {
		var err error
		claims, err = decodeClaims(token)
		if err != nil {
			return nil, "", ErrInvalidCredentialsResponse
		}
	}

	// The user object is either nested under "user" or spread at the root.
	user, _ := raw["user"].(map[string]any)
	if user == nil {
		user = raw
	}

	role, ok := resolveRole(user, claims)
	if !ok {
		return nil, "", ErrInvalidCredentialsResponse
	}

	p := &Principal{
		UserID:       firstUUID(uuid.Nil, user, claims, "id", "userId", "user_id", "sub"),
		Email:        firstFallback(user, claims, "email", "username"),
		Role:         role,
		RestaurantID: firstUUID(uuid.Nil, user, claims, "restaurantId", "restaurant_id", "restId"),
		BranchID:     optionalUUID(user, claims, "branchId", "branch_id"),
		Permissions:  stringSet(user["permissions"], claims["permissions"]),
	}
	return p, token, nil
}

// FromClaims builds a Principal from validated claims of a token this service
// minted itself. No fallbacks needed; the shape is canonical.
func FromClaims(c *auth.Claims) *Principal {
	return &Principal{
		UserID:       c.UserID,
		Email:        c.Email,
		Role:         c.Role,
		RestaurantID: c.RestaurantID,
		BranchID:     c.BranchID,
		SessionID:    c.SessionID,
		Permissions:  append([]string(nil), c.Permissions...),
	}
}

// NormalizeRole maps legacy role spellings (any case, optional ROLE_ prefix)
// onto the fixed role set. Unknown values do not default; they fail.
func NormalizeRole(s string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.TrimPrefix(key, "ROLE_")
	if enum.IsValidRole(key) {
		return key, true
	}
	return "", false
}

// --- Extractors ---

// roleExtractor pulls a candidate role string from one historical location.
type roleExtractor func(user, claims map[string]any) string

// roleExtractors is the priority order: response role, response authority,
// first element of an authorities list (plain string or nested object), and
// finally the token claim.
var roleExtractors = []roleExtractor{
	func(u, _ map[string]any) string { return str(u["role"]) },
	func(u, _ map[string]any) string { return str(u["authority"]) },
	func(u, _ map[string]any) string { return firstAuthority(u["authorities"]) },
	func(_, c map[string]any) string { return str(c["role"]) },
	func(_, c map[string]any) string { return str(c["authority"]) },
}

func resolveRole(user, claims map[string]any) (string, bool) {
	for _, extract := range roleExtractors {
		if candidate := extract(user, claims); candidate != "" {
			return NormalizeRole(candidate)
		}
	}
	return "", false
}

func firstAuthority(v any) string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	switch first := list[0].(type) {
	case string:
		return first
	case map[string]any:
		if s := str(first["authority"]); s != "" {
			return s
		}
		return str(first["role"])
	}
	return ""
}

// decodeClaims decodes the payload of a bearer token without verifying the
// signature. Verification is impossible here: legacy backends sign with keys
// we do not hold. Structural validation still applies.
func decodeClaims(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// --- Field helpers ---

func str(v any) string {
	s, _ := v.(string)
	return s
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// firstFallback prefers the response body, falling back to token claims.
func firstFallback(user, claims map[string]any, keys ...string) string {
	if s := firstString(user, keys...); s != "" {
		return s
	}
	return firstString(claims, keys...)
}

func firstUUID(fallback uuid.UUID, user, claims map[string]any, keys ...string) uuid.UUID {
	if s := firstFallback(user, claims, keys...); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			return id
		}
	}
	return fallback
}

// optionalUUID preserves null: an absent or null branch scope stays nil and
// is never coerced to the zero UUID.
func optionalUUID(user, claims map[string]any, keys ...string) *uuid.UUID {
	if s := firstFallback(user, claims, keys...); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			return &id
		}
	}
	return nil
}

// stringSet normalizes permissions: the first candidate that is an array of
// strings wins; any other shape normalizes to an empty set.
func stringSet(candidates ...any) []string {
	for _, v := range candidates {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(list))
		valid := true
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				valid = false
				break
			}
			out = append(out, s)
		}
		if valid && len(out) > 0 {
			return out
		}
	}
	return []string{}
}
