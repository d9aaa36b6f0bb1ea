package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletap/api/internal/auth"
	"github.com/tabletap/api/internal/authz"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/identity"
	"github.com/tabletap/api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

const waiterLoginError = "login restricted for this role"

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
}

// AuthHandler handles authentication. When upstreamURL is set, credentials
// are forwarded to the legacy auth service and its response is normalized by
// the identity resolver; otherwise users are verified locally.
type AuthHandler struct {
	store       AuthStore
	jwtSecret   string
	upstreamURL string
	client      *http.Client
}

func NewAuthHandler(store AuthStore, jwtSecret, upstreamURL string) *AuthHandler {
	return &AuthHandler{
		store:       store,
		jwtSecret:   jwtSecret,
		upstreamURL: upstreamURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterRoutes registers the public auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// RegisterProtectedRoutes registers auth endpoints that need a valid token.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.Me)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string            `json:"token"`
	User        principalResponse `json:"user"`
	LandingPath string            `json:"landing_path"`
}

type principalResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BranchID     *string   `json:"branch_id"`
	SessionID    *string   `json:"session_id,omitempty"`
	Permissions  []string  `json:"permissions"`
}

// --- Handlers ---

// Login authenticates with email + password. Waiters are rejected here no
// matter how they authenticate: they never get interactive sessions.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if h.upstreamURL != "" {
		h.upstreamLogin(w, r, req)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: get user by email: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Role == enum.RoleWaiter {
		writeError(w, http.StatusForbidden, waiterLoginError)
		return
	}

	var branchID *uuid.UUID
	if user.BranchID.Valid {
		b := uuid.UUID(user.BranchID.Bytes)
		branchID = &b
	}
	principal := &identity.Principal{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		RestaurantID: user.RestaurantID,
		BranchID:     branchID,
		Permissions:  user.Permissions,
	}
	h.respondWithToken(w, principal)
}

// upstreamLogin forwards the credentials to the legacy auth service and
// normalizes whatever shape it answers with.
func (h *AuthHandler) upstreamLogin(w http.ResponseWriter, r *http.Request, req loginRequest) {
	payload, _ := json.Marshal(req)
	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.upstreamURL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("ERROR: build upstream login request: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		log.Printf("ERROR: upstream login: %v", err)
		writeError(w, http.StatusBadGateway, "auth upstream unavailable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("ERROR: upstream login status %d", resp.StatusCode)
		writeError(w, http.StatusBadGateway, "auth upstream unavailable")
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Printf("ERROR: read upstream login body: %v", err)
		writeError(w, http.StatusBadGateway, "auth upstream unavailable")
		return
	}

	principal, _, err := identity.Resolve(body)
	if err != nil {
		log.Printf("ERROR: resolve upstream login response: %v", err)
		writeError(w, http.StatusBadGateway, "unintelligible auth upstream response")
		return
	}
	if principal.Role == enum.RoleWaiter {
		writeError(w, http.StatusForbidden, waiterLoginError)
		return
	}

	// The upstream token never leaves this handler; we mint our own so every
	// downstream check runs against one signing key.
	h.respondWithToken(w, principal)
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         toPrincipalResponse(p),
		"landing_path": authz.LandingPath(p.Role),
	})
}

// --- Helpers ---

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, p *identity.Principal) {
	token, err := auth.GenerateToken(h.jwtSecret, auth.Claims{
		UserID:       p.UserID,
		Email:        p.Email,
		Role:         p.Role,
		RestaurantID: p.RestaurantID,
		BranchID:     p.BranchID,
		Permissions:  p.Permissions,
	})
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		User:        toPrincipalResponse(p),
		LandingPath: authz.LandingPath(p.Role),
	})
}

func toPrincipalResponse(p *identity.Principal) principalResponse {
	resp := principalResponse{
		ID:           p.UserID,
		Email:        p.Email,
		Role:         p.Role,
		RestaurantID: p.RestaurantID,
		Permissions:  p.Permissions,
	}
	if resp.Permissions == nil {
		resp.Permissions = []string{}
	}
	if p.BranchID != nil {
		s := p.BranchID.String()
		resp.BranchID = &s
	}
	if p.SessionID != nil {
		s := p.SessionID.String()
		resp.SessionID = &s
	}
	return resp
}
