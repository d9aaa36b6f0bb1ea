package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tabletap/api/internal/authz"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// RestaurantServicer defines the service methods needed by restaurant
// handlers. Satisfied by *service.DirectoryService.
type RestaurantServicer interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	UpdateRestaurant(ctx context.Context, arg database.UpdateRestaurantParams) (database.Restaurant, error)
}

// RestaurantHandler handles restaurant endpoints. Restaurants themselves are
// provisioned out of band (see cmd/seed); the API only reads and updates.
type RestaurantHandler struct {
	svc RestaurantServicer
}

func NewRestaurantHandler(svc RestaurantServicer) *RestaurantHandler {
	return &RestaurantHandler{svc: svc}
}

// RegisterRoutes registers restaurant endpoints on an authenticated router.
func (h *RestaurantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/restaurants/{id}", h.Get)
	r.Put("/restaurants/{id}", h.Update)
}

// --- Request / Response types ---

type updateRestaurantRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type restaurantResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Timezone    string    `json:"timezone"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Handlers ---

// Get handles GET /restaurants/{id}.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	restaurantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return
	}
	if p.RestaurantID != restaurantID {
		writeError(w, http.StatusForbidden, "access denied for this restaurant")
		return
	}

	restaurant, err := h.svc.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		if errors.Is(err, service.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get restaurant: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// Update handles PUT /restaurants/{id}.
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	restaurantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return
	}

	var req updateRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	decision := authz.Decide(p, authz.Action{
		Resource:     authz.ResourceRestaurant,
		Verb:         authz.VerbUpdate,
		RestaurantID: restaurantID,
	})
	if !decision.Allowed {
		writeError(w, http.StatusForbidden, decision.Reason)
		return
	}

	existing, err := h.svc.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		if errors.Is(err, service.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: get restaurant: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	timezone := existing.Timezone
	if req.Timezone != "" {
		timezone = req.Timezone
	}
	currency := existing.Currency
	if req.Currency != "" {
		currency = req.Currency
	}

	restaurant, err := h.svc.UpdateRestaurant(r.Context(), database.UpdateRestaurantParams{
		ID:       restaurantID,
		Name:     req.Name,
		Timezone: timezone,
		Currency: currency,
	})
	if err != nil {
		if errors.Is(err, service.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("ERROR: update restaurant: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(restaurant))
}

// --- Helpers ---

func toRestaurantResponse(r database.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:          r.ID,
		Name:        r.Name,
		OwnerUserID: r.OwnerUserID,
		Timezone:    r.Timezone,
		Currency:    r.Currency,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
