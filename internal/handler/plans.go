package handler

import (
	"net/http"

	"github.com/zynx-ai/backend/internal/domain"
)

// PlansHandler serves the public plan catalog.
type PlansHandler struct{}

// NewPlansHandler creates a new PlansHandler.
func NewPlansHandler() *PlansHandler {
	return &PlansHandler{}
}

// List handles GET /api/plans.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	Success(w, http.StatusOK, map[string]interface{}{"plans": domain.AvailablePlans()})
}
