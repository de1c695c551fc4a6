package handlers

import (
	"net/http"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// BudgetHandler reports the caller's remaining daily quota.
type BudgetHandler struct {
	budget *services.BudgetGuard
}

// NewBudgetHandler creates a budget handler.
func NewBudgetHandler(budget *services.BudgetGuard) *BudgetHandler {
	return &BudgetHandler{budget: budget}
}

type budgetResponse struct {
	Identity  string                   `json:"identity"`
	Remaining entities.BudgetRemaining `json:"remaining"`
}

// GetBudget handles GET /api/budget
func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	identity := clientIdentity(r)
	remaining := h.budget.Remaining(r.Context(), identity)

	setRemainingHeader(w, remaining)
	respondWithJSON(w, http.StatusOK, budgetResponse{
		Identity:  identity,
		Remaining: remaining,
	})
}
