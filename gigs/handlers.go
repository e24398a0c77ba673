package gigs

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"gigmarket/utils"
)

type Handlers struct {
	svc     *Service
	timeout time.Duration
}

func NewHandlers(svc *Service, timeout time.Duration) *Handlers {
	return &Handlers{svc: svc, timeout: timeout}
}

// GET /api/gigs?search=
func (h *Handlers) GetGigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.svc.Search(ctx, r.URL.Query().Get("search"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/gigs/:id
func (h *Handlers) GetGig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.Get(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// POST /api/gigs
func (h *Handlers) CreateGig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in CreateInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	view, err := h.svc.Create(ctx, utils.GetUserIDFromRequest(r), in)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, view)
}

// GET /api/gigs-mine
func (h *Handlers) GetMyGigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.svc.Mine(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}
