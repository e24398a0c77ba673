package bids

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"gigmarket/hire"
	"gigmarket/utils"
)

type Handlers struct {
	gate    *Gate
	hirer   *hire.Coordinator
	timeout time.Duration
}

func NewHandlers(gate *Gate, hirer *hire.Coordinator, timeout time.Duration) *Handlers {
	return &Handlers{gate: gate, hirer: hirer, timeout: timeout}
}

// POST /api/bids
func (h *Handlers) SubmitBid(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in SubmitInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	view, err := h.gate.SubmitBid(ctx, utils.GetUserIDFromRequest(r), in)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, view)
}

// GET /api/bids/gig/:gigId
func (h *Handlers) GetBidsForGig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.gate.ListBidsForGig(ctx, utils.GetUserIDFromRequest(r), ps.ByName("gigId"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/bids-mine
func (h *Handlers) GetMyBids(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.gate.ListMyBids(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// PATCH /api/bids/:bidId/hire
func (h *Handlers) HireBidder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.hirer.Hire(ctx, utils.GetUserIDFromRequest(r), ps.ByName("bidId"))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message": "Freelancer hired successfully",
		"gig":     res.Gig,
		"bid":     res.Bid,
	})
}
