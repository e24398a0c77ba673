package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"gigmarket/globals"
	"gigmarket/middleware"
	"gigmarket/utils"
)

type Handlers struct {
	svc     *Service
	jwt     *middleware.JWT
	timeout time.Duration
}

func NewHandlers(svc *Service, jwt *middleware.JWT, timeout time.Duration) *Handlers {
	return &Handlers{svc: svc, jwt: jwt, timeout: timeout}
}

// POST /api/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in RegisterInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	sess, err := h.svc.Register(ctx, in)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusCreated, sess)
}

// POST /api/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var in LoginInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	sess, err := h.svc.Login(ctx, in)
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusOK, sess)
}

// POST /api/auth/logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if claims, err := h.jwt.Parse(middleware.TokenFromRequest(r, false)); err == nil {
		h.svc.Logout(ctx, claims)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     globals.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Logged out successfully"})
}

// GET /api/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.svc.Me(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

func (h *Handlers) respondSession(w http.ResponseWriter, r *http.Request, status int, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     globals.TokenCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.Expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	utils.RespondWithJSON(w, status, utils.M{
		"_id":   sess.User.ID,
		"name":  sess.User.Name,
		"email": sess.User.Email,
		"token": sess.Token,
	})
}
