package routes

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"gigmarket/auth"
	"gigmarket/bids"
	"gigmarket/gigs"
	"gigmarket/middleware"
	"gigmarket/notify"
	"gigmarket/ratelim"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	JWT           *middleware.JWT
	RateLimiter   *ratelim.RateLimiter
	Auth          *auth.Handlers
	Gigs          *gigs.Handlers
	Bids          *bids.Handlers
	Hub           *notify.Hub
	AllowedOrigin string
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func NewRouter(d Deps) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)

	AddAuthRoutes(router, d)
	AddGigRoutes(router, d)
	AddBidRoutes(router, d)
	router.GET("/ws", notify.WebSocketHandler(d.Hub, d.JWT, d.AllowedOrigin))
	return router
}

func AddAuthRoutes(router *httprouter.Router, d Deps) {
	limited := middleware.Chain(d.RateLimiter.Limit)
	router.POST("/api/auth/register", limited(d.Auth.Register))
	router.POST("/api/auth/login", limited(d.Auth.Login))
	router.POST("/api/auth/logout", d.Auth.Logout)
	router.GET("/api/auth/me", d.JWT.Authenticate(d.Auth.Me))
}

func AddGigRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/gigs", d.Gigs.GetGigs)
	router.GET("/api/gigs/:id", d.Gigs.GetGig)
	router.POST("/api/gigs", middleware.Chain(d.RateLimiter.Limit, d.JWT.Authenticate)(d.Gigs.CreateGig))
	router.GET("/api/gigs-mine", d.JWT.Authenticate(d.Gigs.GetMyGigs))
}

func AddBidRoutes(router *httprouter.Router, d Deps) {
	write := middleware.Chain(d.RateLimiter.Limit, d.JWT.Authenticate)
	router.POST("/api/bids", write(d.Bids.SubmitBid))
	router.GET("/api/bids/gig/:gigId", d.JWT.Authenticate(d.Bids.GetBidsForGig))
	router.GET("/api/bids-mine", d.JWT.Authenticate(d.Bids.GetMyBids))
	router.PATCH("/api/bids/:bidId/hire", write(d.Bids.HireBidder))
}
