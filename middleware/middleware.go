package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"gigmarket/globals"
)

// JWT claims
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	jwt.RegisteredClaims
}

// RevocationList reports tokens that were signed out before they expired.
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWT issues and verifies HS256 access tokens. Revoked may be nil.
type JWT struct {
	Secret  []byte
	TTL     time.Duration
	Revoked RevocationList
}

func NewJWT(secret []byte, ttl time.Duration) *JWT {
	return &JWT{Secret: secret, TTL: ttl}
}

func (j *JWT) Issue(userID, username string) (string, time.Time, error) {
	expires := time.Now().Add(j.TTL)
	claims := &Claims{
		Username: username,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (j *JWT) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Verify parses the token and refuses it once it has been revoked. An
// unreachable revocation list is logged and does not lock everyone out.
func (j *JWT) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := j.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if j.Revoked == nil || claims.ID == "" {
		return claims, nil
	}
	revoked, err := j.Revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		log.Printf("[Auth] revocation check for %s: %v", claims.UserID, err)
		return claims, nil
	}
	if revoked {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

// TokenFromRequest looks at the Authorization header, then the token cookie,
// then (for websocket handshakes only) the token query parameter.
func TokenFromRequest(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(globals.TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// Authenticate rejects requests without a valid token and stores the caller
// in the request context.
func (j *JWT) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if r.Method == http.MethodOptions {
			next(w, r, ps)
			return
		}
		claims, err := j.Verify(r.Context(), TokenFromRequest(r, false))
		if err != nil {
			writeUnauthorized(w, "Not authorized, token failed")
			return
		}
		ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, globals.UsernameKey, claims.Username)
		next(w, r.WithContext(ctx), ps)
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q,"kind":"Unauthorized"}`+"\n", msg)
}

// Chain applies middlewares so the first one listed runs first.
func Chain(mws ...func(httprouter.Handle) httprouter.Handle) func(httprouter.Handle) httprouter.Handle {
	return func(h httprouter.Handle) httprouter.Handle {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
