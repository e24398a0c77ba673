package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigmarket/globals"
)

func TestIssueAndParse(t *testing.T) {
	j := NewJWT([]byte("s3cret"), time.Hour)
	token, expires, err := j.Issue("65f0c0ffee0000000000abcd", "ana")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := j.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000abcd", claims.UserID)
	assert.Equal(t, "ana", claims.Username)

	_, err = NewJWT([]byte("other"), time.Hour).Parse(token)
	assert.Error(t, err)

	_, err = j.Parse("")
	assert.Error(t, err)
}

func TestParseRejectsExpiredAndForeignAlg(t *testing.T) {
	j := NewJWT([]byte("s3cret"), -time.Minute)
	token, _, err := j.Issue("u1", "ana")
	require.NoError(t, err)
	_, err = j.Parse(token)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.Parse(unsigned)
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r, true))
	assert.Equal(t, "", TokenFromRequest(r, false))

	r.AddCookie(&http.Cookie{Name: globals.TokenCookie, Value: "c"})
	assert.Equal(t, "c", TokenFromRequest(r, true))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r, true))
}

func TestAuthenticate(t *testing.T) {
	j := NewJWT([]byte("s3cret"), time.Hour)
	var seen string
	h := j.Authenticate(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		seen, _ = r.Context().Value(globals.UserIDKey).(string)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Not authorized, token failed","kind":"Unauthorized"}`, rec.Body.String())

	token, _, err := j.Issue("u42", "bo")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h(rec, req, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u42", seen)
}

type revocations struct {
	ids map[string]bool
	err error
}

func (r revocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return r.ids[tokenID], r.err
}

func TestAuthenticateRefusesRevokedToken(t *testing.T) {
	j := NewJWT([]byte("s3cret"), time.Hour)
	token, _, err := j.Issue("u42", "bo")
	require.NoError(t, err)
	claims, err := j.Parse(token)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	h := j.Authenticate(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusNoContent)
	})
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec.Code
	}

	j.Revoked = revocations{ids: map[string]bool{}}
	assert.Equal(t, http.StatusNoContent, call())

	j.Revoked = revocations{ids: map[string]bool{claims.ID: true}}
	assert.Equal(t, http.StatusUnauthorized, call())

	// an unreachable list does not lock callers out
	j.Revoked = revocations{err: errors.New("redis down")}
	assert.Equal(t, http.StatusNoContent, call())
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(httprouter.Handle) httprouter.Handle {
		return func(next httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
				order = append(order, name)
				next(w, r, ps)
			}
		}
	}
	h := Chain(mw("a"), mw("b"))(func(http.ResponseWriter, *http.Request, httprouter.Params) {
		order = append(order, "h")
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, []string{"a", "b", "h"}, order)
}

func TestLoggingSetsRequestID(t *testing.T) {
	var id string
	h := Logging(SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ = r.Context().Value(globals.RequestIDKey).(string)
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
