package utils

import (
	"encoding/json"
	"log"
	"net/http"

	"gigmarket/apperr"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] encode response: %v", err)
	}
}

// RespondWithAppError writes err as {"error","kind"} with the status its kind
// maps to. Internal causes are logged and never sent to the client.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Printf("[HTTP] %s %s: %v", r.Method, r.URL.Path, err)
	}
	RespondWithJSON(w, apperr.HTTPStatus(kind), map[string]string{
		"error": apperr.Message(err),
		"kind":  string(kind),
	})
}

type M map[string]interface{}
