package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gigmarket/apperr"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from the request body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.InvalidInput, "request body is empty")
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.New(apperr.InvalidInput, "request body too large")
		}
		return apperr.Wrap(apperr.InvalidInput, "invalid request body", err)
	}
	return nil
}
