// Package responders holds the one small helper every JSON handler in this
// module shares: write a status code and an encoded body without leaking
// HTML-escaped merchant names (the campus card service's data is full of
// "&"-bearing Chinese merchant strings).
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes an application/json response with status code and payload.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
