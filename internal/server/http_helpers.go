package server

import (
	"encoding/json"
	"io"
	"net/http"

	"twentyone/internal/game"
)

func readJSON(body io.Reader, dest any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the game error taxonomy onto HTTP statuses. Retryable
// contention gets a 503 with an explicit retry hint so clients show
// "try again" instead of a hard failure.
func writeError(w http.ResponseWriter, err error) {
	kind := game.KindOf(err)
	body := map[string]any{
		"error": err.Error(),
		"kind":  kind.String(),
	}
	status := http.StatusInternalServerError
	switch kind {
	case game.KindValidation:
		status = http.StatusBadRequest
	case game.KindPermission:
		status = http.StatusForbidden
	case game.KindInvalidState, game.KindDuplicate, game.KindCapacity:
		status = http.StatusConflict
	case game.KindNotFound:
		status = http.StatusNotFound
	case game.KindRetryable:
		status = http.StatusServiceUnavailable
		body["retry"] = true
	}
	writeJSON(w, status, body)
}
