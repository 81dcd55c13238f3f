package api

import (
	"encoding/json"
	"errors"
	"net/http"

	mapservice "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/application"
	playtestservice "github.com/Black-And-White-Club/parkour-bot/app/modules/playtest/application"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/apperr"
)

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, mapservice.ErrMapNotFound) || errors.Is(err, playtestservice.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeMessage(w, statusFor(err), apperr.Reason(err))
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
