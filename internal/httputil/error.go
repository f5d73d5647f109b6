package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
)

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Error: msg})
}

func Conflict(w http.ResponseWriter, msg string, err error) {
	slog.Warn("conflict", "message", msg, "error", err)
	JSON(w, http.StatusConflict, errorBody{Error: msg})
}

// ServiceError picks the response status from the error taxonomy in package bracket.
func ServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, bracket.ErrNotFound):
		NotFound(w, err.Error(), err)
	case errors.Is(err, bracket.ErrValidation),
		errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrInvalidFormat):
		BadRequest(w, err.Error(), err)
	case errors.Is(err, bracket.ErrDuplicate),
		errors.Is(err, bracket.ErrFull),
		errors.Is(err, bracket.ErrAlreadyFinished),
		errors.Is(err, bracket.ErrInvalidState),
		errors.Is(err, bracket.ErrIncompleteRound),
		errors.Is(err, bracket.ErrNoBracket),
		errors.Is(err, bracket.ErrInsufficientParticipants):
		Conflict(w, err.Error(), err)
	default:
		InternalServerError(w, msg, err)
	}
}
