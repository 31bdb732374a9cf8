package httputil

import (
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteError(w, http.StatusBadRequest, msg)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteError(w, http.StatusNotFound, msg)
}

func Conflict(w http.ResponseWriter, msg string, err error) {
	slog.Warn("conflict", "message", msg, "error", err)
	WriteError(w, http.StatusConflict, msg)
}

// StatusFor maps the domain error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch bracket.Kind(err) {
	case bracket.KindNotFound:
		return http.StatusNotFound
	case bracket.KindValidation:
		return http.StatusBadRequest
	case bracket.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// DomainError writes err with the status its kind maps to. Unexpected errors
// are logged and hidden behind a generic message.
func DomainError(w http.ResponseWriter, msg string, err error) {
	switch StatusFor(err) {
	case http.StatusNotFound:
		NotFound(w, err.Error(), err)
	case http.StatusBadRequest:
		BadRequest(w, err.Error(), err)
	case http.StatusConflict:
		Conflict(w, err.Error(), err)
	default:
		InternalServerError(w, msg, err)
	}
}
