// Package response - единый формат ответов API: {"data": ..., "error": ...}.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/UkralStul/syndication-service/internal/domain"
	"github.com/UkralStul/syndication-service/internal/logging"
)

// Response - конверт ответа.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error - описание ошибки для клиента.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success создает успешный ответ.
func Success(data any) Response {
	return Response{Data: data}
}

// Fail создает ответ с ошибкой.
func Fail(code, message, details string) Response {
	return Response{Error: &Error{Code: code, Message: message, Details: details}}
}

// JSON пишет ответ с заданным статусом.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Заголовки уже отправлены, ошибку кодирования вернуть некуда
	_ = json.NewEncoder(w).Encode(resp)
}

// OK - 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Success(data))
}

// Created - 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Success(data))
}

// BadRequest - 400.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// NotFound - 404.
func NotFound(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, details))
}

// Conflict - 409.
func Conflict(w http.ResponseWriter, code, message string) {
	JSON(w, http.StatusConflict, Fail(code, message, ""))
}

// Locked - 423, документ занят незавершенной правкой.
func Locked(w http.ResponseWriter, message string) {
	JSON(w, http.StatusLocked, Fail("BUSY", message, "retry when the previous edit has finished"))
}

// InternalError - 500. Детали только в лог.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		"An unexpected error occurred",
	))
}

// Err сопоставляет доменные ошибки со статусами HTTP.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, err.Error(), "")
	case errors.Is(err, domain.ErrBusy):
		Locked(w, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		Conflict(w, "ALREADY_EXISTS", err.Error())
	case errors.Is(err, domain.ErrNothingToPublish):
		Conflict(w, "NOTHING_TO_PUBLISH", err.Error())
	case errors.Is(err, domain.ErrInheritedField):
		Conflict(w, "INHERITED_FIELD", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		BadRequest(w, err.Error(), "")
	default:
		logging.FromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		InternalError(w, err)
	}
}
