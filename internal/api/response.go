// Package api serves the daemon's HTTP interface: group control, controller
// setup, a websocket state stream and the Prometheus endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zberg/go-melco/internal/hub"
	"github.com/zberg/go-melco/pkg/melco"
)

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

// listResponse wraps collections.
type listResponse struct {
	Object string `json:"object"`
	Data   any    `json:"data"`
}

// Error is an error with an HTTP status and a machine-readable code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func badRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_request", Message: msg}
}

// WriteJSON sends a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteList sends a collection.
func WriteList(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, listResponse{Object: "list", Data: data})
}

// WriteError maps err to a status code and writes the error payload.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	_ = WriteJSON(w, apiErr.Status, errorResponse{Error: ErrorBody{Code: apiErr.Code, Message: apiErr.Message}})
}

func toAPIError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, hub.ErrUnknownEntity):
		return &Error{Status: http.StatusNotFound, Code: "not_found", Message: err.Error()}
	case errors.Is(err, hub.ErrAlreadyConfigured):
		return &Error{Status: http.StatusConflict, Code: hub.ReasonAlreadyConfigured, Message: err.Error()}
	case errors.Is(err, hub.ErrNoGroups):
		return &Error{Status: http.StatusUnprocessableEntity, Code: hub.ReasonNoGroups, Message: err.Error()}
	case errors.Is(err, hub.ErrCannotConnect):
		return &Error{Status: http.StatusBadGateway, Code: hub.ReasonCannotConnect, Message: err.Error()}
	}

	switch kind := melco.KindOf(err); kind {
	case melco.KindValidation:
		return &Error{Status: http.StatusBadRequest, Code: string(kind), Message: err.Error()}
	case melco.KindTransport, melco.KindHTTPStatus, melco.KindDecode:
		return &Error{Status: http.StatusBadGateway, Code: string(kind), Message: err.Error()}
	}
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Message: "internal server error"}
}
