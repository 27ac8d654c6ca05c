package api

import (
	"encoding/json"
	"net/http"
)

// ErrorKind classifies a request failure.
type ErrorKind string

const (
	ErrUnauthorized            ErrorKind = "Unauthorized"
	ErrPermissionDenied        ErrorKind = "PermissionDenied"
	ErrInstanceNotFound        ErrorKind = "InstanceNotFound"
	ErrMalformedRequest        ErrorKind = "MalformedRequest"
	ErrInvalidInstanceState    ErrorKind = "InvalidInstanceState"
	ErrFailedToRemoveFileOrDir ErrorKind = "FailedToRemoveFileOrDir"
	ErrInternal                ErrorKind = "InternalError"
)

// Error is the structured error body every handler returns on failure.
type Error struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Detail
}

func (k ErrorKind) status() int {
	switch k {
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrPermissionDenied:
		return http.StatusForbidden
	case ErrInstanceNotFound:
		return http.StatusNotFound
	case ErrMalformedRequest:
		return http.StatusBadRequest
	case ErrInvalidInstanceState:
		return http.StatusConflict
	case ErrFailedToRemoveFileOrDir, ErrInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, kind ErrorKind, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.status())
	json.NewEncoder(w).Encode(&Error{Kind: kind, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
