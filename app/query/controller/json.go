package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

// API error codes. Validation and not-found errors surface with precise
// codes; internal errors never leak detail to the caller.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodePageSize     = "INVALID_PAGE_SIZE"
	CodeState        = "STATE_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeExternalDep  = "EXTERNAL_DEPENDENCY_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}
