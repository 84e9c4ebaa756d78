package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/citedoc/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the failure envelope. Code carries the domain error code
// when one is known.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads one JSON value from the request body into dst. Malformed
// bodies become validation errors; an exceeded body limit is passed through
// so it maps to 413.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return InvalidBody(err)
	}
	return nil
}

// InvalidBody classifies a body read failure as a validation error unless
// it came from an exceeded size limit.
func InvalidBody(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid request body", err)
}

// HandleError writes the error envelope for err. Causes are logged for 5xx
// responses and never returned to the client.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}

	var domainErr *domain.DomainError
	switch {
	case errors.As(err, &domainErr):
		JSON(w, status, ErrorResponse{Error: domainErr.Message, Code: domainErr.Code})
	case status == http.StatusInternalServerError:
		Error(w, status, "internal server error")
	case status == http.StatusRequestEntityTooLarge:
		Error(w, status, "request body too large")
	default:
		Error(w, status, err.Error())
	}
}
