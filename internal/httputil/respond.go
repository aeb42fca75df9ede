package httputil

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes returned in the error envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeNoEmail            = "NO_EMAIL"
	CodeNoPhone            = "NO_PHONE"
	CodeSendFailed         = "SEND_FAILED"
	CodeUserExists         = "USER_EXISTS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorBody is the inner error object of the envelope.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorEnvelope is the wire format for all error responses.
type ErrorEnvelope struct {
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path"`
	RequestID string    `json:"request_id,omitempty"`
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes an error envelope with the given code and message.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, r, status, ErrorBody{Code: code, Message: message})
}

// ValidationError writes a 422 envelope carrying per-field messages.
func ValidationError(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	writeEnvelope(w, r, http.StatusUnprocessableEntity, ErrorBody{
		Code:    CodeValidation,
		Message: "validation failed",
		Fields:  fields,
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	env := ErrorEnvelope{
		Error:     body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if r != nil {
		env.Path = r.URL.Path
		env.RequestID = middleware.GetReqID(r.Context())
	}
	JSON(w, status, env)
}
