package common

import (
	"errors"
	"net/http"

	"github.com/stardust/classifieds-auth/internal/httputil"
	"github.com/stardust/classifieds-auth/internal/validate"
)

// WriteValidationFailure renders a validate.Struct failure as a 422 envelope
// with per-field messages, falling back to a generic 400 for non-validation
// errors.
func WriteValidationFailure(w http.ResponseWriter, r *http.Request, err error) {
	var fields validate.FieldErrors
	if errors.As(err, &fields) {
		httputil.ValidationError(w, r, fields)
		return
	}
	httputil.Error(w, r, http.StatusBadRequest, httputil.CodeValidation, "invalid request body")
}
