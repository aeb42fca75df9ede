package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stardust/classifieds-auth/internal/httputil"
)

// DecodeJSON decodes the request body into dst. On failure it writes the
// error envelope and reports false: 413 when the body ran past the size
// limit, 400 for anything else.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			httputil.Error(w, r, http.StatusRequestEntityTooLarge, httputil.CodeRequestTooLarge, "request body too large")
			return false
		}
		httputil.Error(w, r, http.StatusBadRequest, httputil.CodeValidation, "invalid request body")
		return false
	}
	return true
}
