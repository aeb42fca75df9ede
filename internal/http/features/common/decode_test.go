package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardust/classifieds-auth/internal/httputil"
)

type decodeTarget struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", strings.NewReader(`{"name":"ok"}`))
	w := httptest.NewRecorder()

	var dst decodeTarget
	assert.True(t, DecodeJSON(w, req, &dst))
	assert.Equal(t, "ok", dst.Name)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", strings.NewReader(`{"name":`))
	w := httptest.NewRecorder()

	var dst decodeTarget
	assert.False(t, DecodeJSON(w, req, &dst))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var env httputil.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, httputil.CodeValidation, env.Error.Code)
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest("POST", "/test", strings.NewReader(body))
	w := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(w, req.Body, 100)

	var dst decodeTarget
	assert.False(t, DecodeJSON(w, req, &dst))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var env httputil.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, httputil.CodeRequestTooLarge, env.Error.Code)
}
