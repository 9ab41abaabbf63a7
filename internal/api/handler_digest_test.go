package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestStateV2ShapeOnFreshState(t *testing.T) {
	h := newTestServer(t, "", "")

	rec := h.do(t, http.MethodGet, "/api/runtime/digest-state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "daily_digest")
	assert.Contains(t, resp, "locking")

	locking := resp["locking"].(map[string]any)
	assert.Equal(t, "FREE", locking["status"])
}

func TestDigestStateV1ShapeWhenDisabled(t *testing.T) {
	h := newTestServer(t, "", "")
	h.server.cfg.Digest.RuntimeAPIV2 = false

	rec := h.do(t, http.MethodGet, "/api/runtime/digest-state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "state")
	assert.Contains(t, resp, "lock")
	assert.NotContains(t, resp, "daily_digest")
}
