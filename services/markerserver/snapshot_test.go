package markerserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markerhub/internal/marker"
)

func TestGetMarkersHandler(t *testing.T) {
	s, _ := newTestServer()
	s.Insert(boxDef("a"))
	s.Insert(boxDef("b"))
	require.NoError(t, s.ApplyChanges(context.Background()))
	s.Insert(boxDef("staged-only"))

	hs := NewHTTPServer(":0", s)
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.SequenceNumber)
	require.Len(t, resp.Markers, 2, "snapshot must exclude staged updates")
	assert.Equal(t, "a", resp.Markers[0].Name)
	assert.Equal(t, "b", resp.Markers[1].Name)
}

func TestGetMarkerHandler(t *testing.T) {
	s, _ := newTestServer()
	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(context.Background()))

	hs := NewHTTPServer(":0", s)

	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markers/a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var def marker.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	assert.Equal(t, "a", def.Name)

	rec = httptest.NewRecorder()
	hs.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markers/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMarkerHandlerHonorsPending(t *testing.T) {
	s, _ := newTestServer()
	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(context.Background()))
	require.True(t, s.Erase("a"))

	hs := NewHTTPServer(":0", s)
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/markers/a", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "pending erase hides the marker from the query surface")
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer()
	hs := NewHTTPServer(":0", s)

	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
