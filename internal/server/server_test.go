package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumba-live/rumba/pkg/session"
)

type stubDirs struct {
	logos map[string]string
}

func (d *stubDirs) CreateSessionDirectory(band string) (string, error) {
	return "/media/" + band, nil
}

func (d *stubDirs) DeleteSessionDirectory(string) error { return nil }

func (d *stubDirs) SaveLogo(band string, logo io.Reader, _ string) error {
	data, _ := io.ReadAll(logo)
	d.logos[band] = string(data)
	return nil
}

func (d *stubDirs) LogoURL(band string) (string, error) {
	if _, ok := d.logos[band]; !ok {
		return "", errors.New("no logo")
	}
	return "/media/" + band + "/logo.png", nil
}

type stubRecorder struct{}

func (stubRecorder) Start(context.Context, string) (time.Time, error) { return time.Now(), nil }
func (stubRecorder) Stop() error                                      { return nil }

func newTestServer() *Server {
	manager := session.NewManager(
		session.NewMemoryStore(),
		&stubDirs{logos: make(map[string]string)},
		stubRecorder{},
		session.ManagerConfig{ServerURL: "http://rumba.example.com/"},
	)
	return New(manager, nil, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{
		"concert":   "Summer Night",
		"band":      "The Wailers",
		"date":      time.Date(2026, 7, 18, 21, 0, 0, 0, time.UTC),
		"location":  "Madrid",
		"is_public": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer()
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view session.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Summer Night", view.Concert)
	assert.Equal(t, session.StateCreated, view.State)
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "folder")
}

func TestCreateSession_MalformedBody(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_ValidationError(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{"band": "B"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_SecondLiveConflictsAsValidation(t *testing.T) {
	srv := newTestServer()
	createSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions", map[string]any{
		"concert":  "Other",
		"band":     "Other Band",
		"date":     time.Now(),
		"location": "Lisbon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer()
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/sessions/"+id+"/start", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+id, nil)
	var view session.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, session.StateActive, view.State)
	assert.NotNil(t, view.AudioTimestamp)

	// Active sessions cannot be deleted.
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/sessions/"+id+"/stop", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCurrent_NoLiveSession(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStop_FinishedConflicts(t *testing.T) {
	srv := newTestServer()
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/sessions/"+id+"/stop", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/sessions/"+id+"/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGet_UnknownID(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/b2c7f11e-73ab-44a0-9c9b-8f1f4a9f6a01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList(t *testing.T) {
	srv := newTestServer()
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []session.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, id, views[0].ID)
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "folder")
}

func TestLogoUploadAndFetch(t *testing.T) {
	srv := newTestServer()
	id := createSession(t, srv)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "band.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/logo", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec2 := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/logo", nil)
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.Equal(t, "/media/The Wailers/logo.png", resp["url"])
}

func TestLogoUpload_MissingFile(t *testing.T) {
	srv := newTestServer()
	id := createSession(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/logo", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer()

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// No database configured: readiness reports ready without a ping.
	rec = doJSON(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
