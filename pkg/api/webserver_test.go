package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wicketvision/drs-tracker/pkg/store"
	"github.com/wicketvision/drs-tracker/pkg/track"
)

func setupRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	viper.Set("directory.source", dir)
	viper.Set("directory.ready", dir)

	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return SetRouter(st, track.DefaultConfig()), st
}

func TestListVideosEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/Videos", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/Upload", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	r, _ := setupRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("video", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not a video"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/Upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
}

func TestUploadAcceptsVideo(t *testing.T) {
	r, st := setupRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("video", "delivery.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/Upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var video store.Video
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &video))
	assert.Equal(t, "delivery.mp4", video.Filename)
	assert.Equal(t, store.StatusUploaded, video.Status)

	stored, err := st.GetVideo(video.ID)
	require.NoError(t, err)
	assert.Equal(t, video.ID, stored.ID)
}

func TestTrackUnknownVideo(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/Track/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackUnreadableVideo(t *testing.T) {
	r, st := setupRouter(t)

	v, err := st.CreateVideo("missing.mp4", "/does/not/exist.mp4")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/Track/"+v.ID, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	got, err := st.GetVideo(v.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
}

func TestTrajectoryAndVerdictsNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/Trajectory/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/Verdicts/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrajectoryServesStoredResult(t *testing.T) {
	r, st := setupRouter(t)

	v, err := st.CreateVideo("delivery.mp4", "/videos/delivery.mp4")
	require.NoError(t, err)
	require.NoError(t, st.SaveResult(&track.TrackingResult{
		VideoID:      v.ID,
		Trajectory:   track.Trajectory{{T: 0, Confidence: 0.9}},
		Confidence:   0.8,
		BallDetected: true,
		Smoothed:     true,
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/Trajectory/"+v.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		VideoID      string    `json:"video_id"`
		Timestamps   []float64 `json:"timestamps"`
		Confidence   float64   `json:"confidence"`
		BallDetected bool      `json:"ball_detected"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, v.ID, resp.VideoID)
	assert.Equal(t, []float64{0}, resp.Timestamps)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.True(t, resp.BallDetected)
}

func TestPlayRequiresID(t *testing.T) {
	r, _ := setupRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/Play", nil))
	assert.Equal(t, http.StatusNotAcceptable, w.Code)
}
