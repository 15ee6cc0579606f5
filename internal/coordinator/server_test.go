package coordinator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicklee/gridmr/internal/config"
	"github.com/alicklee/gridmr/internal/httpapi"
)

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "a.txt"), []byte("hello\n"), 0o644))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	cfg := config.Defaults()
	cfg.SharedRoot = root
	cfg.LocalMount = filepath.Join(root, "local")
	cfg.DispatchTimeout = time.Second

	reg := NewRegistry()
	scheduler := NewScheduler(log, cfg, reg)
	t.Cleanup(scheduler.Close)

	return NewServer(log, scheduler, reg), reg
}

func TestHandleSubmitAndStatus(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "a.txt"), []byte("hello\n"), 0o644))

	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body, _ := json.Marshal(httpapi.SubmitJobRequest{
		MapperURL:  "wordcount",
		ReducerURL: "wordcount",
		DataURL:    "file://" + inputDir,
	})
	resp, err := http.Post(ts.URL+"/job/submit", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var submitResp httpapi.SubmitJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitResp))
	require.NotEmpty(t, submitResp.JobID)

	statusResp, err := http.Get(ts.URL + "/job/status/" + submitResp.JobID)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	assert.Equal(t, http.StatusOK, statusResp.StatusCode)
}

func TestHandleStatusUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/job/status/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRegisterRequiresHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body, _ := json.Marshal(httpapi.RegisterRequest{WorkerType: "general"})
	resp, err := http.Post(ts.URL+"/worker/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRegisterDerivesWorkerURL(t *testing.T) {
	srv, reg := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/worker/register", bytes.NewReader([]byte(`{"worker_type":"general"}`)))
	require.NoError(t, err)
	req.Header.Set("X-Worker-Port", "9001")
	req.Header.Set("X-Worker-ID", "worker-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out httpapi.RegisterResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.WorkerURL, ":9001")

	ws := reg.AvailableWorkers(10)
	require.Len(t, ws, 1)
	assert.Equal(t, "worker-1", ws[0].WorkerID)
}

func TestHandleHeartbeatUnknownWorker(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body, _ := json.Marshal(httpapi.HeartbeatRequest{WorkerID: "ghost"})
	resp, err := http.Post(ts.URL+"/worker/heartbeat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
