package coordinator

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/alicklee/gridmr/internal/config"
	"github.com/alicklee/gridmr/internal/httpapi"
	"github.com/alicklee/gridmr/internal/loader"
	"github.com/alicklee/gridmr/internal/loader/builtin"
	"github.com/alicklee/gridmr/internal/model"
	"github.com/alicklee/gridmr/internal/pathrw"
	"github.com/alicklee/gridmr/internal/worker"
)

// TestSchedulerRunsWordCountJobEndToEnd submits a wordcount job against a
// single in-process worker and waits for it to complete, exercising
// dispatch, map/reduce phase transitions, and final result assembly
// together.
func TestSchedulerRunsWordCountJobEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "a.txt"), []byte("to be or not to be\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "b.txt"), []byte("to be that is the question\n"), 0o644))

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := config.Defaults()
	cfg.SharedRoot = root
	cfg.LocalMount = root
	cfg.UseNFS = false
	cfg.ReduceFanout = 2
	cfg.LostThreshold = time.Minute
	cfg.WorkerConcurrency = 2
	cfg.DispatchTimeout = 10 * time.Second

	rewriter, err := pathrw.New(cfg.SharedRoot, cfg.LocalMount, cfg.UseNFS)
	require.NoError(t, err)

	registry := loader.NewRegistry(log)
	builtin.Register(registry)
	ld := loader.New(registry, rewriter)

	executor := worker.NewExecutor(log, "worker-1", ld, rewriter, cfg.ReduceFanout)
	workerServer := worker.NewServer(log, "worker-1", executor)
	ts := httptest.NewServer(workerServer)
	defer ts.Close()

	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "worker-1", URL: ts.URL, State: model.WorkerAvailable})

	scheduler := NewScheduler(log, cfg, reg)
	defer scheduler.Close()

	job, err := scheduler.SubmitJob(httpapi.SubmitJobRequest{
		MapperURL:  "wordcount",
		ReducerURL: "wordcount",
		DataURL:    "file://" + inputDir,
	})
	require.NoError(t, err)

	deadline := time.Now().Add(15 * time.Second)
	var final *model.Job
	for time.Now().Before(deadline) {
		j := reg.GetJob(job.JobID)
		if j.Status == model.JobCompleted || j.Status == model.JobFailed {
			final = j
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	require.NotNil(t, final, "job did not finish before deadline")
	require.Equal(t, model.JobCompleted, final.Status, "job error: %s", final.Error)
	require.NotEmpty(t, final.ResultPath)

	data, err := os.ReadFile(final.ResultPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "to\t3")
	require.Contains(t, string(data), "be\t3")
}

// TestSchedulerRejectsEmptyInput verifies SubmitJob rejects a job whose
// input set resolves to zero files.
func TestSchedulerRejectsEmptyInput(t *testing.T) {
	root := t.TempDir()
	emptyDir := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(emptyDir, 0o777))

	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Defaults()
	cfg.SharedRoot = root
	cfg.LocalMount = filepath.Join(root, "local")

	reg := NewRegistry()
	scheduler := NewScheduler(log, cfg, reg)
	defer scheduler.Close()

	_, err := scheduler.SubmitJob(httpapi.SubmitJobRequest{
		MapperURL:  "wordcount",
		ReducerURL: "wordcount",
		DataURL:    "file://" + emptyDir,
	})
	require.Error(t, err)
}

func TestSchedulerRejectsMissingCodeURLs(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Defaults()
	cfg.SharedRoot = t.TempDir()
	cfg.LocalMount = filepath.Join(cfg.SharedRoot, "local")

	reg := NewRegistry()
	scheduler := NewScheduler(log, cfg, reg)
	defer scheduler.Close()

	_, err := scheduler.SubmitJob(httpapi.SubmitJobRequest{DataURL: "file:///tmp"})
	require.Error(t, err)
}
