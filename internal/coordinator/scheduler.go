package coordinator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicklee/gridmr/internal/config"
	"github.com/alicklee/gridmr/internal/httpapi"
	"github.com/alicklee/gridmr/internal/model"
	"github.com/alicklee/gridmr/internal/storage"
)

// jobRun is the scheduler's private bookkeeping for one job's progress,
// kept separate from model.Job so the wire-facing type stays small.
type jobRun struct {
	totalMap, completedMap       int
	totalReduce, completedReduce int
	cancelled                    bool
}

// Scheduler drives jobs through the map and reduce phases: dispatch,
// retry, reduce-task construction, and final assembly, using a FIFO task
// channel per phase and an HTTP dispatch pool to reach workers.
type Scheduler struct {
	log    *logrus.Logger
	cfg    config.Config
	reg    *Registry
	layout *storage.Layout
	client *dispatchClient
	disp   *dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mapQueue    chan string
	reduceQueue chan string

	mu      sync.Mutex
	runs    map[string]*jobRun
	wg      sync.WaitGroup
}

// NewScheduler builds a Scheduler and starts its background loops. Callers
// must call Close when done.
func NewScheduler(log *logrus.Logger, cfg config.Config, reg *Registry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		log:         log,
		cfg:         cfg,
		reg:         reg,
		layout:      storage.New(cfg.SharedRoot),
		client:      newDispatchClient(cfg.DispatchTimeout),
		disp:        newDispatcher(ctx, log, 32),
		ctx:         ctx,
		cancel:      cancel,
		mapQueue:    make(chan string, 4096),
		reduceQueue: make(chan string, 4096),
		runs:        make(map[string]*jobRun),
	}

	s.wg.Add(4)
	go s.feed(s.mapQueue, model.TaskMap)
	go s.feed(s.reduceQueue, model.TaskReduce)
	go s.collect()
	go s.sweepLostWorkers()

	return s
}

// Close stops every background loop.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

// SubmitJob enumerates the job's input files, constructs one map task per
// file, and returns the created job in the "running" state. It rejects
// malformed URLs or an empty input set.
func (s *Scheduler) SubmitJob(req httpapi.SubmitJobRequest) (*model.Job, error) {
	mapperURL, reducerURL := resolveCodeURLs(req)
	if mapperURL == "" || reducerURL == "" {
		return nil, fmt.Errorf("coordinator: mapper_url and reducer_url (or legacy code_url) are required")
	}
	if req.DataURL == "" {
		return nil, fmt.Errorf("coordinator: data_url is required")
	}

	inputFiles, err := enumerateInputs(req.DataURL)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	if len(inputFiles) == 0 {
		return nil, fmt.Errorf("coordinator: data_url %q resolved to no input files", req.DataURL)
	}

	job := &model.Job{
		JobName:    req.JobName,
		MapperURL:  mapperURL,
		ReducerURL: reducerURL,
		DataURL:    req.DataURL,
		InputFiles: inputFiles,
	}
	job = s.reg.CreateJob(job)

	outputDir := s.layout.MapOutputDir(job.JobID)
	mapTasks := make([]*model.MapTask, 0, len(inputFiles))
	for i, f := range inputFiles {
		mt := &model.MapTask{
			TaskID:    fmt.Sprintf("%s_map_%d", job.JobID, i),
			JobID:     job.JobID,
			InputFile: f,
			OutputDir: outputDir,
			MapperURL: mapperURL,
			Status:    model.TaskPending,
		}
		mapTasks = append(mapTasks, mt)
		s.reg.RegisterTask(job.JobID, mt, nil)
	}

	if err := s.reg.UpdateJob(job.JobID, func(j *model.Job) {
		j.MapTasks = mapTasks
		j.Status = model.JobRunning
	}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.runs[job.JobID] = &jobRun{totalMap: len(mapTasks)}
	s.mu.Unlock()

	for _, mt := range mapTasks {
		s.mapQueue <- mt.TaskID
	}

	return job, nil
}

// Cancel marks job as failed with reason "cancelled" and stops dispatch
// of further tasks for it; in-flight tasks are allowed to finish but
// their results are discarded.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	run, ok := s.runs[jobID]
	if ok {
		run.cancelled = true
	}
	s.mu.Unlock()

	return s.reg.UpdateJob(jobID, func(j *model.Job) {
		if j.Status == model.JobCompleted || j.Status == model.JobFailed {
			return
		}
		j.Status = model.JobFailed
		j.Error = "cancelled"
	})
}

func resolveCodeURLs(req httpapi.SubmitJobRequest) (mapperURL, reducerURL string) {
	if req.MapperURL != "" && req.ReducerURL != "" {
		return req.MapperURL, req.ReducerURL
	}
	// Legacy single code_url field: treated as naming the same program
	// for both roles.
	if req.CodeURL != "" {
		return req.CodeURL, req.CodeURL
	}
	return req.MapperURL, req.ReducerURL
}

// enumerateInputs resolves data_url to an ordered list of regular files.
// A plain path or file:// URL naming a directory expands to every regular
// file it directly contains, lexicographically ordered; naming a single
// file returns that file alone.
func enumerateInputs(dataURL string) ([]string, error) {
	path := dataURL
	if u, err := url.Parse(dataURL); err == nil && u.Scheme == "file" {
		path = u.Path
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("data_url %q: %w", dataURL, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("data_url %q: %w", dataURL, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scheduler) isCancelled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	return ok && run.cancelled
}

// feed pulls task ids off queue and hands them to the dispatch pool once
// an available worker is found.
func (s *Scheduler) feed(queue chan string, phase model.TaskType) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case taskID := <-queue:
			s.dispatchOne(taskID, phase)
		}
	}
}

func (s *Scheduler) dispatchOne(taskID string, phase model.TaskType) {
	jobID, mt, rt, ok := s.reg.Task(taskID)
	if !ok {
		return
	}
	if s.isCancelled(jobID) {
		return
	}

	lastWorkerID := ""
	if mt != nil {
		lastWorkerID = mt.LastWorkerID
	} else if rt != nil {
		lastWorkerID = rt.LastWorkerID
	}

	worker := s.waitForWorker(lastWorkerID)
	if worker == nil {
		return // shutting down
	}

	if mt != nil {
		mt.LastWorkerID = worker.WorkerID
	} else if rt != nil {
		rt.LastWorkerID = worker.WorkerID
	}

	s.reg.AssignTask(worker.WorkerID, taskID)

	s.disp.submit(func(ctx context.Context) (dispatchOutcome, error) {
		var req httpapi.TaskExecuteRequest
		req.TaskType = phase
		req.MapTask = mt
		req.ReduceTask = rt

		result, err := s.client.execute(ctx, worker.URL, req)
		outcome := dispatchOutcome{taskID: taskID, workerID: worker.WorkerID, taskType: phase, result: result, err: err}
		return outcome, nil
	})
}

// waitForWorker blocks until a worker is available. When avoidWorkerID
// names the worker that last attempted this task and a different
// available worker exists, that other worker is preferred as a soft
// preference rather than a hard exclusion.
func (s *Scheduler) waitForWorker(avoidWorkerID string) *model.Worker {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if ws := s.reg.AvailableWorkers(s.cfg.WorkerConcurrency); len(ws) > 0 {
			if avoidWorkerID != "" && ws[0].WorkerID == avoidWorkerID && len(ws) > 1 {
				return ws[1]
			}
			return ws[0]
		}
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// sweepLostWorkers periodically requeues work assigned to workers whose
// heartbeat has lapsed beyond cfg.LostThreshold.
func (s *Scheduler) sweepLostWorkers() {
	defer s.wg.Done()
	interval := s.cfg.LostThreshold / 3
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			lost := s.reg.SweepLostWorkers(s.cfg.LostThreshold)
			for workerID, taskIDs := range lost {
				s.log.WithField("worker_id", workerID).Warn("coordinator: worker lost, requeueing its tasks")
				for _, taskID := range taskIDs {
					s.requeueOrFail(taskID, "worker lost (heartbeat timeout)")
				}
			}
		}
	}
}
