package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicklee/gridmr/internal/httpapi"
	"github.com/alicklee/gridmr/internal/model"
)

// Server exposes the worker's HTTP API. POST /task/execute runs a task
// synchronously from the coordinator's viewpoint (it responds only once
// the task has terminated) while serving /health and /task/status
// concurrently with task execution.
type Server struct {
	log      *logrus.Logger
	workerID string
	executor *Executor
	mux      *http.ServeMux

	mu    sync.Mutex
	tasks map[string]httpapi.TaskStatusResponse
}

// NewServer builds a worker Server.
func NewServer(log *logrus.Logger, workerID string, executor *Executor) *Server {
	s := &Server{
		log:      log,
		workerID: workerID,
		executor: executor,
		mux:      http.NewServeMux(),
		tasks:    make(map[string]httpapi.TaskStatusResponse),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/task/execute", s.handleExecute)
	s.mux.HandleFunc("/task/status/", s.handleStatus)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, httpapi.HealthResponse{Status: "healthy", WorkerID: s.workerID})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req httpapi.TaskExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var taskID string
	switch req.TaskType {
	case model.TaskMap:
		if req.MapTask == nil {
			writeError(w, http.StatusBadRequest, "map_task is required for task_type MAP")
			return
		}
		taskID = req.MapTask.TaskID
	case model.TaskReduce:
		if req.ReduceTask == nil {
			writeError(w, http.StatusBadRequest, "reduce_task is required for task_type REDUCE")
			return
		}
		taskID = req.ReduceTask.TaskID
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown task_type %q", req.TaskType))
		return
	}

	s.setStatus(taskID, httpapi.TaskStatusResponse{TaskID: taskID, Status: model.TaskRunning})

	var (
		result *model.TaskResult
		err    error
	)
	switch req.TaskType {
	case model.TaskMap:
		result, err = s.executor.ExecuteMap(req.MapTask)
	case model.TaskReduce:
		result, err = s.executor.ExecuteReduce(req.ReduceTask)
	}
	if err != nil {
		// Infrastructure error outside the task's own error handling;
		// still reported as a TaskResponse, never raised as an HTTP 5xx,
		// so the coordinator's retry logic applies uniformly.
		result = &model.TaskResult{TaskID: taskID, Status: model.TaskFailed, ErrorMessage: err.Error(), WorkerID: s.workerID}
	}

	progress := 100.0
	s.setStatus(taskID, httpapi.TaskStatusResponse{TaskID: taskID, Status: result.Status, Progress: progress, Result: result})

	resp := httpapi.TaskExecuteResponse{TaskID: taskID, Status: result.Status, Result: result}
	if result.Status == model.TaskFailed {
		resp.Error = result.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/task/status/")
	s.mu.Lock()
	st, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) setStatus(taskID string, st httpapi.TaskStatusResponse) {
	s.mu.Lock()
	s.tasks[taskID] = st
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, httpapi.ErrorResponse{Error: msg})
}

// CoordinatorClient is the worker's outbound side of the control plane:
// registration and periodic heartbeats, sent over an HTTP client with a
// retry-friendly heartbeat loop.
type CoordinatorClient struct {
	log             *logrus.Logger
	coordinatorAddr string
	workerID        string
	workerPort      string
	http            *http.Client
}

// NewCoordinatorClient builds a CoordinatorClient.
func NewCoordinatorClient(log *logrus.Logger, coordinatorAddr, workerID, workerPort string) *CoordinatorClient {
	return &CoordinatorClient{
		log:             log,
		coordinatorAddr: coordinatorAddr,
		workerID:        workerID,
		workerPort:      workerPort,
		http:            &http.Client{Timeout: 10 * time.Second},
	}
}

// Register calls POST /worker/register.
func (c *CoordinatorClient) Register(workerType string) error {
	body, _ := json.Marshal(httpapi.RegisterRequest{WorkerType: workerType})
	req, err := http.NewRequest(http.MethodPost, c.coordinatorAddr+"/worker/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-Port", c.workerPort)
	req.Header.Set("X-Worker-ID", c.workerID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("register: coordinator responded %s", resp.Status)
	}
	return nil
}

// Heartbeat calls POST /worker/heartbeat once.
func (c *CoordinatorClient) Heartbeat(state model.WorkerState, tasks []httpapi.HeartbeatTaskStatus) error {
	body, _ := json.Marshal(httpapi.HeartbeatRequest{WorkerID: c.workerID, Status: state, CurrentTasks: tasks})
	resp, err := c.http.Post(c.coordinatorAddr+"/worker/heartbeat", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("heartbeat: coordinator responded %s", resp.Status)
	}
	return nil
}

// RunHeartbeatLoop sends a heartbeat every interval until stop is closed,
// re-registering after any failed heartbeat (including the coordinator
// reporting the worker unknown) so a returning worker re-registers before
// its next task.
func (c *CoordinatorClient) RunHeartbeatLoop(interval time.Duration, workerType string, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Heartbeat(model.WorkerAvailable, nil); err != nil {
				c.log.WithError(err).Warn("worker: heartbeat failed, re-registering")
				if rerr := c.Register(workerType); rerr != nil {
					c.log.WithError(rerr).Error("worker: re-registration failed")
				}
			}
		}
	}
}
