package coordinator

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/alicklee/gridmr/internal/httpapi"
	"github.com/alicklee/gridmr/internal/model"
)

// Server exposes the coordinator's HTTP control plane over JSON: the
// client-facing job API and the worker-facing registration/heartbeat API.
type Server struct {
	log       *logrus.Logger
	scheduler *Scheduler
	reg       *Registry
	mux       *http.ServeMux
}

// NewServer builds a Server wired to scheduler and reg.
func NewServer(log *logrus.Logger, scheduler *Scheduler, reg *Registry) *Server {
	s := &Server{log: log, scheduler: scheduler, reg: reg, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/job/submit", s.handleSubmit)
	s.mux.HandleFunc("/job/status/", s.handleStatus)
	s.mux.HandleFunc("/job/result/", s.handleResult)
	s.mux.HandleFunc("/job/cancel/", s.handleCancel)
	s.mux.HandleFunc("/worker/register", s.handleRegister)
	s.mux.HandleFunc("/worker/heartbeat", s.handleHeartbeat)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req httpapi.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	job, err := s.scheduler.SubmitJob(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, httpapi.SubmitJobResponse{JobID: job.JobID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/job/status/")
	job := s.reg.GetJob(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, httpapi.JobStatusResponse{
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.Error,
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/job/result/")
	job := s.reg.GetJob(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	if job.Status != model.JobCompleted {
		writeJSON(w, http.StatusAccepted, httpapi.ErrorResponse{Error: "still running"})
		return
	}
	writeJSON(w, http.StatusOK, httpapi.JobResultResponse{ResultURL: job.ResultPath})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/job/cancel/")
	if job := s.reg.GetJob(id); job == nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	if err := s.scheduler.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleRegister implements POST /worker/register: the coordinator
// derives the worker's callback URL from the request source
// address plus the X-Worker-Port header.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req httpapi.RegisterRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	port := r.Header.Get("X-Worker-Port")
	workerID := r.Header.Get("X-Worker-ID")
	if port == "" || workerID == "" {
		writeError(w, http.StatusBadRequest, "X-Worker-Port and X-Worker-ID headers are required")
		return
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	workerURL := fmt.Sprintf("http://%s:%s", host, port)

	s.reg.RegisterWorker(&model.Worker{
		WorkerID:     workerID,
		URL:          workerURL,
		Capabilities: []string{req.WorkerType},
		State:        model.WorkerAvailable,
	})

	s.log.WithFields(logrus.Fields{"worker_id": workerID, "url": workerURL}).Info("coordinator: worker registered")
	writeJSON(w, http.StatusOK, httpapi.RegisterResponse{WorkerURL: workerURL})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req httpapi.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if !s.reg.Heartbeat(req.WorkerID, req.Status) {
		writeError(w, http.StatusNotFound, "unknown worker; re-register")
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, httpapi.ErrorResponse{Error: msg})
}
