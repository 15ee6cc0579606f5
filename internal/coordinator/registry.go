// Package coordinator implements the job lifecycle and task scheduler:
// job registry, task dispatch, retry, and final assembly.
//
// Job and worker tables are in-memory only, with no durable state across
// restarts, protected by the registry's single mutex so the job table and
// worker table can be treated as shared mutable state behind one lock
// rather than a mutex per struct.
package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alicklee/gridmr/internal/model"
)

// Registry is the coordinator's in-memory job and worker table.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	tasks   map[string]*taskEntry // task_id -> owning job + task pointer
	workers map[string]*model.Worker
}

type taskEntry struct {
	jobID      string
	taskType   model.TaskType
	mapTask    *model.MapTask
	reduceTask *model.ReduceTask
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:    make(map[string]*model.Job),
		tasks:   make(map[string]*taskEntry),
		workers: make(map[string]*model.Worker),
	}
}

// CreateJob allocates a new job id and stores job in pending state.
func (r *Registry) CreateJob(job *model.Job) *model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.JobID = uuid.NewString()
	job.Status = model.JobPending
	job.CreatedAt = time.Now()
	r.jobs[job.JobID] = job
	return job
}

// GetJob returns the job with id, or nil if unknown.
func (r *Registry) GetJob(id string) *model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// UpdateJob runs fn against the job with id while holding the registry
// lock, so callers can make read-modify-write state transitions
// atomically without racing the dispatch loop.
func (r *Registry) UpdateJob(id string, fn func(*model.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("coordinator: unknown job %q", id)
	}
	fn(job)
	return nil
}

// RegisterTask indexes a map or reduce task by its task id so results can
// be routed back to the owning job.
func (r *Registry) RegisterTask(jobID string, mt *model.MapTask, rt *model.ReduceTask) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mt != nil {
		r.tasks[mt.TaskID] = &taskEntry{jobID: jobID, taskType: model.TaskMap, mapTask: mt}
	}
	if rt != nil {
		r.tasks[rt.TaskID] = &taskEntry{jobID: jobID, taskType: model.TaskReduce, reduceTask: rt}
	}
}

// Task returns the map or reduce task registered under taskID.
func (r *Registry) Task(taskID string) (jobID string, mt *model.MapTask, rt *model.ReduceTask, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found := r.tasks[taskID]
	if !found {
		return "", nil, nil, false
	}
	return e.jobID, e.mapTask, e.reduceTask, true
}

// RegisterWorker adds or refreshes a worker entry.
func (r *Registry) RegisterWorker(w *model.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.LastHeartbeatAt = time.Now()
	if w.State == "" {
		w.State = model.WorkerAvailable
	}
	r.workers[w.WorkerID] = w
}

// Heartbeat refreshes a worker's liveness timestamp and state. Returns false if the worker wasn't registered. A worker with
// in-flight tasks stays busy regardless of the state it reports — only
// AssignTask/CompleteTask may clear busy state, so a heartbeat can never
// flip a worker back to available out from under an outstanding task.
func (r *Registry) Heartbeat(workerID string, state model.WorkerState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return false
	}
	w.LastHeartbeatAt = time.Now()
	switch {
	case len(w.AssignedTasks) > 0:
		w.State = model.WorkerBusy
	case state != "":
		w.State = state
	case w.State == model.WorkerLost:
		w.State = model.WorkerAvailable
	}
	return true
}

// AvailableWorkers returns every worker that is not lost and whose
// in-flight task count is below concurrency (a busy worker with headroom
// is included), ordered by longest time since last assignment (an
// approximate round-robin tie-break).
func (r *Registry) AvailableWorkers(concurrency int) []*model.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Worker
	for _, w := range r.workers {
		if w.State == model.WorkerLost {
			continue
		}
		if len(w.AssignedTasks) >= concurrency {
			continue
		}
		out = append(out, w)
	}
	sortByLastAssigned(out)
	return out
}

func sortByLastAssigned(ws []*model.Worker) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && ws[j-1].LastAssignedAt.After(ws[j].LastAssignedAt); j-- {
			ws[j-1], ws[j] = ws[j], ws[j-1]
		}
	}
}

// AssignTask records that worker now has taskID in flight.
func (r *Registry) AssignTask(workerID, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return
	}
	w.AssignedTasks = append(w.AssignedTasks, taskID)
	w.LastAssignedAt = time.Now()
	if len(w.AssignedTasks) > 0 {
		w.State = model.WorkerBusy
	}
}

// CompleteTask removes taskID from a worker's in-flight set and marks it
// available again if it has headroom.
func (r *Registry) CompleteTask(workerID, taskID string, concurrency int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return
	}
	w.AssignedTasks = removeString(w.AssignedTasks, taskID)
	if w.State != model.WorkerLost && len(w.AssignedTasks) < concurrency {
		w.State = model.WorkerAvailable
	}
}

// MarkLost transitions a worker to lost and returns the task ids that
// were in flight on it, so the caller can requeue them.
func (r *Registry) MarkLost(workerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return nil
	}
	inFlight := w.AssignedTasks
	w.AssignedTasks = nil
	w.State = model.WorkerLost
	return inFlight
}

// SweepLostWorkers marks every worker whose last heartbeat exceeds
// threshold as lost, returning the ids of newly-lost workers and their
// in-flight tasks.
func (r *Registry) SweepLostWorkers(threshold time.Duration) map[string][]string {
	r.mu.Lock()
	now := time.Now()
	var lostIDs []string
	for id, w := range r.workers {
		if w.State == model.WorkerLost {
			continue
		}
		if now.Sub(w.LastHeartbeatAt) > threshold {
			lostIDs = append(lostIDs, id)
		}
	}
	r.mu.Unlock()

	out := make(map[string][]string, len(lostIDs))
	for _, id := range lostIDs {
		out[id] = r.MarkLost(id)
	}
	return out
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
