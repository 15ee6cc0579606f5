// Package httpapi defines the JSON request/response wire types for the
// client and worker HTTP control plane. It has no behavior of its own;
// handlers live in internal/coordinator and internal/worker.
package httpapi

import "github.com/alicklee/gridmr/internal/model"

// SubmitJobRequest is the body of POST /job/submit. MapperURL/ReducerURL
// are preferred; CodeURL is the legacy single-field fallback.
type SubmitJobRequest struct {
	CodeURL    string `json:"code_url,omitempty"`
	MapperURL  string `json:"mapper_url,omitempty"`
	ReducerURL string `json:"reducer_url,omitempty"`
	DataURL    string `json:"data_url"`
	JobName    string `json:"job_name,omitempty"`
}

// SubmitJobResponse is the 201 body of POST /job/submit.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is the 200 body of GET /job/status/{id}.
type JobStatusResponse struct {
	Status   model.JobStatus `json:"status"`
	Progress float64         `json:"progress"`
	Error    string          `json:"error,omitempty"`
}

// JobResultResponse is the 200 body of GET /job/result/{id}.
type JobResultResponse struct {
	ResultURL string `json:"result_url"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TaskExecuteRequest is the body of POST /task/execute.
type TaskExecuteRequest struct {
	TaskType   model.TaskType    `json:"task_type"`
	MapTask    *model.MapTask    `json:"map_task,omitempty"`
	ReduceTask *model.ReduceTask `json:"reduce_task,omitempty"`
}

// TaskExecuteResponse is the body returned by POST /task/execute once the
// task has terminated.
type TaskExecuteResponse struct {
	TaskID string            `json:"task_id"`
	Status model.TaskStatus  `json:"status"`
	Result *model.TaskResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// TaskStatusResponse is the body of GET /task/status/{task_id}.
type TaskStatusResponse struct {
	TaskID   string            `json:"task_id"`
	Status   model.TaskStatus  `json:"status"`
	Progress float64           `json:"progress"`
	Result   *model.TaskResult `json:"result,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	WorkerID string `json:"worker_id"`
}

// RegisterRequest is the body of POST /worker/register.
type RegisterRequest struct {
	WorkerType string `json:"worker_type"`
}

// RegisterResponse is the body returned by POST /worker/register.
type RegisterResponse struct {
	WorkerURL string `json:"worker_url"`
}

// HeartbeatTaskStatus is one entry of HeartbeatRequest.CurrentTasks.
type HeartbeatTaskStatus struct {
	TaskID string           `json:"task_id"`
	Status model.TaskStatus `json:"status"`
}

// HeartbeatRequest is the body of POST /worker/heartbeat.
type HeartbeatRequest struct {
	WorkerID     string                `json:"worker_id"`
	Status       model.WorkerState     `json:"status"`
	CurrentTasks []HeartbeatTaskStatus `json:"current_tasks"`
}
