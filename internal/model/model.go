// Package model defines the shared data types passed between the
// coordinator, workers, and clients: jobs, tasks, task results, and the
// KeyValue record that every map and reduce function produces.
package model

import "time"

// KeyValue is the universal intermediate record. Neither Key nor Value may
// contain a literal tab or newline once serialized.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// TaskType distinguishes map tasks from reduce tasks.
type TaskType string

const (
	TaskMap    TaskType = "MAP"
	TaskReduce TaskType = "REDUCE"
)

// TaskStatus is the lifecycle state of a single task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Job tracks one submitted MapReduce job end to end.
type Job struct {
	JobID       string        `json:"job_id"`
	JobName     string        `json:"job_name"`
	MapperURL   string        `json:"mapper_url"`
	ReducerURL  string        `json:"reducer_url"`
	DataURL     string        `json:"data_url"`
	Status      JobStatus     `json:"status"`
	Progress    float64       `json:"progress"`
	CreatedAt   time.Time     `json:"created_at"`
	InputFiles  []string      `json:"input_files"`
	MapTasks    []*MapTask    `json:"-"`
	ReduceTasks []*ReduceTask `json:"-"`
	ResultPath  string        `json:"result_path,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// MapTask is one unit of map-phase work over a single input file (or a
// line-range sub-split of it).
type MapTask struct {
	TaskID     string `json:"task_id"`
	JobID      string `json:"job_id"`
	InputFile  string `json:"input_file"`
	OutputDir  string `json:"output_dir"`
	MapperURL  string `json:"mapper_url"`
	SplitStart int    `json:"split_start,omitempty"`
	SplitEnd   int    `json:"split_end,omitempty"`

	Status       TaskStatus `json:"status"`
	Attempts     int        `json:"-"`
	LastWorkerID string     `json:"-"`
	OutputFiles  []string   `json:"-"`
}

// HasSplit reports whether SplitEnd was set, meaning the map task should
// read only [SplitStart, SplitEnd) lines instead of the whole file.
func (t *MapTask) HasSplit() bool {
	return t.SplitEnd > 0
}

// ReduceTask is one unit of reduce-phase work over every map output file
// destined for a single partition.
type ReduceTask struct {
	TaskID      string   `json:"task_id"`
	JobID       string   `json:"job_id"`
	PartitionID int      `json:"partition_id"`
	InputFiles  []string `json:"input_files"`
	OutputFile  string   `json:"output_file"`
	ReducerURL  string   `json:"reducer_url"`

	Status       TaskStatus `json:"status"`
	Attempts     int        `json:"-"`
	LastWorkerID string     `json:"-"`
	OutputFiles  []string   `json:"-"`
}

// TaskResult is what a worker reports back after running a task to
// completion or failure.
type TaskResult struct {
	TaskID        string     `json:"task_id"`
	TaskType      TaskType   `json:"task_type"`
	Status        TaskStatus `json:"status"`
	OutputFiles   []string   `json:"output_files,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ExecutionTime float64    `json:"execution_time,omitempty"`
	WorkerID      string     `json:"worker_id"`
}

// WorkerState is the liveness state of a registered worker.
type WorkerState string

const (
	WorkerAvailable WorkerState = "available"
	WorkerBusy      WorkerState = "busy"
	WorkerLost      WorkerState = "lost"
)

// Worker is the coordinator's view of one registered worker process.
type Worker struct {
	WorkerID        string      `json:"worker_id"`
	URL             string      `json:"url"`
	Capabilities    []string    `json:"capabilities,omitempty"`
	LastHeartbeatAt time.Time   `json:"last_heartbeat_at"`
	AssignedTasks   []string    `json:"assigned_tasks"`
	State           WorkerState `json:"state"`
	LastAssignedAt  time.Time   `json:"-"`
}
