package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicklee/gridmr/internal/model"
)

func TestCreateJobAssignsIDAndPendingStatus(t *testing.T) {
	reg := NewRegistry()
	job := reg.CreateJob(&model.Job{JobName: "wc"})

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, job, reg.GetJob(job.JobID))
}

func TestUpdateJobUnknownIDFails(t *testing.T) {
	reg := NewRegistry()
	err := reg.UpdateJob("missing", func(j *model.Job) {})
	assert.Error(t, err)
}

func TestRegisterAndLookupTask(t *testing.T) {
	reg := NewRegistry()
	job := reg.CreateJob(&model.Job{})
	mt := &model.MapTask{TaskID: "t1", JobID: job.JobID}
	reg.RegisterTask(job.JobID, mt, nil)

	jobID, gotMT, gotRT, ok := reg.Task("t1")
	require.True(t, ok)
	assert.Equal(t, job.JobID, jobID)
	assert.Same(t, mt, gotMT)
	assert.Nil(t, gotRT)
}

func TestAvailableWorkersExcludesBusyAndNonAvailable(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "w1", State: model.WorkerAvailable})
	reg.RegisterWorker(&model.Worker{WorkerID: "w2", State: model.WorkerLost})
	reg.AssignTask("w1", "t1")

	ws := reg.AvailableWorkers(1)
	assert.Empty(t, ws) // w1 now at capacity, w2 is lost

	ws = reg.AvailableWorkers(2)
	require.Len(t, ws, 1)
	assert.Equal(t, "w1", ws[0].WorkerID)
}

func TestAvailableWorkersOrderedByLeastRecentlyAssigned(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "w1", State: model.WorkerAvailable})
	reg.RegisterWorker(&model.Worker{WorkerID: "w2", State: model.WorkerAvailable})

	reg.AssignTask("w1", "t1")
	reg.CompleteTask("w1", "t1", 2)
	time.Sleep(time.Millisecond)
	reg.AssignTask("w2", "t2")
	reg.CompleteTask("w2", "t2", 2)

	ws := reg.AvailableWorkers(2)
	require.Len(t, ws, 2)
	assert.Equal(t, "w1", ws[0].WorkerID) // assigned longest ago
}

func TestAssignCompleteTaskTransitionsState(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "w1", State: model.WorkerAvailable})

	reg.AssignTask("w1", "t1")
	ws := reg.AvailableWorkers(2)
	require.Len(t, ws, 1)
	assert.Equal(t, model.WorkerBusy, ws[0].State)

	reg.CompleteTask("w1", "t1", 2)
	ws = reg.AvailableWorkers(2)
	require.Len(t, ws, 1)
	assert.Equal(t, model.WorkerAvailable, ws[0].State)
	assert.Empty(t, ws[0].AssignedTasks)
}

func TestMarkLostReturnsInFlightTasks(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "w1", State: model.WorkerAvailable})
	reg.AssignTask("w1", "t1")
	reg.AssignTask("w1", "t2")

	tasks := reg.MarkLost("w1")
	assert.ElementsMatch(t, []string{"t1", "t2"}, tasks)

	ws := reg.AvailableWorkers(10)
	assert.Empty(t, ws)
}

func TestSweepLostWorkersDetectsStaleHeartbeat(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "w1", State: model.WorkerAvailable})
	reg.AssignTask("w1", "t1")

	// Force the heartbeat timestamp into the past.
	reg.mu.Lock()
	reg.workers["w1"].LastHeartbeatAt = time.Now().Add(-time.Hour)
	reg.mu.Unlock()

	lost := reg.SweepLostWorkers(time.Second)
	require.Contains(t, lost, "w1")
	assert.Equal(t, []string{"t1"}, lost["w1"])
}

func TestHeartbeatUnknownWorkerFails(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Heartbeat("ghost", model.WorkerAvailable))
}

func TestHeartbeatRevivesLostWorkerWhenStateOmitted(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterWorker(&model.Worker{WorkerID: "w1", State: model.WorkerAvailable})
	reg.MarkLost("w1")

	ok := reg.Heartbeat("w1", "")
	require.True(t, ok)
	ws := reg.AvailableWorkers(10)
	require.Len(t, ws, 1)
}
