package coordinator

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/alicklee/gridmr/internal/model"
	"github.com/alicklee/gridmr/internal/storage"
)

// collect drains dispatch outcomes and drives every state transition that
// follows from a task finishing: progress update, retry/failure, reduce
// task construction once the map phase closes, and final assembly once
// the reduce phase closes.
func (s *Scheduler) collect() {
	defer s.wg.Done()
	results := s.disp.outcomes()
	errs := s.disp.errs()

	for {
		select {
		case <-s.ctx.Done():
			return
		case outcome := <-results:
			s.handleOutcome(outcome)
		case err := <-errs:
			if err != nil {
				s.log.WithError(err).Error("coordinator: dispatch pool reported an internal error")
			}
		}
	}
}

func (s *Scheduler) handleOutcome(o dispatchOutcome) {
	s.reg.CompleteTask(o.workerID, o.taskID, s.cfg.WorkerConcurrency)

	jobID, mt, rt, ok := s.reg.Task(o.taskID)
	if !ok {
		return
	}

	if s.isCancelled(jobID) {
		return // discard results for a cancelled job
	}

	if o.err != nil {
		// Transient transport failure: requeue and mark the worker lost.
		s.reg.MarkLost(o.workerID)
		s.requeueOrFail(o.taskID, o.err.Error())
		return
	}

	if o.result.Status == model.TaskFailed {
		s.requeueOrFail(o.taskID, o.result.ErrorMessage)
		return
	}

	switch o.taskType {
	case model.TaskMap:
		mt.Status = model.TaskCompleted
		mt.OutputFiles = o.result.OutputFiles
		s.onMapComplete(jobID)
	case model.TaskReduce:
		rt.Status = model.TaskCompleted
		rt.OutputFiles = o.result.OutputFiles
		s.onReduceComplete(jobID)
	}
}

// requeueOrFail increments the task's attempt counter and either puts it
// back on its phase queue or fails the job once its retry budget is
// exhausted.
func (s *Scheduler) requeueOrFail(taskID, reason string) {
	jobID, mt, rt, ok := s.reg.Task(taskID)
	if !ok {
		return
	}
	if s.isCancelled(jobID) {
		return
	}

	var attempts *int
	var status *model.TaskStatus
	var queue chan string
	if mt != nil {
		attempts, status, queue = &mt.Attempts, &mt.Status, s.mapQueue
	} else {
		attempts, status, queue = &rt.Attempts, &rt.Status, s.reduceQueue
	}

	*attempts++
	if *attempts > s.cfg.RetryBudget {
		*status = model.TaskFailed
		s.failJob(jobID, fmt.Sprintf("task %s exhausted retry budget: %s", taskID, reason))
		return
	}

	*status = model.TaskPending
	queue <- taskID
}

func (s *Scheduler) failJob(jobID, reason string) {
	s.log.WithField("job_id", jobID).WithField("reason", reason).Error("coordinator: job failed")
	_ = s.reg.UpdateJob(jobID, func(j *model.Job) {
		if j.Status == model.JobCompleted || j.Status == model.JobFailed {
			return
		}
		j.Status = model.JobFailed
		j.Error = reason
	})
}

// onMapComplete checks whether every map task for jobID has completed and,
// if so, constructs reduce tasks from the partitioned intermediate output.
func (s *Scheduler) onMapComplete(jobID string) {
	s.mu.Lock()
	run, ok := s.runs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	run.completedMap++
	completedMap, totalMap := run.completedMap, run.totalMap
	s.mu.Unlock()

	s.updateProgress(jobID)

	if completedMap != totalMap {
		return
	}

	job := s.reg.GetJob(jobID)
	if job == nil {
		return
	}

	partitions := make(map[int][]string)
	for _, mt := range job.MapTasks {
		for _, f := range mt.OutputFiles {
			p, ok := storage.ParsePartition(f)
			if !ok {
				continue
			}
			partitions[p] = append(partitions[p], f)
		}
	}

	ids := make([]int, 0, len(partitions))
	for p := range partitions {
		ids = append(ids, p)
	}
	sort.Ints(ids)

	reduceTasks := make([]*model.ReduceTask, 0, len(ids))
	for _, p := range ids {
		rt := &model.ReduceTask{
			TaskID:      fmt.Sprintf("%s_reduce_%d", jobID, p),
			JobID:       jobID,
			PartitionID: p,
			InputFiles:  partitions[p],
			OutputFile:  s.layout.ReduceOutputPath(jobID, p),
			ReducerURL:  job.ReducerURL,
			Status:      model.TaskPending,
		}
		reduceTasks = append(reduceTasks, rt)
		s.reg.RegisterTask(jobID, nil, rt)
	}

	if err := s.reg.UpdateJob(jobID, func(j *model.Job) {
		j.ReduceTasks = reduceTasks
	}); err != nil {
		s.log.WithError(err).Error("coordinator: failed to record reduce tasks")
		return
	}

	s.mu.Lock()
	run.totalReduce = len(reduceTasks)
	s.mu.Unlock()

	if len(reduceTasks) == 0 {
		// No non-empty partitions: the job is vacuously complete.
		s.finalizeJob(jobID)
		return
	}

	for _, rt := range reduceTasks {
		s.reduceQueue <- rt.TaskID
	}
}

// onReduceComplete checks whether every reduce task for jobID has
// completed and, if so, concatenates their outputs into the final result
// file.
func (s *Scheduler) onReduceComplete(jobID string) {
	s.mu.Lock()
	run, ok := s.runs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	run.completedReduce++
	completedReduce, totalReduce := run.completedReduce, run.totalReduce
	s.mu.Unlock()

	s.updateProgress(jobID)

	if completedReduce != totalReduce {
		return
	}
	s.finalizeJob(jobID)
}

func (s *Scheduler) finalizeJob(jobID string) {
	job := s.reg.GetJob(jobID)
	if job == nil {
		return
	}

	sorted := append([]*model.ReduceTask(nil), job.ReduceTasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartitionID < sorted[j].PartitionID })

	resultPath := s.layout.ResultPath(jobID)
	if err := concatenate(sorted, resultPath); err != nil {
		s.failJob(jobID, fmt.Sprintf("result assembly failed: %v", err))
		return
	}

	_ = s.reg.UpdateJob(jobID, func(j *model.Job) {
		j.Status = model.JobCompleted
		j.Progress = 100
		j.ResultPath = resultPath
	})
}

// concatenate writes every reduce task's output file into outputPath in
// the order the tasks are given; finalizeJob passes them sorted by
// ascending partition. Each completed reduce task
// contributes exactly one file, so a retried-then-superseded task never
// duplicates into the result.
func concatenate(tasks []*model.ReduceTask, outputPath string) error {
	if err := os.MkdirAll(dirOf(outputPath), 0o777); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	for _, rt := range tasks {
		if len(rt.OutputFiles) == 0 {
			continue
		}
		for _, f := range rt.OutputFiles {
			if err := appendFile(w, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// updateProgress recomputes Job.Progress as a percentage,
// 100*(0.5*completedMap/totalMap + 0.5*completedReduce/totalReduce),
// clamped to 100, with the reduce term at zero before reduce tasks exist.
func (s *Scheduler) updateProgress(jobID string) {
	s.mu.Lock()
	run, ok := s.runs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	mapFrac := 0.0
	if run.totalMap > 0 {
		mapFrac = float64(run.completedMap) / float64(run.totalMap)
	}
	reduceFrac := 0.0
	if run.totalReduce > 0 {
		reduceFrac = float64(run.completedReduce) / float64(run.totalReduce)
	}
	s.mu.Unlock()

	progress := 0.5*mapFrac*100 + 0.5*reduceFrac*100
	if progress > 100 {
		progress = 100
	}

	_ = s.reg.UpdateJob(jobID, func(j *model.Job) {
		if j.Status == model.JobCompleted || j.Status == model.JobFailed {
			return
		}
		if progress > j.Progress {
			j.Progress = progress
		}
	})
}

