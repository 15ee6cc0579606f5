// Package worker implements the task executor: it runs a single map or
// reduce task to completion or failure and reports a TaskResult, using a
// tab-separated wire format, configurable reduce fanout, and a
// jobs/<job_id> on-disk tree.
package worker

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alicklee/gridmr/internal/loader"
	"github.com/alicklee/gridmr/internal/model"
	"github.com/alicklee/gridmr/internal/pathrw"
	"github.com/alicklee/gridmr/internal/shuffle"
)

// Executor runs map and reduce tasks on behalf of the coordinator.
type Executor struct {
	log      *logrus.Logger
	workerID string
	loader   *loader.Loader
	rewriter *pathrw.Rewriter
	fanout   int
}

// NewExecutor builds an Executor. fanout is R, the cluster-wide reduce
// partition count.
func NewExecutor(log *logrus.Logger, workerID string, ld *loader.Loader, rewriter *pathrw.Rewriter, fanout int) *Executor {
	return &Executor{log: log, workerID: workerID, loader: ld, rewriter: rewriter, fanout: fanout}
}

// ihash is the partition function (FNV-1a keyed by the key's string
// form), shared verbatim by every worker process in a cluster so that
// partition assignment is deterministic across a job's lifetime.
func ihash(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7ffffff)
}

// ExecuteMap runs one map task to completion.
func (e *Executor) ExecuteMap(mt *model.MapTask) (*model.TaskResult, error) {
	start := time.Now()
	log := e.log.WithField("task_id", mt.TaskID)

	localInput := e.rewriter.ToLocal(mt.InputFile)
	localOutputDir := e.rewriter.ToLocal(mt.OutputDir)

	if err := os.MkdirAll(localOutputDir, 0o777); err != nil {
		return e.failed(mt.TaskID, model.TaskMap, fmt.Errorf("map: create output dir: %w", err)), nil
	}

	mapper, err := e.loader.LoadMapper(mt.MapperURL)
	if err != nil {
		return e.failed(mt.TaskID, model.TaskMap, fmt.Errorf("map: load mapper: %w", err)), nil
	}

	lines, err := readLines(localInput, mt.SplitStart, mt.SplitEnd)
	if err != nil {
		return e.failed(mt.TaskID, model.TaskMap, fmt.Errorf("map: read input: %w", err)), nil
	}

	buckets := make(map[int][]model.KeyValue)
	for i, line := range lines {
		lineNo := mt.SplitStart + i
		emitErr := mapper.Map(lineNo, line, func(k, v string) {
			p := ihash(k) % e.fanout
			buckets[p] = append(buckets[p], model.KeyValue{Key: k, Value: v})
		})
		if emitErr != nil {
			return e.failed(mt.TaskID, model.TaskMap, fmt.Errorf("map: user code: %w", emitErr)), nil
		}
	}

	partitions := make([]int, 0, len(buckets))
	for p := range buckets {
		partitions = append(partitions, p)
	}
	sort.Ints(partitions)

	var outputs []string
	for _, p := range partitions {
		kvs := buckets[p]
		sort.SliceStable(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })

		localPath := localPartitionPath(localOutputDir, mt.TaskID, p)
		if err := writeRecords(localPath, kvs); err != nil {
			return e.failed(mt.TaskID, model.TaskMap, fmt.Errorf("map: write partition %d: %w", p, err)), nil
		}
		outputs = append(outputs, e.rewriter.ToCanonical(localPath))
	}

	log.WithField("partitions", len(outputs)).Debug("map task completed")

	return &model.TaskResult{
		TaskID:        mt.TaskID,
		TaskType:      model.TaskMap,
		Status:        model.TaskCompleted,
		OutputFiles:   outputs,
		ExecutionTime: time.Since(start).Seconds(),
		WorkerID:      e.workerID,
	}, nil
}

// ExecuteReduce runs one reduce task to completion: shuffle-and-sort
// followed by the reducer.
func (e *Executor) ExecuteReduce(rt *model.ReduceTask) (*model.TaskResult, error) {
	start := time.Now()
	log := e.log.WithField("task_id", rt.TaskID)

	localInputs := make([]string, len(rt.InputFiles))
	for i, f := range rt.InputFiles {
		localInputs[i] = e.rewriter.ToLocal(f)
	}
	localOutput := e.rewriter.ToLocal(rt.OutputFile)

	if err := os.MkdirAll(dirOf(localOutput), 0o777); err != nil {
		return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: create output dir: %w", err)), nil
	}

	shuffledPath := shuffledPathFor(localOutput, rt.PartitionID)
	if err := shuffle.Run(log, localInputs, shuffledPath); err != nil {
		return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: shuffle: %w", err)), nil
	}

	records, err := shuffle.ReadShuffled(shuffledPath)
	if err != nil {
		return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: read shuffled output: %w", err)), nil
	}

	reducer, err := e.loader.LoadReducer(rt.ReducerURL)
	if err != nil {
		return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: load reducer: %w", err)), nil
	}

	out, err := os.Create(localOutput)
	if err != nil {
		return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: create output: %w", err)), nil
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	for _, rec := range records {
		emitErr := reducer.Reduce(rec.Key, rec.Values, func(k, v string) {
			fmt.Fprintf(w, "%s\t%s\n", k, v)
		})
		if emitErr != nil {
			return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: user code: %w", emitErr)), nil
		}
	}
	if err := w.Flush(); err != nil {
		return e.failed(rt.TaskID, model.TaskReduce, fmt.Errorf("reduce: flush output: %w", err)), nil
	}

	log.Debug("reduce task completed")

	return &model.TaskResult{
		TaskID:        rt.TaskID,
		TaskType:      model.TaskReduce,
		Status:        model.TaskCompleted,
		OutputFiles:   []string{e.rewriter.ToCanonical(localOutput)},
		ExecutionTime: time.Since(start).Seconds(),
		WorkerID:      e.workerID,
	}, nil
}

func (e *Executor) failed(taskID string, taskType model.TaskType, err error) *model.TaskResult {
	e.log.WithField("task_id", taskID).WithError(err).Warn("task failed")
	return &model.TaskResult{
		TaskID:       taskID,
		TaskType:     taskType,
		Status:       model.TaskFailed,
		ErrorMessage: err.Error(),
		WorkerID:     e.workerID,
	}
}

// readLines reads a file's lines, applying the [start, end) window when
// end > 0.
func readLines(path string, start, end int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(all) == 1 && all[0] == "" {
		return nil, nil
	}
	if end <= 0 || end > len(all) {
		end = len(all)
	}
	if start < 0 {
		start = 0
	}
	if start >= len(all) {
		return nil, nil
	}
	return all[start:end], nil
}

func writeRecords(path string, kvs []model.KeyValue) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, kv := range kvs {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return w.Flush()
}

func localPartitionPath(outputDir, taskID string, partition int) string {
	return outputDir + "/" + "map_" + taskID + "_part_" + strconv.Itoa(partition) + ".txt"
}

// shuffledPathFor derives the shuffle output path from a reduce task's
// local output path: .../intermediate/reduce/part-NNNNN.txt becomes
// .../intermediate/shuffled/shuffled_part_<p>.txt, mirroring the sibling
// layout storage.Layout builds on the coordinator side.
func shuffledPathFor(localOutput string, partition int) string {
	intermediateDir := dirOf(dirOf(localOutput))
	dir := intermediateDir + "/shuffled"
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return dir + "/shuffled_part_" + strconv.Itoa(partition) + ".txt"
	}
	return dir + "/shuffled_part_" + strconv.Itoa(partition) + ".txt"
}

// dirOf returns path's parent directory using plain string slicing,
// mirroring storage.Layout's filepath.Join conventions without importing
// path/filepath solely for this.
func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
