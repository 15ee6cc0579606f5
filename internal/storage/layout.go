// Package storage centralizes the on-disk path conventions shared storage
// uses to exchange data between coordinator, workers, and clients: a
// nested jobs/<job_id> tree holding each job's input, intermediate, and
// result files.
package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// Layout resolves every well-known path under a shared-storage root for a
// single job.
type Layout struct {
	root string
}

// New returns a Layout rooted at root (the coordinator's SHARED_ROOT or a
// worker's rewritten LOCAL_MOUNT, depending on the caller).
func New(root string) *Layout {
	return &Layout{root: root}
}

// InputDir is where clients stage job input files.
func (l *Layout) InputDir() string {
	return filepath.Join(l.root, "input")
}

// JobDir is the root of everything belonging to a single job.
func (l *Layout) JobDir(jobID string) string {
	return filepath.Join(l.root, "jobs", jobID)
}

// MapOutputDir is where map tasks write their partitioned output files.
func (l *Layout) MapOutputDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "intermediate", "map")
}

// MapOutputPath names one partition file produced by a map task.
func (l *Layout) MapOutputPath(jobID, taskID string, partition int) string {
	return filepath.Join(l.MapOutputDir(jobID), fmt.Sprintf("map_%s_part_%d.txt", taskID, partition))
}

// ShuffleDir is where shuffle-and-sort writes its per-partition files.
func (l *Layout) ShuffleDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "intermediate", "shuffled")
}

// ShuffledPath names the shuffled file for one partition.
func (l *Layout) ShuffledPath(jobID string, partition int) string {
	return filepath.Join(l.ShuffleDir(jobID), fmt.Sprintf("shuffled_part_%d.txt", partition))
}

// ReduceOutputDir is where reduce tasks write their final partition files.
func (l *Layout) ReduceOutputDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "intermediate", "reduce")
}

// ReduceOutputPath names the output file for one reduce partition, using
// the part-NNNNN convention.
func (l *Layout) ReduceOutputPath(jobID string, partition int) string {
	return filepath.Join(l.ReduceOutputDir(jobID), fmt.Sprintf("part-%05d.txt", partition))
}

// ResultPath is the final concatenated result file for a completed job.
func (l *Layout) ResultPath(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "result.txt")
}

var partSuffix = regexp.MustCompile(`_part_(\d+)\.[^.]+$`)

// ParsePartition extracts the partition id from a map output filename of
// the form *_part_<p>.<ext>, used to build a reduce task's input file
// list. It returns false if the filename doesn't match that convention.
func ParsePartition(name string) (int, bool) {
	m := partSuffix.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	p, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return p, true
}
