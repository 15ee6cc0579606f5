package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutPaths(t *testing.T) {
	l := New("/shared/gridmr")

	assert.Equal(t, "/shared/gridmr/input", l.InputDir())
	assert.Equal(t, "/shared/gridmr/jobs/job-1", l.JobDir("job-1"))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/intermediate/map", l.MapOutputDir("job-1"))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/intermediate/map/map_task-1_part_2.txt", l.MapOutputPath("job-1", "task-1", 2))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/intermediate/shuffled", l.ShuffleDir("job-1"))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/intermediate/shuffled/shuffled_part_2.txt", l.ShuffledPath("job-1", 2))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/intermediate/reduce", l.ReduceOutputDir("job-1"))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/intermediate/reduce/part-00003.txt", l.ReduceOutputPath("job-1", 3))
	assert.Equal(t, "/shared/gridmr/jobs/job-1/result.txt", l.ResultPath("job-1"))
}

func TestParsePartition(t *testing.T) {
	p, ok := ParsePartition("map_task-7_part_12.txt")
	assert.True(t, ok)
	assert.Equal(t, 12, p)

	_, ok = ParsePartition("result.txt")
	assert.False(t, ok)
}
