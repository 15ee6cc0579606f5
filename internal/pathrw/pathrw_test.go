package pathrw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsOverlappingRoots(t *testing.T) {
	_, err := New("/shared/gridmr", "/shared/gridmr/nested", true)
	require.Error(t, err)

	_, err = New("/shared/gridmr", "/mnt/gridmr", true)
	require.NoError(t, err)
}

func TestNewAllowsOverlapWhenDisabled(t *testing.T) {
	_, err := New("/shared/gridmr", "/shared/gridmr/nested", false)
	require.NoError(t, err)
}

func TestToLocalAndToCanonicalRoundTrip(t *testing.T) {
	r, err := New("/shared/gridmr", "/mnt/gridmr", true)
	require.NoError(t, err)

	local := r.ToLocal("/shared/gridmr/jobs/job-1/input.txt")
	assert.Equal(t, "/mnt/gridmr/jobs/job-1/input.txt", local)

	canonical := r.ToCanonical(local)
	assert.Equal(t, "/shared/gridmr/jobs/job-1/input.txt", canonical)
}

func TestRewriteIsNoopWhenDisabled(t *testing.T) {
	r, err := New("/shared/gridmr", "/mnt/gridmr", false)
	require.NoError(t, err)

	path := "/shared/gridmr/jobs/job-1/input.txt"
	assert.Equal(t, path, r.ToLocal(path))
	assert.Equal(t, path, r.ToCanonical(path))
}

func TestRewriteLeavesUnrelatedPathsUnchanged(t *testing.T) {
	r, err := New("/shared/gridmr", "/mnt/gridmr", true)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/scratch.txt", r.ToLocal("/tmp/scratch.txt"))
	assert.Equal(t, "/tmp/scratch.txt", r.ToCanonical("/tmp/scratch.txt"))
}
