package shuffle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunGroupsAndSortsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "to\t1\nbe\t1\n")
	b := writeFile(t, dir, "b.txt", "to\t1\nor\t1\n")
	out := filepath.Join(dir, "shuffled.txt")

	require.NoError(t, Run(nil, []string{a, b}, out))

	records, err := ReadShuffled(out)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "be", records[0].Key)
	assert.Equal(t, []string{"1"}, records[0].Values)
	assert.Equal(t, "or", records[1].Key)
	assert.Equal(t, "to", records[2].Key)
	assert.Equal(t, []string{"1", "1"}, records[2].Values)
}

func TestRunTreatsMissingFileAsEmpty(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "x\t1\n")
	out := filepath.Join(dir, "shuffled.txt")

	require.NoError(t, Run(nil, []string{a, filepath.Join(dir, "missing.txt")}, out))

	records, err := ReadShuffled(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].Key)
}

func TestReadShuffledMissingFileIsEmptyNotError(t *testing.T) {
	records, err := ReadShuffled(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.Empty(t, records)
}
