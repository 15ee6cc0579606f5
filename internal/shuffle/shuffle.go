// Package shuffle implements the shuffle-and-sort stage: it turns N
// already-locally-sorted map output files for one partition into a single
// key-sorted stream of (key, grouped values) ready for the reducer.
//
// The in-memory grouping is factored into its own seam so the worker's
// reduce path and a future external-merge-sort replacement can share it.
package shuffle

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Record is one grouped shuffle output: a key and every value emitted for
// it, in the order the map outputs were read.
type Record struct {
	Key    string
	Values []string
}

// Run reads every file in inputFiles (each already sorted by key and
// containing only records for one partition), groups by key, and writes
// the result to outputFile in the "<k>\t<v1>,<v2>,...\n" wire format.
//
// A missing input file is logged as a warning and treated as empty; it
// is not an error.
func Run(log *logrus.Entry, inputFiles []string, outputFile string) error {
	records, err := collect(log, inputFiles)
	if err != nil {
		return err
	}

	return write(outputFile, records)
}

func collect(log *logrus.Entry, inputFiles []string) ([]Record, error) {
	order := make([]string, 0)
	grouped := make(map[string][]string)

	for _, path := range inputFiles {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				if log != nil {
					log.WithField("file", path).Warn("shuffle: missing map output, treating as empty")
				}
				continue
			}
			return nil, fmt.Errorf("shuffle: open %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			k, v, ok := splitRecord(line)
			if !ok {
				continue
			}
			if _, seen := grouped[k]; !seen {
				order = append(order, k)
			}
			grouped[k] = append(grouped[k], v)
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("shuffle: read %s: %w", path, err)
		}
	}

	// Stable sort on key's string form.
	sort.SliceStable(order, func(i, j int) bool { return order[i] < order[j] })

	// order already holds each key once (a key is appended only the first
	// time it is grouped); the seen set below guards against duplicates
	// all the same.
	seen := make(map[string]struct{}, len(order))
	records := make([]Record, 0, len(order))
	for _, k := range order {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		records = append(records, Record{Key: k, Values: grouped[k]})
	}

	return records, nil
}

func splitRecord(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '\t')
	if i < 0 {
		return "", "", false
	}
	return line[:i], line[i+1:], true
}

func write(outputFile string, records []Record) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("shuffle: create %s: %w", outputFile, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Key, strings.Join(r.Values, ",")); err != nil {
			return fmt.Errorf("shuffle: write %s: %w", outputFile, err)
		}
	}
	return nil
}

// ReadShuffled reads a shuffled file back into Records, for the reduce
// step to consume line by line.
func ReadShuffled(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("shuffle: open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		k, v, ok := splitRecord(line)
		if !ok {
			continue
		}
		var values []string
		if v != "" {
			values = strings.Split(v, ",")
		}
		records = append(records, Record{Key: k, Values: values})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("shuffle: read %s: %w", path, err)
	}
	return records, nil
}
