package builtin

import "strconv"

// IdentityMapper emits each input line as (line_number, line_text)
// unchanged, useful for pass-through jobs and tests.
type IdentityMapper struct{}

func (IdentityMapper) Map(key int, value string, emit func(k, v string)) error {
	emit(strconv.Itoa(key), value)
	return nil
}

// IdentityReducer emits every shuffled value unchanged under its key.
type IdentityReducer struct{}

func (IdentityReducer) Reduce(key string, values []string, emit func(k, v string)) error {
	for _, v := range values {
		emit(key, v)
	}
	return nil
}

// LineCountMapper emits ("lines", "1") for every input line, for jobs
// that only need a total line count.
type LineCountMapper struct{}

func (LineCountMapper) Map(_ int, _ string, emit func(k, v string)) error {
	emit("lines", "1")
	return nil
}

// SumReducer sums integer-valued inputs under a key, shared by linecount
// and any other counting built-in.
type SumReducer struct{}

func (SumReducer) Reduce(key string, values []string, emit func(k, v string)) error {
	total := 0
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		total += n
	}
	emit(key, strconv.Itoa(total))
	return nil
}
