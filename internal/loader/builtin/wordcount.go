// Package builtin holds the pre-built map/reduce operators available in
// place of dynamic code loading: wordcount, identity, and linecount.
package builtin

import (
	"strconv"
	"strings"

	"github.com/alicklee/gridmr/internal/loader"
)

// WordCountMapper splits each line into whitespace-delimited words and
// emits (lowercased word, "1") per occurrence.
type WordCountMapper struct{}

func (WordCountMapper) Map(_ int, value string, emit func(k, v string)) error {
	for _, word := range strings.Fields(value) {
		emit(strings.ToLower(word), "1")
	}
	return nil
}

// WordCountReducer sums the "1" values shuffled to each word.
type WordCountReducer struct{}

func (WordCountReducer) Reduce(key string, values []string, emit func(k, v string)) error {
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

// Register installs every built-in operator into reg.
func Register(reg *loader.Registry) {
	reg.RegisterMapper("wordcount", func() loader.Mapper { return WordCountMapper{} })
	reg.RegisterReducer("wordcount", func() loader.Reducer { return WordCountReducer{} })

	reg.RegisterMapper("identity", func() loader.Mapper { return IdentityMapper{} })
	reg.RegisterReducer("identity", func() loader.Reducer { return IdentityReducer{} })

	reg.RegisterMapper("linecount", func() loader.Mapper { return LineCountMapper{} })
	reg.RegisterReducer("linecount", func() loader.Reducer { return SumReducer{} })
}
