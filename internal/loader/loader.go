// Package loader resolves a mapper_url or reducer_url to a callable
// Mapper or Reducer.
//
// Go has no safe equivalent of Python's importlib for loading arbitrary
// fetched code into a running process without a separate compiler
// invocation, so a URL never carries source: it identifies a
// pre-registered built-in operator, and the file/nfs/http loaders below
// resolve *which* registered operator a URL names (by reading a small
// descriptor) rather than compiling fetched source.
package loader

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alicklee/gridmr/internal/pathrw"
)

// Mapper is the map half of a MapReduce program.
type Mapper interface {
	// Map is invoked once per input line; key is the line's index and
	// value is its text without a trailing newline. Emit is called once
	// per intermediate KeyValue the mapper produces.
	Map(key int, value string, emit func(k, v string)) error
}

// Reducer is the reduce half of a MapReduce program.
type Reducer interface {
	// Reduce is invoked once per distinct key with every value shuffled
	// to it, in shuffle order. Emit is called once per output KeyValue.
	Reduce(key string, values []string, emit func(k, v string)) error
}

// Role distinguishes which interface a URL is being resolved against.
type Role string

const (
	RoleMapper  Role = "mapper"
	RoleReducer Role = "reducer"
)

// cacheKey is (url, role); loaders cache by this pair and never expire —
// worker processes are short-lived enough that staleness is not a concern.
type cacheKey struct {
	url  string
	role Role
}

// Loader resolves program URLs to Mapper/Reducer instances, using the
// built-in registry as the resolution target and caching results
// process-locally.
type Loader struct {
	registry *Registry
	rewriter *pathrw.Rewriter
	httpGet  func(url string) (io.ReadCloser, error)

	mu    sync.Mutex
	cache map[cacheKey]interface{}
}

// New builds a Loader backed by registry, rewriting nfs:// paths with
// rewriter (may be nil if shared storage is disabled).
func New(registry *Registry, rewriter *pathrw.Rewriter) *Loader {
	return &Loader{
		registry: registry,
		rewriter: rewriter,
		httpGet:  defaultHTTPGet,
		cache:    make(map[cacheKey]interface{}),
	}
}

func defaultHTTPGet(url string) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, fmt.Errorf("loader: GET %s: status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// LoadMapper resolves url to a Mapper.
func (l *Loader) LoadMapper(url string) (Mapper, error) {
	v, err := l.load(url, RoleMapper)
	if err != nil {
		return nil, err
	}
	m, ok := v.(Mapper)
	if !ok {
		return nil, fmt.Errorf("loader: %q does not implement Mapper", url)
	}
	return m, nil
}

// LoadReducer resolves url to a Reducer.
func (l *Loader) LoadReducer(url string) (Reducer, error) {
	v, err := l.load(url, RoleReducer)
	if err != nil {
		return nil, err
	}
	r, ok := v.(Reducer)
	if !ok {
		return nil, fmt.Errorf("loader: %q does not implement Reducer", url)
	}
	return r, nil
}

func (l *Loader) load(url string, role Role) (interface{}, error) {
	if url == "" {
		return nil, fmt.Errorf("loader: empty %s url", role)
	}

	key := cacheKey{url: url, role: role}
	l.mu.Lock()
	if v, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return v, nil
	}
	l.mu.Unlock()

	name, err := l.resolveName(url, role)
	if err != nil {
		return nil, err
	}

	v, err := l.registry.Lookup(name, role)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[key] = v
	l.mu.Unlock()
	return v, nil
}

// resolveName maps a URL to a built-in operator name based on its scheme.
func (l *Loader) resolveName(rawURL string, role Role) (string, error) {
	switch {
	case strings.HasPrefix(rawURL, "file://"):
		return nameFromFile(strings.TrimPrefix(rawURL, "file://"))

	case strings.HasPrefix(rawURL, "nfs://"):
		path := nfsPath(rawURL)
		if l.rewriter != nil {
			path = l.rewriter.ToLocal(path)
		}
		return nameFromFile(path)

	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		body, err := l.httpGet(rawURL)
		if err != nil {
			return "", fmt.Errorf("loader: download %s: %w", rawURL, err)
		}
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("loader: read %s: %w", rawURL, err)
		}
		name := strings.TrimSpace(string(data))
		if name == "" {
			return "", fmt.Errorf("loader: %s produced no operator name", rawURL)
		}
		return name, nil

	default:
		// Bare string: the basename names a built-in directly.
		return filepath.Base(rawURL), nil
	}
}

// nfsPath extracts the path portion of an nfs:// URL; the host segment is
// irrelevant since path rewriting only cares about the path.
func nfsPath(rawURL string) string {
	rest := strings.TrimPrefix(rawURL, "nfs://")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return "/"
}

// nameFromFile reads a one-line descriptor file naming the built-in
// operator to use, falling back to the file's basename (without
// extension) when the file is empty. A file that can't be read is an
// error.
func nameFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("loader: %s: %w", path, err)
		}
		return "", fmt.Errorf("loader: read %s: %w", path, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return name, nil
}
