package loader

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds the small set of built-in map/reduce operators available
// in place of dynamic code loading, plus the extension point to add more
// at process startup.
type Registry struct {
	mu       sync.RWMutex
	mappers  map[string]func() Mapper
	reducers map[string]func() Reducer
	log      *logrus.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		mappers:  make(map[string]func() Mapper),
		reducers: make(map[string]func() Reducer),
		log:      log,
	}
}

// RegisterMapper adds a named Mapper factory. If a mapper is already
// registered under name, the first registration wins and a warning is
// logged, so the declaration order settles any conflict between multiple
// candidate implementations.
func (r *Registry) RegisterMapper(name string, factory func() Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mappers[name]; exists {
		if r.log != nil {
			r.log.WithField("name", name).Warn("loader: duplicate mapper registration ignored")
		}
		return
	}
	r.mappers[name] = factory
}

// RegisterReducer adds a named Reducer factory, with the same
// first-registration-wins rule as RegisterMapper.
func (r *Registry) RegisterReducer(name string, factory func() Reducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reducers[name]; exists {
		if r.log != nil {
			r.log.WithField("name", name).Warn("loader: duplicate reducer registration ignored")
		}
		return
	}
	r.reducers[name] = factory
}

// Lookup returns a fresh Mapper or Reducer instance for name under role.
func (r *Registry) Lookup(name string, role Role) (interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch role {
	case RoleMapper:
		factory, ok := r.mappers[name]
		if !ok {
			return nil, fmt.Errorf("loader: no mapper registered as %q (known: %v)", name, r.mapperNamesLocked())
		}
		return factory(), nil
	case RoleReducer:
		factory, ok := r.reducers[name]
		if !ok {
			return nil, fmt.Errorf("loader: no reducer registered as %q (known: %v)", name, r.reducerNamesLocked())
		}
		return factory(), nil
	default:
		return nil, fmt.Errorf("loader: unknown role %q", role)
	}
}

func (r *Registry) mapperNamesLocked() []string {
	names := make([]string, 0, len(r.mappers))
	for n := range r.mappers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) reducerNamesLocked() []string {
	names := make([]string, 0, len(r.reducers))
	for n := range r.reducers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
