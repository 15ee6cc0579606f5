// Package pathrw implements the bidirectional path rewriting between the
// coordinator's canonical shared-storage prefix and a worker's local mount
// prefix. Rewriting is pure string-prefix substitution.
package pathrw

import (
	"fmt"
	"strings"
)

// Rewriter translates paths between a coordinator-canonical prefix and a
// worker-local mount prefix.
type Rewriter struct {
	sharedRoot string
	localMount string
	enabled    bool
}

// New builds a Rewriter. When enabled is false every rewrite is a no-op,
// for clusters with shared storage disabled. When enabled and both
// prefixes are non-empty, New validates at construction time that
// sharedRoot and localMount do not overlap, since a rewrite
// between two overlapping prefixes would be ambiguous.
func New(sharedRoot, localMount string, enabled bool) (*Rewriter, error) {
	if enabled && sharedRoot != "" && localMount != "" && overlap(sharedRoot, localMount) {
		return nil, fmt.Errorf("pathrw: shared_root %q and local_mount %q overlap", sharedRoot, localMount)
	}
	return &Rewriter{sharedRoot: sharedRoot, localMount: localMount, enabled: enabled}, nil
}

func overlap(a, b string) bool {
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

// ToLocal rewrites a coordinator-canonical path to the worker's local
// mount, for use when a worker receives a task (inbound rewrite).
func (r *Rewriter) ToLocal(p string) string {
	if !r.enabled {
		return p
	}
	if strings.HasPrefix(p, r.sharedRoot) {
		return r.localMount + strings.TrimPrefix(p, r.sharedRoot)
	}
	return p
}

// ToCanonical rewrites a worker-local path back to the coordinator's
// canonical prefix, for use when a worker emits a TaskResult (outbound
// rewrite).
func (r *Rewriter) ToCanonical(p string) string {
	if !r.enabled {
		return p
	}
	if strings.HasPrefix(p, r.localMount) {
		return r.sharedRoot + strings.TrimPrefix(p, r.localMount)
	}
	return p
}
