// Package registry provides the reference Skill Registry collaborator
// (spec §6 GLOSSARY, consumed by the tool grounder and alignment checker
// through internal/interceptors.SkillRegistry). It is deliberately out of
// the core's scope — callers may inject any implementation of that single-
// method interface — but a production deployment needs a real one, so this
// adapts the teacher's bboltCache persistence pattern (internal/anonymizer/
// cache.go) from a PII-value cache to a registered-tool-name set.
package registry

import (
	"fmt"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"
)

const toolBucket = "registered_tools"

// Registry is a mutable, optionally-persisted set of callable tool names.
// It satisfies interceptors.SkillRegistry (Has) and is extended by the
// management API with runtime Add/Remove, mirroring the teacher's
// DomainRegistry.
type Registry struct {
	mu    sync.RWMutex
	names map[string]bool
	db    *bolt.DB // nil when running in-memory only
}

// New constructs an in-memory Registry seeded from names.
func New(names ...string) *Registry {
	r := &Registry{names: make(map[string]bool, len(names))}
	for _, n := range names {
		r.names[n] = true
	}
	return r
}

// Open constructs a Registry backed by a bbolt database at path, loading
// any previously registered names. An empty path is equivalent to New().
func Open(path string, seed ...string) (*Registry, error) {
	if path == "" {
		return New(seed...), nil
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open bbolt store %q: %w", path, err)
	}

	r := &Registry{names: make(map[string]bool), db: db}

	if err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(toolBucket))
		if err != nil {
			return err
		}
		if err := b.ForEach(func(k, _ []byte) error {
			r.names[string(k)] = true
			return nil
		}); err != nil {
			return err
		}
		for _, n := range seed {
			if err := b.Put([]byte(n), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("registry: load bbolt store %q: %w", path, err)
	}

	for _, n := range seed {
		r.names[n] = true
	}
	return r, nil
}

// Has reports whether name is a registered, callable tool. Implements
// interceptors.SkillRegistry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[name]
}

// ValidateArguments reports whether name is registered, whatever the
// arguments: the reference registry tracks only tool existence, not
// per-tool argument schemas. Implements
// interceptors.ArgumentValidatingRegistry so callers that want the
// optional hook get a working (permissive) default rather than needing to
// implement it from scratch.
func (r *Registry) ValidateArguments(name string, arguments map[string]any) bool {
	return r.Has(name)
}

// Add registers name, persisting it if the registry was opened against a
// bbolt store.
func (r *Registry) Add(name string) error {
	r.mu.Lock()
	r.names[name] = true
	db := r.db
	r.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(toolBucket))
		return b.Put([]byte(name), []byte{1})
	})
}

// Remove deregisters name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	delete(r.names, name)
	db := r.db
	r.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(toolBucket))
		return b.Delete([]byte(name))
	})
}

// All returns a sorted snapshot of every registered tool name.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Close releases the underlying bbolt handle, if any.
func (r *Registry) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
