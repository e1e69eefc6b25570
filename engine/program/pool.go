// Package program provides a reference-counted cache for GPU programs that are shared between
// passes. Entries are keyed by a fingerprint of the program's inputs and are released as soon as
// the last holder gives them back.
package program

import (
	"hash/fnv"
	"sync"
)

// Releaser is implemented by anything the pool can own.
type Releaser interface {
	Release()
}

// Fingerprint identifies a program by its content.
type Fingerprint uint64

// FingerprintOf computes an FNV-1a fingerprint over the given parts. Parts are separated so that
// ("ab", "c") and ("a", "bc") produce different fingerprints.
//
// Parameters:
//   - parts: the strings that make up the program (shader code, sampler names, formats)
//
// Returns:
//   - Fingerprint: the content fingerprint
func FingerprintOf(parts ...string) Fingerprint {
	h := fnv.New64a()
	for _, part := range parts {
		_, _ = h.Write([]byte(part)) // fnv.Write never returns an error
		_, _ = h.Write([]byte{0})
	}
	return Fingerprint(h.Sum64())
}

type entry[T Releaser] struct {
	value T
	refs  int
}

// Pool is a fingerprint-keyed cache of reference-counted programs.
// A program is created on the first Acquire of its fingerprint and released when the
// matching number of Release calls brings its count back to zero.
type Pool[T Releaser] struct {
	mu      sync.Mutex
	entries map[Fingerprint]*entry[T]
}

// NewPool creates an empty Pool.
//
// Returns:
//   - *Pool[T]: the new pool
func NewPool[T Releaser]() *Pool[T] {
	return &Pool[T]{entries: make(map[Fingerprint]*entry[T])}
}

// Acquire returns the program cached under key, creating it with create on a miss.
// Every successful Acquire must be paired with one Release.
//
// Parameters:
//   - key: the program fingerprint
//   - create: builds the program when it is not cached
//
// Returns:
//   - T: the cached or newly created program
//   - error: the error returned by create; nothing is cached in that case
func (p *Pool[T]) Acquire(key Fingerprint, create func() (T, error)) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[key]; ok {
		e.refs++
		return e.value, nil
	}

	value, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	p.entries[key] = &entry[T]{value: value, refs: 1}
	return value, nil
}

// Release gives back one reference to the program cached under key. When the count reaches
// zero the program is released and evicted.
//
// Parameters:
//   - key: the program fingerprint
//
// Returns:
//   - bool: true if this call evicted the program
func (p *Pool[T]) Release(key Fingerprint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(p.entries, key)
	e.value.Release()
	return true
}

// RefCount returns the number of outstanding references to key, 0 if it is not cached.
func (p *Pool[T]) RefCount(key Fingerprint) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of cached programs.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Clear releases every cached program regardless of outstanding references.
// Used when the owning device is torn down.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, e := range p.entries {
		e.value.Release()
		delete(p.entries, key)
	}
}
