// Package hooks provides ordered, named filter chains. A chain passes a value
// through each registered filter in priority order and returns the result.
package hooks

import (
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
)

// DefaultPriority is the priority used by callers that do not care.
const DefaultPriority = 10

// Filter transforms a value flowing through a chain.
type Filter[T any] func(T) T

type entry[T any] struct {
	name     string
	priority int
	seq      uint64
	fn       Filter[T]
}

// Chain is an ordered filter chain for one extension point. Filters run by
// ascending priority, then in registration order. A Chain is safe for
// concurrent use; Apply runs on a snapshot so filters may modify the chain.
type Chain[T any] struct {
	mu      sync.RWMutex
	name    string
	entries []entry[T]
	seq     uint64
}

// New returns an empty chain for the named extension point.
func New[T any](name string) *Chain[T] {
	return &Chain[T]{name: name}
}

// Name returns the extension point name.
func (c *Chain[T]) Name() string { return c.name }

// Add registers fn under name. Registering an existing name replaces the
// previous filter and moves it to the new priority.
func (c *Chain[T]) Add(name string, priority int, fn Filter[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(name)
	c.seq++
	c.insertLocked(entry[T]{name: name, priority: priority, seq: c.seq, fn: fn})
}

// AddFunc registers fn under its nice name and returns that name.
func (c *Chain[T]) AddFunc(priority int, fn Filter[T]) string {
	name := NiceName(fn)
	c.Add(name, priority, fn)
	return name
}

// Replace swaps the filter registered under name without moving it and
// reports whether the name was present.
func (c *Chain[T]) Replace(name string, fn Filter[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].name == name {
			c.entries[i].fn = fn
			return true
		}
	}
	return false
}

// Remove unregisters the named filter and reports whether it was present.
func (c *Chain[T]) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.removeLocked(name)
	return ok
}

// Has reports whether a filter is registered under name.
func (c *Chain[T]) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.name == name {
			return true
		}
	}
	return false
}

// Names returns the registered filter names in run order.
func (c *Chain[T]) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.name
	}
	return out
}

// Suspend unhooks the named filters until the returned restore function is
// called. Restored filters return to their original position. Names that
// are not registered are ignored. restore is safe to call more than once.
func (c *Chain[T]) Suspend(names ...string) (restore func()) {
	c.mu.Lock()
	var removed []entry[T]
	for _, name := range names {
		if e, ok := c.removeLocked(name); ok {
			removed = append(removed, e)
		}
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for _, e := range removed {
				c.removeLocked(e.name)
				c.insertLocked(e)
			}
		})
	}
}

// Apply runs v through every filter and returns the final value.
func (c *Chain[T]) Apply(v T) T {
	c.mu.RLock()
	snapshot := slices.Clone(c.entries)
	c.mu.RUnlock()
	for _, e := range snapshot {
		v = e.fn(v)
	}
	return v
}

// Clone returns an independent chain with the same filters.
func (c *Chain[T]) Clone() *Chain[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Chain[T]{
		name:    c.name,
		entries: slices.Clone(c.entries),
		seq:     c.seq,
	}
}

func (c *Chain[T]) insertLocked(e entry[T]) {
	i, _ := slices.BinarySearchFunc(c.entries, e, func(a, b entry[T]) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	c.entries = slices.Insert(c.entries, i, e)
}

func (c *Chain[T]) removeLocked(name string) (entry[T], bool) {
	for i, e := range c.entries {
		if e.name == name {
			c.entries = slices.Delete(c.entries, i, i+1)
			return e, true
		}
	}
	return entry[T]{}, false
}

// NiceName derives a human-readable name for a callback from its runtime
// symbol, e.g. "render.Autop" or "(*Renderer).texturize" as
// "render.(*Renderer).texturize". Closures keep their enclosing name with a
// ".funcN" suffix.
func NiceName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
