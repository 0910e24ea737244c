package app

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// queueItem is one conversion request in the work queue.
type queueItem struct {
	path string // absolute path as given
	key  string // canonical identity
}

// WorkQueue is the ordered, deduplicated list of pending conversion requests.
// It is not safe for concurrent use; ConverterServiceImpl guards it.
type WorkQueue struct {
	items []queueItem
	keys  mapset.Set[string]
}

// NewWorkQueue creates an empty work queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{keys: mapset.NewThreadUnsafeSet[string]()}
}

// Add appends path unless a request with the same canonical key is queued.
func (q *WorkQueue) Add(path string) bool {
	key := CanonicalPath(path)
	if q.keys.Contains(key) {
		return false
	}
	q.keys.Add(key)
	q.items = append(q.items, queueItem{path: path, key: key})
	return true
}

// Contains reports whether a request with the same canonical key is queued.
func (q *WorkQueue) Contains(path string) bool {
	return q.keys.Contains(CanonicalPath(path))
}

// Remove drops every request whose canonical key is in keys, preserving the order of the rest.
func (q *WorkQueue) Remove(keys mapset.Set[string]) int {
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if keys.Contains(item.key) {
			q.keys.Remove(item.key)
			removed++
			continue
		}
		kept = append(kept, item)
	}
	clear(q.items[len(kept):])
	q.items = kept
	return removed
}

// Clear empties the queue and returns how many requests were dropped.
func (q *WorkQueue) Clear() int {
	n := len(q.items)
	q.items = nil
	q.keys.Clear()
	return n
}

// Snapshot returns a copy of the queued paths in insertion order.
func (q *WorkQueue) Snapshot() []string {
	paths := make([]string, len(q.items))
	for i, item := range q.items {
		paths[i] = item.path
	}
	return paths
}

// Len returns the number of queued requests.
func (q *WorkQueue) Len() int {
	return len(q.items)
}

// canonicalKeys maps paths to the set of their canonical keys.
func canonicalKeys(paths []string) mapset.Set[string] {
	keys := mapset.NewThreadUnsafeSetWithSize[string](len(paths))
	for _, p := range paths {
		keys.Add(CanonicalPath(p))
	}
	return keys
}
