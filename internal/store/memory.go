package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store backed by a path tree. It mirrors the
// hosted store's contract — full-subtree snapshots fan out to every
// subscriber whose path overlaps a change — and backs tests and the CLI's
// offline mode.
type MemoryStore struct {
	mu   sync.Mutex
	root map[string]interface{}
	subs map[string]*memSub
}

type memSub struct {
	store *MemoryStore
	id    string
	path  string
	fn    Handler
}

// Cancel stops snapshot delivery for this subscription.
func (s *memSub) Cancel() {
	s.store.mu.Lock()
	delete(s.store.subs, s.id)
	s.store.mu.Unlock()
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: make(map[string]interface{}),
		subs: make(map[string]*memSub),
	}
}

// Subscribe registers a listener and immediately delivers the current
// snapshot of the path, which may be non-existing.
func (m *MemoryStore) Subscribe(path string, fn Handler) (Subscription, error) {
	sub := &memSub{store: m, id: uuid.New().String(), path: path, fn: fn}

	m.mu.Lock()
	m.subs[sub.id] = sub
	snap := m.snapshotLocked(path)
	m.mu.Unlock()

	fn(snap)
	return sub, nil
}

// Set replaces the value at a path.
func (m *MemoryStore) Set(ctx context.Context, path string, value interface{}) error {
	v, err := normalize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.setLocked(splitPath(path), v)
	pending := m.collectLocked(path)
	m.mu.Unlock()

	deliver(pending)
	return nil
}

// Update writes several child values under a path in one batch.
func (m *MemoryStore) Update(ctx context.Context, path string, values map[string]interface{}) error {
	m.mu.Lock()
	for key, value := range values {
		v, err := normalize(value)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.setLocked(splitPath(Join(path, key)), v)
	}
	pending := m.collectLocked(path)
	m.mu.Unlock()

	deliver(pending)
	return nil
}

// Push appends a new keyed child under a path and returns the generated key.
func (m *MemoryStore) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := PushID()
	if err := m.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes the subtree at a path. Removing a missing path is a no-op
// and notifies nobody.
func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	removed := m.removeLocked(splitPath(path))
	var pending []delivery
	if removed {
		pending = m.collectLocked(path)
	}
	m.mu.Unlock()

	deliver(pending)
	return nil
}

type delivery struct {
	fn   Handler
	snap Snapshot
}

// collectLocked gathers the snapshot deliveries owed to subscribers after a
// change at the given path. A subscriber is affected when its path is an
// ancestor of the change or lies within the changed subtree.
func (m *MemoryStore) collectLocked(changed string) []delivery {
	var out []delivery
	for _, sub := range m.subs {
		if pathsOverlap(sub.path, changed) {
			out = append(out, delivery{fn: sub.fn, snap: m.snapshotLocked(sub.path)})
		}
	}
	return out
}

// deliver runs outside the store lock so handlers may call back into the
// store.
func deliver(pending []delivery) {
	for _, d := range pending {
		d.fn(d.snap)
	}
}

func pathsOverlap(a, b string) bool {
	pa, pb := splitPath(a), splitPath(b)
	n := len(pa)
	if len(pb) < n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		if pa[i] != pb[i] {
			return false
		}
	}
	return true
}

func (m *MemoryStore) snapshotLocked(path string) Snapshot {
	node, ok := m.getLocked(splitPath(path))
	if !ok {
		return Snapshot{Path: path}
	}
	data, err := json.Marshal(node)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Value: data}
}

func (m *MemoryStore) getLocked(parts []string) (interface{}, bool) {
	var node interface{} = m.root
	for _, part := range parts {
		child, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = child[part]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func (m *MemoryStore) setLocked(parts []string, value interface{}) {
	node := m.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

func (m *MemoryStore) removeLocked(parts []string) bool {
	node := m.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]interface{})
		if !ok {
			return false
		}
		node = child
	}
	last := parts[len(parts)-1]
	if _, ok := node[last]; !ok {
		return false
	}
	delete(node, last)
	return true
}

// normalize round-trips a value through JSON so the tree only ever holds
// plain maps, slices and scalars, matching what the wire would produce.
func normalize(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
