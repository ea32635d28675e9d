// Package store provides access to the facility's hosted realtime key-value
// store. Data is organized as a tree of JSON values addressed by slash-joined
// paths; subscribers receive a full snapshot of their subtree on every change
// under it.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the full value of a subtree at the time of a change
// notification. A subtree that does not exist yields a non-existing snapshot,
// never an error.
type Snapshot struct {
	Path  string
	Value json.RawMessage
}

// Exists reports whether the subtree holds a value.
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot value into the given destination.
func (s Snapshot) Decode(into interface{}) error {
	if !s.Exists() {
		return fmt.Errorf("snapshot %s: no value", s.Path)
	}
	return json.Unmarshal(s.Value, into)
}

// Handler receives snapshots for a subscribed path.
type Handler func(Snapshot)

// Subscription is a standing listener on a path. Cancel stops delivery and is
// safe to call more than once.
type Subscription interface {
	Cancel()
}

// Store is the remote key-value store contract: path-scoped subscribe, write,
// append and remove. All writes are acknowledged by the store; a failed write
// is surfaced to the caller and never retried here.
type Store interface {
	Subscribe(path string, fn Handler) (Subscription, error)
	Set(ctx context.Context, path string, value interface{}) error
	Update(ctx context.Context, path string, values map[string]interface{}) error
	Push(ctx context.Context, path string, value interface{}) (string, error)
	Remove(ctx context.Context, path string) error
}

// Join builds a store path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// PushID returns a new child key for append operations. Keys are generated
// client-side: a millisecond prefix keeps siblings sorted by creation time,
// the uuid fragment keeps concurrent clients from colliding.
func PushID() string {
	return fmt.Sprintf("-%011x%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
