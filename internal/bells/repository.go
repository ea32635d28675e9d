package bells

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minuterie/facility-controller/internal/store"
)

// Store paths for the bell collections
const (
	normalPath    = "bells/normal"
	specialPath   = "bells/special"
	triggeredPath = "bells/lastTriggered"
)

// ringingWindow is how long after a trigger the bell counts as ringing now
const ringingWindow = 2 * time.Minute

// Repository maintains live local mirrors of the normal and special bell
// collections plus the last-triggered marker, and provides the write-through
// mutators. Mirrors are transient: every snapshot fully replaces them, and
// the remote store remains the sole owner of the data.
type Repository struct {
	store store.Store
	log   *logrus.Entry

	mu            sync.RWMutex
	normal        []NormalBell
	special       []SpecialBell
	lastTriggered *BellTrigger

	changed chan struct{}
	subs    []store.Subscription
}

// NewRepository creates a bell repository on the given store handle
func NewRepository(st store.Store) *Repository {
	return &Repository{
		store:   st,
		log:     logrus.WithField("component", "bells"),
		changed: make(chan struct{}, 1),
	}
}

// Open establishes the standing listeners on both bell collections and the
// last-triggered marker
func (r *Repository) Open() error {
	paths := []struct {
		path string
		fn   store.Handler
	}{
		{normalPath, r.handleNormal},
		{specialPath, r.handleSpecial},
		{triggeredPath, r.handleTriggered},
	}

	for _, p := range paths {
		sub, err := r.store.Subscribe(p.path, p.fn)
		if err != nil {
			r.Close()
			return err
		}
		r.mu.Lock()
		r.subs = append(r.subs, sub)
		r.mu.Unlock()
	}
	return nil
}

// Close cancels all subscriptions. The mirrors keep their last contents.
func (r *Repository) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

// Changed signals coalesced mirror updates to the scheduler
func (r *Repository) Changed() <-chan struct{} {
	return r.changed
}

// Normal returns a copy of the normal bell mirror
func (r *Repository) Normal() []NormalBell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NormalBell, len(r.normal))
	copy(out, r.normal)
	return out
}

// Special returns a copy of the special bell mirror
func (r *Repository) Special() []SpecialBell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SpecialBell, len(r.special))
	copy(out, r.special)
	return out
}

// LastTriggered returns the last-triggered marker, or nil if none was seen
func (r *Repository) LastTriggered() *BellTrigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastTriggered == nil {
		return nil
	}
	t := *r.lastTriggered
	return &t
}

// RingingNow reports whether the bell device triggered within the last two
// minutes, per the last-triggered marker.
func (r *Repository) RingingNow(now time.Time) bool {
	trigger := r.LastTriggered()
	if trigger == nil {
		return false
	}
	at, err := time.Parse(time.RFC3339, trigger.TriggeredAt)
	if err != nil {
		return false
	}
	since := now.Sub(at)
	return since >= 0 && since < ringingWindow
}

// SyncNormal writes every bell's full field set to its key in one batched
// update and eagerly replaces the local mirror ahead of the listener echo.
// Bells absent from the list are untouched remotely but drop out of the
// local mirror until the echo arrives.
func (r *Repository) SyncNormal(ctx context.Context, bells []NormalBell) error {
	values := make(map[string]interface{}, len(bells))
	for _, b := range bells {
		if err := b.Validate(); err != nil {
			return err
		}
		values[b.ID] = b
	}
	if err := r.store.Update(ctx, normalPath, values); err != nil {
		return err
	}

	r.mu.Lock()
	r.normal = append([]NormalBell(nil), bells...)
	r.mu.Unlock()
	r.notifyChanged()
	return nil
}

// SyncSpecial is the special-bell counterpart of SyncNormal
func (r *Repository) SyncSpecial(ctx context.Context, bells []SpecialBell) error {
	values := make(map[string]interface{}, len(bells))
	for _, b := range bells {
		if err := b.Validate(); err != nil {
			return err
		}
		values[b.ID] = b
	}
	if err := r.store.Update(ctx, specialPath, values); err != nil {
		return err
	}

	r.mu.Lock()
	r.special = append([]SpecialBell(nil), bells...)
	r.mu.Unlock()
	r.notifyChanged()
	return nil
}

// AddNormal appends a new normal bell and returns its store-assigned key
func (r *Repository) AddNormal(ctx context.Context, bell NormalBell) (string, error) {
	if err := bell.Validate(); err != nil {
		return "", err
	}
	return r.store.Push(ctx, normalPath, bell)
}

// AddSpecial appends a new special bell and returns its store-assigned key
func (r *Repository) AddSpecial(ctx context.Context, bell SpecialBell) (string, error) {
	if err := bell.Validate(); err != nil {
		return "", err
	}
	return r.store.Push(ctx, specialPath, bell)
}

// DeleteNormal removes a normal bell. Deleting an unknown id is a no-op on
// the store side.
func (r *Repository) DeleteNormal(ctx context.Context, id string) error {
	return r.store.Remove(ctx, store.Join(normalPath, id))
}

// DeleteSpecial removes a special bell
func (r *Repository) DeleteSpecial(ctx context.Context, id string) error {
	return r.store.Remove(ctx, store.Join(specialPath, id))
}

// handleNormal replaces the normal mirror with the freshly decoded
// collection. Every notification is a full replace; there are no
// partial-merge semantics.
func (r *Repository) handleNormal(snap store.Snapshot) {
	var records map[string]NormalBell
	if snap.Exists() {
		if err := snap.Decode(&records); err != nil {
			r.log.Warnf("Failed to decode normal bells: %v", err)
			return
		}
	}

	list := make([]NormalBell, 0, len(records))
	for id, bell := range records {
		bell.ID = id
		list = append(list, bell)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	r.mu.Lock()
	r.normal = list
	r.mu.Unlock()
	r.notifyChanged()
}

func (r *Repository) handleSpecial(snap store.Snapshot) {
	var records map[string]SpecialBell
	if snap.Exists() {
		if err := snap.Decode(&records); err != nil {
			r.log.Warnf("Failed to decode special bells: %v", err)
			return
		}
	}

	list := make([]SpecialBell, 0, len(records))
	for id, bell := range records {
		bell.ID = id
		list = append(list, bell)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	r.mu.Lock()
	r.special = list
	r.mu.Unlock()
	r.notifyChanged()
}

func (r *Repository) handleTriggered(snap store.Snapshot) {
	var trigger *BellTrigger
	if snap.Exists() {
		trigger = &BellTrigger{}
		if err := snap.Decode(trigger); err != nil {
			r.log.Warnf("Failed to decode bell trigger: %v", err)
			return
		}
	}

	r.mu.Lock()
	r.lastTriggered = trigger
	r.mu.Unlock()
	r.notifyChanged()
}

func (r *Repository) notifyChanged() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}
