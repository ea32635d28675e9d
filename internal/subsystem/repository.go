package subsystem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minuterie/facility-controller/internal/audit"
	"github.com/minuterie/facility-controller/internal/store"
)

// Params fixes the per-subsystem differences: store location, display name
// and the defaults used until the first snapshot arrives.
type Params struct {
	Name          string // store base path, e.g. "lighting"
	Title         string // display name used in audit events
	DefaultManual ManualSchedule
	DefaultSolar  SolarSubMode
	SolarSubModes []SolarSubMode // sub-modes this subsystem accepts
}

// Lighting returns the lighting subsystem parameters
func Lighting() Params {
	return Params{
		Name:          "lighting",
		Title:         "Lighting",
		DefaultManual: ManualSchedule{StartTime: "19:00", EndTime: "06:30"},
		DefaultSolar:  SunsetToSunrise,
		SolarSubModes: []SolarSubMode{SunsetToSunrise, BeforeSunset, AfterSunset, BeforeSunrise, AfterSunrise},
	}
}

// Irrigation returns the irrigation subsystem parameters
func Irrigation() Params {
	return Params{
		Name:          "irrigation",
		Title:         "Irrigation",
		DefaultManual: ManualSchedule{StartTime: "06:00", EndTime: "06:15"},
		DefaultSolar:  BeforeSunrise,
		SolarSubModes: []SolarSubMode{BeforeSunrise, AfterSunset},
	}
}

// Repository mirrors one subsystem's subtree and provides the write-through
// mutators. Each mutator performs one targeted sub-path write plus one audit
// append; the two are not transactional.
type Repository struct {
	params Params
	store  store.Store
	audit  *audit.Logger
	log    *logrus.Entry

	mu      sync.RWMutex
	state   bool
	mode    Mode
	manual  ManualSchedule
	solar   SolarConfig
	devices []Device

	changed chan struct{}
	sub     store.Subscription
}

// New creates a subsystem repository on the given store handle
func New(st store.Store, aud *audit.Logger, params Params) *Repository {
	return &Repository{
		params:  params,
		store:   st,
		audit:   aud,
		log:     logrus.WithField("component", params.Name),
		mode:    ModeSolar,
		manual:  params.DefaultManual,
		solar:   SolarConfig{SubMode: params.DefaultSolar},
		changed: make(chan struct{}, 1),
	}
}

// Open establishes the standing listener on the subsystem subtree
func (r *Repository) Open() error {
	sub, err := r.store.Subscribe(r.params.Name, r.handleSnapshot)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	return nil
}

// Close cancels the subscription
func (r *Repository) Close() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Changed signals coalesced mirror updates
func (r *Repository) Changed() <-chan struct{} {
	return r.changed
}

// Title returns the subsystem display name
func (r *Repository) Title() string {
	return r.params.Title
}

// State returns the normalized on/off state
func (r *Repository) State() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Mode returns the operating mode
func (r *Repository) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// Manual returns the manual schedule window
func (r *Repository) Manual() ManualSchedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manual
}

// Solar returns the solar configuration
func (r *Repository) Solar() SolarConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.solar
}

// Devices returns a copy of the device list
func (r *Repository) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// SetMode switches the operating mode
func (r *Repository) SetMode(ctx context.Context, mode Mode) error {
	if mode != ModeSolar && mode != ModeManual {
		return fmt.Errorf("invalid mode %q", mode)
	}
	if err := r.store.Set(ctx, store.Join(r.params.Name, "mode"), string(mode)); err != nil {
		return err
	}
	r.audit.Record(ctx, fmt.Sprintf("%s mode changed: %s", r.params.Title, mode))
	return nil
}

// SetManualSchedule replaces the manual on/off window. Times are "HH:MM".
func (r *Repository) SetManualSchedule(ctx context.Context, start, end string) error {
	for _, v := range []string{start, end} {
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("invalid time %q: %w", v, err)
		}
	}
	schedule := ManualSchedule{StartTime: start, EndTime: end}
	if err := r.store.Set(ctx, store.Join(r.params.Name, "schedules", "manual"), schedule); err != nil {
		return err
	}
	r.audit.Record(ctx, fmt.Sprintf("%s manual schedule updated: %s -> %s", r.params.Title, start, end))
	return nil
}

// SetSolarConfig replaces the solar sub-mode and delay
func (r *Repository) SetSolarConfig(ctx context.Context, subMode SolarSubMode, delayMinutes int) error {
	if !r.validSubMode(subMode) {
		return fmt.Errorf("invalid solar sub-mode %q for %s", subMode, r.params.Name)
	}
	config := SolarConfig{SubMode: subMode, Delay: delayMinutes}
	if err := r.store.Set(ctx, store.Join(r.params.Name, "schedules", "sunset_to_sunrise"), config); err != nil {
		return err
	}
	r.audit.Record(ctx, fmt.Sprintf("%s solar config changed: %s, delay %d min", r.params.Title, subMode, delayMinutes))
	return nil
}

// AddDevice registers a new controlled output, active by default, and
// returns its id
func (r *Repository) AddDevice(ctx context.Context, name string, pin int) (string, error) {
	id := fmt.Sprintf("device_%d", time.Now().UnixMilli())
	device := Device{Name: name, Pin: pin, IsActive: true}
	if err := r.store.Set(ctx, store.Join(r.params.Name, "devices", id), device); err != nil {
		return "", err
	}
	r.audit.Record(ctx, fmt.Sprintf("%s device added: %s (pin %d)", r.params.Title, name, pin))
	return id, nil
}

// ToggleDevice flips a device's active flag with a targeted write of that
// single field
func (r *Repository) ToggleDevice(ctx context.Context, id string) error {
	name := "Device"
	active := false
	for _, d := range r.Devices() {
		if d.ID == id {
			name = d.Name
			active = d.IsActive
			break
		}
	}

	next := !active
	if err := r.store.Set(ctx, store.Join(r.params.Name, "devices", id, "isActive"), next); err != nil {
		return err
	}

	verb := "disabled"
	if next {
		verb = "enabled"
	}
	r.audit.Record(ctx, fmt.Sprintf("%s device %s %s", r.params.Title, name, verb))
	return nil
}

// DeleteDevice removes a device record
func (r *Repository) DeleteDevice(ctx context.Context, id string) error {
	name := "Device"
	for _, d := range r.Devices() {
		if d.ID == id {
			name = d.Name
			break
		}
	}

	if err := r.store.Remove(ctx, store.Join(r.params.Name, "devices", id)); err != nil {
		return err
	}
	r.audit.Record(ctx, fmt.Sprintf("%s device removed: %s", r.params.Title, name))
	return nil
}

func (r *Repository) validSubMode(subMode SolarSubMode) bool {
	for _, m := range r.params.SolarSubModes {
		if m == subMode {
			return true
		}
	}
	return false
}

// handleSnapshot applies a full subtree snapshot to the mirror. An absent
// subtree keeps the current values; absent fields keep their defaults.
func (r *Repository) handleSnapshot(snap store.Snapshot) {
	if !snap.Exists() {
		return
	}

	var data subtree
	if err := snap.Decode(&data); err != nil {
		r.log.Warnf("Failed to decode %s snapshot: %v", r.params.Name, err)
		return
	}

	devices := make([]Device, 0, len(data.Devices))
	for id, wire := range data.Devices {
		devices = append(devices, wire.toDevice(id))
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	r.mu.Lock()
	r.state = DecodeState(data.State)
	if mode := NormalizeMode(data.Mode); mode != "" {
		r.mode = mode
	}
	if data.Schedules.Manual != nil {
		manual := *data.Schedules.Manual
		if manual.StartTime == "" {
			manual.StartTime = r.params.DefaultManual.StartTime
		}
		if manual.EndTime == "" {
			manual.EndTime = r.params.DefaultManual.EndTime
		}
		r.manual = manual
	}
	if data.Schedules.Solar != nil {
		solar := SolarConfig{
			SubMode: SolarSubMode(data.Schedules.Solar.SubMode),
			Delay:   decodeDelay(data.Schedules.Solar.Delay),
		}
		if solar.SubMode == "" {
			solar.SubMode = r.params.DefaultSolar
		}
		r.solar = solar
	}
	r.devices = devices
	r.mu.Unlock()

	select {
	case r.changed <- struct{}{}:
	default:
	}
}
