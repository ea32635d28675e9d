package bells

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRecomputeInterval is how often the scheduler re-evaluates the next
// bell when no data changed. The interval poll is what advances "now": there
// is no external alarm primitive to wake exactly at the next bell instant.
const DefaultRecomputeInterval = 5 * time.Second

type candidate struct {
	at    time.Time
	label string
	typ   string
}

// NextOccurrence computes the single nearest future bell across both
// collections, or ok=false when no enabled bell has a future occurrence.
// All computation uses now's location; hour and minute are plain local
// clock values.
func NextOccurrence(now time.Time, normal []NormalBell, special []SpecialBell) (NextBell, bool) {
	currentMinutes := now.Hour()*60 + now.Minute()
	var candidates []candidate

	// Normal bells: scan today plus the next 7 days and keep the first
	// matching weekday per bell. A bell whose time already passed today is
	// deferred to its next scheduled day, not re-fired today.
	for _, bell := range normal {
		if !bell.Enabled {
			continue
		}
		days := make(map[string]bool, len(bell.Days))
		for _, d := range bell.Days {
			days[d] = true
		}
		for offset := 0; offset < 8; offset++ {
			day := now.AddDate(0, 0, offset)
			if !days[dayTokens[day.Weekday()]] {
				continue
			}
			if offset == 0 && bell.Hour*60+bell.Minute <= currentMinutes {
				continue
			}
			candidates = append(candidates, candidate{
				at:    time.Date(day.Year(), day.Month(), day.Day(), bell.Hour, bell.Minute, 0, 0, now.Location()),
				label: bell.Label,
				typ:   TypeNormal,
			})
			break
		}
	}

	// Special bells: walk each day from max(now, startDate) through endDate
	// and keep the first instant strictly after now. A fully expired range
	// never produces a candidate.
	for _, bell := range special {
		if !bell.Enabled {
			continue
		}
		start, err := time.ParseInLocation(dateLayout, bell.StartDate, now.Location())
		if err != nil {
			continue
		}
		end, err := time.ParseInLocation(dateLayout, bell.EndDate, now.Location())
		if err != nil {
			continue
		}

		day := start
		if now.After(start) {
			day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		}
		for !day.After(end) {
			at := time.Date(day.Year(), day.Month(), day.Day(), bell.Hour, bell.Minute, 0, 0, now.Location())
			if at.After(now) {
				candidates = append(candidates, candidate{at: at, label: bell.Label, typ: TypeSpecial})
				break
			}
			day = day.AddDate(0, 0, 1)
		}
	}

	if len(candidates) == 0 {
		return NextBell{}, false
	}

	// Stable sort: candidates sharing the exact instant keep iteration
	// order, normal before special.
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].at.Before(candidates[j].at) })
	next := candidates[0]

	return NextBell{
		Label: next.label,
		Time:  fmt.Sprintf("%02d:%02d", next.at.Hour(), next.at.Minute()),
		Type:  next.typ,
	}, true
}

// Scheduler owns the current next-bell value, recomputing it on every
// repository change and on a fixed interval
type Scheduler struct {
	repo     *Repository
	interval time.Duration
	log      *logrus.Entry

	mu      sync.RWMutex
	current *NextBell

	onChange func(*NextBell)
}

// NewScheduler creates a scheduler over the given repository. A
// non-positive interval falls back to DefaultRecomputeInterval.
func NewScheduler(repo *Repository, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultRecomputeInterval
	}
	return &Scheduler{
		repo:     repo,
		interval: interval,
		log:      logrus.WithField("component", "scheduler"),
	}
}

// OnChange registers a callback invoked whenever the computed next bell
// changes value, including to none (nil). Set it before Run.
func (s *Scheduler) OnChange(fn func(*NextBell)) {
	s.onChange = fn
}

// Current returns the last computed next bell, or ok=false when there is
// none
func (s *Scheduler) Current() (NextBell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return NextBell{}, false
	}
	return *s.current, true
}

// Run recomputes until the context is cancelled. It reacts to repository
// change notifications and to the interval tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.recompute()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.repo.Changed():
			s.recompute()
		case <-ticker.C:
			s.recompute()
		}
	}
}

func (s *Scheduler) recompute() {
	next, ok := NextOccurrence(time.Now(), s.repo.Normal(), s.repo.Special())

	var value *NextBell
	if ok {
		value = &next
	}

	s.mu.Lock()
	changed := !equalNextBell(s.current, value)
	s.current = value
	s.mu.Unlock()

	if !changed {
		return
	}
	if value == nil {
		s.log.Debug("No upcoming bell occurrence")
	} else {
		s.log.Debugf("Next bell now %s at %s (%s)", value.Label, value.Time, value.Type)
	}
	if s.onChange != nil {
		s.onChange(value)
	}
}

func equalNextBell(a, b *NextBell) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
