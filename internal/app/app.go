// Package app wires the facility controller together: the store connection,
// the local cache, the bell scheduler and the subsystem repositories.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minuterie/facility-controller/internal/audit"
	"github.com/minuterie/facility-controller/internal/bells"
	"github.com/minuterie/facility-controller/internal/solar"
	"github.com/minuterie/facility-controller/internal/storage"
	"github.com/minuterie/facility-controller/internal/store"
	"github.com/minuterie/facility-controller/internal/subsystem"
)

// Config holds application configuration
type Config struct {
	StoreURL string // WebSocket URL of the hosted store
	APIKey   string
	ClientID string // Client UUID

	CachePath string // SQLite cache path; empty disables the cache

	Latitude  float64
	Longitude float64

	RecomputeInterval time.Duration

	// UseMemoryStore swaps the websocket client for an in-process store.
	// Used by the CLI's offline mode and by tests.
	UseMemoryStore bool
}

// DefaultConfig returns default application configuration
func DefaultConfig() Config {
	return Config{
		CachePath:         "/var/lib/minuterie/cache.db",
		RecomputeInterval: bells.DefaultRecomputeInterval,
	}
}

// App is the top-level coordinator owning every component's lifecycle
type App struct {
	config Config
	log    *logrus.Entry

	cache  *storage.Cache
	client *store.Client
	store  store.Store

	audit      *audit.Logger
	bells      *bells.Repository
	scheduler  *bells.Scheduler
	lighting   *subsystem.Repository
	irrigation *subsystem.Repository

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates the application with all components constructed but not yet
// started
func New(config Config) (*App, error) {
	a := &App{
		config:   config,
		log:      logrus.WithField("component", "app"),
		stopChan: make(chan struct{}),
	}

	if config.CachePath != "" {
		cache, err := storage.Open(config.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		a.cache = cache
	}

	if config.UseMemoryStore {
		a.store = store.NewMemoryStore()
	} else {
		storeCfg := store.DefaultConfig()
		storeCfg.URL = config.StoreURL
		storeCfg.APIKey = config.APIKey
		storeCfg.ClientID = config.ClientID

		var cache store.Cache
		if a.cache != nil {
			cache = a.cache
		}
		a.client = store.NewClient(storeCfg, cache)
		a.store = a.client
	}

	a.audit = audit.New(a.store, a.cache)
	a.bells = bells.NewRepository(a.store)
	a.scheduler = bells.NewScheduler(a.bells, config.RecomputeInterval)
	a.lighting = subsystem.New(a.store, a.audit, subsystem.Lighting())
	a.irrigation = subsystem.New(a.store, a.audit, subsystem.Irrigation())

	return a, nil
}

// Start connects to the store, opens the standing listeners and launches the
// scheduler
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.client != nil {
		if err := a.client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start store client: %w", err)
		}
	}

	if err := a.bells.Open(); err != nil {
		return fmt.Errorf("failed to open bell repository: %w", err)
	}
	if err := a.lighting.Open(); err != nil {
		return fmt.Errorf("failed to open lighting repository: %w", err)
	}
	if err := a.irrigation.Open(); err != nil {
		return fmt.Errorf("failed to open irrigation repository: %w", err)
	}

	a.scheduler.OnChange(func(next *bells.NextBell) {
		if next == nil {
			a.log.Info("No upcoming bell")
			return
		}
		a.log.Infof("Next bell: %s at %s (%s)", next.Label, next.Time, next.Type)
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.scheduler.Run(ctx)
	}()

	a.wg.Add(1)
	go a.stateLogLoop(ctx, a.lighting)

	a.wg.Add(1)
	go a.stateLogLoop(ctx, a.irrigation)

	a.log.Info("Application started")
	return nil
}

// Stop shuts down all components in reverse start order
func (a *App) Stop() error {
	close(a.stopChan)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.irrigation.Close()
	a.lighting.Close()
	a.bells.Close()

	if a.client != nil {
		if err := a.client.Stop(); err != nil {
			a.log.Warnf("Error stopping store client: %v", err)
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warnf("Error closing cache: %v", err)
		}
	}

	a.log.Info("Application stopped")
	return nil
}

// stateLogLoop logs on/off transitions for one subsystem as snapshots arrive
func (a *App) stateLogLoop(ctx context.Context, repo *subsystem.Repository) {
	defer a.wg.Done()

	last := repo.State()
	for {
		select {
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		case <-repo.Changed():
			state := repo.State()
			if state != last {
				verb := "off"
				if state {
					verb = "on"
				}
				a.log.Infof("%s is now %s (mode %s)", repo.Title(), verb, repo.Mode())
				last = state
			}
		}
	}
}

// SunTimes returns today's sunrise and sunset for the configured location
func (a *App) SunTimes(date time.Time) (sunrise, sunset solar.TimeHM) {
	return solar.Times(date, a.config.Latitude, a.config.Longitude)
}

// Bells returns the bell repository
func (a *App) Bells() *bells.Repository {
	return a.bells
}

// Scheduler returns the bell scheduler
func (a *App) Scheduler() *bells.Scheduler {
	return a.scheduler
}

// Lighting returns the lighting subsystem repository
func (a *App) Lighting() *subsystem.Repository {
	return a.lighting
}

// Irrigation returns the irrigation subsystem repository
func (a *App) Irrigation() *subsystem.Repository {
	return a.irrigation
}

// Audit returns the audit logger
func (a *App) Audit() *audit.Logger {
	return a.audit
}

// Cache returns the local cache, or nil when disabled
func (a *App) Cache() *storage.Cache {
	return a.cache
}

// Store returns the underlying store handle
func (a *App) Store() store.Store {
	return a.store
}
