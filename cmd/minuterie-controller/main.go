// Minuterie Facility Controller
// Main entry point for the facility controller service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/minuterie/facility-controller/internal/app"
)

// Config represents the configuration file structure
type Config struct {
	Store struct {
		URL      string `yaml:"url"`
		APIKey   string `yaml:"api_key"`
		ClientID string `yaml:"client_id"`
	} `yaml:"store"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`

	Location struct {
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"location"`

	Timing struct {
		RecomputeInterval int `yaml:"recompute_interval"` // seconds
	} `yaml:"timing"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "minuterie-controller",
		Short: "Minuterie Facility Controller",
		Long:  "Facility controller for the minuterie automation system. Manages bell schedules, lighting and irrigation via the hosted realtime store.",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the controller service",
		RunE:  runController,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the next bell and subsystem states",
		RunE:  runStatus,
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Print recent audit log entries from the local cache",
		RunE:  runLogs,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Minuterie Facility Controller v0.1.0")
		},
	}

	logsLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/minuterie/controller.yaml", "Configuration file path")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "Number of entries to print")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// buildAppConfig validates the file config and maps it onto the app config
func buildAppConfig(cfg *Config) (app.Config, error) {
	if cfg.Store.URL == "" {
		return app.Config{}, fmt.Errorf("store.url is required")
	}
	if cfg.Store.APIKey == "" {
		return app.Config{}, fmt.Errorf("store.api_key is required")
	}

	appCfg := app.DefaultConfig()
	appCfg.StoreURL = cfg.Store.URL
	appCfg.APIKey = cfg.Store.APIKey
	appCfg.ClientID = cfg.Store.ClientID
	appCfg.Latitude = cfg.Location.Latitude
	appCfg.Longitude = cfg.Location.Longitude

	if cfg.Cache.Path != "" {
		appCfg.CachePath = cfg.Cache.Path
	}
	if cfg.Timing.RecomputeInterval > 0 {
		appCfg.RecomputeInterval = time.Duration(cfg.Timing.RecomputeInterval) * time.Second
	}

	return appCfg, nil
}

func setupLogging(level string) {
	if level == "" {
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Invalid log level %q, using default", level)
		return
	}
	logrus.SetLevel(parsed)
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.Logging.Level)

	appCfg, err := buildAppConfig(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logrus.Infof("Starting Minuterie Facility Controller")
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	sig := <-sigChan
	logrus.Infof("Received signal %v, shutting down...", sig)

	if err := application.Stop(); err != nil {
		logrus.Warnf("Error during shutdown: %v", err)
	}

	logrus.Info("Shutdown complete")
	return nil
}

// runStatus connects briefly, waits for the initial snapshots and prints a
// one-shot summary
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.Logging.Level)

	appCfg, err := buildAppConfig(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer application.Stop()

	// Give the initial snapshots a moment to arrive; cached snapshots are
	// delivered immediately, live ones follow once the socket is up.
	time.Sleep(2 * time.Second)

	now := time.Now()
	if next, ok := application.Scheduler().Current(); ok {
		fmt.Printf("Next bell:  %s at %s (%s)\n", next.Label, next.Time, next.Type)
	} else {
		fmt.Println("Next bell:  none scheduled")
	}
	fmt.Printf("Ringing:    %v\n", application.Bells().RingingNow(now))

	printSubsystem(application.Lighting().Title(), application.Lighting().State(), string(application.Lighting().Mode()))
	printSubsystem(application.Irrigation().Title(), application.Irrigation().State(), string(application.Irrigation().Mode()))

	sunrise, sunset := application.SunTimes(now)
	fmt.Printf("Sun:        rise %s, set %s\n", sunrise, sunset)
	return nil
}

func printSubsystem(title string, state bool, mode string) {
	stateStr := "off"
	if state {
		stateStr = "on"
	}
	fmt.Printf("%-11s %s (mode %s)\n", title+":", stateStr, mode)
}

// runLogs prints the locally mirrored audit history; it works offline
func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appCfg, err := buildAppConfig(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Stop()

	cache := application.Cache()
	if cache == nil {
		return fmt.Errorf("local cache is disabled; no audit history available")
	}

	entries, err := cache.RecentAuditEntries(logsLimit)
	if err != nil {
		return fmt.Errorf("failed to read audit entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.Time.Format(time.RFC3339), e.Event)
	}
	return nil
}
