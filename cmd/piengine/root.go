package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/pi-engine/api"
	"github.com/warp/pi-engine/config"
	"github.com/warp/pi-engine/fiscal"
	"github.com/warp/pi-engine/generic"
	"github.com/warp/pi-engine/store/sqlite"
)

const defaultConfigPath = "piengine.yaml"

// app carries the global flags and the logger built from them.
type app struct {
	configPath string
	dbPath     string
	verbose    bool

	load   func(path string) (*config.Config, error)
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{load: config.Load}

	root := &cobra.Command{
		Use:   "piengine",
		Short: "Fiscal Program Increment labels and calendar population",
		Long: `piengine resolves dates to fiscal Program Increment labels
("FY23.3.1 Week 1") and lays each increment out as calendar events:
five sprints with reviews, Innovation Week, Next PI Planning and the
planning sessions of the following increment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zc := zap.NewProductionConfig()
			if a.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.serveCmd(),
		a.labelCmd(),
		a.scheduleCmd(),
		a.populateCmd(),
		a.runsCmd(),
		a.importAdjustmentsCmd(),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides. When the
// first-run defaults cannot be written, the defaults are used anyway.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := a.load(a.configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", a.configPath, err)
		}
		a.logger.Warn("could not write default config, continuing with defaults",
			zap.String("config", a.configPath),
			zap.Error(err))
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	return cfg, nil
}

// engine builds the fiscal engine from the config's calendar.
func (a *app) engine(cfg *config.Config) (*fiscal.Engine, error) {
	fc, err := cfg.FiscalConfig()
	if err != nil {
		return nil, err
	}
	return fiscal.NewEngine(fc, generic.SystemClock{}), nil
}

// handler opens the store and wires an API handler over it. The caller
// closes the store.
func (a *app) handler(cfg *config.Config) (*api.Handler, *sqlite.Store, error) {
	engine, err := a.engine(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return api.NewHandler(engine, store, a.logger), store, nil
}
