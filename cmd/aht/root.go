package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-aht/internal/cohort"
	"github.com/danielpatrickdp/trust-aht/internal/config"
	"github.com/danielpatrickdp/trust-aht/internal/logging"
	"github.com/danielpatrickdp/trust-aht/internal/store"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
)

var rootCmd = &cobra.Command{
	Use:   "aht",
	Short: "Trust-aware offline ad hoc teamwork experiments",
	Long: `aht samples synthetic human-AI advice sequences driven by a latent trust
process and trains a recurrent offline value-learning agent on them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config and AHT_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "debug | info | warn | error")
}

// #region helpers

// env bundles what every subcommand opens.
type env struct {
	cfg     config.Config
	tables  *tables.Tables
	log     *slog.Logger
	store   *store.Store
	cohorts *cohort.DB
}

func (e *env) Close() {
	if e.cohorts != nil {
		e.cohorts.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}

// setup loads the config, applies flag overrides, and opens the database.
func setup(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	tb := tables.Default()
	if cfg.Generator.TablesPath != "" {
		if tb, err = tables.LoadFile(cfg.Generator.TablesPath); err != nil {
			return nil, fmt.Errorf("load tables: %w", err)
		}
	}

	e := &env{cfg: cfg, tables: tb, log: logging.New(level)}
	if e.store, err = store.NewStore(cfg.Store.Path); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if e.cohorts, err = cohort.Open(cfg.Store.Path); err != nil {
		e.Close()
		return nil, fmt.Errorf("open cohorts: %w", err)
	}
	return e, nil
}

// #endregion helpers
