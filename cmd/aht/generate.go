package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-aht/internal/orchestrator"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Sample a cohort and store it",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if cmd.Flags().Changed("seed") {
			e.cfg.Generator.Seed, _ = cmd.Flags().GetUint64("seed")
		}
		if cmd.Flags().Changed("size") {
			e.cfg.Generator.CohortSize, _ = cmd.Flags().GetInt("size")
		}
		if cmd.Flags().Changed("horizon") {
			e.cfg.Generator.Horizon, _ = cmd.Flags().GetInt("horizon")
		}
		orch := orchestrator.New(e.cfg, e.tables, e.store, e.cohorts, nil, e.log)
		c, _, err := orch.Generate()
		if err != nil {
			return err
		}
		fmt.Printf("cohort %s\n", c.CohortID)
		fmt.Printf("  individuals: %s\n", humanize.Comma(int64(c.Size)))
		fmt.Printf("  horizon:     %d\n", c.Horizon)
		fmt.Printf("  steps:       %s\n", humanize.Comma(int64(c.Size*c.Horizon)))
		fmt.Printf("  seed:        %d\n", c.Seed)
		fmt.Printf("  digest:      %s\n", c.Digest)
		return nil
	},
}

func init() {
	generateCmd.Flags().Uint64("seed", 0, "generator seed (overrides config)")
	generateCmd.Flags().Int("size", 0, "number of individuals (overrides config)")
	generateCmd.Flags().Int("horizon", 0, "steps per individual, at most 15 (overrides config)")
	rootCmd.AddCommand(generateCmd)
}
