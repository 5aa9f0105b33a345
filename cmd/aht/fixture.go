package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-aht/internal/replay"
	"github.com/danielpatrickdp/trust-aht/internal/trust"
)

var fixtureExportCmd = &cobra.Command{
	Use:   "fixture-export <cohort-id>",
	Short: "Write a replay fixture from a stored cohort",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")
		if out == "" {
			return fmt.Errorf("--out is required")
		}

		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		c, seq, err := e.cohorts.Load(args[0])
		if err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("description")
		if desc == "" {
			desc = fmt.Sprintf("cohort %s (seed %d, %d x %d)", c.CohortID, c.Seed, c.Size, c.Horizon)
		}
		f, err := replay.ExportFixture(desc, c.Seed, seq, trust.NewRule(e.tables), limit)
		if err != nil {
			return err
		}
		if err := replay.WriteFixture(out, f); err != nil {
			return err
		}
		fmt.Printf("wrote %s: %d trust cases, digest %s\n", out, len(f.TrustCases), f.Digest)
		return nil
	},
}

func init() {
	fixtureExportCmd.Flags().String("out", "", "output fixture JSON path")
	fixtureExportCmd.Flags().Int("limit", 0, "maximum trust cases (0 keeps all)")
	fixtureExportCmd.Flags().String("description", "", "fixture description")
	rootCmd.AddCommand(fixtureExportCmd)
}
