package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-aht/internal/replay"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
)

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Regenerate a fixture's cohort and check its digest and trust cases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := replay.LoadFixture(args[0])
		if err != nil {
			return err
		}
		tb := tables.Default()
		if path, _ := cmd.Flags().GetString("tables"); path != "" {
			if tb, err = tables.LoadFile(path); err != nil {
				return fmt.Errorf("load tables: %w", err)
			}
		}

		summary, err := replay.Replay(f, tb)
		if err != nil {
			return err
		}
		fmt.Printf("fixture: %s\n", f.Description)
		mark := "ok"
		if !summary.DigestMatch {
			mark = "MISMATCH"
		}
		fmt.Printf("digest:  %s (%s)\n", summary.Digest, mark)
		for _, c := range summary.Cases {
			if !c.Pass {
				fmt.Printf("  case %d FAIL: %s\n", c.Index, c.Reason)
			}
		}
		fmt.Printf("cases:   %d/%d passed\n", len(summary.Cases)-summary.Failed, len(summary.Cases))
		if !summary.Passed() {
			return fmt.Errorf("replay failed")
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().String("tables", "", "probability tables YAML (embedded defaults when empty)")
	rootCmd.AddCommand(replayCmd)
}
