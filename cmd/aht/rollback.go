package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <version-id>",
	Short: "Point the active checkpoint at an earlier version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		prev, _ := e.store.ActiveID()
		if err := e.store.Rollback(args[0]); err != nil {
			return err
		}
		fmt.Printf("active checkpoint %s -> %s\n", orDash(prev), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
