package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "gc", Short: "Garbage collection"}
	cmd.AddCommand(newGCRunCmd())
	return cmd
}

func newGCRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sweep discarded snapshots whose pinning clones are all gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDemo()
			if err != nil {
				return err
			}
			d.engine.RunPendingDiscardedSweep(cmd.Context())
			fmt.Println("pending discarded snapshot sweep complete")
			return nil
		},
	}
}
