package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openebs/lvs-core/pkg/blobstore"
)

type cloneRow struct {
	UUID         string `json:"uuid"         yaml:"uuid"`
	Name         string `json:"name"         yaml:"name"`
	SnapshotUUID string `json:"snapshotUuid" yaml:"snapshotUuid"`
	Allocated    string `json:"allocated"    yaml:"allocated"`
}

func newCloneCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "clone", Short: "Inspect clones"}
	cmd.AddCommand(newCloneListCmd())
	return cmd
}

func newCloneListCmd() *cobra.Command {
	var snapshotUUID, output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clones, optionally filtered to one source snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCloneList(cmd.Context(), snapshotUUID, output)
		},
	}
	cmd.Flags().StringVar(&snapshotUUID, "snapshot-uuid", "", "restrict the listing to clones of this snapshot")
	cmd.Flags().StringVarP(&output, "output", "o", outputFormatTable, "output format: table|yaml|json")
	return cmd
}

func runCloneList(ctx context.Context, snapshotUUID, output string) error {
	d, err := newDemo()
	if err != nil {
		return err
	}

	var clones []*blobstore.Volume
	if snapshotUUID != "" {
		clones = d.engine.ListClonesBySnapshotUUID(ctx, snapshotUUID)
	} else {
		clones = d.engine.ListAllClones(ctx)
	}

	rows := make([]cloneRow, 0, len(clones))
	for _, c := range clones {
		rows = append(rows, cloneRow{
			UUID:         c.UUID,
			Name:         c.Name,
			SnapshotUUID: c.SnapshotCloneParent,
			Allocated:    formatBytes(c.AllocatedBytes),
		})
	}

	return renderRows(output, rows, table.Row{"UUID", "NAME", "SNAPSHOT_UUID", "ALLOCATED"}, func(t table.Writer) {
		for _, r := range rows {
			t.AppendRow(table.Row{r.UUID, r.Name, r.SnapshotUUID, r.Allocated})
		}
	}, "No clones found.")
}
