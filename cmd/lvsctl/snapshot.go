package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openebs/lvs-core/pkg/lvol"
)

// snapshotRow is the stable rendering of a VolumeSnapshotDescriptor for
// table/yaml/json output, independent of the descriptor's internal field
// names and order.
type snapshotRow struct {
	UUID       string `json:"uuid"           yaml:"uuid"`
	Name       string `json:"name"           yaml:"name"`
	ParentUUID string `json:"parentUuid"     yaml:"parentUuid"`
	Allocated  string `json:"allocated"      yaml:"allocated"`
	NumClones  uint64 `json:"numClones"      yaml:"numClones"`
	Discarded  bool   `json:"discarded"      yaml:"discarded"`
	Valid      bool   `json:"valid"          yaml:"valid"`
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "snapshot", Short: "Inspect snapshots"}
	cmd.AddCommand(newSnapshotListCmd())
	return cmd
}

func newSnapshotListCmd() *cobra.Command {
	var sourceUUID, output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots, optionally filtered to one source volume's lineage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(cmd.Context(), sourceUUID, output)
		},
	}
	cmd.Flags().StringVar(&sourceUUID, "source-uuid", "", "restrict the listing to this source volume's snapshot chain")
	cmd.Flags().StringVarP(&output, "output", "o", outputFormatTable, "output format: table|yaml|json")
	return cmd
}

func runSnapshotList(ctx context.Context, sourceUUID, output string) error {
	d, err := newDemo()
	if err != nil {
		return err
	}

	var descs []*lvol.VolumeSnapshotDescriptor
	if sourceUUID != "" {
		source, err := d.store.LookupByUUID(ctx, sourceUUID)
		if err != nil {
			return fmt.Errorf("lookup source volume %s: %w", sourceUUID, err)
		}
		descs = d.engine.ListSnapshotBySourceUUID(ctx, source)
	} else {
		descs = d.engine.ListAllSnapshots(ctx, nil)
	}

	rows := make([]snapshotRow, 0, len(descs))
	for _, desc := range descs {
		rows = append(rows, snapshotRow{
			UUID:       desc.Snapshot.UUID,
			Name:       desc.Snapshot.Name,
			ParentUUID: desc.ParentUUID,
			Allocated:  formatBytes(desc.AllocatedBytes),
			NumClones:  desc.NumClones,
			Discarded:  desc.Params.Discarded,
			Valid:      desc.Valid,
		})
	}

	return renderRows(output, rows, table.Row{"UUID", "NAME", "PARENT_UUID", "ALLOCATED", "CLONES", "DISCARDED", "VALID"}, func(t table.Writer) {
		for _, r := range rows {
			t.AppendRow(table.Row{r.UUID, r.Name, r.ParentUUID, r.Allocated, r.NumClones, r.Discarded, r.Valid})
		}
	}, "No snapshots found.")
}
