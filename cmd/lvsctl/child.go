package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openebs/lvs-core/pkg/nexus"
)

type childRow struct {
	Parent     string `json:"parent"     yaml:"parent"`
	Name       string `json:"name"       yaml:"name"`
	State      string `json:"state"      yaml:"state"`
	Rebuilding bool   `json:"rebuilding" yaml:"rebuilding"`
	Progress   int    `json:"progress"   yaml:"progress"`
	Accessible bool   `json:"accessible" yaml:"accessible"`
	Local      bool   `json:"local"      yaml:"local"`
}

func newChildCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "child", Short: "Inspect nexus children"}
	cmd.AddCommand(newChildStatusCmd())
	return cmd
}

func newChildStatusCmd() *cobra.Command {
	var name, output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a nexus's children",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChildStatus(name, output)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "restrict the listing to this child's name")
	cmd.Flags().StringVarP(&output, "output", "o", outputFormatTable, "output format: table|yaml|json")
	return cmd
}

func runChildStatus(name, output string) error {
	d, err := newDemo()
	if err != nil {
		return err
	}

	var rows []childRow
	for _, c := range d.children {
		if name != "" && c.Name() != name {
			continue
		}
		state, reason := c.State()
		rows = append(rows, childRow{
			Parent:     c.Parent(),
			Name:       c.Name(),
			State:      nexus.StateAndReason(state, reason),
			Rebuilding: c.IsRebuilding(),
			Progress:   c.GetRebuildProgress(),
			Accessible: c.IsAccessible(),
			Local:      c.IsLocal(),
		})
	}

	return renderRows(output, rows, table.Row{"PARENT", "NAME", "STATE", "REBUILDING", "PROGRESS", "ACCESSIBLE", "LOCAL"}, func(t table.Writer) {
		for _, r := range rows {
			t.AppendRow(table.Row{r.Parent, r.Name, r.State, r.Rebuilding, r.Progress, r.Accessible, r.Local})
		}
	}, "No nexus children found.")
}
