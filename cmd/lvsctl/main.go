// Command lvsctl is a thin inspection CLI over the snapshot/clone engine
// and the nexus child state machine. It runs entirely against the
// in-memory reference backend used by the package tests — there is no
// real SPDK process behind it — so it exists to make the engine's
// behavior observable from a terminal, not to administer a production
// pool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
	"github.com/openebs/lvs-core/pkg/lvol"
	"github.com/openebs/lvs-core/pkg/nexus"
	"github.com/openebs/lvs-core/pkg/runtime"
)

// demo bundles the engine and the nexus children lvsctl seeds on every
// invocation, since there is no persistent daemon behind this CLI to hold
// state between commands.
type demo struct {
	store    *blobstore.MemStore
	engine   *lvol.Engine
	bridge   *runtime.Bridge
	registry *nexus.MemRebuildRegistry
	children []*nexus.Child
}

// newDemo seeds one root volume, one snapshot, and one clone, plus three
// nexus children in varying states, so every lvsctl subcommand has
// something non-trivial to list on a fresh run.
func newDemo() (*demo, error) {
	store := blobstore.NewMemStore()
	bridge := runtime.New()
	bus := events.New()
	engine := lvol.New(store, bridge, bus)

	vol := store.CreateVolume("vol0", 10<<30)

	d := &demo{store: store, engine: engine, bridge: bridge, registry: nexus.NewMemRebuildRegistry()}

	if err := d.seedSnapshotAndClone(vol); err != nil {
		return nil, err
	}
	d.seedNexusChildren()
	return d, nil
}

func main() {
	klog.InitFlags(nil)
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lvsctl",
		Short: "Inspect the lvs-core snapshot/clone engine and nexus child state machine",
		Long: `lvsctl is a debugging and demo harness for lvs-core. Every subcommand runs
against a freshly seeded in-memory backend, the same reference blobstore
the engine's own tests use; it does not talk to a real storage pool.`,
		SilenceUsage: true,
	}

	root.AddCommand(newSnapshotCmd())
	root.AddCommand(newCloneCmd())
	root.AddCommand(newChildCmd())
	root.AddCommand(newGCCmd())
	root.AddCommand(newMetricsCmd())
	return root
}
