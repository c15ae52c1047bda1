package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/nexus"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// seedSnapshotAndClone creates one snapshot of vol and one clone of that
// snapshot, giving snapshot/clone list something to show on a fresh run.
func (d *demo) seedSnapshotAndClone(vol *blobstore.Volume) error {
	ctx := context.Background()

	snapParams, err := snapshot.NewSnapshotParams(uuid.NewString(), vol.UUID, uuid.NewString(), "vol0-snap0", uuid.NewString())
	if err != nil {
		return fmt.Errorf("seed snapshot params: %w", err)
	}
	snap, err := d.engine.CreateSnapshot(ctx, vol, snapParams)
	if err != nil {
		return fmt.Errorf("seed snapshot: %w", err)
	}

	cloneParams, err := snapshot.NewCloneParams("vol0-snap0-clone0", uuid.NewString(), snap.UUID)
	if err != nil {
		return fmt.Errorf("seed clone params: %w", err)
	}
	if _, err := d.engine.CreateClone(ctx, snap, cloneParams); err != nil {
		return fmt.Errorf("seed clone: %w", err)
	}
	return nil
}

// seedNexusChildren builds three children of a demo nexus in distinct
// states: one healthy and open, one rebuilding after being brought back
// online, and one faulted on an I/O error.
func (d *demo) seedNexusChildren() {
	healthy := nexus.New("nexus0", "child-healthy", nexus.Config{
		Driver:    "lvol",
		SizeBytes: 10 << 30,
		Registry:  d.registry,
	})
	if _, err := healthy.Open(10 << 30); err != nil {
		klog.Warningf("lvsctl: seed child-healthy open: %v", err)
	}

	rebuilding := nexus.New("nexus0", "child-rebuilding", nexus.Config{
		Driver:    "lvol",
		SizeBytes: 10 << 30,
		Registry:  d.registry,
	})
	if _, err := rebuilding.Open(10 << 30); err != nil {
		klog.Warningf("lvsctl: seed child-rebuilding open: %v", err)
	}
	rebuilding.Offline()
	if _, err := rebuilding.Online(10 << 30); err != nil {
		klog.Warningf("lvsctl: seed child-rebuilding online: %v", err)
	}
	d.registry.Start("nexus0", "child-rebuilding")
	d.registry.SetProgress("child-rebuilding", 37)

	faulted := nexus.New("nexus0", "child-faulted", nexus.Config{
		Driver:    "nvme",
		SizeBytes: 10 << 30,
		Registry:  d.registry,
	})
	if _, err := faulted.Open(10 << 30); err != nil {
		klog.Warningf("lvsctl: seed child-faulted open: %v", err)
	}
	faulted.RecordIoError("read", fmt.Errorf("simulated read failure"))
	faulted.Fault(nexus.IoError)

	d.children = []*nexus.Child{healthy, rebuilding, faulted}
}
