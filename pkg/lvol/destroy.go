package lvol

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
	"github.com/openebs/lvs-core/pkg/metrics"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// DestroySnapshot destroys snap outright if it has no live clones.
// Otherwise, since its clusters are still shared with those clones, it is
// left in place and durably marked DiscardedSnapshot=true; it becomes
// eligible for physical destruction only once its last clone is gone, via
// RunPendingDiscardedSweep.
//
// The has-clones check and the resulting destroy-or-discard both run
// inside the same reactor-scheduled closure, not before it: the engine has
// no lock guarding "check clone count, then act on it" against a
// concurrent CreateClone, so that invariant depends entirely on the
// reactor serializing every mutating call onto one goroutine.
func (e *Engine) DestroySnapshot(ctx context.Context, snap *blobstore.Volume) error {
	timer := metrics.NewOperationTimer("snapshot", "destroy")

	var discarded bool
	err := e.bridge.SpawnAwait(ctx, func(rctx context.Context) error {
		clones := e.ListClonesBySnapshotUUID(rctx, snap.UUID)
		if len(clones) == 0 {
			return e.facade.DestroyBlob(rctx, snap.Blob)
		}
		discarded = true
		return e.facade.SetXattr(rctx, snap.Blob, snapshot.DiscardedSnapshot.Key(), "true", true)
	})

	if err != nil {
		timer.ObserveError()
		klog.Errorf("lvol: destroy snapshot %s failed: %v", snap.UUID, err)
		return fmt.Errorf("destroy snapshot %s: %w", snap.UUID, err)
	}

	timer.ObserveSuccess()
	action := "destroy"
	if discarded {
		action = "discard"
	}
	e.events.Publish(events.Event{EntityID: snap.UUID, Component: "snapshot", Action: action})
	klog.V(4).Infof("lvol: destroy snapshot %s: %s", snap.UUID, action)
	return nil
}

// DestroyClone destroys a clone outright and resets the used-clusters
// cache on its source snapshot tree, since the clone's destruction changes
// how much of the tree's allocation the snapshot alone now accounts for.
func (e *Engine) DestroyClone(ctx context.Context, clone *blobstore.Volume) error {
	timer := metrics.NewOperationTimer("clone", "destroy")

	err := e.bridge.SpawnAwait(ctx, func(rctx context.Context) error {
		return e.facade.DestroyBlob(rctx, clone.Blob)
	})
	if err != nil {
		timer.ObserveError()
		klog.Errorf("lvol: destroy clone %s failed: %v", clone.UUID, err)
		return fmt.Errorf("destroy clone %s: %w", clone.UUID, err)
	}

	timer.ObserveSuccess()
	if src, ok := e.isSnapshotClone(ctx, clone); ok {
		e.ResetSnapshotTreeUsageCache(ctx, src, false)
	}
	e.events.Publish(events.Event{EntityID: clone.UUID, Component: "clone", Action: "destroy"})
	klog.V(4).Infof("lvol: destroyed clone %s", clone.UUID)
	return nil
}
