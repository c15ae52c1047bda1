package lvol

import (
	"context"
	"sync"

	"k8s.io/klog/v2"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
)

// RunPendingDiscardedSweep scans every registered lvol device for
// snapshots that were logically destroyed (DiscardedSnapshot=true) while
// still pinned by a clone, but whose pinning clones have since all been
// destroyed. It is meant to run on pool import to recover from a crash
// between "last clone destroyed" and "discarded snapshot physically
// destroyed" — a window this engine otherwise leaves unguarded, per the
// destroy/discard design. The sweep is idempotent and best-effort: a
// single snapshot's destroy failure is logged and does not abort the rest.
func (e *Engine) RunPendingDiscardedSweep(ctx context.Context) {
	var pending []*blobstore.Volume
	for _, vol := range e.devices(ctx) {
		if !vol.IsSnapshot {
			continue
		}
		if !e.IsDiscardedSnapshot(ctx, vol) {
			continue
		}
		if len(e.ListClonesBySnapshotUUID(ctx, vol.UUID)) != 0 {
			continue
		}
		pending = append(pending, vol)
	}

	for _, snap := range pending {
		e.ResetSnapshotTreeUsageCache(ctx, snap, false)
	}

	var wg sync.WaitGroup
	for _, snap := range pending {
		wg.Add(1)
		go func(snap *blobstore.Volume) {
			defer wg.Done()
			err := e.bridge.SpawnAwait(ctx, func(rctx context.Context) error {
				return e.facade.DestroyBlob(rctx, snap.Blob)
			})
			if err != nil {
				klog.Warningf("lvol: pending discarded snapshot %s destroy failed: %v", snap.UUID, err)
				return
			}
			klog.V(4).Infof("lvol: pending discarded snapshot %s destroy success", snap.UUID)
			e.events.Publish(events.Event{EntityID: snap.UUID, Component: "snapshot", Action: "destroy"})
		}(snap)
	}
	wg.Wait()
}
