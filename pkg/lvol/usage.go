package lvol

import (
	"context"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// CalculateCloneSourceSnapshotUsage computes how much of totalAncestorSnapSize
// is attributable to vol's own snapshot tree, depending on what vol is:
//
//   - If vol is itself a snapshot taken from a clone, the result is
//     totalAncestorSnapSize minus the clone's own allocated bytes and the
//     allocated bytes of every snapshot whose ParentId is that clone,
//     floored at zero. ok is false if vol's parent can't be resolved to a
//     clone.
//   - If vol is a clone, the result is the sum of the allocated bytes of
//     every snapshot whose ParentId is vol.
//   - Otherwise ok is false; the question doesn't apply to a regular volume.
func (e *Engine) CalculateCloneSourceSnapshotUsage(ctx context.Context, vol *blobstore.Volume, totalAncestorSnapSize uint64) (usage uint64, ok bool) {
	if vol.IsSnapshot {
		parentID, present := e.getXattr(ctx, vol.Blob, snapshot.ParentID.Key())
		if !present {
			return 0, false
		}
		parent, err := e.facade.LookupByUUID(ctx, parentID)
		if err != nil {
			return 0, false
		}
		if _, isClone := e.isSnapshotClone(ctx, parent); !isClone {
			return 0, false
		}
		var cloneSnapshots uint64
		for _, desc := range e.ListAllSnapshots(ctx, parent) {
			cloneSnapshots += desc.Snapshot.AllocatedBytes
		}
		consumed := cloneSnapshots + parent.AllocatedBytes
		if consumed > totalAncestorSnapSize {
			return 0, true
		}
		return totalAncestorSnapSize - consumed, true
	}

	if _, isClone := e.isSnapshotClone(ctx, vol); isClone {
		var sum uint64
		for _, desc := range e.ListAllSnapshots(ctx, vol) {
			sum += desc.Snapshot.AllocatedBytes
		}
		return sum, true
	}

	return 0, false
}

// ResetSnapshotTreeUsageCache invalidates the used-clusters cache across
// vol's ancestor tree. When isReplica is true the reset walks vol's own
// parent chain directly. Otherwise it first resolves vol's recorded
// ParentId xattr: if that parent is still a registered device, the cache
// is reset on the parent and its whole tree; if the parent can no longer
// be found by UUID (it was itself destroyed), the invalidation falls back
// to a wildcard sweep of every registered snapshot and clone.
func (e *Engine) ResetSnapshotTreeUsageCache(ctx context.Context, vol *blobstore.Volume, isReplica bool) {
	if isReplica {
		e.resetTreeWithParent(ctx, vol)
		return
	}

	parentID, ok := e.getXattr(ctx, vol.Blob, snapshot.ParentID.Key())
	if !ok {
		return
	}

	parent, err := e.facade.LookupByUUID(ctx, parentID)
	if err != nil {
		e.resetTreeWithWildcard(ctx, vol, parentID)
		return
	}

	e.facade.ResetUsedClustersCache(ctx, parent.Blob)
	e.resetTreeWithParent(ctx, parent)
}

// resetTreeWithParent resets the cache on every ancestor snapshot of vol
// and every clone pinned to each of those snapshots.
func (e *Engine) resetTreeWithParent(ctx context.Context, vol *blobstore.Volume) {
	it := e.facade.FirstParentBlob(vol)
	for {
		parentBlob := it.Next()
		if parentBlob == nil {
			break
		}

		uuid, ok := e.getXattr(ctx, parentBlob, snapshot.SnapshotUUID.Key())
		if !ok {
			continue
		}
		snap, err := e.facade.LookupByUUID(ctx, uuid)
		if err != nil {
			continue
		}

		e.facade.ResetUsedClustersCache(ctx, snap.Blob)
		for _, clone := range e.ListClonesBySnapshotUUID(ctx, snap.UUID) {
			e.facade.ResetUsedClustersCache(ctx, clone.Blob)
		}
	}
}

// resetTreeWithWildcard is the fallback path used when a snapshot's parent
// has already been destroyed and can't be looked up by UUID. It walks
// every registered snapshot and clone reachable from vol by repeated
// ParentId/source-uuid hops.
//
// This preserves a quirk inherited from the reference engine: the filter
// that seeds successorSnapshots compares every candidate snapshot against
// vol's own ParentId xattr rather than each candidate's. Since
// snapshotParentUUID is always exactly vol's own ParentId value at the one
// call site that reaches this function, the comparison is tautologically
// true and the "filter" admits every snapshot in the registry as a
// starting point, not just vol's actual successors. Left as-is rather than
// narrowed, since narrowing it changes which blobs get an invalidated
// cache on this fallback path.
func (e *Engine) resetTreeWithWildcard(ctx context.Context, vol *blobstore.Volume, snapshotParentUUID string) {
	var successorClones []*blobstore.Volume
	var successorSnapshots []*blobstore.Volume

	for _, desc := range e.ListAllSnapshots(ctx, nil) {
		uuid, ok := e.getXattr(ctx, vol.Blob, snapshot.ParentID.Key())
		if ok && uuid == snapshotParentUUID {
			successorSnapshots = append(successorSnapshots, desc.Snapshot)
		}
	}

	for len(successorSnapshots) != 0 || len(successorClones) != 0 {
		if n := len(successorSnapshots); n != 0 {
			snap := successorSnapshots[n-1]
			successorSnapshots = successorSnapshots[:n-1]

			e.facade.ResetUsedClustersCache(ctx, snap.Blob)
			successorClones = append(successorClones, e.ListClonesBySnapshotUUID(ctx, snap.UUID)...)
		}

		if n := len(successorClones); n != 0 {
			clone := successorClones[n-1]
			successorClones = successorClones[:n-1]

			e.facade.ResetUsedClustersCache(ctx, clone.Blob)
			for _, desc := range e.ListAllSnapshots(ctx, clone) {
				successorSnapshots = append(successorSnapshots, desc.Snapshot)
			}
		}
	}
}
