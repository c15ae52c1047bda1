package lvol

import (
	"context"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// VolumeSnapshotDescriptor bundles everything a caller needs to reason
// about a single snapshot: the snapshot volume itself, its recorded parent
// UUID, its allocated bytes, the SnapshotParams read back from its xattrs,
// the number of live clones pinning it, and whether every required xattr
// was present. Valid is false iff any required xattr was missing; the
// descriptor is still returned so callers can see a partially-initialised
// snapshot rather than have it silently vanish from a listing.
type VolumeSnapshotDescriptor struct {
	Snapshot       *blobstore.Volume
	ParentUUID     string
	AllocatedBytes uint64
	Params         snapshot.SnapshotParams
	NumClones      uint64
	Valid          bool
}

// snapshotDescriptor builds the descriptor for snap. If parent is non-nil,
// it acts as a filter: a snapshot whose recorded ParentId xattr doesn't
// match parent.UUID is not this parent's snapshot and snapshotDescriptor
// returns nil.
func (e *Engine) snapshotDescriptor(ctx context.Context, snap *blobstore.Volume, parent *blobstore.Volume) *VolumeSnapshotDescriptor {
	valid := true
	var params snapshot.SnapshotParams

	for _, x := range snapshot.AllSnapshotXattrs() {
		val, ok := e.getXattr(ctx, snap.Blob, x.Key())
		if !ok {
			valid = false
			continue
		}

		switch x {
		case snapshot.ParentID:
			if parent != nil && val != parent.UUID {
				return nil
			}
			params.ParentID = val
		case snapshot.EntityID:
			params.EntityID = val
		case snapshot.TxID:
			params.TxnID = val
		case snapshot.SnapshotUUID:
			params.UUID = val
		case snapshot.SnapshotCreateTime:
			params.CreateTime = val
		case snapshot.DiscardedSnapshot:
			params.Discarded = val == "true"
		}
	}
	params.Name = snap.Name

	parentUUID := ""
	if parent != nil {
		parentUUID = parent.UUID
	} else if v, err := e.facade.LookupByUUID(ctx, params.ParentID); err == nil {
		parentUUID = v.UUID
	}

	return &VolumeSnapshotDescriptor{
		Snapshot:       snap,
		ParentUUID:     parentUUID,
		AllocatedBytes: snap.AllocatedBytes,
		Params:         params,
		NumClones:      uint64(len(e.ListClonesBySnapshotUUID(ctx, params.UUID))),
		Valid:          valid,
	}
}

// ListSnapshotBySourceUUID walks source's parent chain, collecting every
// ancestor snapshot whose recorded source volume is source itself. It
// stops as soon as an ancestor's source_uuid diverges from source.UUID —
// that marks the point where the chain continues into a different
// volume's lineage.
func (e *Engine) ListSnapshotBySourceUUID(ctx context.Context, source *blobstore.Volume) []*VolumeSnapshotDescriptor {
	var out []*VolumeSnapshotDescriptor

	it := e.facade.FirstParentBlob(source)
	for {
		parentBlob := it.Next()
		if parentBlob == nil {
			break
		}

		uuid, ok := e.getXattr(ctx, parentBlob, snapshot.SnapshotUUID.Key())
		if !ok {
			break
		}
		snapVol, err := e.facade.LookupByUUID(ctx, uuid)
		if err != nil {
			break
		}

		desc := e.snapshotDescriptor(ctx, snapVol, nil)
		if desc == nil || desc.Params.ParentID != source.UUID {
			break
		}
		out = append(out, desc)
	}

	return out
}

// ListSnapshotBySnapshotUUID returns the single descriptor for snap, or an
// empty slice if snap's xattrs couldn't be resolved into a descriptor at
// all (as opposed to merely being invalid).
func (e *Engine) ListSnapshotBySnapshotUUID(ctx context.Context, snap *blobstore.Volume) []*VolumeSnapshotDescriptor {
	if desc := e.snapshotDescriptor(ctx, snap, nil); desc != nil {
		return []*VolumeSnapshotDescriptor{desc}
	}
	return nil
}

// ListAllSnapshots returns a descriptor for every snapshot currently
// registered. When parent is non-nil, only snapshots whose ParentId xattr
// matches parent.UUID are included.
func (e *Engine) ListAllSnapshots(ctx context.Context, parent *blobstore.Volume) []*VolumeSnapshotDescriptor {
	var out []*VolumeSnapshotDescriptor
	for _, vol := range e.devices(ctx) {
		if !vol.IsSnapshot {
			continue
		}
		if desc := e.snapshotDescriptor(ctx, vol, parent); desc != nil {
			out = append(out, desc)
		}
	}
	return out
}

// ListClonesBySnapshotUUID returns every registered clone whose source
// snapshot has the given UUID.
func (e *Engine) ListClonesBySnapshotUUID(ctx context.Context, snapshotUUID string) []*blobstore.Volume {
	var out []*blobstore.Volume
	for _, vol := range e.devices(ctx) {
		src, ok := e.isSnapshotClone(ctx, vol)
		if ok && src.UUID == snapshotUUID {
			out = append(out, vol)
		}
	}
	return out
}

// ListAllClones returns every registered clone, regardless of which
// snapshot it was created from.
func (e *Engine) ListAllClones(ctx context.Context) []*blobstore.Volume {
	var out []*blobstore.Volume
	for _, vol := range e.devices(ctx) {
		if vol.SnapshotCloneParent != "" {
			out = append(out, vol)
		}
	}
	return out
}

// IsDiscardedSnapshot reports whether snap carries DiscardedSnapshot=true,
// i.e. it was logically destroyed while a clone pinned it. It does not
// check whether any clone still exists.
func (e *Engine) IsDiscardedSnapshot(ctx context.Context, snap *blobstore.Volume) bool {
	val, ok := e.getXattr(ctx, snap.Blob, snapshot.DiscardedSnapshot.Key())
	return ok && val == "true"
}
