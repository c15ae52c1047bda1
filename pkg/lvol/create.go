package lvol

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
	"github.com/openebs/lvs-core/pkg/metrics"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// CreateSnapshot creates a snapshot of source using params. params.ParentID
// must equal source.UUID; any other mismatch is a caller bug and is
// rejected before the backend is ever called. The source blob is quiesced
// by the backend for the duration of the call.
func (e *Engine) CreateSnapshot(ctx context.Context, source *blobstore.Volume, params snapshot.SnapshotParams) (*blobstore.Volume, error) {
	if source.UUID != params.ParentID {
		return nil, configError("parent_id %q does not match source volume %q", params.ParentID, source.UUID)
	}

	timer := metrics.NewOperationTimer("snapshot", "create")

	var result *blobstore.Volume
	err := e.bridge.SpawnAwait(ctx, func(rctx context.Context) error {
		vol, err := e.facade.CreateSnapshot(rctx, source.Blob, params.Name, params.ToXattrs())
		if err != nil {
			return err
		}
		result = vol
		return nil
	})

	if err != nil {
		timer.ObserveError()
		klog.Errorf("lvol: create snapshot %s of %s failed: %v", params.Name, source.UUID, err)
		return nil, fmt.Errorf("create snapshot %s: %w", params.Name, err)
	}

	timer.ObserveSuccess()
	result.IsSnapshot = true
	e.events.Publish(events.Event{EntityID: result.UUID, Component: "snapshot", Action: "create"})
	klog.V(4).Infof("lvol: created snapshot %s (%s) of %s", params.Name, result.UUID, source.UUID)
	return result, nil
}

// RemoteRequest is a caller-owned completion handle for a snapshot create
// triggered implicitly by a data-plane write, standing in for the opaque
// FFI request pointer the backend would complete directly. Its identity is
// the handle itself; the engine invokes exactly one of Complete or
// CompleteError on it, from the reactor callback (or inline, when the
// parameters are rejected before submission), and never blocks the caller
// waiting for the backend.
type RemoteRequest interface {
	Complete()
	CompleteError(errno int)
}

// CreateSnapshotRemote is the non-blocking analogue of CreateSnapshot: it
// submits the create to the façade and returns immediately, completing req
// from the reactor callback instead of awaiting a local channel. Used when
// a write on the data plane triggers an implicit snapshot and must not
// block the originating I/O path.
func (e *Engine) CreateSnapshotRemote(ctx context.Context, source *blobstore.Volume, params snapshot.SnapshotParams, req RemoteRequest) {
	if source.UUID != params.ParentID {
		klog.Errorf("lvol: remote create snapshot %s of %s: parent_id %q does not match source volume %q", params.Name, source.UUID, params.ParentID, source.UUID)
		req.CompleteError(-int(blobstore.Errno(22)))
		return
	}

	timer := metrics.NewOperationTimer("snapshot", "create_remote")
	klog.V(4).Infof("lvol: creating remote snapshot %s of %s", params.Name, source.UUID)

	e.bridge.Spawn(func(rctx context.Context) {
		vol, err := e.facade.CreateSnapshot(rctx, source.Blob, params.Name, params.ToXattrs())
		if err != nil {
			timer.ObserveError()
			klog.Errorf("lvol: remote create snapshot %s of %s failed: %v", params.Name, source.UUID, err)
			req.CompleteError(-int(errnoOf(err)))
			return
		}

		timer.ObserveSuccess()
		vol.IsSnapshot = true
		e.events.Publish(events.Event{EntityID: vol.UUID, Component: "snapshot", Action: "create"})
		klog.V(4).Infof("lvol: created remote snapshot %s (%s) of %s", params.Name, vol.UUID, source.UUID)
		req.Complete()
	})
}

// errnoOf recovers the backend errno carried by err, defaulting to EIO for
// errors that never wrapped one (the façade's own sentinel errors, context
// cancellation).
func errnoOf(err error) blobstore.Errno {
	var errno blobstore.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return blobstore.Errno(5)
}

// CreateClone creates a writable clone of sourceSnapshot using params.
// params.SourceUUID must equal sourceSnapshot.UUID.
func (e *Engine) CreateClone(ctx context.Context, sourceSnapshot *blobstore.Volume, params snapshot.CloneParams) (*blobstore.Volume, error) {
	if sourceSnapshot.UUID != params.SourceUUID {
		return nil, configError("source_uuid %q does not match source snapshot %q", params.SourceUUID, sourceSnapshot.UUID)
	}

	timer := metrics.NewOperationTimer("clone", "create")

	var result *blobstore.Volume
	err := e.bridge.SpawnAwait(ctx, func(rctx context.Context) error {
		vol, err := e.facade.CreateClone(rctx, sourceSnapshot.Blob, params.Name, params.ToXattrs())
		if err != nil {
			return err
		}
		result = vol
		return nil
	})

	if err != nil {
		timer.ObserveError()
		klog.Errorf("lvol: create clone %s of %s failed: %v", params.Name, sourceSnapshot.UUID, err)
		return nil, fmt.Errorf("create clone %s: %w", params.Name, err)
	}

	timer.ObserveSuccess()
	result.SnapshotCloneParent = sourceSnapshot.UUID
	e.events.Publish(events.Event{EntityID: result.UUID, Component: "clone", Action: "create"})
	klog.V(4).Infof("lvol: created clone %s (%s) from snapshot %s", params.Name, result.UUID, sourceSnapshot.UUID)
	return result, nil
}
