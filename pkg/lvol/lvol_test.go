package lvol

import (
	"context"
	"testing"
	"time"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
	"github.com/openebs/lvs-core/pkg/runtime"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// fakeRemoteRequest records which of Complete/CompleteError fired, and lets
// the test block until the reactor callback has actually run.
type fakeRemoteRequest struct {
	done  chan struct{}
	errno int
	ok    bool
}

func newFakeRemoteRequest() *fakeRemoteRequest {
	return &fakeRemoteRequest{done: make(chan struct{}, 1)}
}

func (r *fakeRemoteRequest) Complete() {
	r.ok = true
	r.done <- struct{}{}
}

func (r *fakeRemoteRequest) CompleteError(errno int) {
	r.errno = errno
	r.done <- struct{}{}
}

func (r *fakeRemoteRequest) await(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("remote request was never completed")
	}
}

func newTestEngine(t *testing.T) (*Engine, *blobstore.MemStore) {
	t.Helper()
	store := blobstore.NewMemStore()
	bridge := runtime.New()
	t.Cleanup(bridge.Close)
	return New(store, bridge, events.New()), store
}

func TestCreateAndListSnapshot(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	v := store.CreateVolume("v1", 1<<20)
	v1, err := forceUUID(store, v, "v1")
	if err != nil {
		t.Fatalf("forceUUID: %v", err)
	}

	params, err := snapshot.NewSnapshotParams("e", "v1", "t1", "s1", "s1-uuid")
	if err != nil {
		t.Fatalf("NewSnapshotParams: %v", err)
	}

	snap, err := e.CreateSnapshot(ctx, v1, params)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if !snap.IsSnapshot {
		t.Fatal("expected IsSnapshot=true")
	}

	descs := e.ListSnapshotBySourceUUID(ctx, v1)
	if len(descs) != 1 {
		t.Fatalf("ListSnapshotBySourceUUID: got %d descriptors, want 1", len(descs))
	}
	if !descs[0].Valid {
		t.Fatal("expected descriptor to be valid")
	}
	if descs[0].ParentUUID != "v1" {
		t.Fatalf("ParentUUID = %q, want v1", descs[0].ParentUUID)
	}
	if descs[0].NumClones != 0 {
		t.Fatalf("NumClones = %d, want 0", descs[0].NumClones)
	}
}

func TestCloneThenSnapshotDestroyPreserved(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	v1 := store.CreateVolume("v1", 1<<20)
	v1, _ = forceUUID(store, v1, "v1")

	sp, _ := snapshot.NewSnapshotParams("e", "v1", "t1", "s1", "s1-uuid")
	s1, err := e.CreateSnapshot(ctx, v1, sp)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	s1, _ = forceUUID(store, s1, "s1-uuid")

	cp, _ := snapshot.NewCloneParams("c1", "c1-uuid", "s1-uuid")
	c1, err := e.CreateClone(ctx, s1, cp)
	if err != nil {
		t.Fatalf("CreateClone: %v", err)
	}
	c1, _ = forceUUID(store, c1, "c1-uuid")

	if err := e.DestroySnapshot(ctx, s1); err != nil {
		t.Fatalf("DestroySnapshot: %v", err)
	}

	if _, err := store.LookupByUUID(ctx, "s1-uuid"); err != nil {
		t.Fatal("snapshot should still be present after discard")
	}
	if !e.IsDiscardedSnapshot(ctx, s1) {
		t.Fatal("expected snapshot to be marked discarded")
	}

	descs := e.ListSnapshotBySnapshotUUID(ctx, s1)
	if len(descs) != 1 || !descs[0].Valid {
		t.Fatalf("expected one valid descriptor, got %+v", descs)
	}

	if err := e.DestroyClone(ctx, c1); err != nil {
		t.Fatalf("DestroyClone: %v", err)
	}
	if _, err := store.LookupByUUID(ctx, "s1-uuid"); err != nil {
		t.Fatal("snapshot should still be present immediately after its last clone is destroyed")
	}

	e.RunPendingDiscardedSweep(ctx)
	if _, err := store.LookupByUUID(ctx, "s1-uuid"); err == nil {
		t.Fatal("expected snapshot to be destroyed by the pending-discarded sweep")
	}
}

func TestGCIdempotence(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	for _, id := range []string{"a", "b"} {
		v := store.CreateVolume("v-"+id, 1<<20)
		v, _ = forceUUID(store, v, "src-"+id)

		sp, _ := snapshot.NewSnapshotParams("e", "src-"+id, "t", "snap-"+id, "snap-"+id+"-uuid")
		snap, err := e.CreateSnapshot(ctx, v, sp)
		if err != nil {
			t.Fatalf("CreateSnapshot: %v", err)
		}
		snap, _ = forceUUID(store, snap, "snap-"+id+"-uuid")
		if err := e.DestroySnapshot(ctx, snap); err != nil {
			t.Fatalf("DestroySnapshot (no clones should destroy immediately): %v", err)
		}
		if _, err := store.LookupByUUID(ctx, "snap-"+id+"-uuid"); err == nil {
			t.Fatalf("snapshot %s with zero clones should have been destroyed immediately", id)
		}
	}

	// Both already gone; the sweep should be a clean no-op both times.
	e.RunPendingDiscardedSweep(ctx)
	e.RunPendingDiscardedSweep(ctx)
}

func TestCreateSnapshotRejectsMismatchedParent(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	v1 := store.CreateVolume("v1", 1<<20)
	v1, _ = forceUUID(store, v1, "v1")

	sp, _ := snapshot.NewSnapshotParams("e", "other-volume", "t1", "s1", "s1-uuid")
	if _, err := e.CreateSnapshot(ctx, v1, sp); err == nil {
		t.Fatal("expected error for mismatched parent_id")
	}
}

func TestCreateSnapshotRemote(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	v1 := store.CreateVolume("v1", 1<<20)
	v1, _ = forceUUID(store, v1, "v1")

	params, err := snapshot.NewSnapshotParams("e", "v1", "t1", "s1", "s1-uuid")
	if err != nil {
		t.Fatalf("NewSnapshotParams: %v", err)
	}

	req := newFakeRemoteRequest()
	e.CreateSnapshotRemote(ctx, v1, params, req)
	req.await(t)

	if !req.ok {
		t.Fatalf("expected Complete to fire, got CompleteError(%d)", req.errno)
	}

	descs := e.ListSnapshotBySourceUUID(ctx, v1)
	if len(descs) != 1 {
		t.Fatalf("ListSnapshotBySourceUUID: got %d descriptors, want 1", len(descs))
	}
}

func TestCreateSnapshotRemoteRejectsMismatchedParent(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	v1 := store.CreateVolume("v1", 1<<20)
	v1, _ = forceUUID(store, v1, "v1")

	sp, _ := snapshot.NewSnapshotParams("e", "other-volume", "t1", "s1", "s1-uuid")

	req := newFakeRemoteRequest()
	e.CreateSnapshotRemote(ctx, v1, sp, req)
	req.await(t)

	if req.ok {
		t.Fatal("expected CompleteError for mismatched parent_id")
	}
	if req.errno >= 0 {
		t.Fatalf("errno = %d, want a negative value", req.errno)
	}
}

// forceUUID re-keys vol in store under newUUID, so tests can use
// human-readable identifiers that match the UUIDs embedded in
// SnapshotParams/CloneParams fixtures. MemStore.CreateVolume assigns a fresh
// uuid.NewString(); snapshots and clones already take the UUID from their
// params, so re-keying them to that same UUID changes nothing.
func forceUUID(store *blobstore.MemStore, vol *blobstore.Volume, newUUID string) (*blobstore.Volume, error) {
	return store.Rekey(vol, newUUID)
}
