package integration

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
	"github.com/openebs/lvs-core/pkg/lvol"
	"github.com/openebs/lvs-core/pkg/runtime"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

var _ = Describe("Snapshot/clone engine", func() {
	var (
		ctx    context.Context
		store  *blobstore.MemStore
		bridge *runtime.Bridge
		engine *lvol.Engine
		vol    *blobstore.Volume
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = blobstore.NewMemStore()
		bridge = runtime.New()
		engine = lvol.New(store, bridge, events.New())
		vol = store.CreateVolume("vol0", 10<<30)
	})

	snapshotParams := func(source *blobstore.Volume, name string) snapshot.SnapshotParams {
		p, err := snapshot.NewSnapshotParams(uuid.NewString(), source.UUID, uuid.NewString(), name, uuid.NewString())
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	cloneParams := func(source *blobstore.Volume, name string) snapshot.CloneParams {
		p, err := snapshot.NewCloneParams(name, uuid.NewString(), source.UUID)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	It("lists a created snapshot and clone by source and by snapshot UUID", func() {
		snap, err := engine.CreateSnapshot(ctx, vol, snapshotParams(vol, "snap0"))
		Expect(err).NotTo(HaveOccurred())

		clone, err := engine.CreateClone(ctx, snap, cloneParams(snap, "clone0"))
		Expect(err).NotTo(HaveOccurred())
		Expect(clone.SnapshotCloneParent).To(Equal(snap.UUID))

		bySource := engine.ListSnapshotBySourceUUID(ctx, vol)
		Expect(bySource).To(HaveLen(1))
		Expect(bySource[0].Snapshot.UUID).To(Equal(snap.UUID))
		Expect(bySource[0].NumClones).To(BeNumerically("==", 1))

		clones := engine.ListClonesBySnapshotUUID(ctx, snap.UUID)
		Expect(clones).To(HaveLen(1))
		Expect(clones[0].UUID).To(Equal(clone.UUID))
	})

	It("rejects a snapshot whose parent_id does not match the source volume", func() {
		other := store.CreateVolume("vol1", 1<<30)
		params := snapshotParams(other, "snap-mismatch")
		_, err := engine.CreateSnapshot(ctx, vol, params)
		Expect(err).To(MatchError(lvol.ErrConfig))
	})

	It("discards a snapshot pinned by a live clone, then sweeps it once the clone is gone", func() {
		snap, err := engine.CreateSnapshot(ctx, vol, snapshotParams(vol, "snap0"))
		Expect(err).NotTo(HaveOccurred())

		clone, err := engine.CreateClone(ctx, snap, cloneParams(snap, "clone0"))
		Expect(err).NotTo(HaveOccurred())

		Expect(engine.DestroySnapshot(ctx, snap)).To(Succeed())
		Expect(engine.IsDiscardedSnapshot(ctx, snap)).To(BeTrue())
		Expect(engine.ListAllSnapshots(ctx, nil)).To(HaveLen(1))

		Expect(engine.DestroyClone(ctx, clone)).To(Succeed())
		Expect(engine.ListAllSnapshots(ctx, nil)).To(HaveLen(1), "destroying the clone alone must not destroy the discarded snapshot")

		engine.RunPendingDiscardedSweep(ctx)
		Expect(engine.ListAllSnapshots(ctx, nil)).To(BeEmpty())
	})

	It("destroys an unpinned snapshot outright, without leaving it discarded", func() {
		snap, err := engine.CreateSnapshot(ctx, vol, snapshotParams(vol, "snap0"))
		Expect(err).NotTo(HaveOccurred())

		Expect(engine.DestroySnapshot(ctx, snap)).To(Succeed())
		Expect(engine.ListAllSnapshots(ctx, nil)).To(BeEmpty())
	})

	It("is idempotent when the sweep runs twice with nothing new to collect", func() {
		snap, err := engine.CreateSnapshot(ctx, vol, snapshotParams(vol, "snap0"))
		Expect(err).NotTo(HaveOccurred())
		clone, err := engine.CreateClone(ctx, snap, cloneParams(snap, "clone0"))
		Expect(err).NotTo(HaveOccurred())

		Expect(engine.DestroySnapshot(ctx, snap)).To(Succeed())
		Expect(engine.DestroyClone(ctx, clone)).To(Succeed())

		engine.RunPendingDiscardedSweep(ctx)
		Expect(engine.ListAllSnapshots(ctx, nil)).To(BeEmpty())

		engine.RunPendingDiscardedSweep(ctx)
		Expect(engine.ListAllSnapshots(ctx, nil)).To(BeEmpty())
	})

	It("lists every generation of a multi-snapshot chain off the same source", func() {
		snap1, err := engine.CreateSnapshot(ctx, vol, snapshotParams(vol, "snap1"))
		Expect(err).NotTo(HaveOccurred())
		snap2, err := engine.CreateSnapshot(ctx, vol, snapshotParams(vol, "snap2"))
		Expect(err).NotTo(HaveOccurred())

		bySource := engine.ListSnapshotBySourceUUID(ctx, vol)
		Expect(bySource).To(HaveLen(2))

		uuids := []string{bySource[0].Snapshot.UUID, bySource[1].Snapshot.UUID}
		Expect(uuids).To(ConsistOf(snap1.UUID, snap2.UUID))
	})
})
