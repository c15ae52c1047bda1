package integration

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openebs/lvs-core/pkg/nexus"
)

var _ = Describe("Nexus child lifecycle", func() {
	var registry *nexus.MemRebuildRegistry

	BeforeEach(func() {
		registry = nexus.NewMemRebuildRegistry()
	})

	It("opens, offlines, and onlines a child, then tracks its rebuild job until it finishes", func() {
		child := nexus.New("nexus0", "child0", nexus.Config{
			Driver:    "lvol",
			SizeBytes: 10 << 30,
			Registry:  registry,
		})

		_, err := child.Open(10 << 30)
		Expect(err).NotTo(HaveOccurred())
		state, _ := child.State()
		Expect(state).To(Equal(nexus.Open))
		Expect(child.IsAccessible()).To(BeTrue())

		child.Offline()
		state, _ = child.State()
		Expect(state).To(Equal(nexus.Closed))

		_, err = child.Online(10 << 30)
		Expect(err).NotTo(HaveOccurred())
		state, reason := child.State()
		Expect(state).To(Equal(nexus.Faulted))
		Expect(reason).To(Equal(nexus.OutOfSync))
		Expect(child.IsAccessible()).To(BeTrue(), "an OutOfSync child must remain accessible for rebuild traffic")
		Expect(child.IsRebuilding()).To(BeFalse(), "no rebuild job has been registered yet")

		registry.Start("nexus0", "child0")
		registry.SetProgress("child0", 50)
		Expect(child.IsRebuilding()).To(BeTrue())
		Expect(child.GetRebuildProgress()).To(Equal(50))

		registry.Finish("child0")
		Expect(child.GetRebuildProgress()).To(Equal(-1))
	})

	It("rejects opening a child smaller than the nexus and refuses to destroy it while not closed", func() {
		child := nexus.New("nexus0", "child-small", nexus.Config{SizeBytes: 1 << 20})
		_, err := child.Open(1 << 30)
		Expect(err).To(MatchError(nexus.ErrChildTooSmall))

		state, _ := child.State()
		Expect(state).To(Equal(nexus.ConfigInvalid))
		Expect(child.Destroy(nil)).To(MatchError(nexus.ErrChildNotClosed), "a never-opened, never-closed child still can't be destroyed")
	})

	It("persists every sibling's status on every transition, round-tripping through a file", func() {
		store := nexus.NewFileStatusStore(filepath.Join(GinkgoT().TempDir(), "status.yaml"))

		var a, b *nexus.Child
		siblings := func() []nexus.ChildStatus {
			aState, aReason := a.State()
			bState, bReason := b.State()
			return []nexus.ChildStatus{
				{Parent: "nexus0", Name: "a", State: aState, Reason: aReason},
				{Parent: "nexus0", Name: "b", State: bState, Reason: bReason},
			}
		}

		a = nexus.New("nexus0", "a", nexus.Config{SizeBytes: 1 << 30, Statuses: store, Siblings: siblings})
		b = nexus.New("nexus0", "b", nexus.Config{SizeBytes: 1 << 30, Statuses: store, Siblings: siblings})

		_, err := a.Open(1 << 30)
		Expect(err).NotTo(HaveOccurred())
		_, err = b.Open(1 << 30)
		Expect(err).NotTo(HaveOccurred())

		b.Fault(nexus.Rpc)

		rows, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))

		byName := make(map[string]nexus.ChildStatus, len(rows))
		for _, r := range rows {
			byName[r.Name] = r
		}
		Expect(byName["b"].State).To(Equal(nexus.Faulted))
		Expect(byName["b"].Reason).To(Equal(nexus.Rpc))
	})
})
