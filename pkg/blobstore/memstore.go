package blobstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// MemStore is an in-memory reference Facade implementation. It is used by
// the engine's unit and integration tests, and backs the cmd/lvsctl debug
// CLI — it is not a production blobstore, only a stand-in for one that
// exercises the same Facade contract the real backend would.
type MemStore struct {
	mu sync.Mutex

	volumes map[string]*Volume

	// reactor guards against the façade being called from more than one
	// logical caller at a time, standing in for "every call must execute
	// on the primary reactor" (§4.1). It's a non-reentrant check, not a
	// real lock: TryLock failing means something called back into the
	// façade while another call was still in flight, exactly the
	// violation a single-threaded reactor would never allow.
	reactor sync.Mutex
}

// enterReactor asserts single-caller access for the duration of one Facade
// method and returns the func to release it. A TryLock failure means two
// Facade calls overlapped, which can't happen if every caller is actually
// funneled through runtime.Reactor as the engine requires.
func (m *MemStore) enterReactor() func() {
	if !m.reactor.TryLock() {
		panic("blobstore: Facade method invoked concurrently or re-entrantly, off the primary reactor")
	}
	return m.reactor.Unlock
}

// NewMemStore returns an empty in-memory blobstore.
func NewMemStore() *MemStore {
	return &MemStore{volumes: make(map[string]*Volume)}
}

// These mirror the exact xattr keys pkg/snapshot serializes snap_uuid and
// clone_uuid under (package blobstore can't import pkg/snapshot, which
// depends on it, so the two string literals are kept in sync by hand).
const (
	snapshotUUIDXattrKey = "org.openebs.mayastor.snapshot.uuid"
	cloneUUIDXattrKey    = "org.openebs.mayastor.clone.uuid"
)

// xattrValue returns the value associated with key in kvs, or "" if absent.
func xattrValue(kvs []XattrKV, key string) string {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// CreateVolume registers a brand-new regular (non-snapshot, non-clone)
// volume. This is outside the scope of the Facade interface proper — real
// volume provisioning is explicitly out of scope per spec.md §1 — but the
// reference store needs some way to seed source volumes for tests.
func (m *MemStore) CreateVolume(name string, sizeBytes uint64) *Volume {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	vol := &Volume{
		UUID:      id,
		Name:      name,
		SizeBytes: sizeBytes,
		Blob:      &Blob{uuid: id, xattrs: map[string]string{}},
	}
	m.volumes[id] = vol
	return vol
}

// Rekey changes vol's UUID to newUUID in place, for test fixtures that want
// human-readable identifiers instead of the random ones assigned at
// creation. Returns ErrNotFound if vol isn't currently registered.
func (m *MemStore) Rekey(vol *Volume, newUUID string) (*Volume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.volumes[vol.UUID]; !ok {
		return nil, ErrNotFound
	}
	delete(m.volumes, vol.UUID)
	vol.UUID = newUUID
	vol.Blob.uuid = newUUID
	m.volumes[newUUID] = vol
	return vol, nil
}

func (m *MemStore) LookupByUUID(_ context.Context, id string) (*Volume, error) {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	vol, ok := m.volumes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return vol, nil
}

func (m *MemStore) EnumerateLvolDevices(_ context.Context) ([]*Volume, error) {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Volume, 0, len(m.volumes))
	for _, v := range m.volumes {
		out = append(out, v)
	}
	return out, nil
}

func (m *MemStore) GetXattr(_ context.Context, blob *Blob, key string) (string, error) {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	val, ok := blob.xattrs[key]
	if !ok {
		return "", ErrXattrNotFound
	}
	return val, nil
}

func (m *MemStore) SetXattr(_ context.Context, blob *Blob, key, value string, sync bool) error {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	blob.xattrs[key] = value
	if sync {
		klog.V(4).Infof("blobstore: xattr %s=%s synced on blob %s", key, value, blob.uuid)
	}
	return nil
}

func (m *MemStore) CreateSnapshot(_ context.Context, source *Blob, name string, xattrs []XattrKV) (*Volume, error) {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	// The snapshot's device identity is the caller-assigned snap_uuid
	// xattr, not a freshly minted one: callers look the snapshot back up
	// by that exact UUID (xattr round-trip, listings, the pending-discarded
	// sweep), so it has to be the registry key too.
	id := xattrValue(xattrs, snapshotUUIDXattrKey)
	if id == "" {
		id = uuid.NewString()
	}

	// The new snapshot blob takes source's place as the next link in the
	// ancestor chain, and source's own blob is rewired to point at it: a
	// live volume's identity survives snapshotting, but its data is now a
	// delta against the blob just frozen. This mirrors the backend's
	// actual copy-on-write swap rather than merely recording a back-link.
	blob := &Blob{uuid: id, xattrs: make(map[string]string, len(xattrs)), parent: source.parent}
	for _, kv := range xattrs {
		blob.xattrs[kv.Key] = kv.Value
	}
	source.parent = blob

	vol := &Volume{
		UUID:       id,
		Name:       name,
		Blob:       blob,
		IsSnapshot: true,
	}
	m.volumes[id] = vol
	klog.V(4).Infof("blobstore: created snapshot %s (%s) from blob %p", name, id, source)
	return vol, nil
}

func (m *MemStore) CreateClone(_ context.Context, sourceSnapshot *Blob, name string, xattrs []XattrKV) (*Volume, error) {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same rationale as CreateSnapshot: the clone's registry identity is
	// its caller-assigned clone_uuid.
	id := xattrValue(xattrs, cloneUUIDXattrKey)
	if id == "" {
		id = uuid.NewString()
	}

	blob := &Blob{uuid: id, xattrs: make(map[string]string, len(xattrs)), parent: sourceSnapshot}
	for _, kv := range xattrs {
		blob.xattrs[kv.Key] = kv.Value
	}

	vol := &Volume{
		UUID:                id,
		Name:                name,
		Blob:                blob,
		SnapshotCloneParent: sourceSnapshot.uuid,
	}
	m.volumes[id] = vol
	klog.V(4).Infof("blobstore: created clone %s (%s) from snapshot blob %p", name, id, sourceSnapshot)
	return vol, nil
}

func (m *MemStore) DestroyBlob(_ context.Context, blob *Blob) error {
	defer m.enterReactor()()
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.volumes, blob.uuid)
	return nil
}

func (m *MemStore) ResetUsedClustersCache(_ context.Context, blob *Blob) {
	defer m.enterReactor()()
	klog.V(4).Infof("blobstore: used-clusters cache reset for blob %s", blob.uuid)
}

func (m *MemStore) FirstParentBlob(vol *Volume) *ParentIter {
	defer m.enterReactor()()
	return &ParentIter{current: vol.Blob}
}
