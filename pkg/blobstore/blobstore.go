// Package blobstore is the abstract adapter over the underlying
// copy-on-write blob engine. It exposes exactly the capability surface the
// snapshot/clone engine needs: blob lookup, xattr get/set, the
// snapshot/clone creation primitives, destroy, used-clusters cache
// invalidation, and the parent-chain iterator. Block allocation, blob
// creation of regular (non-snapshot, non-clone) volumes, and the on-disk
// layout behind a Blob are someone else's problem.
package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// Blob is an opaque handle to a unit of copy-on-write storage. Its identity
// is the pointer itself, matching the FFI pointer-identity semantics of the
// engine this is modeled on; nothing outside this package inspects its
// fields.
type Blob struct {
	uuid string

	xattrs map[string]string

	// parent is the next blob back in this blob's ancestor chain. A clone
	// points at its source snapshot. Taking a snapshot rewires the source
	// volume to point at the new snapshot, and the snapshot inherits the
	// source's previous parent. It is nil for a volume that has never been
	// snapshotted or cloned.
	parent *Blob
}

// Volume is a handle to a thin-provisioned blob, carrying exactly the
// attributes the engine needs: identity, size, allocation, and whether it
// is a snapshot or a clone (set by the façade when it creates the blob as
// a snapshot or a clone).
type Volume struct {
	UUID           string
	Name           string
	SizeBytes      uint64
	AllocatedBytes uint64
	Blob           *Blob

	// IsSnapshot is set when the façade creates the blob as a snapshot. It
	// is a stored field and is not recomputed from the blob's xattrs.
	IsSnapshot bool

	// SnapshotCloneParent is the UUID of the volume this one was cloned
	// from, when this volume is itself a clone. Empty otherwise.
	SnapshotCloneParent string
}

// Errno is a POSIX-style negative error code returned by the backend on
// asynchronous operation failure. The sign is always inverted at the
// façade boundary: Errno carries the absolute value.
type Errno int

var errnoNames = map[Errno]string{
	1:  "EPERM",
	2:  "ENOENT",
	5:  "EIO",
	12: "ENOMEM",
	17: "EEXIST",
	28: "ENOSPC",
	22: "EINVAL",
}

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return fmt.Sprintf("%s (errno %d)", name, int(e))
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Sentinel errors returned directly by the façade (as opposed to wrapped
// Errno values coming back from an async completion).
var (
	ErrNotFound      = errors.New("blobstore: volume not found")
	ErrXattrNotFound = errors.New("blobstore: xattr not found")
)

// Result pairs a value with an error. The Facade methods in this package
// return their outcome directly and do not use it; the one-shot completion
// channel is provided by runtime.Bridge.SpawnAwait instead.
type Result[T any] struct {
	Value T
	Err   error
}

// ParentIter walks a blob's back-pointer chain in the backend's native
// order. Call Next until it returns nil.
type ParentIter struct {
	current *Blob
}

// Next advances the iterator and returns the next parent blob, or nil when
// the chain ends.
func (it *ParentIter) Next() *Blob {
	if it.current == nil {
		return nil
	}
	next := it.current.parent
	it.current = next
	return next
}

// Facade is the capability surface the snapshot/clone engine depends on.
// Every method must be invoked from the primary reactor goroutine; the
// reference implementation in this package enforces that with a
// non-reentrant access check rather than true thread affinity, since Go has
// no equivalent of a pinned single-threaded reactor at the language level.
type Facade interface {
	// LookupByUUID is an O(1) lookup in the process-wide device registry.
	LookupByUUID(ctx context.Context, uuid string) (*Volume, error)

	// EnumerateLvolDevices returns a snapshot of the current device set.
	// Iteration order is unspecified but stable within the returned slice.
	EnumerateLvolDevices(ctx context.Context) ([]*Volume, error)

	// GetXattr returns ErrXattrNotFound if the key is absent.
	GetXattr(ctx context.Context, blob *Blob, key string) (string, error)

	// SetXattr persists the value; when sync is true the write is durable
	// before the call returns.
	SetXattr(ctx context.Context, blob *Blob, key, value string, sync bool) error

	// CreateSnapshot fails atomically: on success the new blob contains
	// exactly the provided xattrs. The source blob is
	// quiesced by the backend for the duration of the call.
	CreateSnapshot(ctx context.Context, source *Blob, name string, xattrs []XattrKV) (*Volume, error)

	// CreateClone fails atomically; the new blob is writable.
	CreateClone(ctx context.Context, sourceSnapshot *Blob, name string, xattrs []XattrKV) (*Volume, error)

	// DestroyBlob destroys a blob outright.
	DestroyBlob(ctx context.Context, blob *Blob) error

	// ResetUsedClustersCache invalidates any cached allocation-size
	// estimate for blob. Must be called on every blob whose allocation
	// accounting could be affected by a destroy.
	ResetUsedClustersCache(ctx context.Context, blob *Blob)

	// FirstParentBlob returns an iterator positioned at the start of the
	// parent chain of vol's blob.
	FirstParentBlob(vol *Volume) *ParentIter
}

// XattrKV is a single name/value pair submitted to CreateSnapshot or
// CreateClone. The caller is responsible for keeping the backing strings
// alive until the call returns — in this Go rendition that's automatic via
// the garbage collector, but the type still models the descriptor array the
// backend expects so xattr ordering stays explicit and deterministic.
type XattrKV struct {
	Key   string
	Value string
}
