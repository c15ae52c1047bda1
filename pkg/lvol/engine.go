// Package lvol implements the snapshot/clone engine: creation, listing,
// destruction, pending-discarded garbage collection, and usage-cache
// invalidation across the snapshot/clone ancestor chain. It is the thing
// everything else in this module exists to support.
package lvol

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/openebs/lvs-core/pkg/blobstore"
	"github.com/openebs/lvs-core/pkg/events"
	"github.com/openebs/lvs-core/pkg/runtime"
	"github.com/openebs/lvs-core/pkg/snapshot"
)

// ErrConfig wraps snapshot.ErrConfig at the engine boundary, returned when
// a caller-supplied source volume doesn't match its own parameter set.
var ErrConfig = snapshot.ErrConfig

// Engine bundles the blobstore façade, the runtime bridge every mutating
// call is funneled through, and the event bus every lifecycle transition
// is published to.
type Engine struct {
	facade blobstore.Facade
	bridge *runtime.Bridge
	events *events.Bus
}

// New returns an Engine backed by facade, running mutations on bridge and
// publishing lifecycle events to bus.
func New(facade blobstore.Facade, bridge *runtime.Bridge, bus *events.Bus) *Engine {
	return &Engine{facade: facade, bridge: bridge, events: bus}
}

// Events returns the engine's event bus, for callers that want to
// subscribe to lifecycle notifications.
func (e *Engine) Events() *events.Bus { return e.events }

func (e *Engine) getXattr(ctx context.Context, blob *blobstore.Blob, key string) (string, bool) {
	val, err := e.facade.GetXattr(ctx, blob, key)
	if err != nil {
		if !errors.Is(err, blobstore.ErrXattrNotFound) {
			klog.Warningf("lvol: get_xattr %s failed: %v", key, err)
		}
		return "", false
	}
	return val, true
}

// isSnapshotClone reports whether vol is a clone, and if so returns its
// source snapshot volume.
func (e *Engine) isSnapshotClone(ctx context.Context, vol *blobstore.Volume) (*blobstore.Volume, bool) {
	if vol.SnapshotCloneParent == "" {
		return nil, false
	}
	src, err := e.facade.LookupByUUID(ctx, vol.SnapshotCloneParent)
	if err != nil {
		return nil, false
	}
	return src, true
}

// devices returns every registered lvol device, the Go analogue of
// iterating the bdev list filtered to the lvol driver.
func (e *Engine) devices(ctx context.Context) []*blobstore.Volume {
	devs, err := e.facade.EnumerateLvolDevices(ctx)
	if err != nil {
		klog.Warningf("lvol: enumerate devices failed: %v", err)
		return nil
	}
	return devs
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
