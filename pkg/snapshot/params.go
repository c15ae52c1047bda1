// Package snapshot holds the value objects exchanged between a caller and
// the snapshot/clone engine: SnapshotParams and CloneParams, and their
// serialization to and from the ordered xattr arrays the blobstore façade
// expects. Nothing in this package talks to a blobstore directly.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/openebs/lvs-core/pkg/blobstore"
)

// ErrConfig is returned when a required field is empty. The backend is
// never called in this case.
var ErrConfig = errors.New("snapshot: invalid configuration")

// configError reports which field was empty, matching the field-specific
// message spec.md requires.
func configError(field string) error {
	return fmt.Errorf("%w: %s must not be empty", ErrConfig, field)
}

// SnapshotXattr identifies one of the six xattrs persisted on a snapshot
// blob. The iota order here IS the on-disk descriptor order; reordering
// this block changes the wire layout.
type SnapshotXattr int

const (
	TxID SnapshotXattr = iota
	EntityID
	ParentID
	SnapshotUUID
	SnapshotCreateTime
	DiscardedSnapshot
)

// snapshotXattrKeys holds the exact, case-sensitive on-disk key for each
// SnapshotXattr, indexed in enumeration order.
var snapshotXattrKeys = [...]string{
	TxID:               "org.openebs.mayastor.snapshot.tx_id",
	EntityID:           "org.openebs.mayastor.snapshot.entity_id",
	ParentID:           "org.openebs.mayastor.snapshot.parent_id",
	SnapshotUUID:       "org.openebs.mayastor.snapshot.uuid",
	SnapshotCreateTime: "org.openebs.mayastor.snapshot.create_time",
	DiscardedSnapshot:  "org.openebs.mayastor.snapshot.discarded",
}

// Key returns the on-disk xattr name for x.
func (x SnapshotXattr) Key() string { return snapshotXattrKeys[x] }

// AllSnapshotXattrs returns the six snapshot xattrs in fixed enumeration
// order, the order the descriptor array must be built in and the order a
// snapshot is read back in.
func AllSnapshotXattrs() []SnapshotXattr {
	return []SnapshotXattr{TxID, EntityID, ParentID, SnapshotUUID, SnapshotCreateTime, DiscardedSnapshot}
}

// CloneXattr identifies one of the three xattrs persisted on a clone blob,
// again in fixed enumeration order.
type CloneXattr int

const (
	SourceUUID CloneXattr = iota
	CloneUUID
	CloneCreateTime
)

var cloneXattrKeys = [...]string{
	SourceUUID:      "org.openebs.mayastor.clone.source_uuid",
	CloneUUID:       "org.openebs.mayastor.clone.uuid",
	CloneCreateTime: "org.openebs.mayastor.clone.create_time",
}

// Key returns the on-disk xattr name for x.
func (x CloneXattr) Key() string { return cloneXattrKeys[x] }

// SnapshotParams is the immutable parameter set a caller supplies to create
// a snapshot. All fields except Discarded are mandatory; construction fails
// if any of them is empty.
type SnapshotParams struct {
	EntityID   string
	ParentID   string
	TxnID      string
	Name       string
	UUID       string
	CreateTime string
	Discarded  bool
}

// NewSnapshotParams validates its arguments and stamps CreateTime with the
// current UTC time in RFC-3339 form. An empty entityID, parentID, txnID,
// name, or uuid returns ErrConfig without touching the backend.
func NewSnapshotParams(entityID, parentID, txnID, name, uuid string) (SnapshotParams, error) {
	switch {
	case entityID == "":
		return SnapshotParams{}, configError("entity_id")
	case parentID == "":
		return SnapshotParams{}, configError("parent_id")
	case txnID == "":
		return SnapshotParams{}, configError("txn_id")
	case name == "":
		return SnapshotParams{}, configError("snap_name")
	case uuid == "":
		return SnapshotParams{}, configError("snap_uuid")
	}

	return SnapshotParams{
		EntityID:   entityID,
		ParentID:   parentID,
		TxnID:      txnID,
		Name:       name,
		UUID:       uuid,
		CreateTime: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ToXattrs builds the xattr descriptor array the Facade expects, in the
// fixed SnapshotXattr order, so the wire layout is deterministic regardless
// of struct field order.
func (p SnapshotParams) ToXattrs() []blobstore.XattrKV {
	return []blobstore.XattrKV{
		{Key: TxID.Key(), Value: p.TxnID},
		{Key: EntityID.Key(), Value: p.EntityID},
		{Key: ParentID.Key(), Value: p.ParentID},
		{Key: SnapshotUUID.Key(), Value: p.UUID},
		{Key: SnapshotCreateTime.Key(), Value: p.CreateTime},
		{Key: DiscardedSnapshot.Key(), Value: formatBool(p.Discarded)},
	}
}

// SnapshotParamsFromXattrs reads SnapshotParams back from a key/value
// lookup function such as blobstore.Facade.GetXattr. missing reports
// whether any required xattr was absent, matching a VolumeSnapshotDescriptor's
// valid=false case; the returned SnapshotParams is populated with whatever
// fields were found regardless. Name is not stored as an xattr and is left
// empty.
func SnapshotParamsFromXattrs(get func(key string) (string, bool)) (params SnapshotParams, missing bool) {
	read := func(x SnapshotXattr) string {
		v, ok := get(x.Key())
		if !ok {
			missing = true
		}
		return v
	}

	params.TxnID = read(TxID)
	params.EntityID = read(EntityID)
	params.ParentID = read(ParentID)
	params.UUID = read(SnapshotUUID)
	params.CreateTime = read(SnapshotCreateTime)

	discarded, ok := get(DiscardedSnapshot.Key())
	if !ok {
		missing = true
	}
	params.Discarded = discarded == "true"

	return params, missing
}

// CloneParams is the immutable parameter set supplied to create a clone.
// All fields are mandatory.
type CloneParams struct {
	Name       string
	UUID       string
	SourceUUID string
	CreateTime string
}

// NewCloneParams validates its arguments and stamps CreateTime with the
// current UTC time in RFC-3339 form.
func NewCloneParams(name, uuid, sourceUUID string) (CloneParams, error) {
	switch {
	case name == "":
		return CloneParams{}, configError("clone_name")
	case uuid == "":
		return CloneParams{}, configError("clone_uuid")
	case sourceUUID == "":
		return CloneParams{}, configError("source_uuid")
	}

	return CloneParams{
		Name:       name,
		UUID:       uuid,
		SourceUUID: sourceUUID,
		CreateTime: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ToXattrs builds the xattr descriptor array in fixed CloneXattr order.
func (p CloneParams) ToXattrs() []blobstore.XattrKV {
	return []blobstore.XattrKV{
		{Key: SourceUUID.Key(), Value: p.SourceUUID},
		{Key: CloneUUID.Key(), Value: p.UUID},
		{Key: CloneCreateTime.Key(), Value: p.CreateTime},
	}
}

// CloneParamsFromXattrs reads CloneParams back from a key/value lookup
// function, reporting whether any required xattr was absent. Name is not
// stored as an xattr and is left empty.
func CloneParamsFromXattrs(get func(key string) (string, bool)) (params CloneParams, missing bool) {
	read := func(x CloneXattr) string {
		v, ok := get(x.Key())
		if !ok {
			missing = true
		}
		return v
	}

	params.SourceUUID = read(SourceUUID)
	params.UUID = read(CloneUUID)
	params.CreateTime = read(CloneCreateTime)

	return params, missing
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
