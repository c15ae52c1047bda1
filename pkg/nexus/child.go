package nexus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Sentinel child-lifecycle errors. Each corresponds to one of the
// preconditions a state transition enforces.
var (
	ErrChildFaulted      = errors.New("nexus: child is faulted, it cannot be reopened")
	ErrChildTooSmall     = errors.New("nexus: child is smaller than parent")
	ErrChildInaccessible = errors.New("nexus: child is inaccessible")
	ErrChildInvalid      = errors.New("nexus: invalid state of child")
	ErrOpenChild         = errors.New("nexus: failed to open child")
	ErrChildNotClosed    = errors.New("nexus: child is not closed")
)

// OpenFunc attempts to open the child's backing device and reports
// failure the way a real bdev-open call would. The default (nil) always
// succeeds; tests and callers with a real backend inject their own.
type OpenFunc func() error

// RebuildJob is the read-only view of a rebuild job the registry exposes.
type RebuildJob struct {
	// Nexus is the name of the nexus running the rebuild.
	Nexus string
	// Progress is the rebuild's completion percentage, 0..100.
	Progress int
}

// RebuildRegistry is the engine's read-only view of the process-wide
// rebuild job table.
type RebuildRegistry interface {
	// Lookup returns the rebuild job for childName, if one exists.
	Lookup(childName string) (RebuildJob, bool)
}

// StatusStore persists the child-status table. Implementations are
// expected to make Save durable; a Save failure is logged by the caller
// and never propagated as a transition error.
type StatusStore interface {
	Save(statuses []ChildStatus) error
}

// ChildStatus is one row of the persisted child-status table.
type ChildStatus struct {
	Parent string
	Name   string
	State  State
	Reason Reason
}

// IoErrorRecord is one entry in a child's error ring, recording a failed
// read or write.
type IoErrorRecord struct {
	Op   string
	Err  error
	When time.Time
}

// errorRingCapacity bounds how many IoErrorRecords a child retains; the
// oldest is evicted once full.
const errorRingCapacity = 32

// Child is a single nexus child replica's lifecycle state machine.
type Child struct {
	mu sync.Mutex

	parent    string
	name      string
	driver    string
	sizeBytes uint64

	state  State
	reason Reason

	hasDescriptor bool
	errRingOn     bool
	errRing       []IoErrorRecord

	openFn   OpenFunc
	registry RebuildRegistry
	statuses StatusStore

	// siblings is the full child-status table as of the last transition,
	// supplied by whoever owns the nexus so Save can serialize every
	// child, not just this one. Nil disables persistence.
	siblings func() []ChildStatus
}

// Config configures a new Child at construction.
type Config struct {
	Driver          string
	SizeBytes       uint64
	OpenFunc        OpenFunc
	Registry        RebuildRegistry
	Statuses        StatusStore
	Siblings        func() []ChildStatus
	ErrStoreEnabled bool
}

// New returns a Child in the Init state, identified by name and owned by
// parent (the nexus name).
func New(parent, name string, cfg Config) *Child {
	return &Child{
		parent:    parent,
		name:      name,
		driver:    cfg.Driver,
		sizeBytes: cfg.SizeBytes,
		state:     Init,
		reason:    Unknown,
		errRingOn: cfg.ErrStoreEnabled,
		openFn:    cfg.OpenFunc,
		registry:  cfg.Registry,
		statuses:  cfg.Statuses,
		siblings:  cfg.Siblings,
	}
}

func (c *Child) setState(state State, reason Reason) {
	klog.V(4).Infof("%s: child %s: state change from %s to %s", c.parent, c.name, StateAndReason(c.state, c.reason), StateAndReason(state, reason))
	c.state = state
	c.reason = reason
}

// State returns the child's current state and, when Faulted, the reason.
func (c *Child) State() (State, Reason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reason
}

// Open opens the child for read/write, claiming its backing device. It
// fails if the child is faulted, or if the backing device is smaller than
// parentSize bytes, transitioning to ConfigInvalid in that case.
func (c *Child) Open(parentSize uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Faulted {
		klog.Errorf("%s: cannot open child %s, reason %s", c.parent, c.name, c.reason)
		return "", ErrChildFaulted
	}

	if parentSize > c.sizeBytes {
		klog.Errorf("%s: child %s too small, parent size %d child size %d", c.parent, c.name, parentSize, c.sizeBytes)
		c.setState(ConfigInvalid, Unknown)
		return "", fmt.Errorf("%w: child_size=%d parent_size=%d", ErrChildTooSmall, c.sizeBytes, parentSize)
	}

	if c.openFn != nil {
		if err := c.openFn(); err != nil {
			c.setState(Faulted, CantOpen)
			return "", fmt.Errorf("%w: %v", ErrOpenChild, err)
		}
	}

	c.hasDescriptor = true
	if c.errRingOn {
		c.errRing = make([]IoErrorRecord, 0, errorRingCapacity)
	}
	c.setState(Open, Unknown)
	klog.V(4).Infof("%s: child %s opened successfully", c.parent, c.name)
	return c.name, nil
}

// Fault takes the child out of service for reason. An OutOfSync fault
// leaves the descriptor in place, since the child is about to be
// rebuilt and the nexus still needs to address it; every other reason
// closes the descriptor first.
func (c *Child) Fault(reason Reason) {
	c.mu.Lock()
	if reason != OutOfSync {
		c.closeLocked()
	}
	c.setState(Faulted, reason)
	c.mu.Unlock()

	c.save()
}

// Offline closes the child and marks the transition for persistence.
func (c *Child) Offline() {
	c.mu.Lock()
	c.closeLocked()
	c.setState(Closed, Unknown)
	c.mu.Unlock()

	c.save()
}

// Online reopens a previously offlined child and immediately marks it
// Faulted(OutOfSync): an onlined child must be rebuilt before it can be
// trusted, regardless of whether the reopen itself succeeded.
func (c *Child) Online(parentSize uint64) (string, error) {
	name, err := c.Open(parentSize) // Open takes and releases its own lock.

	c.mu.Lock()
	c.setState(Faulted, OutOfSync)
	c.mu.Unlock()

	c.save()
	return name, err
}

// Close closes the child's descriptor without destroying its backing
// device, and persists the transition.
func (c *Child) Close() State {
	c.mu.Lock()
	c.closeLocked()
	c.setState(Closed, Unknown)
	c.mu.Unlock()

	c.save()
	return Closed
}

func (c *Child) closeLocked() {
	klog.V(4).Infof("%s: closing child %s", c.parent, c.name)
	c.hasDescriptor = false
	c.errRing = nil
}

// save persists the full sibling child-status table. Persistence failure
// is logged, never propagated: it must never block a state transition
// that has already taken effect in memory. Callers invoke it after
// releasing c.mu, since the siblings func reads this child's State.
func (c *Child) save() {
	if c.statuses == nil || c.siblings == nil {
		return
	}
	if err := c.statuses.Save(c.siblings()); err != nil {
		klog.Errorf("nexus: failed to save child status information: %v", err)
	}
}

// IsRebuilding reports whether a rebuild job exists for this child in the
// rebuild registry and the child is currently Faulted(OutOfSync).
func (c *Child) IsRebuilding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry == nil {
		return false
	}
	job, ok := c.registry.Lookup(c.name)
	if !ok {
		return false
	}
	if job.Nexus != c.parent {
		klog.Warningf("nexus: rebuild job for child %s belongs to nexus %s, not %s", c.name, job.Nexus, c.parent)
	}
	return c.state == Faulted && c.reason == OutOfSync
}

// GetRebuildProgress returns the rebuild job's progress percentage
// (0..100), or -1 if no rebuild job exists for this child.
func (c *Child) GetRebuildProgress() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry == nil {
		return -1
	}
	job, ok := c.registry.Lookup(c.name)
	if !ok {
		return -1
	}
	return job.Progress
}

// IsAccessible reports whether the child may currently serve reads and
// writes: Open, or Faulted(OutOfSync) (a newly-added or not-yet-rebuilt
// child still accepts I/O for label/metadata writes and rebuild traffic).
func (c *Child) IsAccessible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAccessibleLocked()
}

func (c *Child) isAccessibleLocked() bool {
	return c.state == Open || (c.state == Faulted && c.reason == OutOfSync)
}

// Destroy releases the child's backing device. Permitted only from
// Closed.
func (c *Child) Destroy(destroyFn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Closed {
		return ErrChildNotClosed
	}
	if destroyFn == nil {
		return nil
	}
	return destroyFn()
}

// RecordIoError appends an I/O failure to the child's error ring, if
// enabled, evicting the oldest entry once full. Recording an error never
// faults the child on its own — that decision belongs to the caller.
func (c *Child) RecordIoError(op string, ioErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.errRingOn {
		return
	}
	if len(c.errRing) == errorRingCapacity {
		c.errRing = c.errRing[1:]
	}
	c.errRing = append(c.errRing, IoErrorRecord{Op: op, Err: ioErr, When: time.Now()})
}

// IoErrors returns a copy of the child's current error ring.
func (c *Child) IoErrors() []IoErrorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]IoErrorRecord, len(c.errRing))
	copy(out, c.errRing)
	return out
}

// IsLocal reports whether the child's backing device is local to the
// nexus, i.e. not exported over nvme or iscsi.
func (c *Child) IsLocal() bool {
	return c.driver != "nvme" && c.driver != "iscsi"
}

// Name returns the child's identifying name (the URI used to create it).
func (c *Child) Name() string { return c.name }

// Parent returns the name of the nexus this child belongs to.
func (c *Child) Parent() string { return c.parent }
