package nexus

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenSmallerThanParentGoesConfigInvalid(t *testing.T) {
	c := New("nexus0", "child0", Config{SizeBytes: 1 << 30}) // 1 GiB

	_, err := c.Open(2 << 30) // parent wants 2 GiB
	if !errors.Is(err, ErrChildTooSmall) {
		t.Fatalf("Open() error = %v, want ErrChildTooSmall", err)
	}

	state, _ := c.State()
	if state != ConfigInvalid {
		t.Fatalf("state = %s, want ConfigInvalid", state)
	}
	if c.hasDescriptor {
		t.Fatal("expected no descriptor to be acquired")
	}
}

func TestFaultOutOfSyncKeepsAccessibility(t *testing.T) {
	c := New("nexus0", "child0", Config{SizeBytes: 1 << 30})

	if _, err := c.Open(1 << 30); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	c.Fault(OutOfSync)
	if !c.IsAccessible() {
		t.Fatal("expected child to remain accessible after OutOfSync fault")
	}
	state, reason := c.State()
	if state != Faulted || reason != OutOfSync {
		t.Fatalf("state=%s reason=%s, want Faulted(OutOfSync)", state, reason)
	}
	if !c.hasDescriptor {
		t.Fatal("expected descriptor to remain present for an OutOfSync fault")
	}

	c.Fault(IoError)
	if c.IsAccessible() {
		t.Fatal("expected child to be inaccessible after IoError fault")
	}
	state, reason = c.State()
	if state != Faulted || reason != IoError {
		t.Fatalf("state=%s reason=%s, want Faulted(IoError)", state, reason)
	}
	if c.hasDescriptor {
		t.Fatal("expected descriptor to be released on IoError fault")
	}
}

func TestFaultedChildCannotReopen(t *testing.T) {
	c := New("nexus0", "child0", Config{SizeBytes: 1 << 30})
	c.Fault(Rpc)

	if _, err := c.Open(1 << 20); !errors.Is(err, ErrChildFaulted) {
		t.Fatalf("Open() error = %v, want ErrChildFaulted", err)
	}
}

func TestDestroyRequiresClosed(t *testing.T) {
	c := New("nexus0", "child0", Config{SizeBytes: 1 << 30})
	if _, err := c.Open(1 << 20); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := c.Destroy(nil); !errors.Is(err, ErrChildNotClosed) {
		t.Fatalf("Destroy() error = %v, want ErrChildNotClosed", err)
	}

	c.Close()
	destroyed := false
	if err := c.Destroy(func() error { destroyed = true; return nil }); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if !destroyed {
		t.Fatal("expected destroyFn to be invoked")
	}
}

func TestIsRebuilding(t *testing.T) {
	registry := NewMemRebuildRegistry()
	c := New("nexus0", "child0", Config{SizeBytes: 1 << 30, Registry: registry})

	if c.IsRebuilding() {
		t.Fatal("expected not rebuilding before any job or fault")
	}

	c.Fault(OutOfSync)
	if c.IsRebuilding() {
		t.Fatal("expected not rebuilding without a registered job")
	}

	registry.Start("nexus0", "child0")
	if !c.IsRebuilding() {
		t.Fatal("expected rebuilding once a job exists and state is Faulted(OutOfSync)")
	}

	if got := c.GetRebuildProgress(); got != 0 {
		t.Fatalf("GetRebuildProgress() = %d, want 0", got)
	}
	registry.SetProgress("child0", 42)
	if got := c.GetRebuildProgress(); got != 42 {
		t.Fatalf("GetRebuildProgress() = %d, want 42", got)
	}

	registry.Finish("child0")
	if got := c.GetRebuildProgress(); got != -1 {
		t.Fatalf("GetRebuildProgress() = %d, want -1 after job finishes", got)
	}
}

func TestStatusPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "child-status.yaml")
	store := NewFileStatusStore(path)

	var self *Child
	self = New("nexus0", "child0", Config{
		SizeBytes: 1 << 30,
		Statuses:  store,
		Siblings: func() []ChildStatus {
			state, reason := self.State()
			return []ChildStatus{{Parent: "nexus0", Name: "child0", State: state, Reason: reason}}
		},
	})

	self.Fault(IoError)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Load() returned %d rows, want 1", len(got))
	}
	if got[0].State != Faulted || got[0].Reason != IoError {
		t.Fatalf("Load() = %+v, want Faulted(IoError)", got[0])
	}
}

func TestIsLocal(t *testing.T) {
	cases := []struct {
		driver string
		want   bool
	}{
		{"lvol", true},
		{"nvme", false},
		{"iscsi", false},
	}
	for _, tt := range cases {
		c := New("nexus0", "child-"+tt.driver, Config{Driver: tt.driver, SizeBytes: 1})
		if got := c.IsLocal(); got != tt.want {
			t.Errorf("IsLocal() with driver %q = %v, want %v", tt.driver, got, tt.want)
		}
	}
}
