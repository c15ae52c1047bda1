package nexus

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// childStatusYAML mirrors ChildStatus but with yaml tags; State and Reason
// persist as their string forms so the file stays readable and stable
// across any future reordering of the underlying iota constants.
type childStatusYAML struct {
	Parent string `yaml:"parent"`
	Name   string `yaml:"name"`
	State  string `yaml:"state"`
	Reason string `yaml:"reason,omitempty"`
}

// FileStatusStore persists the child-status table to a YAML file on disk.
// The format is opaque beyond round-trip fidelity, matching what nexus
// assembly expects to read back on the next start.
type FileStatusStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStatusStore returns a StatusStore backed by the file at path.
func NewFileStatusStore(path string) *FileStatusStore {
	return &FileStatusStore{path: path}
}

// Save serializes statuses to the store's file, overwriting its previous
// contents.
func (s *FileStatusStore) Save(statuses []ChildStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]childStatusYAML, 0, len(statuses))
	for _, st := range statuses {
		row := childStatusYAML{Parent: st.Parent, Name: st.Name, State: st.State.String()}
		if st.State == Faulted {
			row.Reason = st.Reason.String()
		}
		rows = append(rows, row)
	}

	data, err := yaml.Marshal(rows)
	if err != nil {
		return fmt.Errorf("nexus: marshal child status: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("nexus: write child status file %s: %w", s.path, err)
	}
	return nil
}

// Load reads back the child-status table previously written by Save.
func (s *FileStatusStore) Load() ([]ChildStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nexus: read child status file %s: %w", s.path, err)
	}

	var rows []childStatusYAML
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("nexus: unmarshal child status: %w", err)
	}

	out := make([]ChildStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, ChildStatus{
			Parent: row.Parent,
			Name:   row.Name,
			State:  parseState(row.State),
			Reason: parseReason(row.Reason),
		})
	}
	return out, nil
}

func parseState(s string) State {
	switch s {
	case "Init":
		return Init
	case "ConfigInvalid":
		return ConfigInvalid
	case "Open":
		return Open
	case "Closed":
		return Closed
	case "Faulted":
		return Faulted
	default:
		return Init
	}
}

func parseReason(s string) Reason {
	switch s {
	case "OutOfSync":
		return OutOfSync
	case "CantOpen":
		return CantOpen
	case "RebuildFailed":
		return RebuildFailed
	case "IoError":
		return IoError
	case "Rpc":
		return Rpc
	default:
		return Unknown
	}
}

// MemRebuildRegistry is an in-memory reference RebuildRegistry, used by
// tests and the cmd/lvsctl debug CLI in place of a real rebuild subsystem.
type MemRebuildRegistry struct {
	mu   sync.Mutex
	jobs map[string]RebuildJob
}

// NewMemRebuildRegistry returns an empty registry.
func NewMemRebuildRegistry() *MemRebuildRegistry {
	return &MemRebuildRegistry{jobs: make(map[string]RebuildJob)}
}

// Start registers a rebuild job for childName on nexus.
func (r *MemRebuildRegistry) Start(nexus, childName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[childName] = RebuildJob{Nexus: nexus, Progress: 0}
}

// SetProgress updates the progress of childName's rebuild job, if any.
func (r *MemRebuildRegistry) SetProgress(childName string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[childName]
	if !ok {
		return
	}
	job.Progress = progress
	r.jobs[childName] = job
}

// Finish removes childName's rebuild job.
func (r *MemRebuildRegistry) Finish(childName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, childName)
}

// Lookup implements RebuildRegistry.
func (r *MemRebuildRegistry) Lookup(childName string) (RebuildJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[childName]
	return job, ok
}
