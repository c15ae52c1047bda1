// Package nexus implements the child-device lifecycle state machine that
// sits above a volume (or snapshot, or clone) once it has been attached to
// a nexus: the read/write front presented to a client while the nexus
// coordinates one or more underlying children, rebuilds them when they
// fall behind, and retires them when they fail.
package nexus

import "fmt"

// State is a nexus child's lifecycle state.
type State int

const (
	// Init is the state a child starts in before Open has been called.
	Init State = iota
	// ConfigInvalid means the child's backing device doesn't meet the
	// nexus's requirements (currently: it's smaller than the nexus).
	ConfigInvalid
	// Open means the child is attached and serving I/O.
	Open
	// Closed means the child has been cleanly detached.
	Closed
	// Faulted means the child has been taken out of service; Reason says
	// why.
	Faulted
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case ConfigInvalid:
		return "ConfigInvalid"
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	case Faulted:
		return "Faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reason explains why a child was faulted.
type Reason int

const (
	Unknown Reason = iota
	// OutOfSync means the child has fallen behind the nexus's other
	// children and needs a rebuild; it stays accessible for I/O in the
	// meantime (see Child.IsAccessible).
	OutOfSync
	// CantOpen means the backing device could not be opened at all.
	CantOpen
	// RebuildFailed means an attempted rebuild did not complete
	// successfully.
	RebuildFailed
	// IoError means the child was faulted in response to an I/O failure.
	IoError
	// Rpc means the child was faulted by an explicit administrative
	// request.
	Rpc
)

func (r Reason) String() string {
	switch r {
	case Unknown:
		return "Unknown"
	case OutOfSync:
		return "OutOfSync"
	case CantOpen:
		return "CantOpen"
	case RebuildFailed:
		return "RebuildFailed"
	case IoError:
		return "IoError"
	case Rpc:
		return "Rpc"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// StateAndReason renders a Faulted state together with its reason, the way
// a status string or log line should show it; other states ignore reason.
func StateAndReason(s State, reason Reason) string {
	if s == Faulted {
		return fmt.Sprintf("Faulted(%s)", reason)
	}
	return s.String()
}
