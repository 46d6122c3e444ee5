package transport

import "github.com/andr35/DS2-Project/internal/detect"

// RegistrationArgs announces a node to the Tracker, carrying the address
// other nodes and the Tracker should dial to reach it.
type RegistrationArgs struct {
	Node detect.NodeID
	Addr string
}

// CrashReportArgs is a node's suspicion report: Reporter observed Peer as
// failed. Duplicate or stale reports are tolerated by the Tracker
// (spec.md §4.4).
type CrashReportArgs struct {
	Peer     detect.NodeID
	Reporter detect.NodeID
}

// CrashArgs is the informational self-crash notification a node sends
// when it executes its own SimulateCrashAt timer (spec.md §4.1).
type CrashArgs struct {
	Node detect.NodeID
}
