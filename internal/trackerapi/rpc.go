package trackerapi

import "github.com/andr35/DS2-Project/internal/transport"

// TrackerReceiver is the RPC-visible surface of the Tracker actor,
// registered under transport.TrackerServiceName. Every method simply
// hands the decoded message to the Tracker; all sequencing logic lives
// in Tracker, never here.
type TrackerReceiver struct {
	tracker *Tracker
}

// NewTrackerReceiver wraps tracker for RPC registration.
func NewTrackerReceiver(tracker *Tracker) *TrackerReceiver {
	return &TrackerReceiver{tracker: tracker}
}

func (r *TrackerReceiver) Registration(args *transport.RegistrationArgs, _ *transport.Ack) error {
	r.tracker.Register(args.Node, args.Addr)
	return nil
}

func (r *TrackerReceiver) CrashReport(args *transport.CrashReportArgs, _ *transport.Ack) error {
	r.tracker.CrashReport(args.Peer, args.Reporter)
	return nil
}

func (r *TrackerReceiver) Crash(args *transport.CrashArgs, _ *transport.Ack) error {
	r.tracker.Crash(args.Node)
	return nil
}
