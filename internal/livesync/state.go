package livesync

// ConnState describes the health of the poll loop. It is advisory for
// display; it never gates reconciliation, so stale data stays visible
// annotated with the current state.
type ConnState int

const (
	Connecting ConnState = iota
	Connected
	Reconnecting
	Disconnected
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// SyncStatus tracks outbound push of the local device's own metrics. It is
// a separate axis from ConnState: a push failure never perturbs the
// connection state and is retried on the next scheduled push.
type SyncStatus int

const (
	SyncIdle SyncStatus = iota
	Syncing
	Synced
	SyncFailed
)

func (s SyncStatus) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case Syncing:
		return "syncing"
	case Synced:
		return "synced"
	case SyncFailed:
		return "failed"
	}
	return "unknown"
}

const DefaultDisconnectThreshold = 3

// connTracker folds fetch outcomes into a ConnState. Not safe for
// concurrent use; the coordinator serializes access.
type connTracker struct {
	state     ConnState
	failures  int
	threshold int
}

func newConnTracker(threshold int) *connTracker {
	if threshold <= 0 {
		threshold = DefaultDisconnectThreshold
	}
	return &connTracker{state: Connecting, threshold: threshold}
}

// attempt records that a fetch is being tried. Disconnected is not a dead
// end: any new attempt moves back to Reconnecting.
func (t *connTracker) attempt() ConnState {
	if t.state == Disconnected {
		t.state = Reconnecting
	}
	return t.state
}

func (t *connTracker) success() ConnState {
	if t.state == Failed {
		return Failed
	}
	t.failures = 0
	t.state = Connected
	return t.state
}

// failure records a fetch error. A permanent error is terminal; transient
// errors degrade Connected to Reconnecting, then to Disconnected once the
// consecutive-failure threshold elapses.
func (t *connTracker) failure(permanent bool) ConnState {
	if t.state == Failed {
		return Failed
	}
	if permanent {
		t.state = Failed
		return t.state
	}

	t.failures++
	if t.state == Connected {
		t.state = Reconnecting
	}
	if t.failures >= t.threshold {
		t.state = Disconnected
	}
	return t.state
}
