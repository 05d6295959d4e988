package server

import "log/slog"

// Ledger tracks which connections are currently live. It holds the member
// set keyed by connection id; the user count is always the size of that set.
//
// The ledger is not safe for concurrent use on its own. Only the hub touches
// it, always from inside the hub's exclusive region, so that increment,
// count, and broadcast are observed as one atomic step.
type Ledger struct {
	members map[string]struct{}
}

// NewLedger creates an empty presence ledger.
func NewLedger() *Ledger {
	return &Ledger{members: make(map[string]struct{})}
}

// Increment adds a connection id to the member set and returns the new count.
func (l *Ledger) Increment(connID string) int {
	l.members[connID] = struct{}{}
	return len(l.members)
}

// Decrement removes a connection id from the member set and returns the new
// count. Decrementing an id that is not a member indicates a
// double-deregistration; it is logged loudly and the count is left
// untouched rather than allowed to go negative.
func (l *Ledger) Decrement(connID string) int {
	if _, ok := l.members[connID]; !ok {
		slog.Error("presence invariant violation: decrement of unknown connection", "conn_id", connID)
		return len(l.members)
	}
	delete(l.members, connID)
	return len(l.members)
}

// Count returns the number of live connections.
func (l *Ledger) Count() int {
	return len(l.members)
}
