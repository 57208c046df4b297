package domain

import (
	"net"
	"time"
)

// PendingQuery is an upstream query awaiting its reply. It lives in the
// upstream client's correlation table from the first send until a matching
// reply arrives, the deadline passes, or the caller gives up.
type PendingQuery struct {
	ID         uint16
	Client     net.Addr
	Question   Question
	CreatedAt  time.Time
	Deadline   time.Time
	Retransmit bool
}

// Expired reports whether the deadline has passed at now.
func (p PendingQuery) Expired(now time.Time) bool {
	return !now.Before(p.Deadline)
}
