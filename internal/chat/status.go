// internal/chat/status.go
// Delivery status lattice: SENT < DELIVERED < SEEN, no regression.

package chat

// Status is the delivery state of a message.
type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusSeen      Status = "SEEN"
)

// Rank orders statuses in the lattice. Unknown values rank below SENT so
// a bad status from the wire can never downgrade a known one.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s is at or above other in the lattice.
func (s Status) AtLeast(other Status) bool {
	return s.Rank() >= other.Rank()
}

// Advance returns the higher of cur and next. It is the only way status
// moves: a no-op unless next is strictly greater than cur.
func Advance(cur, next Status) Status {
	if next.Rank() > cur.Rank() {
		return next
	}
	return cur
}

// LatestSeenOwn returns the id of the most recent message in msgs that was
// authored by localUserID and has status SEEN. Only that message renders the
// human-readable seen marker; earlier SEEN messages show the generic glyph.
// msgs must be in ascending creation order. Returns "" when no own message
// has been seen.
func LatestSeenOwn(msgs []*Message, localUserID string) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.SenderID == localUserID && m.Status == StatusSeen {
			return m.ID
		}
	}
	return ""
}
