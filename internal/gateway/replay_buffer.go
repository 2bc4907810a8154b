package gateway

// replayEntry is one broadcast envelope and the user it was addressed to.
type replayEntry struct {
	Seq    int64
	UserID int64
	Data   []byte
}

// ReplayBuffer keeps the envelopes of the last cap seqs, slotted by
// seq % cap, so a reconnecting client can be sent what it missed. Seqs must
// be pushed in increasing order. The Hub serialises access under its own
// lock; ReplayBuffer is not safe for concurrent use on its own.
type ReplayBuffer struct {
	slots  []replayEntry
	newest int64
}

// NewReplayBuffer creates a buffer for capacity seqs (500 when <= 0).
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{slots: make([]replayEntry, capacity)}
}

func (rb *ReplayBuffer) slot(seq int64) *replayEntry {
	return &rb.slots[seq%int64(len(rb.slots))]
}

// Push stores a copy of data under seq, evicting whatever held its slot.
func (rb *ReplayBuffer) Push(seq, userID int64, data []byte) {
	if seq <= rb.newest {
		return
	}
	*rb.slot(seq) = replayEntry{Seq: seq, UserID: userID, Data: append([]byte(nil), data...)}
	rb.newest = seq
}

// window is the range of seqs that can still be buffered.
func (rb *ReplayBuffer) window() (lo, hi int64) {
	lo = rb.newest - int64(len(rb.slots)) + 1
	if lo < 1 {
		lo = 1
	}
	return lo, rb.newest
}

// Since returns userID's buffered entries with seq > after, oldest first.
func (rb *ReplayBuffer) Since(after, userID int64) []replayEntry {
	lo, hi := rb.window()
	if after >= lo {
		lo = after + 1
	}
	var out []replayEntry
	for seq := lo; seq <= hi; seq++ {
		if e := rb.slot(seq); e.Seq == seq && e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out
}

// Oldest returns the lowest buffered seq, or 0 when empty.
func (rb *ReplayBuffer) Oldest() int64 {
	lo, hi := rb.window()
	for seq := lo; seq <= hi; seq++ {
		if rb.slot(seq).Seq == seq {
			return seq
		}
	}
	return 0
}

// Len returns the number of buffered entries.
func (rb *ReplayBuffer) Len() int {
	n := 0
	lo, hi := rb.window()
	for seq := lo; seq <= hi; seq++ {
		if rb.slot(seq).Seq == seq {
			n++
		}
	}
	return n
}
