package provider

// SeenSet tracks forwarded message ids for one provider session so
// overlapping poll windows never deliver a message twice. Capacity is
// bounded: once full, the oldest id is evicted FIFO. Overlap between
// consecutive polls spans at most a few dozen messages, so a few
// thousand slots preserve idempotent delivery on arbitrarily long
// broadcasts.
type SeenSet struct {
	cap   int
	ids   map[string]struct{}
	order []string
	head  int
}

const DefaultSeenCapacity = 4096

// NewSeenSet creates a set bounded at capacity ids. Non-positive
// capacity falls back to DefaultSeenCapacity.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenSet{
		cap: capacity,
		ids: make(map[string]struct{}, capacity),
	}
}

// Observe records id and reports whether it was already present.
func (s *SeenSet) Observe(id string) bool {
	if _, ok := s.ids[id]; ok {
		return true
	}
	if len(s.order) < s.cap {
		s.order = append(s.order, id)
	} else {
		delete(s.ids, s.order[s.head])
		s.order[s.head] = id
		s.head = (s.head + 1) % s.cap
	}
	s.ids[id] = struct{}{}
	return false
}

// Len returns the number of tracked ids.
func (s *SeenSet) Len() int { return len(s.ids) }

// Reset drops all tracked ids.
func (s *SeenSet) Reset() {
	s.ids = make(map[string]struct{}, s.cap)
	s.order = s.order[:0]
	s.head = 0
}
