package position

// processedSet remembers the most recent settled contract ids, evicting the
// oldest once full.
type processedSet struct {
	cap   int
	seen  map[int64]struct{}
	order []int64
}

func newProcessedSet(capacity int) *processedSet {
	return &processedSet{cap: capacity, seen: make(map[int64]struct{}, capacity)}
}

func (s *processedSet) has(id int64) bool {
	_, ok := s.seen[id]
	return ok
}

// add returns false when id was already present.
func (s *processedSet) add(id int64) bool {
	if s.has(id) {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return true
}

func (s *processedSet) len() int { return len(s.order) }
