package cache

// set is a window of Associativity lines into the cache table. Its capacity
// is clipped to its own lines, so no way index can reach a neighbouring set.
type set struct {
	lines []Line
}

func (s set) line(way int) *Line {
	return &s.lines[way]
}

func (s set) fill(way int, tag, seq uint64) {
	line := s.line(way)
	line.Tag = tag
	line.Valid = true
	line.LastUsed = seq
}

// lru returns the way with the smallest LastUsed. Ties go to the lowest way.
func (s set) lru() int {
	victim := 0
	oldest := s.lines[0].LastUsed

	for way := 1; way < len(s.lines); way++ {
		if s.lines[way].LastUsed < oldest {
			oldest = s.lines[way].LastUsed
			victim = way
		}
	}

	return victim
}
