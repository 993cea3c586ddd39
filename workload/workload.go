// Package workload generates synthetic memory access traces.
package workload

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/trace"
)

// Sequential touches count consecutive elements of size bytes from base.
func Sequential(base uint64, count int, size uint32, kind trace.Kind) []trace.Record {
	return Strided(base, uint64(size), count, size, kind)
}

// Strided touches count addresses stride bytes apart.
func Strided(base, stride uint64, count int, size uint32, kind trace.Kind) []trace.Record {
	records := make([]trace.Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, trace.Record{
			Kind:    kind,
			Address: base + uint64(i)*stride,
			Size:    size,
		})
	}
	return records
}

// Random draws count addresses uniformly from [base, base+span) with a mix of
// loads, stores and modifies. The same seed gives the same trace.
func Random(seed int64, base, span uint64, count int) []trace.Record {
	r := rand.New(rand.NewSource(seed))
	kinds := []trace.Kind{trace.Load, trace.Load, trace.Store, trace.Modify}

	records := make([]trace.Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, trace.Record{
			Kind:    kinds[r.Intn(len(kinds))],
			Address: base + uint64(r.Int63n(int64(span))),
			Size:    1 << r.Intn(4),
		})
	}
	return records
}

// Conflict cycles rounds times through tags distinct blocks that all map to
// the same set. With tags greater than the associativity every access of an
// LRU cache misses once the set is warm.
func Conflict(config cache.Config, set uint64, tags, rounds int) []trace.Record {
	records := make([]trace.Record, 0, tags*rounds)
	for round := 0; round < rounds; round++ {
		for tag := 0; tag < tags; tag++ {
			addr := config.Compose(cache.DecodedAddress{
				Tag:      uint64(tag),
				SetIndex: set,
			})
			records = append(records, trace.Record{
				Kind:    trace.Load,
				Address: addr,
				Size:    1,
			})
		}
	}
	return records
}

// Pattern names a generator for Generate.
type Pattern string

// Patterns understood by Generate.
const (
	PatternSequential Pattern = "sequential"
	PatternStrided    Pattern = "strided"
	PatternRandom     Pattern = "random"
)

// Spec describes a synthetic trace.
type Spec struct {
	Pattern Pattern
	Base    uint64
	Stride  uint64
	Span    uint64
	Count   int
	Size    uint32
	Seed    int64
	Kind    trace.Kind
}

// Generate builds the trace described by spec.
func Generate(spec Spec) ([]trace.Record, error) {
	if spec.Count < 0 {
		return nil, fmt.Errorf("count must be >= 0, got %d", spec.Count)
	}

	switch spec.Pattern {
	case PatternSequential:
		return Sequential(spec.Base, spec.Count, spec.Size, spec.Kind), nil
	case PatternStrided:
		return Strided(spec.Base, spec.Stride, spec.Count, spec.Size, spec.Kind), nil
	case PatternRandom:
		if spec.Span == 0 || spec.Span > math.MaxInt64 {
			return nil, fmt.Errorf("random pattern needs a span in (0, 2^63), got %d", spec.Span)
		}
		return Random(spec.Seed, spec.Base, spec.Span, spec.Count), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", spec.Pattern)
	}
}

// Slice replays a fixed list of records.
type Slice struct {
	records []trace.Record
	next    int
}

// NewSlice creates a source over records.
func NewSlice(records []trace.Record) *Slice {
	return &Slice{records: records}
}

// Next returns the next record, or io.EOF after the last one.
func (s *Slice) Next() (trace.Record, error) {
	if s.next >= len(s.records) {
		return trace.Record{}, io.EOF
	}

	rec := s.records[s.next]
	s.next++

	return rec, nil
}
