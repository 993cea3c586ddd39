// Package sim drives a cache model with a stream of trace records.
//
// The simulator assigns one sequence number per cache access, splits Modify
// records into a load and a store, and reports every record's outcomes to
// registered listeners.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/shadow"
	"github.com/sarchlab/csim/trace"
)

//go:generate mockgen -destination "mock_sim_test.go" -package sim_test -write_package_comment=false github.com/sarchlab/csim/sim Listener

// ErrDivergence is returned when the verifier classifies an access
// differently from the cache under simulation.
var ErrDivergence = errors.New("cache models disagree")

// Source supplies trace records until it returns io.EOF.
type Source interface {
	Next() (trace.Record, error)
}

// Event describes the processing of one trace record.
type Event struct {
	// Seq is the sequence number of the record's first access.
	Seq uint64

	Record  trace.Record
	Address cache.DecodedAddress

	// Outcomes has one entry per cache access: two for Modify, one for
	// Load and Store.
	Outcomes []cache.Outcome

	// Compulsory is set when the record touched its block for the first
	// time.
	Compulsory bool
}

// A Listener is notified after each record is simulated.
type Listener interface {
	OnAccess(event Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(event Event)

// OnAccess calls f(event).
func (f ListenerFunc) OnAccess(event Event) {
	f(event)
}

// Result summarizes a simulation run.
type Result struct {
	Stats cache.Statistics

	// Records is the number of data records processed.
	Records uint64

	// Compulsory is the number of misses on blocks never seen before.
	Compulsory uint64
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithListener registers a listener for access events.
func WithListener(l Listener) Option {
	return func(s *Simulator) {
		s.listeners = append(s.listeners, l)
	}
}

// WithVerifier cross-checks every access against a shadow model.
func WithVerifier(v *shadow.Cache) Option {
	return func(s *Simulator) {
		s.verifier = v
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// Simulator feeds trace records into a cache.
type Simulator struct {
	cache     *cache.Cache
	verifier  *shadow.Cache
	listeners []Listener
	logger    logrus.FieldLogger

	seq        uint64
	records    uint64
	touched    *roaring64.Bitmap
	compulsory uint64
}

// New creates a simulator for c.
func New(c *cache.Cache, opts ...Option) *Simulator {
	quiet := logrus.New()
	quiet.Out = io.Discard

	s := &Simulator{
		cache:   c,
		logger:  quiet,
		touched: roaring64.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Cache returns the simulated cache.
func (s *Simulator) Cache() *cache.Cache {
	return s.cache
}

// Result returns the counters accumulated so far.
func (s *Simulator) Result() Result {
	return Result{
		Stats:      s.cache.Stats(),
		Records:    s.records,
		Compulsory: s.compulsory,
	}
}

// Step simulates one record. Instruction fetches do not access the data
// cache and produce an event without outcomes.
func (s *Simulator) Step(rec trace.Record) (Event, error) {
	event := Event{
		Seq:     s.seq,
		Record:  rec,
		Address: s.cache.Decode(rec.Address),
	}

	n := rec.Accesses()
	if n == 0 {
		return event, nil
	}

	event.Outcomes = make([]cache.Outcome, 0, n)
	for i := 0; i < n; i++ {
		outcome := s.cache.Access(event.Address, s.seq)
		s.seq++

		if err := s.verify(rec, outcome); err != nil {
			return event, err
		}

		event.Outcomes = append(event.Outcomes, outcome)
	}

	s.records++
	if s.touched.CheckedAdd(s.cache.Config().BlockNumber(rec.Address)) {
		event.Compulsory = true
		s.compulsory++
	}

	for _, l := range s.listeners {
		l.OnAccess(event)
	}

	return event, nil
}

func (s *Simulator) verify(rec trace.Record, outcome cache.Outcome) error {
	if s.verifier == nil {
		return nil
	}

	want := s.verifier.Access(rec.Address)
	if want == outcome {
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"seq":     s.seq - 1,
		"record":  rec.String(),
		"model":   outcome.String(),
		"shadow":  want.String(),
		"address": fmt.Sprintf("%#x", rec.Address),
	}).Error("cache models disagree")

	return fmt.Errorf("%w: access %d (%s) got %s, shadow got %s",
		ErrDivergence, s.seq-1, rec, outcome, want)
}

// Run simulates records from src until it is exhausted or ctx is done.
func (s *Simulator) Run(ctx context.Context, src Source) (Result, error) {
	for {
		select {
		case <-ctx.Done():
			return s.Result(), ctx.Err()
		default:
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.Result(), err
		}

		if _, err := s.Step(rec); err != nil {
			return s.Result(), err
		}
	}

	result := s.Result()
	s.logger.WithFields(logrus.Fields{
		"records":   result.Records,
		"hits":      result.Stats.Hits,
		"misses":    result.Stats.Misses,
		"evictions": result.Stats.Evictions,
	}).Debug("simulation finished")

	return result, nil
}
