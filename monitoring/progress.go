package monitoring

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
)

// Progress is a snapshot of a running simulation.
type Progress struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Records    uint64    `json:"records"`
	Hits       uint64    `json:"hits"`
	Misses     uint64    `json:"misses"`
	Evictions  uint64    `json:"evictions"`
	Compulsory uint64    `json:"compulsory"`
	Finished   bool      `json:"finished"`
}

// A Tracker counts simulated records. It is a sim.Listener that can be read
// from other goroutines.
type Tracker struct {
	sync.Mutex
	progress Progress
}

// NewTracker creates a tracker for the named run.
func NewTracker(name string) *Tracker {
	return &Tracker{
		progress: Progress{
			ID:        xid.New().String(),
			Name:      name,
			StartTime: time.Now(),
		},
	}
}

// OnAccess adds the event's outcomes to the counters.
func (t *Tracker) OnAccess(event sim.Event) {
	t.Lock()
	defer t.Unlock()

	t.progress.Records++
	if event.Compulsory {
		t.progress.Compulsory++
	}

	for _, o := range event.Outcomes {
		switch o {
		case cache.Hit:
			t.progress.Hits++
		case cache.Miss:
			t.progress.Misses++
		case cache.MissEviction:
			t.progress.Misses++
			t.progress.Evictions++
		}
	}
}

// Finish marks the run as complete.
func (t *Tracker) Finish() {
	t.Lock()
	defer t.Unlock()

	t.progress.Finished = true
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.Lock()
	defer t.Unlock()

	return t.progress
}
