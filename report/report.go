// Package report formats simulation outcomes.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
)

// Format selects how a summary is written.
type Format string

// Supported summary formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or csv)", name)
	}
}

// Summary holds the geometry and the final counters of a run.
type Summary struct {
	// Trace is the path of the simulated trace
	Trace string `json:"trace,omitempty"`

	// Cache geometry
	SetBits       uint `json:"set_bits"`
	Associativity int  `json:"associativity"`
	BlockBits     uint `json:"block_bits"`

	// Records is the number of data records simulated
	Records uint64 `json:"records"`

	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Compulsory uint64 `json:"compulsory_misses"`

	// HitRate is hits / (hits + misses), 0 when nothing was accessed
	HitRate float64 `json:"hit_rate"`

	// WallTime is how long the simulation took
	WallTime time.Duration `json:"wall_time_ns"`
}

// NewSummary combines a geometry with a simulation result.
func NewSummary(config cache.Config, result sim.Result) Summary {
	s := Summary{
		SetBits:       config.IndexBits(),
		Associativity: config.Associativity(),
		BlockBits:     config.OffsetBits(),
		Records:       result.Records,
		Hits:          result.Stats.Hits,
		Misses:        result.Stats.Misses,
		Evictions:     result.Stats.Evictions,
		Compulsory:    result.Compulsory,
	}

	if accesses := result.Stats.Accesses(); accesses > 0 {
		s.HitRate = float64(s.Hits) / float64(accesses)
	}

	return s
}

// PrintSummary writes the one-line hits/misses/evictions summary.
func PrintSummary(w io.Writer, stats cache.Statistics) error {
	_, err := fmt.Fprintf(w, "hits:%d misses:%d evictions:%d\n",
		stats.Hits, stats.Misses, stats.Evictions)
	return err
}

// Write renders a summary in the requested format.
func Write(w io.Writer, format Format, s Summary) error {
	switch format {
	case FormatText, "":
		return PrintSummary(w, cache.Statistics{
			Hits:      s.Hits,
			Misses:    s.Misses,
			Evictions: s.Evictions,
		})
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatCSV:
		return writeCSV(w, s)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

var csvHeader = []string{
	"trace", "s", "E", "b", "records",
	"hits", "misses", "evictions", "compulsory", "hit_rate",
}

func writeCSV(w io.Writer, s Summary) error {
	cw := csv.NewWriter(w)

	row := []string{
		s.Trace,
		strconv.FormatUint(uint64(s.SetBits), 10),
		strconv.Itoa(s.Associativity),
		strconv.FormatUint(uint64(s.BlockBits), 10),
		strconv.FormatUint(s.Records, 10),
		strconv.FormatUint(s.Hits, 10),
		strconv.FormatUint(s.Misses, 10),
		strconv.FormatUint(s.Evictions, 10),
		strconv.FormatUint(s.Compulsory, 10),
		strconv.FormatFloat(s.HitRate, 'f', 4, 64),
	}

	if err := cw.WriteAll([][]string{csvHeader, row}); err != nil {
		return fmt.Errorf("failed to write csv summary: %w", err)
	}

	return nil
}

// WriteResultsFile stores "hits misses evictions" in path, the format read
// by the cache lab grading driver.
func WriteResultsFile(path string, stats cache.Statistics) error {
	data := fmt.Sprintf("%d %d %d\n", stats.Hits, stats.Misses, stats.Evictions)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}
