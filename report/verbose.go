package report

import (
	"bufio"
	"io"
	"strings"

	"github.com/sarchlab/csim/sim"
)

// VerbosePrinter writes one line per record with its outcomes, e.g.
//
//	L 10,1 miss
//	M 20,1 miss eviction hit
type VerbosePrinter struct {
	w   *bufio.Writer
	err error
}

// NewVerbosePrinter creates a printer writing to w. Call Flush when the
// simulation ends.
func NewVerbosePrinter(w io.Writer) *VerbosePrinter {
	return &VerbosePrinter{w: bufio.NewWriter(w)}
}

// OnAccess prints the record and its outcomes.
func (p *VerbosePrinter) OnAccess(event sim.Event) {
	if p.err != nil {
		return
	}

	var line strings.Builder
	line.WriteString(event.Record.String())
	for _, outcome := range event.Outcomes {
		line.WriteByte(' ')
		line.WriteString(outcome.String())
	}
	line.WriteByte('\n')

	_, p.err = p.w.WriteString(line.String())
}

// Flush writes buffered lines and returns the first write error, if any.
func (p *VerbosePrinter) Flush() error {
	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}
