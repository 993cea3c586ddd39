package trace

import (
	"bufio"
	"fmt"
	"io"
)

// Writer emits records in lackey format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits one record. Data accesses get the leading space that lackey
// uses to tell them apart from instruction fetches.
func (w *Writer) Write(rec Record) error {
	prefix := " "
	if rec.Kind == Instruction {
		prefix = ""
	}

	_, err := fmt.Fprintf(w.w, "%s%s\n", prefix, rec)
	return err
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
