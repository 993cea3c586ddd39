package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader returns the data accesses of a trace one at a time. Data accesses
// are indented by one space; every other line, such as instruction fetches
// and valgrind "==pid==" banners, is skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next data record, or io.EOF at the end of the trace.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if !strings.HasPrefix(text, " ") {
			continue
		}

		rec, err := ParseLine(text)
		if errors.Is(err, ErrEmptyLine) {
			continue
		}
		if err != nil {
			return Record{}, &ParseError{Line: r.line, Text: text, Err: err}
		}
		if rec.Kind == Instruction {
			continue
		}

		return rec, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read trace: %w", err)
	}

	return Record{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// ReadAll drains a reader into a slice.
func ReadAll(r *Reader) ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
