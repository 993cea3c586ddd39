// Package trace reads and writes memory access traces in the format produced
// by valgrind's lackey tool.
//
// Each data access occupies one line with a leading space, an operation
// letter, a hexadecimal address and a hexadecimal size:
//
//	I 0400d7d4,8
//	 L 7ff0005b8,8
//	 S 7ff0005c8,8
//	 M 0421c7f0,4
//
// Instruction fetches (I) start in the first column and do not touch the
// data cache.
package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the operation of a trace record.
type Kind uint8

const (
	// Instruction is an instruction fetch.
	Instruction Kind = iota
	// Load is a data read.
	Load
	// Store is a data write.
	Store
	// Modify is a read followed by a write to the same address.
	Modify
)

// Letter returns the single-letter spelling of the kind.
func (k Kind) Letter() byte {
	switch k {
	case Instruction:
		return 'I'
	case Load:
		return 'L'
	case Store:
		return 'S'
	case Modify:
		return 'M'
	default:
		return '?'
	}
}

// String returns the single-letter spelling of the kind.
func (k Kind) String() string {
	return string(k.Letter())
}

// KindFromLetter parses a single operation letter.
func KindFromLetter(letter byte) (Kind, error) {
	switch letter {
	case 'I':
		return Instruction, nil
	case 'L':
		return Load, nil
	case 'S':
		return Store, nil
	case 'M':
		return Modify, nil
	default:
		return 0, fmt.Errorf("unknown operation %q", letter)
	}
}

// Record is one line of a trace.
type Record struct {
	Kind    Kind
	Address uint64
	// Size is the number of bytes touched. It does not affect caching.
	Size uint32
}

// Accesses returns how many data cache accesses the record performs.
func (r Record) Accesses() int {
	switch r.Kind {
	case Load, Store:
		return 1
	case Modify:
		return 2
	default:
		return 0
	}
}

// String renders the record without its leading space, e.g. "L 10,4".
func (r Record) String() string {
	return fmt.Sprintf("%s %x,%x", r.Kind, r.Address, r.Size)
}

// ErrEmptyLine is returned by ParseLine for a line with no content.
var ErrEmptyLine = errors.New("empty line")

// ParseLine parses one trace line.
func ParseLine(line string) (Record, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return Record{}, ErrEmptyLine
	}

	kind, err := KindFromLetter(text[0])
	if err != nil {
		return Record{}, err
	}

	operands := strings.TrimSpace(text[1:])
	addrText, sizeText, found := strings.Cut(operands, ",")
	if !found {
		return Record{}, fmt.Errorf("missing size in %q", text)
	}

	addr, err := strconv.ParseUint(strings.TrimSpace(addrText), 16, 64)
	if err != nil {
		return Record{}, fmt.Errorf("bad address %q: %w", addrText, err)
	}

	size, err := strconv.ParseUint(strings.TrimSpace(sizeText), 16, 32)
	if err != nil {
		return Record{}, fmt.Errorf("bad size %q: %w", sizeText, err)
	}

	return Record{Kind: kind, Address: addr, Size: uint32(size)}, nil
}
