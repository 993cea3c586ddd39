// Package main provides the entry point for csim.
// csim is a trace-driven set-associative cache simulator.
//
// It runs the same command as ./cmd/csim, so `go run .` works too.
package main

import "github.com/sarchlab/csim/cli"

func main() {
	cli.Execute()
}
