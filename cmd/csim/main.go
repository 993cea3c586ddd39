// Package main provides csim, a trace-driven set-associative cache
// simulator.
package main

import "github.com/sarchlab/csim/cli"

func main() {
	cli.Execute()
}
