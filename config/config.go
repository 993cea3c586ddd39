// Package config loads simulator options from files, the environment and
// .env files.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/report"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnv.
const EnvPrefix = "CSIM_"

// Options holds everything needed to run one simulation.
type Options struct {
	// SetBits is the number of set index bits (s). There are 2^s sets.
	SetBits int `json:"set_bits" yaml:"set_bits" toml:"set_bits"`

	// Associativity is the number of lines per set (E).
	Associativity int `json:"associativity" yaml:"associativity" toml:"associativity"`

	// BlockBits is the number of block offset bits (b). Blocks are 2^b bytes.
	BlockBits int `json:"block_bits" yaml:"block_bits" toml:"block_bits"`

	// TracePath is the valgrind trace to simulate.
	TracePath string `json:"trace" yaml:"trace" toml:"trace"`

	// Verbose prints the outcome of every record.
	Verbose bool `json:"verbose" yaml:"verbose" toml:"verbose"`

	// Format is the summary format: text, json or csv. Default: text.
	Format string `json:"format" yaml:"format" toml:"format"`

	// RecordPath, when set, stores every access in a SQLite database.
	RecordPath string `json:"record,omitempty" yaml:"record,omitempty" toml:"record,omitempty"`

	// MonitorPort, when non-zero, serves live progress over HTTP.
	// Use -1 to pick a random free port.
	MonitorPort int `json:"monitor_port,omitempty" yaml:"monitor_port,omitempty" toml:"monitor_port,omitempty"`

	// Verify cross-checks every access against the Akita-backed model.
	Verify bool `json:"verify" yaml:"verify" toml:"verify"`

	// ResultsPath, when set, receives "hits misses evictions".
	ResultsPath string `json:"results,omitempty" yaml:"results,omitempty" toml:"results,omitempty"`
}

// Default returns options with only the output format set.
func Default() *Options {
	return &Options{
		Format: string(report.FormatText),
	}
}

// Load reads options from a JSON, YAML or TOML file, chosen by extension.
// Fields missing from the file keep their defaults.
func Load(path string) (*Options, error) {
	return LoadOver(path, Default())
}

// LoadOver is like Load, but fields missing from the file keep the values
// in base. base is not modified.
func LoadOver(path string, base *Options) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	options := *base

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &options)
	case ".toml":
		err = toml.Unmarshal(data, &options)
	case ".json", "":
		err = json.Unmarshal(data, &options)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return &options, nil
}

// Save writes options to a file in the format implied by its extension.
func (o *Options) Save(path string) error {
	var (
		data []byte
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(o)
	case ".toml":
		buf := &bytes.Buffer{}
		err = toml.NewEncoder(buf).Encode(o)
		data = buf.Bytes()
	case ".json", "":
		data, err = json.MarshalIndent(o, "", "  ")
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads .env style files into the process environment. Variables
// that are already set win. Files that do not exist are ignored.
func LoadEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}

	return nil
}

// ApplyEnv overrides options from CSIM_* variables found by lookup,
// typically os.LookupEnv.
func (o *Options) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"SET_BITS":      &o.SetBits,
		"ASSOCIATIVITY": &o.Associativity,
		"BLOCK_BITS":    &o.BlockBits,
		"MONITOR_PORT":  &o.MonitorPort,
	}
	for name, field := range ints {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("bad %s%s=%q: %w", EnvPrefix, name, value, err)
		}
		*field = n
	}

	bools := map[string]*bool{
		"VERBOSE": &o.Verbose,
		"VERIFY":  &o.Verify,
	}
	for name, field := range bools {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("bad %s%s=%q: %w", EnvPrefix, name, value, err)
		}
		*field = b
	}

	strs := map[string]*string{
		"TRACE":   &o.TracePath,
		"FORMAT":  &o.Format,
		"RECORD":  &o.RecordPath,
		"RESULTS": &o.ResultsPath,
	}
	for name, field := range strs {
		if value, ok := lookup(EnvPrefix + name); ok {
			*field = value
		}
	}

	return nil
}

// Validate checks that the options describe a runnable simulation.
func (o *Options) Validate() error {
	var errs []error

	if o.SetBits <= 0 {
		errs = append(errs, fmt.Errorf("set bits (-s) must be > 0"))
	}
	if o.Associativity <= 0 {
		errs = append(errs, fmt.Errorf("associativity (-E) must be > 0"))
	}
	if o.BlockBits <= 0 {
		errs = append(errs, fmt.Errorf("block bits (-b) must be > 0"))
	}
	if o.SetBits+o.BlockBits >= cache.AddressWidth {
		errs = append(errs, fmt.Errorf("set bits + block bits must be < %d",
			cache.AddressWidth))
	}
	if o.TracePath == "" {
		errs = append(errs, fmt.Errorf("trace file (-t) is required"))
	}
	if _, err := report.ParseFormat(o.Format); err != nil {
		errs = append(errs, err)
	}
	if o.MonitorPort < -1 || o.MonitorPort > 65535 {
		errs = append(errs, fmt.Errorf("monitor port %d out of range", o.MonitorPort))
	}

	return errors.Join(errs...)
}

// CacheConfig returns the cache geometry described by the options.
func (o *Options) CacheConfig() (cache.Config, error) {
	return cache.NewConfig(o.BlockBits, o.SetBits, o.Associativity)
}
