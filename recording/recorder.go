// Package recording stores simulated accesses in a SQLite database.
package recording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
)

const defaultBatchSize = 100000

// Table names.
const (
	AccessTable = "access"
	RunTable    = "run"
)

// AccessEntry is one row of the access table. SQLite integers are signed,
// so 64-bit address fields are stored with their bits reinterpreted.
type AccessEntry struct {
	RunID       string
	Seq         int64
	Kind        string
	Address     int64
	Size        int64
	Tag         int64
	SetIndex    int64
	BlockOffset int64
	First       string
	Second      string
}

// RunEntry is one row of the run table, written when the recorder closes.
type RunEntry struct {
	RunID         string
	SetBits       int64
	Associativity int64
	BlockBits     int64
	Records       int64
	Hits          int64
	Misses        int64
	Evictions     int64
	Compulsory    int64
}

// Recorder is a sim.Listener that writes every event to SQLite. Inserts are
// batched and flushed inside a transaction.
type Recorder struct {
	db        *sql.DB
	path      string
	runID     string
	config    cache.Config
	batchSize int
	pending   []AccessEntry
	err       error
	closed    bool
	logger    logrus.FieldLogger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBatchSize sets how many accesses are buffered before a flush.
func WithBatchSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithLogger sets the logger used to report the database location.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// New creates the database at path. An empty path picks a unique name. The
// ".sqlite3" extension is added when missing. Existing files are not
// overwritten.
func New(path string, config cache.Config, opts ...Option) (*Recorder, error) {
	runID := xid.New().String()
	if path == "" {
		path = "csim_recording_" + runID
	}
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	r := &Recorder{
		db:        db,
		path:      path,
		runID:     runID,
		config:    config,
		batchSize: defaultBatchSize,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for name, sample := range map[string]any{
		AccessTable: AccessEntry{},
		RunTable:    RunEntry{},
	} {
		if err := r.createTable(name, sample); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	r.logger.WithFields(logrus.Fields{
		"path":   path,
		"run_id": runID,
	}).Info("Database created for recording")

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// Path returns the database file name.
func (r *Recorder) Path() string {
	return r.path
}

// RunID returns the identifier attached to every row of this run.
func (r *Recorder) RunID() string {
	return r.runID
}

// OnAccess buffers the event. Errors are kept and returned by Flush.
func (r *Recorder) OnAccess(event sim.Event) {
	if r.err != nil || r.closed {
		return
	}

	entry := AccessEntry{
		RunID:       r.runID,
		Seq:         int64(event.Seq),
		Kind:        event.Record.Kind.String(),
		Address:     int64(event.Record.Address),
		Size:        int64(event.Record.Size),
		Tag:         int64(event.Address.Tag),
		SetIndex:    int64(event.Address.SetIndex),
		BlockOffset: int64(event.Address.BlockOffset),
	}
	if len(event.Outcomes) > 0 {
		entry.First = event.Outcomes[0].String()
	}
	if len(event.Outcomes) > 1 {
		entry.Second = event.Outcomes[1].String()
	}

	r.pending = append(r.pending, entry)
	if len(r.pending) >= r.batchSize {
		r.err = r.Flush()
	}
}

// Flush writes buffered accesses to the database.
func (r *Recorder) Flush() error {
	if r.err != nil {
		return r.err
	}
	if len(r.pending) == 0 || r.closed {
		return nil
	}

	rows := make([]any, len(r.pending))
	for i := range r.pending {
		rows[i] = r.pending[i]
	}

	if err := r.insert(AccessTable, rows); err != nil {
		r.err = err
		return err
	}

	r.pending = r.pending[:0]

	return nil
}

// Close flushes pending accesses, writes the run summary and closes the
// database.
func (r *Recorder) Close(result sim.Result) error {
	if r.closed {
		return nil
	}

	err := r.Flush()
	if err == nil {
		err = r.insert(RunTable, []any{RunEntry{
			RunID:         r.runID,
			SetBits:       int64(r.config.IndexBits()),
			Associativity: int64(r.config.Associativity()),
			BlockBits:     int64(r.config.OffsetBits()),
			Records:       int64(result.Records),
			Hits:          int64(result.Stats.Hits),
			Misses:        int64(result.Stats.Misses),
			Evictions:     int64(result.Stats.Evictions),
			Compulsory:    int64(result.Compulsory),
		}})
	}

	r.closed = true

	return errors.Join(err, r.db.Close())
}

func (r *Recorder) createTable(name string, sample any) error {
	fields := strings.Join(structs.Names(sample), ", \n\t")
	query := "CREATE TABLE " + name + " (\n\t" + fields + "\n);"

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	return nil
}

func (r *Recorder) insert(table string, rows []any) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := structs.Names(rows[0])
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := "INSERT INTO " + table + " VALUES (" +
		strings.Join(placeholders, ", ") + ")"

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		value := reflect.ValueOf(row)
		args := make([]any, value.NumField())
		for i := range args {
			args[i] = value.Field(i).Interface()
		}

		if _, err = stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s rows: %w", table, err)
	}

	return nil
}
