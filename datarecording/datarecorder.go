// Package datarecording stores channel samples and telemetry windows in
// SQLite recordings.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DefaultBatchSize is the number of buffered entries that triggers a flush.
const DefaultBatchSize = 10000

// ErrInvalidEntry is returned for entries that cannot become table rows.
var ErrInvalidEntry = errors.New("datarecording: entry is not a flat struct")

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry. Creating a table that already exists is a no-op.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries in one transaction.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// New creates a recorder writing to path.sqlite3. An empty path generates a
// unique name. The buffered entries are flushed when the process exits
// through atexit.
func New(path string) DataRecorder {
	if path == "" {
		path = "bbos_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		log.Panicf("datarecording: file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		log.Panic(err)
	}

	slog.Info("bbos/datarecording: recording", "file", filename)

	return newRecorder(db, filename)
}

// NewWithDB creates a recorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newRecorder(db, "")
}

func newRecorder(db *sql.DB, filename string) *sqliteRecorder {
	r := &sqliteRecorder{
		DB:        db,
		filename:  filename,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r
}

type table struct {
	structType reflect.Type
	columns    []string
	entries    []any
}

// sqliteRecorder is the recorder that writes data into a SQLite database.
type sqliteRecorder struct {
	*sql.DB

	lock       sync.Mutex
	filename   string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T", ErrInvalidEntry, entry)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("%w: field %s of %T is a %s",
				ErrInvalidEntry, field.Name, entry, field.Type.Kind())
		}
	}

	return nil
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		log.Panic(err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.tables[tableName]; exists {
		return
	}

	columns := structs.Names(sampleEntry)
	createTableSQL := `CREATE TABLE IF NOT EXISTS ` + tableName +
		` (` + "\n\t" + strings.Join(columns, ", \n\t") + "\n" + `);`
	r.mustExecute(createTableSQL)

	r.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		columns:    columns,
	}
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, exists := r.tables[tableName]
	if !exists {
		log.Panicf("datarecording: table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		log.Panicf("datarecording: table %s holds %s, not %T",
			tableName, t.structType, entry)
	}

	t.entries = append(t.entries, entry)

	r.entryCount++
	if r.entryCount >= r.batchSize {
		r.flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (r *sqliteRecorder) Flush() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.flush()
}

func (r *sqliteRecorder) flush() {
	if r.entryCount == 0 || r.closed {
		return
	}

	tx, err := r.Begin()
	if err != nil {
		log.Panic(err)
	}

	for name, t := range r.tables {
		if len(t.entries) == 0 {
			continue
		}

		r.insertAll(tx, name, t)
		t.entries = nil
	}

	if err := tx.Commit(); err != nil {
		log.Panic(err)
	}

	r.entryCount = 0
}

func (r *sqliteRecorder) insertAll(tx *sql.Tx, name string, t *table) {
	marks := make([]string, len(t.columns))
	for i := range marks {
		marks[i] = "?"
	}

	stmt, err := tx.Prepare(
		"INSERT INTO " + name + " VALUES (" + strings.Join(marks, ", ") + ")")
	if err != nil {
		log.Panic(err)
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		v := reflect.ValueOf(entry)
		args := make([]any, v.NumField())

		for i := range args {
			args[i] = v.Field(i).Interface()
		}

		if _, err := stmt.Exec(args...); err != nil {
			log.Panic(err)
		}
	}
}

func (r *sqliteRecorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}

	r.flush()
	r.closed = true

	return r.DB.Close()
}

func (r *sqliteRecorder) mustExecute(query string) sql.Result {
	res, err := r.Exec(query)
	if err != nil {
		slog.Error("bbos/datarecording: statement failed",
			"query", query, "file", r.filename)
		log.Panic(err)
	}

	return res
}
