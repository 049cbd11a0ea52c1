// Package engine ties the compiler, the VM and table storage together
// behind a single query entry point.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/jobala/petrosql/buffer"
	"github.com/jobala/petrosql/compiler"
	"github.com/jobala/petrosql/metrics"
	"github.com/jobala/petrosql/storage/disk"
	"github.com/jobala/petrosql/storage/fs"
	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
	"github.com/jobala/petrosql/vm"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("engine is closed")

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCacheSize sets the number of node frames each table index caches.
func WithCacheSize(frames int) Option {
	return func(e *Engine) {
		e.cacheSize = frames
	}
}

// OpenMemory starts an engine on a fresh in-memory database.
func OpenMemory(opts ...Option) (*Engine, error) {
	backing := disk.NewMemoryBacking()
	if err := fs.Format(backing); err != nil {
		return nil, err
	}

	filesystem, err := fs.New(backing)
	if err != nil {
		return nil, err
	}

	return Open(filesystem, opts...)
}

// OpenPath opens the database file at path. With create set the file is
// created, or truncated, and formatted first.
func OpenPath(path string, create bool, opts ...Option) (*Engine, error) {
	backing, err := disk.OpenFile(path, create)
	if err != nil {
		return nil, err
	}

	if create {
		if err := fs.Format(backing); err != nil {
			_ = backing.Close()
			return nil, err
		}
	}

	filesystem, err := fs.New(backing)
	if err != nil {
		_ = backing.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	e, err := Open(filesystem, opts...)
	if err != nil {
		_ = filesystem.Close()
		return nil, err
	}
	return e, nil
}

// Open starts an engine on a formatted filesystem. The engine owns the
// filesystem from here on and closes it in Close.
func Open(filesystem *fs.Filesystem, opts ...Option) (*Engine, error) {
	e := &Engine{
		fs:        filesystem,
		log:       zap.NewNop(),
		cacheSize: buffer.DEFAULT_CAPACITY,
	}
	for _, opt := range opts {
		opt(e)
	}

	catalog, err := table.OpenCatalog(filesystem, e.cacheSize)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		catalog.SetAllocHook(e.metrics.NodeAllocated)
	}

	e.catalog = catalog
	e.vm = vm.New(catalog)

	e.log.Info("database opened", zap.Int("tables", len(catalog.Tables())))
	return e, nil
}

// Exec compiles and runs one query, handing each result row to fn. An
// error returned by fn stops the query and is returned unchanged. A
// util.DatabaseError only fails this query; the engine stays usable.
func (e *Engine) Exec(query string, fn func(types.Row) error) error {
	if e.catalog == nil {
		return ErrClosed
	}

	start := time.Now()
	e.changes = 0

	stmt, err := compiler.Compile(query, e.catalog)
	if err != nil {
		e.observe(query, "unknown", 0, start, err, false)
		return err
	}

	rows, aborted, err := e.run(stmt, fn)
	e.observe(query, stmt.QueryType.String(), rows, start, err, aborted)
	return err
}

// Changes is the number of rows the last query inserted, updated or
// deleted.
func (e *Engine) Changes() int {
	return e.changes
}

// Tables lists the names of every table in creation order.
func (e *Engine) Tables() []string {
	var names []string
	for _, meta := range e.catalog.Tables() {
		names = append(names, meta.Name)
	}
	return names
}

// Close writes back every table and the catalog, then closes the
// filesystem.
func (e *Engine) Close() error {
	if e.catalog == nil {
		return nil
	}

	err := errors.Join(e.catalog.Close(), e.fs.Close())
	e.catalog = nil
	e.vm = nil

	e.log.Info("database closed", zap.Error(err))
	return err
}

func (e *Engine) run(stmt *compiler.Statement, fn func(types.Row) error) (int, bool, error) {
	defer e.vm.Reset()

	if err := e.vm.Eval(stmt); err != nil {
		return 0, false, err
	}

	rows := 0
	for {
		row, ok, err := e.vm.FetchRow()
		if err != nil {
			e.changes = e.vm.Affected()
			return rows, false, err
		}
		if !ok {
			break
		}

		rows++
		if err := fn(row); err != nil {
			return rows, true, err
		}
	}

	e.changes = e.vm.Affected()
	return rows, false, nil
}

func (e *Engine) observe(query, typ string, rows int, start time.Time, err error, aborted bool) {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.String("query", query),
		zap.String("type", typ),
		zap.Int("rows", rows),
		zap.Int("changes", e.changes),
		zap.Duration("elapsed", elapsed),
	}

	status := metrics.STATUS_OK
	switch {
	case err == nil:
		e.log.Debug("query finished", fields...)
	case aborted:
		status = metrics.STATUS_ABORTED
		e.log.Debug("query stopped by callback", append(fields, zap.Error(err))...)
	case util.IsDatabaseError(err):
		status = metrics.STATUS_ERROR
		e.log.Warn("query failed", append(fields, zap.Error(err))...)
	default:
		status = metrics.STATUS_FATAL
		e.log.Error("query hit an internal error", append(fields, zap.Error(err))...)
	}

	e.metrics.ObserveQuery(typ, status, rows, elapsed)
}

// Engine runs queries against one database. It is not safe for concurrent
// use.
type Engine struct {
	fs        *fs.Filesystem
	catalog   *table.Catalog
	vm        *vm.QueryVM
	log       *zap.Logger
	metrics   *metrics.Metrics
	cacheSize int
	changes   int
}
