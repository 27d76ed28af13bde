package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genboard/internal/domain"
	"genboard/internal/infra"
)

// scriptedRow scans fixed values into the destinations, or fails with the
// provided error.
type scriptedRow struct {
	values []any
	err    error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(r.values), len(dest))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		case *domain.GenerationStatus:
			*d = domain.GenerationStatus(v.(string))
		case *int:
			*d = v.(int)
		case **float64:
			if v == nil {
				*d = nil
			} else {
				f := v.(float64)
				*d = &f
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

type rowsBase struct{}

func (rowsBase) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (rowsBase) Conn() *pgx.Conn                              { return nil }
func (rowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (rowsBase) Values() ([]any, error)                       { return nil, fmt.Errorf("not supported") }
func (rowsBase) RawValues() [][]byte                          { return nil }

// scriptedRows yields one scriptedRow per Next call. A non-nil err simulates
// a query that fails mid-stream after the scripted rows were consumed.
type scriptedRows struct {
	rowsBase
	rows []scriptedRow
	err  error
	idx  int
}

func (r *scriptedRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *scriptedRows) Scan(dest ...any) error {
	return r.rows[r.idx-1].Scan(dest...)
}

func (r *scriptedRows) Close()     {}
func (r *scriptedRows) Err() error { return r.err }

type execCall struct {
	query string
	args  []any
}

// scriptedSQL is a programmable SQLExecutor. Responses are keyed by the full
// query constant; unscripted statements succeed with one affected row.
type scriptedSQL struct {
	execTags map[string]pgconn.CommandTag
	execErrs map[string]error
	rows     map[string]*scriptedRows
	rowErrs  map[string]error
	singles  map[string]scriptedRow

	execs []execCall
}

func newScriptedSQL() *scriptedSQL {
	return &scriptedSQL{
		execTags: map[string]pgconn.CommandTag{},
		execErrs: map[string]error{},
		rows:     map[string]*scriptedRows{},
		rowErrs:  map[string]error{},
		singles:  map[string]scriptedRow{},
	}
}

func (s *scriptedSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if err, ok := s.execErrs[query]; ok {
		return pgconn.CommandTag{}, err
	}
	if tag, ok := s.execTags[query]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *scriptedSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	if row, ok := s.singles[query]; ok {
		return row
	}
	return scriptedRow{err: pgx.ErrNoRows}
}

func (s *scriptedSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	if err, ok := s.rowErrs[query]; ok {
		return nil, err
	}
	if rows, ok := s.rows[query]; ok {
		return rows, nil
	}
	return &scriptedRows{}, nil
}

// callsTo returns the recorded Exec calls for one statement.
func (s *scriptedSQL) callsTo(query string) []execCall {
	var out []execCall
	for _, c := range s.execs {
		if c.query == query {
			out = append(out, c)
		}
	}
	return out
}

// fakeTx runs the transaction body against the wrapped executor. Exec calls
// made before the body fails are discarded from the record, mirroring a
// rollback.
type fakeTx struct {
	sql *scriptedSQL
}

func (f *fakeTx) WithTx(_ context.Context, fn func(infra.SQLExecutor) error) error {
	mark := len(f.sql.execs)
	if err := fn(f.sql); err != nil {
		f.sql.execs = f.sql.execs[:mark]
		return err
	}
	return nil
}

var (
	_ infra.SQLExecutor = (*scriptedSQL)(nil)
	_ infra.TxRunner    = (*fakeTx)(nil)
)
