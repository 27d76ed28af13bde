package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genboard/internal/infra"
)

// fakeRows replays fixed tuples. Supported destination types cover the
// aggregate queries in this package.
type fakeRows struct {
	tuples [][]any
	idx    int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.tuples)
}

func (r *fakeRows) Scan(dest ...any) error {
	tuple := r.tuples[r.idx-1]
	if len(dest) != len(tuple) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(tuple), len(dest))
	}
	for i, v := range tuple {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *float64:
			*d = v.(float64)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, fmt.Errorf("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }

// fakeSQL serves tuples keyed by the full query constant.
type fakeSQL struct {
	tuples map[string][][]any
}

func (f *fakeSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, fmt.Errorf("exec not expected")
}

func (f *fakeSQL) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (f *fakeSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	return &fakeRows{tuples: f.tuples[query]}, nil
}

type errRow struct{}

func (errRow) Scan(...any) error { return pgx.ErrNoRows }

var _ infra.SQLExecutor = (*fakeSQL)(nil)
