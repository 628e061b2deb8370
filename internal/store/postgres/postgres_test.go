package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"salereport/backend/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, store.ErrInvalidInput},
		{"check violation", &pgconn.PgError{Code: pgerrcode.CheckViolation}, store.ErrInvalidInput},
		{"connection failure", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, store.ErrUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: pgerrcode.AdminShutdown}, store.ErrUnavailable},
		{"too many connections", &pgconn.PgError{Code: pgerrcode.TooManyConnections}, store.ErrUnavailable},
		{"bad conn", driver.ErrBadConn, store.ErrUnavailable},
		{"conn done", sql.ErrConnDone, store.ErrUnavailable},
	}
	for _, tc := range cases {
		if got := classify(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	if classify(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	if got := classify(context.Canceled); !errors.Is(got, context.Canceled) || errors.Is(got, store.ErrUnavailable) {
		t.Fatalf("expected cancellation to pass through, got %v", got)
	}
	syntax := &pgconn.PgError{Code: pgerrcode.SyntaxError}
	if got := classify(syntax); got != syntax {
		t.Fatalf("expected other server errors to pass through, got %v", got)
	}
}

func TestQueryBuilderNumbersArguments(t *testing.T) {
	var q query
	if q.where() != "" {
		t.Fatalf("expected empty where clause")
	}
	q.add(`shop_id = ?`, "lazada")
	q.add(`day = ?::date`, "2025-08-21")
	where := q.where()
	limit := q.limit(50)

	if where != " WHERE shop_id = $1 AND day = $2::date" {
		t.Fatalf("unexpected where clause %q", where)
	}
	if limit != " LIMIT $3" {
		t.Fatalf("unexpected limit clause %q", limit)
	}
	if len(q.args) != 3 || q.args[2] != 50 {
		t.Fatalf("unexpected args %v", q.args)
	}
	if q.limit(0) != "" {
		t.Fatalf("expected no limit clause for zero")
	}
}

func TestListEncoding(t *testing.T) {
	raw, err := encodeList(nil)
	if err != nil || raw != "[]" {
		t.Fatalf("expected nil list to encode as [], got %q (%v)", raw, err)
	}
	values, err := decodeList([]byte(`["a","b"]`))
	if err != nil || len(values) != 2 || values[1] != "b" {
		t.Fatalf("unexpected decode result %v (%v)", values, err)
	}
	values, err = decodeList(nil)
	if err != nil || values == nil || len(values) != 0 {
		t.Fatalf("expected empty non-nil list, got %v (%v)", values, err)
	}
}
