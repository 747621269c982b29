package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	query := "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;\n"
	marker, body, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker error: %v", err)
	}
	if marker != "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q, want %q", body, "select 1;")
	}
}

func TestExtractMarkerRejectsUnmarkedQuery(t *testing.T) {
	if _, _, err := extractMarker("select 1;"); err == nil {
		t.Fatal("expected error for query without marker")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("boom")) {
		t.Fatal("unexpected match for unrelated error")
	}
}

type fakeDB struct {
	queries []string
	row     pgx.Row
}

func (f *fakeDB) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, query)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	f.queries = append(f.queries, query)
	return f.row
}

func TestSQLRunnerStripsMarkerAndLogs(t *testing.T) {
	var buf bytes.Buffer
	db := &fakeDB{row: errorRow{err: pgx.ErrNoRows}}
	r := NewSQLRunner(db, zerolog.New(&buf))

	if _, err := r.Exec(context.Background(), "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\ninsert into t values (1);"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	var got string
	err := r.QueryRow(context.Background(), "--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3\nselect 1;").Scan(&got)
	if !IsNoRows(err) {
		t.Fatalf("Scan err = %v, want no rows", err)
	}
	if len(db.queries) != 2 || db.queries[0] != "insert into t values (1);" || db.queries[1] != "select 1;" {
		t.Fatalf("queries = %q", db.queries)
	}
	if !strings.Contains(buf.String(), `"sql":"8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7"`) || !strings.Contains(buf.String(), `"empty":true`) {
		t.Fatalf("log = %s", buf.String())
	}

	if _, err := r.Exec(context.Background(), "delete from t;"); err == nil || len(db.queries) != 2 {
		t.Fatalf("unmarked query err = %v, queries = %d", err, len(db.queries))
	}
}
