package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLExecutor is the narrow query surface used by the credential store.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

var markerRegexp = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

// SQLRunner executes inline queries from internal/sqlinline. Every query must
// open with a "--sql <uuid>" line; the uuid labels the log entries so a slow
// or failing statement can be traced back to its constant.
type SQLRunner struct {
	db     SQLExecutor
	logger zerolog.Logger
}

// NewSQLRunner wraps db, usually a *pgxpool.Pool.
func NewSQLRunner(db SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.db.Exec(ctx, body, args...)
	ev := r.logger.Debug()
	if err != nil {
		ev = r.logger.Error().Err(err)
	}
	ev.Str("sql", marker).Dur("elapsed", time.Since(start)).Int64("rows", tag.RowsAffected()).Msg("sql exec")
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return loggedRow{
		row:    r.db.QueryRow(ctx, body, args...),
		logger: r.logger,
		marker: marker,
		start:  time.Now(),
	}
}

// IsNoRows reports whether err signals an empty result set.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type loggedRow struct {
	row    pgx.Row
	logger zerolog.Logger
	marker string
	start  time.Time
}

func (l loggedRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	ev := l.logger.Debug()
	if err != nil && !IsNoRows(err) {
		ev = l.logger.Error().Err(err)
	}
	ev.Str("sql", l.marker).Dur("elapsed", time.Since(l.start)).Bool("empty", IsNoRows(err)).Msg("sql query_row")
	return err
}

type errorRow struct{ err error }

func (e errorRow) Scan(...any) error { return e.err }

// extractMarker splits the marker uuid from the statement body.
func extractMarker(query string) (marker, body string, err error) {
	head, rest, _ := strings.Cut(strings.TrimSpace(query), "\n")
	m := markerRegexp.FindStringSubmatch(strings.TrimSpace(head))
	if m == nil {
		return "", "", errors.New("sql: query must start with a --sql <uuid> marker")
	}
	return m[1], strings.TrimSpace(rest), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
