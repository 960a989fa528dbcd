package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"identigraph/internal/repository"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToStringPtr converts sql.NullString to *string, keeping empty strings
func nullToStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		s := ns.String
		return &s
	}
	return nil
}

// stringPtrToNull converts *string to sql.NullString. A pointer to "" is a
// valid (non-NULL) value so that explicit retractions overwrite.
func stringPtrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullToTimePtr converts unix nanoseconds to *time.Time
func nullToTimePtr(ni sql.NullInt64) *time.Time {
	if ni.Valid {
		t := nanosToTime(ni.Int64)
		return &t
	}
	return nil
}

// timePtrToNull converts *time.Time to nullable unix nanoseconds
func timePtrToNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nanosToTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ============================================================================
// Query Helpers
// ============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// edgeWhere builds a WHERE clause from an edge filter
func edgeWhere(f repository.EdgeFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.From != "" {
		conds = append(conds, "from_uuid = ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "to_uuid = ?")
		args = append(args, f.To)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(f.Source))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// andWhere appends one condition to a WHERE clause built by edgeWhere
func andWhere(where string, args []any, cond string, arg any) (string, []any) {
	if where == "" {
		return " WHERE " + cond, append(args, arg)
	}
	return where + " AND " + cond, append(args, arg)
}

// countRows returns SELECT COUNT(*) for a table
func countRows(ctx context.Context, q querier, table string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
