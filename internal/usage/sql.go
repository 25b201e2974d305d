package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLRecorder persists invocation records to SQLite or Postgres.
type SQLRecorder struct {
	db      *sql.DB
	dialect string
}

// NewSQLite opens (or creates) a SQLite-backed recorder at dsn.
func NewSQLite(dsn string) (*SQLRecorder, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "aicore-usage.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite usage recorder: %w", err)
	}
	r := &SQLRecorder{db: db, dialect: "sqlite"}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgres opens a Postgres-backed recorder.
func NewPostgres(dsn string) (*SQLRecorder, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres usage recorder: %w", err)
	}
	r := &SQLRecorder{db: db, dialect: "postgres"}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLRecorder) init() error {
	if err := r.db.Ping(); err != nil {
		return fmt.Errorf("ping %s usage recorder: %w", r.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS ai_invocations (
	id TEXT PRIMARY KEY,
	caller_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	provider TEXT,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	tokens_used INTEGER NOT NULL,
	error_kind TEXT,
	error_message TEXT,
	metadata TEXT
);`
	if r.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS ai_invocations (
	id TEXT PRIMARY KEY,
	caller_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	provider TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	success BOOLEAN NOT NULL,
	tokens_used INTEGER NOT NULL,
	error_kind TEXT,
	error_message TEXT,
	metadata TEXT
);`
	}

	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize usage schema: %w", err)
	}
	return nil
}

// Record appends one invocation record.
func (r *SQLRecorder) Record(ctx context.Context, rec Record) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	var meta string
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encode usage metadata: %w", err)
		}
		meta = string(b)
	}

	query := `INSERT INTO ai_invocations(id, caller_id, mode, provider, started_at, duration_ms, success, tokens_used, error_kind, error_message, metadata)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	success := interface{}(boolToInt(rec.Success))
	if r.dialect == "postgres" {
		query = `INSERT INTO ai_invocations(id, caller_id, mode, provider, started_at, duration_ms, success, tokens_used, error_kind, error_message, metadata)
	VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		success = rec.Success
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.CallerID,
		rec.Mode,
		rec.Provider,
		rec.StartedAt,
		rec.DurationMs,
		success,
		rec.TokensUsed,
		rec.ErrorKind,
		rec.ErrorMessage,
		meta,
	)
	if err != nil {
		return fmt.Errorf("write usage record: %w", err)
	}
	return nil
}

// List returns records matching q, newest first.
func (r *SQLRecorder) List(ctx context.Context, q Query) (Result, error) {
	where, args := r.buildWhere(q)

	var total int
	countQuery := "SELECT COUNT(*) FROM ai_invocations" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return Result{}, fmt.Errorf("count usage records: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	listQuery := "SELECT id, caller_id, mode, provider, started_at, duration_ms, success, tokens_used, error_kind, error_message, metadata FROM ai_invocations" +
		where + " ORDER BY started_at DESC" + r.placeholders(len(args), " LIMIT %s OFFSET %s")
	args = append(args, limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return Result{}, fmt.Errorf("list usage records: %w", err)
	}
	defer rows.Close()

	res := Result{Total: total}
	for rows.Next() {
		var rec Record
		var errKind, errMsg, meta, provider sql.NullString
		if r.dialect == "postgres" {
			var b bool
			if err := rows.Scan(&rec.ID, &rec.CallerID, &rec.Mode, &provider, &rec.StartedAt,
				&rec.DurationMs, &b, &rec.TokensUsed, &errKind, &errMsg, &meta); err != nil {
				return Result{}, fmt.Errorf("scan usage record: %w", err)
			}
			rec.Success = b
		} else {
			var i int
			if err := rows.Scan(&rec.ID, &rec.CallerID, &rec.Mode, &provider, &rec.StartedAt,
				&rec.DurationMs, &i, &rec.TokensUsed, &errKind, &errMsg, &meta); err != nil {
				return Result{}, fmt.Errorf("scan usage record: %w", err)
			}
			rec.Success = i != 0
		}
		rec.Provider = provider.String
		rec.ErrorKind = errKind.String
		rec.ErrorMessage = errMsg.String
		if meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &rec.Metadata)
		}
		res.Data = append(res.Data, rec)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("list usage records: %w", err)
	}
	return res, nil
}

// Purge deletes records started before the cutoff and reports how many went.
func (r *SQLRecorder) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := "DELETE FROM ai_invocations WHERE started_at < ?"
	if r.dialect == "postgres" {
		query = "DELETE FROM ai_invocations WHERE started_at < $1"
	}
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge usage records: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database handle.
func (r *SQLRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLRecorder) buildWhere(q Query) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	add := func(col string, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		if r.dialect == "postgres" {
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
		} else {
			clauses = append(clauses, col+" = ?")
		}
	}
	add("caller_id", q.CallerID)
	add("mode", q.Mode)
	add("error_kind", q.ErrorKind)
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// placeholders renders trailing LIMIT/OFFSET placeholders for the dialect,
// numbered after the n args already bound.
func (r *SQLRecorder) placeholders(n int, format string) string {
	if r.dialect == "postgres" {
		return fmt.Sprintf(format, fmt.Sprintf("$%d", n+1), fmt.Sprintf("$%d", n+2))
	}
	return fmt.Sprintf(format, "?", "?")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
