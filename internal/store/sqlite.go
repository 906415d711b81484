package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/models"
	"github.com/starford/larder/internal/query"
)

// TimeLayout is a fixed-width RFC 3339 layout so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const tableSchemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	natural_key TEXT UNIQUE,
	data        TEXT NOT NULL DEFAULT '{}'
);
`

// SQLite is a Store backed by a local SQLite file. Each table holds one JSON
// document per row; predicates are evaluated with the JSON1 functions.
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	for table := range tableKeys {
		if _, err := conn.Exec(fmt.Sprintf(tableSchemaSQL, table)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: apply schema for %s: %w", table, err)
		}
	}
	return &SQLite{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Select compiles d to SQL and decodes the matching documents.
func (s *SQLite) Select(ctx context.Context, d query.Descriptor) ([]models.RawRecord, error) {
	if _, err := keysFor(d.Table); err != nil {
		return nil, err
	}
	where, args, err := compileWhere(d.Predicates)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, data FROM %s", d.Table)
	if where != "" {
		b.WriteString(" WHERE " + where)
	}
	if d.Order != nil {
		expr, orderArgs, err := fieldExpr(d.Order.Field)
		if err != nil {
			return nil, err
		}
		dir := "DESC"
		if d.Order.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s, id %s", expr, dir, dir)
		args = append(args, orderArgs...)
	} else {
		b.WriteString(" ORDER BY id ASC")
	}
	if d.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, d.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: select %s: %w", d.Table, err)
	}
	defer rows.Close()

	out := []models.RawRecord{}
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec, err := decodeRow(id, data)
		if err != nil {
			return nil, fmt.Errorf("store: decode %s/%d: %w", d.Table, id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Insert adds rec as a new row. created_at is stamped when absent.
func (s *SQLite) Insert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error) {
	keys, err := keysFor(table)
	if err != nil {
		return nil, err
	}
	doc := s.stamp(rec, false)
	data, err := encodeDoc(doc)
	if err != nil {
		return nil, err
	}

	var nk any
	if compositeKey(keys) {
		if nk, err = naturalKey(keys, doc); err != nil {
			return nil, err
		}
	}

	var id int64
	if explicit, ok := rec.Int64("id"); ok && explicit > 0 {
		err = s.conn.QueryRowContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, natural_key, data) VALUES (?, ?, ?) RETURNING id`, table),
			explicit, nk, data).Scan(&id)
	} else {
		err = s.conn.QueryRowContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (natural_key, data) VALUES (?, ?) RETURNING id`, table),
			nk, data).Scan(&id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store: insert %s: %w", table, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store: insert %s: %w", table, err)
	}
	return withID(doc, id), nil
}

// Upsert writes rec over the row with the same key, replacing the whole document.
// The original created_at survives the replace.
func (s *SQLite) Upsert(ctx context.Context, table string, rec models.RawRecord) (models.RawRecord, error) {
	keys, err := keysFor(table)
	if err != nil {
		return nil, err
	}
	doc := s.stamp(rec, true)
	data, err := encodeDoc(doc)
	if err != nil {
		return nil, err
	}

	keepCreated := fmt.Sprintf(
		`json_set(excluded.data, '$.created_at', COALESCE(json_extract(%[1]s.data, '$.created_at'), json_extract(excluded.data, '$.created_at')))`,
		table)

	var id int64
	switch explicit, hasID := rec.Int64("id"); {
	case compositeKey(keys):
		nk, err := naturalKey(keys, doc)
		if err != nil {
			return nil, err
		}
		err = s.conn.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (natural_key, data) VALUES (?, ?)
			ON CONFLICT(natural_key) DO UPDATE SET data = %s
			RETURNING id`, table, keepCreated), nk, data).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("store: upsert %s: %w", table, err)
		}
	case hasID && explicit > 0:
		err = s.conn.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = %s
			RETURNING id`, table, keepCreated), explicit, data).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("store: upsert %s: %w", table, err)
		}
	default:
		return s.Insert(ctx, table, rec)
	}

	var stored string
	if err := s.conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table), id).Scan(&stored); err != nil {
		return nil, fmt.Errorf("store: reload %s/%d: %w", table, id, err)
	}
	return decodeRow(id, stored)
}

// stamp copies rec without its id and fills the timestamps the database would default.
func (s *SQLite) stamp(rec models.RawRecord, update bool) models.RawRecord {
	doc := rec.Clone()
	delete(doc, "id")
	now := s.now().UTC().Format(TimeLayout)
	if v, ok := doc["created_at"]; !ok || v == nil {
		doc["created_at"] = now
	}
	if update {
		doc["updated_at"] = now
	}
	return doc
}

func compileWhere(preds []query.Predicate) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, p := range preds {
		expr, exprArgs, err := fieldExpr(p.Field)
		if err != nil {
			return "", nil, err
		}
		switch p.Op {
		case query.OpEq:
			clauses = append(clauses, expr+" = ?")
			args = append(append(args, exprArgs...), p.Value)
		case query.OpILike:
			clauses = append(clauses, "LOWER("+expr+`) LIKE LOWER(?) ESCAPE '\'`)
			args = append(append(args, exprArgs...), p.Value)
		case query.OpGte:
			clauses = append(clauses, expr+" >= ?")
			args = append(append(args, exprArgs...), p.Value)
		case query.OpLte:
			clauses = append(clauses, expr+" <= ?")
			args = append(append(args, exprArgs...), p.Value)
		case query.OpContains:
			if p.Field == "id" {
				return "", nil, fmt.Errorf("store: contains on id")
			}
			for _, v := range containsValues(p.Value) {
				clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(data, ?) WHERE json_each.value = ?)")
				args = append(args, "$."+p.Field, v)
			}
		default:
			return "", nil, fmt.Errorf("store: unsupported operator %q", p.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// fieldExpr maps a field to its SQL expression: the row id or a JSON path.
func fieldExpr(field string) (string, []any, error) {
	if err := checkField(field); err != nil {
		return "", nil, err
	}
	if field == "id" {
		return "id", nil, nil
	}
	return "json_extract(data, ?)", []any{"$." + field}, nil
}

func containsValues(v any) []any {
	switch vs := v.(type) {
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case []any:
		return vs
	case nil:
		return nil
	}
	return []any{v}
}

func encodeDoc(doc models.RawRecord) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("store: encode: %w", err)
	}
	return string(data), nil
}

func decodeRow(id int64, data string) (models.RawRecord, error) {
	var rec models.RawRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return withID(rec, id), nil
}

func withID(rec models.RawRecord, id int64) models.RawRecord {
	out := rec.Clone()
	out["id"] = id
	return out
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
