package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/felixgeelhaar/ragent/domain/tool"
)

// StructuredQueryName is the registry name of the SQL tool.
const StructuredQueryName = "structured_query"

// DefaultMaxRows bounds the rows one query returns.
const DefaultMaxRows = 50

// StructuredQuery runs read-only SELECT statements against a sqlite database.
type StructuredQuery struct {
	db      *sql.DB
	maxRows int
}

// OpenStructuredQuery opens dsn read-only.
func OpenStructuredQuery(dsn string, maxRows int) (*StructuredQuery, error) {
	if !strings.Contains(dsn, "mode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "mode=ro"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open structured query database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open structured query database: %w", err)
	}
	return NewStructuredQuery(db, maxRows), nil
}

// NewStructuredQuery wraps an open database.
func NewStructuredQuery(db *sql.DB, maxRows int) *StructuredQuery {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &StructuredQuery{db: db, maxRows: maxRows}
}

// Close closes the database.
func (q *StructuredQuery) Close() error {
	return q.db.Close()
}

type structuredQueryArgs struct {
	SQL string `json:"sql"`
}

// Tool builds the registry entry for the SQL tool.
func (q *StructuredQuery) Tool() tool.Tool {
	return tool.NewBuilder(StructuredQueryName).
		WithDescription("Run a read-only SQL SELECT against the structured data store. Returns matching rows.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"sql": tool.Property("string", "a single SQLite SELECT statement"),
		}, []string{"sql"})).
		ReadOnly().
		Idempotent().
		WithTags("retrieval", "sql").
		WithHandler(q.handle).
		MustBuild()
}

func (q *StructuredQuery) handle(ctx context.Context, input json.RawMessage) (tool.Result, error) {
	var args structuredQueryArgs
	if err := decodeArgs(input, &args); err != nil {
		return tool.NewErrorResult(err), nil
	}
	if err := required("sql", args.SQL); err != nil {
		return tool.NewErrorResult(err), nil
	}
	stmt, err := readOnly(args.SQL)
	if err != nil {
		return tool.NewErrorResult(err), nil
	}

	rows, truncated, err := q.run(ctx, stmt)
	if err != nil {
		return tool.NewErrorResult(err), nil
	}

	docs := make([]Document, len(rows))
	for i, row := range rows {
		raw, _ := json.Marshal(row)
		docs[i] = Document{Content: string(raw), Source: fmt.Sprintf("%s#row-%d", StructuredQueryName, i+1)}
	}
	return tool.JSONResult(map[string]any{
		"rows":      rows,
		"row_count": len(rows),
		"truncated": truncated,
		"documents": docs,
	})
}

func (q *StructuredQuery) run(ctx context.Context, stmt string) ([]map[string]any, bool, error) {
	rs, err := q.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = rs.Close() }()

	cols, err := rs.Columns()
	if err != nil {
		return nil, false, err
	}

	rows := make([]map[string]any, 0)
	truncated := false
	for rs.Next() {
		if len(rows) == q.maxRows {
			truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, truncated, rs.Err()
}

// readOnly accepts one SELECT statement, optionally ending in a semicolon.
func readOnly(stmt string) (string, error) {
	s := strings.TrimSuffix(strings.TrimSpace(stmt), ";")
	if strings.Contains(s, ";") {
		return "", ErrReadOnly
	}
	fields := strings.Fields(s)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "SELECT") {
		return "", ErrReadOnly
	}
	return s, nil
}
