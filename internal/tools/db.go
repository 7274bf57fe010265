package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// PostgreSQL driver for the db_* tools.
	_ "github.com/lib/pq"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

// maxQueryRows caps result sets so a single query cannot blow up the
// model context.
const maxQueryRows = 200

// OpenDB opens the shared PostgreSQL handle used by the db_* tools.
// The connection is established lazily on first use.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	return db, nil
}

func extractParams(args map[string]any) []any {
	raw, ok := args["params"].([]any)
	if !ok {
		return nil
	}
	return raw
}

// rowsToMaps scans all rows into generic maps, converting []byte cells
// to strings for JSON friendliness.
func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		if len(out) >= maxQueryRows {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DBQueryTool runs read-only SQL queries.
type DBQueryTool struct {
	db *sql.DB
}

// NewDBQueryTool creates a new DBQueryTool instance.
func NewDBQueryTool(db *sql.DB) *DBQueryTool {
	return &DBQueryTool{db: db}
}

func (t *DBQueryTool) Name() string {
	return "db_query"
}

func (t *DBQueryTool) Description() string {
	return "Runs a read-only SQL query against the configured PostgreSQL database. Use $1, $2, ... placeholders with the params array."
}

func (t *DBQueryTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"sql": {
					Type:        "string",
					Description: "The SQL query to execute. Use $1, $2, ... for parameters.",
				},
				"params": {
					Type:        "array",
					Description: "Positional query parameters.",
					Items:       &Schema{Type: "string"},
				},
			},
			Required: []string{"sql"},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *DBQueryTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *DBQueryTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	query, _ := GetString(args, "sql")

	rows, err := t.db.QueryContext(ctx, query, extractParams(args)...)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("query failed: %s", err)), nil
	}
	defer rows.Close()

	result, err := rowsToMaps(rows)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to read rows: %s", err)), nil
	}

	return NewSuccessResultWithData(fmt.Sprintf("%d row(s)", len(result)), map[string]any{
		"rows":  result,
		"count": len(result),
	}), nil
}

// DBExecuteTool runs mutating SQL statements.
type DBExecuteTool struct {
	db *sql.DB
}

// NewDBExecuteTool creates a new DBExecuteTool instance.
func NewDBExecuteTool(db *sql.DB) *DBExecuteTool {
	return &DBExecuteTool{db: db}
}

func (t *DBExecuteTool) Name() string {
	return "db_execute"
}

func (t *DBExecuteTool) Description() string {
	return "Executes an INSERT, UPDATE or DELETE statement. Use $1, $2, ... placeholders with the params array."
}

func (t *DBExecuteTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"sql": {
					Type:        "string",
					Description: "The SQL statement to execute. Use $1, $2, ... for parameters.",
				},
				"params": {
					Type:        "array",
					Description: "Positional statement parameters.",
					Items:       &Schema{Type: "string"},
				},
			},
			Required: []string{"sql"},
		},
		RequiredRoles:     []auth.Role{auth.RoleDev, auth.RoleOperator, auth.RoleAdmin},
		SafeForProduction: false,
	}
}

func (t *DBExecuteTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *DBExecuteTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	stmt, _ := GetString(args, "sql")

	res, err := t.db.ExecContext(ctx, stmt, extractParams(args)...)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("statement failed: %s", err)), nil
	}

	affected, _ := res.RowsAffected()
	return NewSuccessResultWithData(fmt.Sprintf("%d row(s) affected", affected), map[string]any{
		"rows_affected": affected,
	}), nil
}

// DBMigrateTool runs DDL statements. Admin only.
type DBMigrateTool struct {
	db *sql.DB
}

// NewDBMigrateTool creates a new DBMigrateTool instance.
func NewDBMigrateTool(db *sql.DB) *DBMigrateTool {
	return &DBMigrateTool{db: db}
}

func (t *DBMigrateTool) Name() string {
	return "db_migrate"
}

func (t *DBMigrateTool) Description() string {
	return "Runs a DDL migration statement (CREATE, ALTER, DROP). Admin only."
}

func (t *DBMigrateTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"sql": {
					Type:        "string",
					Description: "The DDL statement to run.",
				},
			},
			Required: []string{"sql"},
		},
		RequiredRoles:     []auth.Role{auth.RoleAdmin},
		SafeForProduction: false,
	}
}

func (t *DBMigrateTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *DBMigrateTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	stmt, _ := GetString(args, "sql")

	if _, err := t.db.ExecContext(ctx, stmt); err != nil {
		return NewErrorResult(fmt.Sprintf("migration failed: %s", err)), nil
	}
	return NewSuccessResult("migration applied"), nil
}

// DBSchemaTool introspects table definitions.
type DBSchemaTool struct {
	db *sql.DB
}

// NewDBSchemaTool creates a new DBSchemaTool instance.
func NewDBSchemaTool(db *sql.DB) *DBSchemaTool {
	return &DBSchemaTool{db: db}
}

func (t *DBSchemaTool) Name() string {
	return "db_schema"
}

func (t *DBSchemaTool) Description() string {
	return "Describes the database schema: all tables, or the columns of one table."
}

func (t *DBSchemaTool) Spec() *Spec {
	return &Spec{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"table": {
					Type:        "string",
					Description: "Optional table name. When omitted, all public tables are listed.",
				},
			},
		},
		RequiredRoles:     auth.All(),
		SafeForProduction: true,
	}
}

func (t *DBSchemaTool) Validate(args map[string]any) error {
	return ValidateAgainst(t.Spec().InputSchema, args)
}

func (t *DBSchemaTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	table, _ := GetString(args, "table")

	var rows *sql.Rows
	var err error
	if table == "" {
		rows, err = t.db.QueryContext(ctx,
			`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`)
	} else {
		rows, err = t.db.QueryContext(ctx,
			`SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`,
			strings.ToLower(table))
	}
	if err != nil {
		return NewErrorResult(fmt.Sprintf("schema query failed: %s", err)), nil
	}
	defer rows.Close()

	result, err := rowsToMaps(rows)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("failed to read schema: %s", err)), nil
	}
	return NewSuccessResultWithData(fmt.Sprintf("%d entries", len(result)), result), nil
}
