//go:build cgo

package codeindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// Compile-time check.
var _ Store = (*KuzuStore)(nil)

// KuzuStore implements Store on an embedded KuzuDB graph: File and Symbol
// node tables joined by a DEFINES relationship.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// NewKuzuStore opens a KuzuDB database. An empty path or ":memory:" keeps
// the graph in memory; otherwise the database lives at path and survives
// across runs.
func NewKuzuStore(path string) (*KuzuStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
		}
	}
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// Node tables precede the relationship table.
var kuzuDDL = []string{
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		language STRING,
		lines INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Symbol(
		id STRING,
		name STRING,
		kind STRING,
		exported BOOLEAN,
		file_path STRING,
		start_line INT64,
		end_line INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINES(FROM File TO Symbol)`,
}

// Init creates the tables if they do not exist.
func (s *KuzuStore) Init(_ context.Context) error {
	for _, stmt := range kuzuDDL {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// PutFile upserts a File node and drops symbols left from a previous index.
func (s *KuzuStore) PutFile(_ context.Context, file SourceFile) error {
	if err := s.exec(
		"MATCH (f:File {path: $path})-[:DEFINES]->(s:Symbol) DETACH DELETE s",
		map[string]any{"path": file.Path},
	); err != nil {
		return err
	}
	return s.exec(
		`MERGE (f:File {path: $path})
		 SET f.language = $lang, f.lines = $lines`,
		map[string]any{
			"path":  file.Path,
			"lang":  string(file.Language),
			"lines": int64(file.Lines),
		},
	)
}

// PutSymbol inserts a Symbol node and links it to its File.
func (s *KuzuStore) PutSymbol(_ context.Context, sym Symbol) error {
	return s.exec(
		`MATCH (f:File {path: $fp})
		 MERGE (s:Symbol {id: $id})
		 SET s.name = $name, s.kind = $kind, s.exported = $exported,
		     s.file_path = $fp, s.start_line = $sl, s.end_line = $el
		 MERGE (f)-[:DEFINES]->(s)`,
		map[string]any{
			"id":       symbolID(sym),
			"name":     sym.Name,
			"kind":     string(sym.Kind),
			"exported": sym.Exported,
			"fp":       sym.Path,
			"sl":       int64(sym.StartLine),
			"el":       int64(sym.EndLine),
		},
	)
}

// FileSymbols follows DEFINES edges from the file.
func (s *KuzuStore) FileSymbols(_ context.Context, path string) ([]Symbol, error) {
	rows, err := s.query(
		`MATCH (f:File {path: $path})-[:DEFINES]->(s:Symbol)
		 RETURN s.name, s.kind, s.exported, s.file_path, s.start_line, s.end_line
		 ORDER BY s.start_line`,
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	return rowsToSymbols(rows), nil
}

// Search matches symbol names case-insensitively.
func (s *KuzuStore) Search(_ context.Context, query string, limit int) ([]Symbol, error) {
	if limit <= 0 {
		limit = 1 << 20
	}
	rows, err := s.query(
		`MATCH (s:Symbol) WHERE lower(s.name) CONTAINS lower($q)
		 RETURN s.name, s.kind, s.exported, s.file_path, s.start_line, s.end_line
		 ORDER BY s.file_path, s.start_line
		 LIMIT $lim`,
		map[string]any{"q": query, "lim": int64(limit)},
	)
	if err != nil {
		return nil, err
	}
	return rowsToSymbols(rows), nil
}

// Stats counts File and Symbol nodes.
func (s *KuzuStore) Stats(_ context.Context) (Stats, error) {
	files, err := s.count("MATCH (n:File) RETURN count(n)")
	if err != nil {
		return Stats{}, err
	}
	symbols, err := s.count("MATCH (n:Symbol) RETURN count(n)")
	if err != nil {
		return Stats{}, err
	}
	return Stats{Files: files, Symbols: symbols}, nil
}

// ---------- helpers ----------

func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var (
		res *kuzu.QueryResult
		err error
	)
	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// symbolID is unique per file, name and line so overloads and same-named
// methods on different receivers coexist.
func symbolID(sym Symbol) string {
	return fmt.Sprintf("%s:%s:%d", sym.Path, sym.Name, sym.StartLine)
}

// rowsToSymbols converts rows in the column order
// name, kind, exported, file_path, start_line, end_line.
func rowsToSymbols(rows [][]any) []Symbol {
	out := make([]Symbol, 0, len(rows))
	for _, r := range rows {
		out = append(out, Symbol{
			Name:      toString(r[0]),
			Kind:      SymbolKind(toString(r[1])),
			Exported:  toBool(r[2]),
			Path:      toString(r[3]),
			StartLine: toInt(r[4]),
			EndLine:   toInt(r[5]),
		})
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}
