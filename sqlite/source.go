// Package sqlite provides a dataset.Source backed by a SQLite table. The
// table is read once into memory; filtering then runs over the materialized
// rows without issuing further queries.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/asaidimu/go-sift/core/dataset"
)

// ErrTableNotFound is returned when the table has no columns (or does not exist).
var ErrTableNotFound = errors.New("table not found")

// dbRunner abstracts the query methods shared by *sql.DB, *sql.Tx and *sql.Conn.
type dbRunner interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TableSourceOptions configures NewTableSource.
type TableSourceOptions struct {
	// IncludeHeader adds a single header row holding the column names.
	IncludeHeader bool
	Logger        *zap.Logger
}

// DefaultTableSourceOptions returns options without a header row.
func DefaultTableSourceOptions() *TableSourceOptions {
	return &TableSourceOptions{Logger: zap.NewNop()}
}

// TableSource is a dataset.Source over the rows of a SQLite table. Rows are
// []any in column order; dimensions carry the declared column types.
type TableSource struct {
	*dataset.MemorySource
	table string
	dims  []dataset.DimensionInfo
}

var _ dataset.Source = (*TableSource)(nil)

// NewTableSource reads table (or view) from db. Column names become
// dimensions. Table rows are returned in rowid order, or primary key order
// for WITHOUT ROWID tables.
func NewTableSource(ctx context.Context, db dbRunner, table string, opts *TableSourceOptions) (*TableSource, error) {
	if opts == nil {
		opts = DefaultTableSourceOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dims, pk, err := readColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	kind, err := readTableKind(ctx, db, table)
	if err != nil {
		return nil, err
	}

	query := selectQuery(table, kind, pk)
	logger.Debug("Executing SQL SELECT", zap.String("sql", query))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", query))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	data, err := readRows(dims, rows)
	if err != nil {
		return nil, err
	}

	headerCount := 0
	if opts.IncludeHeader {
		header := make([]any, len(dims))
		for i, d := range dims {
			header[i] = d.Name
		}
		data = append([]dataset.RawRow{header}, data...)
		headerCount = 1
	}

	src, err := newTableSource(table, dims, headerCount, data)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded table source",
		zap.String("table", table),
		zap.Int("dimensions", len(dims)),
		zap.Int("rows", src.Count()),
	)
	return src, nil
}

func newTableSource(table string, dims []dataset.DimensionInfo, headerCount int, rows []dataset.RawRow) (*TableSource, error) {
	mem, err := dataset.NewMemorySource(dataset.MemoryOptions{
		Format:      dataset.FormatArrayRows,
		Dimensions:  dataset.DimensionNames(dims),
		HeaderCount: headerCount,
	}, rows)
	if err != nil {
		return nil, err
	}
	return &TableSource{MemorySource: mem, table: table, dims: dims}, nil
}

// Table returns the source table name.
func (s *TableSource) Table() string {
	return s.table
}

func (s *TableSource) DimensionInfoAll() []dataset.DimensionInfo {
	out := make([]dataset.DimensionInfo, len(s.dims))
	copy(out, s.dims)
	return out
}

func (s *TableSource) DimensionInfo(dim any) (dataset.DimensionInfo, bool) {
	info, ok := s.MemorySource.DimensionInfo(dim)
	if !ok {
		return info, false
	}
	return s.dims[info.Index], true
}

// Like returns a TableSource with the same table, dimensions and header
// count over rows. It lets transform chains keep column types.
func (s *TableSource) Like(rows []dataset.RawRow) (dataset.Source, error) {
	return newTableSource(s.table, s.dims, s.HeaderCount(), rows)
}

func readColumns(ctx context.Context, db dbRunner, table string) ([]dataset.DimensionInfo, []string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns of %q: %w", table, err)
	}
	defer rows.Close()

	var (
		dims  []dataset.DimensionInfo
		pkPos = map[int]string{}
	)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		dims = append(dims, dataset.DimensionInfo{Name: name, Index: len(dims), Type: strings.ToUpper(colType)})
		if pk > 0 {
			pkPos[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error after scanning columns: %w", err)
	}
	if len(dims) == 0 {
		return nil, nil, fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}

	// pk holds the 1-based position of the column within the primary key.
	pk := make([]string, 0, len(pkPos))
	for i := 1; i <= len(pkPos); i++ {
		if name, ok := pkPos[i]; ok {
			pk = append(pk, name)
		}
	}
	return dims, pk, nil
}

// tableKind describes how rows of a table can be ordered.
type tableKind struct {
	view    bool
	noRowID bool
}

// readTableKind reports whether table is a view or a WITHOUT ROWID table.
func readTableKind(ctx context.Context, db dbRunner, table string) (tableKind, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_list(%s)", quoteIdentifier(table)))
	if err != nil {
		return tableKind{}, fmt.Errorf("failed to read table type of %q: %w", table, err)
	}
	defer rows.Close()

	var kind tableKind
	if rows.Next() {
		var (
			schemaName string
			name       string
			typ        string
			ncol       int
			wr         int
			strict     int
		)
		if err := rows.Scan(&schemaName, &name, &typ, &ncol, &wr, &strict); err != nil {
			return tableKind{}, fmt.Errorf("failed to scan table info: %w", err)
		}
		kind = tableKind{view: typ == "view", noRowID: wr != 0}
	}
	if err := rows.Err(); err != nil {
		return tableKind{}, fmt.Errorf("error after scanning table info: %w", err)
	}
	return kind, nil
}

// selectQuery reads every row in a stable order: rowid for ordinary tables,
// the primary key for WITHOUT ROWID tables, and the view's own order for views.
func selectQuery(table string, kind tableKind, pk []string) string {
	query := "SELECT * FROM " + quoteIdentifier(table)
	switch {
	case kind.view:
		return query
	case kind.noRowID && len(pk) > 0:
		cols := make([]string, len(pk))
		for i, c := range pk {
			cols[i] = quoteIdentifier(c)
		}
		return query + " ORDER BY " + strings.Join(cols, ", ")
	case kind.noRowID:
		return query
	}
	return query + " ORDER BY rowid"
}

// readRows scans every row into a []any, converting driver values by the
// declared column type.
func readRows(dims []dataset.DimensionInfo, rows *sql.Rows) ([]dataset.RawRow, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(columns) != len(dims) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(dims), len(columns))
	}

	var results []dataset.RawRow
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, val := range values {
			values[i] = convertValue(dims[i].Type, val)
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

func convertValue(colType string, val any) any {
	if val == nil {
		return nil
	}
	if b, ok := val.([]byte); ok && !strings.Contains(colType, "BLOB") {
		val = string(b)
	}
	switch {
	case strings.Contains(colType, "BOOL"):
		if i, ok := val.(int64); ok {
			return i != 0
		}
	case strings.Contains(colType, "INT"):
		if f, ok := val.(float64); ok {
			return int64(f)
		}
	case strings.Contains(colType, "REAL"), strings.Contains(colType, "FLOA"), strings.Contains(colType, "DOUB"):
		if i, ok := val.(int64); ok {
			return float64(i)
		}
	}
	return val
}

// quoteIdentifier quotes a table or column name for use in SQL.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
