// Package dataset loads the per-country indicator table and turns rows into
// model.Entity records for a given pair of axis columns.
package dataset

import (
	"context"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bivariate-map/internal/fetcher"
	"github.com/sells-group/bivariate-map/internal/model"
)

// Options configures how a table is read and interpreted.
type Options struct {
	Sheet         string // XLSX sheet name; empty means the first sheet
	Delimiter     rune   // CSV delimiter; zero means ',' (or tab for .tsv)
	NameColumn    string // column joined against boundary names
	MissingMarker string // cell value meaning "value unknown"; empty disables markers
}

// Selector names the columns that feed one map.
type Selector struct {
	A        string
	AMissing string
	B        string
	BMissing string
}

// Table is a parsed sheet with a header row.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
	nameCol int
	marker  string
}

// Load reads the table at path, choosing the parser from the file extension.
func Load(ctx context.Context, path string, opts Options) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.Sheet})
	case ".csv", ".tsv", ".txt":
		csvOpts := fetcher.CSVOptions{Delimiter: opts.Delimiter, LazyQuotes: true}
		if ext == ".tsv" && csvOpts.Delimiter == 0 {
			csvOpts.Delimiter = '\t'
		}
		rows, err = fetcher.ReadCSV(ctx, path, csvOpts)
	default:
		return nil, eris.Errorf("dataset: unsupported table format %q", ext)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}

	t, err := FromRows(rows, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: %s", path)
	}
	zap.L().Info("dataset: loaded table",
		zap.String("path", path),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.columns)),
	)
	return t, nil
}

// FromRows builds a Table from raw rows. The first row is the header.
func FromRows(rows [][]string, opts Options) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("dataset: table has no header row")
	}
	nameCol := opts.NameColumn
	if nameCol == "" {
		nameCol = "Country"
	}

	header := rows[0]
	t := &Table{
		columns: make([]string, len(header)),
		index:   make(map[string]int, len(header)),
		marker:  opts.MissingMarker,
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.columns[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	idx, err := t.lookup(nameCol)
	if err != nil {
		return nil, err
	}
	t.nameCol = idx

	for _, row := range rows[1:] {
		if strings.TrimSpace(cell(row, t.nameCol)) == "" {
			continue
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Len returns the number of named rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the header names in sheet order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether name resolves to a column.
func (t *Table) HasColumn(name string) bool {
	_, err := t.lookup(name)
	return err == nil
}

// lookup matches a header exactly, then case-insensitively.
func (t *Table) lookup(name string) (int, error) {
	name = strings.TrimSpace(name)
	if i, ok := t.index[name]; ok {
		return i, nil
	}
	for i, c := range t.columns {
		if strings.EqualFold(c, name) {
			return i, nil
		}
	}
	return -1, eris.Errorf("dataset: column %q not found", name)
}

// Values returns the numeric values of a column, NaN where a cell is blank or
// not a number.
func (t *Table) Values(column string) ([]float64, error) {
	idx, err := t.lookup(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		out[i] = ParseValue(cell(row, idx))
	}
	return out, nil
}

// Entities builds one Entity per named row from the selected columns. Missing
// markers are optional; an empty marker column name means "never missing".
func (t *Table) Entities(sel Selector) ([]model.Entity, error) {
	aIdx, err := t.lookup(sel.A)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: axis A")
	}
	bIdx, err := t.lookup(sel.B)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: axis B")
	}
	aMiss, err := t.optional(sel.AMissing)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: axis A missing marker")
	}
	bMiss, err := t.optional(sel.BMissing)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: axis B missing marker")
	}

	out := make([]model.Entity, 0, len(t.rows))
	var nonNumeric int
	for _, row := range t.rows {
		e := model.Entity{
			Name:     strings.TrimSpace(cell(row, t.nameCol)),
			A:        ParseValue(cell(row, aIdx)),
			B:        ParseValue(cell(row, bIdx)),
			MissingA: t.isMissing(row, aMiss),
			MissingB: t.isMissing(row, bMiss),
		}
		if math.IsNaN(e.A) || math.IsNaN(e.B) {
			nonNumeric++
		}
		out = append(out, e)
	}
	if nonNumeric > 0 {
		zap.L().Debug("dataset: rows with non-numeric values",
			zap.String("a", sel.A),
			zap.String("b", sel.B),
			zap.Int("rows", nonNumeric),
		)
	}
	return out, nil
}

func (t *Table) optional(name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return -1, nil
	}
	return t.lookup(name)
}

func (t *Table) isMissing(row []string, idx int) bool {
	if idx < 0 || t.marker == "" {
		return false
	}
	return cell(row, idx) == t.marker
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// ParseValue parses a numeric cell. Blank and non-numeric cells yield NaN; no
// substitute value is invented.
func ParseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
