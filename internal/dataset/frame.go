package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrColumnNotFound is returned when a referenced column does not exist.
	ErrColumnNotFound = errors.New("column not found")
	// ErrNotNumeric is returned when a numeric column was expected.
	ErrNotNumeric = errors.New("column is not numeric")
	// ErrUnsupportedFormat is returned for files that are neither CSV nor Excel.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmpty is returned when a file has no header row.
	ErrEmpty = errors.New("dataset is empty")
)

// ColumnType is the inferred storage type of a column, named after the
// dtypes the analysis prompts talk about.
type ColumnType string

const (
	TypeInt      ColumnType = "int64"
	TypeFloat    ColumnType = "float64"
	TypeBool     ColumnType = "bool"
	TypeDatetime ColumnType = "datetime64"
	TypeObject   ColumnType = "object"
)

// IsNumeric reports whether values of this type can be plotted on a value axis.
func (t ColumnType) IsNumeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Column describes one column of a Frame.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"dtype"`
}

// Frame is an immutable, row-oriented table. Cells hold the raw text of the
// source file; an empty cell is a missing value, and the usual missing-value
// markers (NA, N/A, NaN, null, None, #N/A, ...) are stored as empty.
//
// A Frame is never mutated after Load/New returns, so it can be shared by
// concurrent invocations as long as callers do not modify Rows in place.
type Frame struct {
	Name    string     `json:"name,omitempty"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`

	index map[string]int
}

// New builds a Frame from a header and rows, padding short rows and
// inferring column types.
func New(name string, header []string, rows [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, ErrEmpty
	}
	f := &Frame{
		Name:    name,
		Columns: make([]Column, len(header)),
		Rows:    make([][]string, 0, len(rows)),
		index:   make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := f.index[h]; dup {
			h = fmt.Sprintf("%s.%d", h, i)
		}
		f.Columns[i] = Column{Name: h}
		f.index[h] = i
	}
	for _, r := range rows {
		row := make([]string, len(header))
		copy(row, r)
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
			if IsMissing(row[i]) {
				row[i] = ""
			}
		}
		f.Rows = append(f.Rows, row)
	}
	for i := range f.Columns {
		f.Columns[i].Type = inferType(f.Rows, i)
	}
	return f, nil
}

// Empty returns a Frame with no columns and no rows.
func Empty(name string) *Frame {
	return &Frame{Name: name, Columns: []Column{}, Rows: [][]string{}, index: map[string]int{}}
}

// naMarkers are the cell texts read as missing, matching pandas' defaults.
var naMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// IsMissing reports whether a trimmed cell is a missing value.
func IsMissing(s string) bool {
	if s == "" {
		return true
	}
	_, ok := naMarkers[s]
	return ok
}

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) {
	return len(f.Rows), len(f.Columns)
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name. It never writes to f.
func (f *Frame) Column(name string) (Column, int, error) {
	i, ok := f.lookup(name)
	if !ok {
		return Column{}, -1, fmt.Errorf("%w: %q (available: %s)", ErrColumnNotFound, name, strings.Join(f.ColumnNames(), ", "))
	}
	return f.Columns[i], i, nil
}

// Strings returns the raw cell values of a column.
func (f *Frame) Strings(name string) ([]string, error) {
	_, idx, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Floats returns the non-missing values of a numeric column.
func (f *Frame) Floats(name string) ([]float64, error) {
	col, idx, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if !col.Type.IsNumeric() {
		return nil, fmt.Errorf("%w: %q has dtype %s", ErrNotNumeric, name, col.Type)
	}
	out := make([]float64, 0, len(f.Rows))
	for _, r := range f.Rows {
		if r[idx] == "" {
			continue
		}
		v, err := strconv.ParseFloat(r[idx], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q holds %q", ErrNotNumeric, name, r[idx])
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Values returns a column converted to typed values (float64, bool or string)
// with missing cells and non-finite numbers as nil, suitable for chart traces.
func (f *Frame) Values(name string) ([]any, error) {
	col, idx, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = typedCell(r[idx], col.Type)
	}
	return out, nil
}

// Head returns a new Frame with the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	if n < 0 {
		n = 0
	}
	index := f.index
	if index == nil {
		index = buildIndex(f.Columns)
	}
	return &Frame{Name: f.Name, Columns: f.Columns, Rows: f.Rows[:n], index: index}
}

func buildIndex(cols []Column) map[string]int {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.Name] = i
	}
	return index
}

// lookup falls back to a scan for frames built as literals.
func (f *Frame) lookup(name string) (int, bool) {
	if f.index != nil {
		i, ok := f.index[name]
		return i, ok
	}
	for i, c := range f.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

func typedCell(s string, t ColumnType) any {
	if s == "" {
		return nil
	}
	switch t {
	case TypeInt, TypeFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case TypeBool:
		if v, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return v
		}
	}
	return s
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

func inferType(rows [][]string, idx int) ColumnType {
	seen := 0
	isInt, isFloat, isBool, isTime := true, true, true, true
	for _, r := range rows {
		s := r[idx]
		if IsMissing(s) {
			continue
		}
		seen++
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			switch strings.ToLower(s) {
			case "true", "false":
			default:
				isBool = false
			}
		}
		if isTime {
			isTime = parsesAsTime(s)
		}
		if !isInt && !isFloat && !isBool && !isTime {
			return TypeObject
		}
	}
	switch {
	case seen == 0:
		return TypeObject
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	case isBool:
		return TypeBool
	case isTime:
		return TypeDatetime
	}
	return TypeObject
}

func parsesAsTime(s string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
