package dataset

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
)

const highCardinality = 50

// SummaryOptions bounds the size of the data summary passed to every prompt.
type SummaryOptions struct {
	SampleRows int `envconfig:"DATASET_SAMPLE_ROWS" default:"5"`
	MaxColumns int `envconfig:"DATASET_MAX_SUMMARY_COLUMNS" default:"60"`
}

// Summarize renders the fixed-format description of a dataset: shape, a
// per-column listing and the first rows.
func Summarize(f *Frame, opts SummaryOptions) string {
	if f == nil {
		return ""
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 5
	}
	rows, cols := f.Shape()

	shown := f.Columns
	truncated := 0
	if opts.MaxColumns > 0 && len(shown) > opts.MaxColumns {
		truncated = len(shown) - opts.MaxColumns
		shown = shown[:opts.MaxColumns]
	}

	var b strings.Builder
	b.WriteString("Dataset Overview:\n")
	fmt.Fprintf(&b, "- Shape: (%d, %d) (rows, columns)\n", rows, cols)
	b.WriteString("- Column Names and Data Types:\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " #\tColumn\tNon-Null Count\tDtype")
	fmt.Fprintln(tw, "---\t------\t--------------\t-----")
	for i, c := range shown {
		fmt.Fprintf(tw, " %d\t%s\t%d non-null\t%s\n", i, c.Name, nonNull(f, i), c.Type)
	}
	tw.Flush()
	if truncated > 0 {
		fmt.Fprintf(&b, "... %d more columns not shown\n", truncated)
	}

	fmt.Fprintf(&b, "- First %d rows (head):\n", opts.SampleRows)
	head := f.Head(opts.SampleRows)
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	names := make([]string, len(shown))
	for i, c := range shown {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, "\t"+strings.Join(names, "\t"))
	for i, r := range head.Rows {
		cells := make([]string, len(shown))
		for j := range shown {
			cells[j] = displayCell(r[j])
		}
		fmt.Fprintf(tw, "%d\t%s\n", i, strings.Join(cells, "\t"))
	}
	tw.Flush()

	return strings.TrimSpace(b.String())
}

// QualityReport describes missing values, duplicates and per-column types,
// with cleaning suggestions.
func QualityReport(f *Frame) string {
	if f == nil {
		return "No data available."
	}
	rows, _ := f.Shape()
	var b strings.Builder
	b.WriteString("### Data Quality & Cleaning Suggestions\n\n")
	b.WriteString("Here's a quick overview of your dataset's quality:\n\n")

	totalMissing := 0
	missing := make([]int, len(f.Columns))
	for i := range f.Columns {
		missing[i] = rows - nonNull(f, i)
		totalMissing += missing[i]
	}
	if totalMissing > 0 {
		fmt.Fprintf(&b, "**Missing Values:** Found **%d** missing values.\n", totalMissing)
		b.WriteString("Columns with missing data:\n")
		for i, c := range f.Columns {
			if missing[i] == 0 {
				continue
			}
			fmt.Fprintf(&b, "- **%s:** %d missing (%.2f%%)\n", c.Name, missing[i], percent(missing[i], rows))
		}
		b.WriteString("*Suggestion:* Consider imputation (e.g., filling with mean/median/mode) or removing rows/columns with excessive missing data.\n\n")
	} else {
		b.WriteString("**Missing Values:** No missing values found.\n\n")
	}

	if dups := duplicateRows(f); dups > 0 {
		fmt.Fprintf(&b, "**Duplicate Rows:** Found **%d** duplicate rows (%.2f%% of the data).\n", dups, percent(dups, rows))
		b.WriteString("*Suggestion:* You can remove these duplicates to prevent skewed analysis.\n\n")
	} else {
		b.WriteString("**Duplicate Rows:** No duplicate rows detected.\n\n")
	}

	b.WriteString("**Data Types & Column Summary:**\n")
	for i, c := range f.Columns {
		unique := uniqueCount(f, i)
		fmt.Fprintf(&b, "- **%s** (`%s`): %d unique values.\n", c.Name, c.Type, unique)
		if c.Type == TypeObject && mixedTypes(f, i) {
			b.WriteString("  - *Warning:* This column might contain mixed data types.\n")
		}
		if c.Type == TypeObject && unique > highCardinality {
			fmt.Fprintf(&b, "  - *Info:* High cardinality (%d unique values). Consider grouping or feature engineering.\n", unique)
		}
	}
	b.WriteString("\nThis initial check helps ensure your analysis starts on a solid foundation! You can ask me to perform any of these cleaning operations.")
	return b.String()
}

func nonNull(f *Frame, idx int) int {
	n := 0
	for _, r := range f.Rows {
		if r[idx] != "" {
			n++
		}
	}
	return n
}

func uniqueCount(f *Frame, idx int) int {
	seen := make(map[string]struct{})
	for _, r := range f.Rows {
		if r[idx] == "" {
			continue
		}
		seen[r[idx]] = struct{}{}
	}
	return len(seen)
}

func duplicateRows(f *Frame) int {
	seen := make(map[string]struct{}, len(f.Rows))
	dups := 0
	for _, r := range f.Rows {
		key := strings.Join(r, "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// mixedTypes reports an object column whose non-missing cells parse as more
// than one scalar kind.
func mixedTypes(f *Frame, idx int) bool {
	kinds := make(map[ColumnType]struct{})
	for _, r := range f.Rows {
		if r[idx] == "" {
			continue
		}
		kinds[inferType([][]string{{r[idx]}}, 0)] = struct{}{}
	}
	if len(kinds) <= 1 {
		return false
	}
	// ints are also floats; only a numeric/text mix counts
	keys := make([]string, 0, len(kinds))
	for k := range kinds {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return !(len(keys) == 2 && keys[0] == string(TypeFloat) && keys[1] == string(TypeInt))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func displayCell(s string) string {
	if s == "" {
		return "NaN"
	}
	return s
}
