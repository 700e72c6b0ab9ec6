package output

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Table is a Renderable table with headers, rows, and optional footer.
// Columns whose cells are all numbers or percentages are right aligned.
type Table struct {
	Title   string     `json:"-"`
	Headers []string   `json:"-"`
	Rows    [][]string `json:"-"`
	Footer  []string   `json:"-"`
	Data    any        `json:"data,omitempty"`
}

// NewTable creates a table that wraps structured data for serialization.
// When data is nil, JSON and TOON output fall back to the rows keyed by
// header.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
		Data:    data,
	}
}

// RenderData implements Renderable.
func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	result := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = stripANSI(row[j])
			}
		}
		result[i] = m
	}
	return result
}

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func numeric(cell string) bool {
	cell = strings.TrimSpace(stripANSI(cell))
	cell = strings.TrimSuffix(cell, "%")
	_, err := strconv.ParseFloat(cell, 64)
	return err == nil
}

// alignments right-aligns the columns in which every non-empty cell is
// numeric.
func (t *Table) alignments() []tw.Align {
	out := make([]tw.Align, len(t.Headers))
	for col := range t.Headers {
		out[col] = tw.AlignLeft
		seen := false
		right := true
		for _, row := range t.Rows {
			if col >= len(row) || row[col] == "" {
				continue
			}
			seen = true
			if !numeric(row[col]) {
				right = false
				break
			}
		}
		if seen && right {
			out[col] = tw.AlignRight
		}
	}
	return out
}

// heading prints title over an underline of its visible width. Titles that
// already carry color codes are printed as given.
func heading(w io.Writer, title, underline string, colored bool, attrs ...color.Attribute) {
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat(underline, len(stripANSI(title))))
}

// RenderText implements Renderable.
func (t *Table) RenderText(w io.Writer, colored bool) error {
	if t.Title != "" {
		heading(w, t.Title, "=", colored, color.Bold)
		fmt.Fprintln(w)
	}

	align := t.alignments()
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft, PerColumn: align},
			},
			Footer: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft, PerColumn: align},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)

	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		footer := make([]any, len(t.Footer))
		for i, f := range t.Footer {
			footer[i] = f
		}
		table.Footer(footer...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// mdCell escapes a cell for a markdown table. C++ operator names such as
// "operator|" would otherwise split the row.
func mdCell(s string) string {
	s = stripANSI(s)
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func mdRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = mdCell(c)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

// RenderMarkdown implements Renderable.
func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	mdRow(w, t.Headers)

	seps := make([]string, len(t.Headers))
	for i, a := range t.alignments() {
		seps[i] = "---"
		if a == tw.AlignRight {
			seps[i] = "---:"
		}
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range t.Rows {
		mdRow(w, row)
	}
	if len(t.Footer) > 0 {
		mdRow(w, t.Footer)
	}
	_, err := fmt.Fprintln(w)
	return err
}
