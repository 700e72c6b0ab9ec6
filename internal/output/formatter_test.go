package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/olekukonko/tablewriter/tw"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"JSON", FormatJSON},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"toon", FormatTOON},
		{"", FormatText},
		{"html", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.Colored() {
		t.Error("file output should never be colored")
	}
	if err := f.Output(map[string]int{"fuzzers": 2}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["fuzzers"] != 2 {
		t.Errorf("fuzzers = %d, want 2", got["fuzzers"])
	}

	if _, err := NewFormatter(FormatJSON, filepath.Join(t.TempDir(), "missing", "out.json"), false); err == nil {
		t.Error("NewFormatter() should fail for an unwritable path")
	}
}

func sampleTable() *Table {
	return NewTable("Blockers",
		[]string{"Callsite", "Forward reds"},
		[][]string{{"parse_body", "12"}, {"read_token", "3"}},
		[]string{"Total", "15"},
		nil)
}

func TestTableRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleTable().RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Blockers", "========", "parse_body", "read_token", "15"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleTable().RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	want := "## Blockers\n\n| Callsite | Forward reds |\n| --- | ---: |\n| parse_body | 12 |\n| read_token | 3 |\n| Total | 15 |\n\n"
	if buf.String() != want {
		t.Errorf("markdown =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestTableRenderData(t *testing.T) {
	rows, ok := sampleTable().RenderData().([]map[string]string)
	if !ok {
		t.Fatalf("RenderData() type = %T", sampleTable().RenderData())
	}
	if len(rows) != 2 || rows[0]["Callsite"] != "parse_body" || rows[1]["Forward reds"] != "3" {
		t.Errorf("RenderData() = %v", rows)
	}

	withData := NewTable("", nil, nil, nil, []int{1, 2})
	if got, ok := withData.RenderData().([]int); !ok || len(got) != 2 {
		t.Errorf("RenderData() should return Data when set, got %v", withData.RenderData())
	}
}

func TestSectionRender(t *testing.T) {
	s := &Section{
		Title:   "Project",
		Content: "2 fuzzers",
		Sections: []Section{
			{Title: "Conclusions", Content: "Fuzzers reach 50.00% of all functions."},
		},
	}

	var text bytes.Buffer
	if err := s.RenderText(&text, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "Conclusions\n-----------") {
		t.Errorf("subsection should be underlined with dashes:\n%s", text.String())
	}

	var md bytes.Buffer
	if err := s.RenderMarkdown(&md); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(md.String(), "## Project\n\n2 fuzzers\n\n### Conclusions\n") {
		t.Errorf("markdown =\n%s", md.String())
	}
}

func TestReportRenderData(t *testing.T) {
	r := &Report{Title: "fuzzlens", Sections: []Renderable{sampleTable()}}
	data, ok := r.RenderData().(map[string]any)
	if !ok {
		t.Fatalf("RenderData() type = %T", r.RenderData())
	}
	if data["title"] != "fuzzlens" {
		t.Errorf("title = %v", data["title"])
	}
	if parts := data["sections"].([]any); len(parts) != 1 {
		t.Errorf("sections = %d, want 1", len(parts))
	}

	var md bytes.Buffer
	if err := r.RenderMarkdown(&md); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(md.String(), "# fuzzlens\n\n## Blockers") {
		t.Errorf("markdown =\n%s", md.String())
	}
}

func TestFormatterOutputFormats(t *testing.T) {
	type row struct {
		Name  string `json:"name" toon:"name"`
		Count int    `json:"count" toon:"count"`
	}
	data := []row{{"parse", 3}, {"decode", 1}}

	tests := []struct {
		format Format
		want   []string
	}{
		{FormatJSON, []string{`"name": "parse"`, `"count": 1`}},
		{FormatTOON, []string{"parse", "decode"}},
		{FormatMarkdown, []string{"```json", `"name": "decode"`}},
		{FormatText, []string{`"name": "parse"`}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			f := NewWriterFormatter(tt.format, &buf, false)
			if err := f.Output(data); err != nil {
				t.Fatalf("Output() error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("%s output missing %q:\n%s", tt.format, want, buf.String())
				}
			}
		})
	}
}

func TestFormatterRenderableTOON(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatTOON, &buf, false)
	if err := f.Output(sampleTable()); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if !strings.Contains(buf.String(), "parse_body") {
		t.Errorf("toon output missing row:\n%s", buf.String())
	}
}

func TestFormatterMessages(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatText, &buf, false)
	f.Warning("no coverage for %s", "fuzz_a")
	f.Info("done")

	want := "WARNING: no coverage for fuzz_a\ndone\n"
	if buf.String() != want {
		t.Errorf("messages =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestFormatterMessagesKeepStructuredOutputClean(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatTOON} {
		t.Run(string(format), func(t *testing.T) {
			var out, status bytes.Buffer
			f := NewWriterFormatter(format, &out, false)
			if f.status != os.Stderr {
				t.Fatalf("status writer for %s should be stderr", format)
			}
			f.status = &status

			f.Warning("no coverage for %s", "fuzz_a")
			if err := f.Output(map[string]int{"fuzzers": 2}); err != nil {
				t.Fatalf("Output() error: %v", err)
			}
			if strings.Contains(out.String(), "WARNING") {
				t.Errorf("warning leaked into %s output:\n%s", format, out.String())
			}
			if !strings.Contains(status.String(), "no coverage for fuzz_a") {
				t.Errorf("status = %q", status.String())
			}
		})
	}

	var out bytes.Buffer
	f := NewWriterFormatter(FormatJSON, &out, false)
	f.status = io.Discard
	f.Info("loaded")
	if err := f.Output(map[string]int{"fuzzers": 2}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Errorf("output is not JSON: %v\n%s", err, out.String())
	}
}

func TestTableMarkdownEscapesPipes(t *testing.T) {
	tbl := NewTable("", []string{"Function", "Hits"},
		[][]string{{"Flags::operator|(Flags)", "4"}, {"a\nb", "1"}}, nil, nil)
	var buf bytes.Buffer
	if err := tbl.RenderMarkdown(&buf); err != nil {
		t.Fatal(err)
	}
	want := "| Function | Hits |\n| --- | ---: |\n| Flags::operator\\|(Flags) | 4 |\n| a b | 1 |\n\n"
	if buf.String() != want {
		t.Errorf("markdown =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestTableAlignments(t *testing.T) {
	tbl := NewTable("", []string{"Name", "Count", "Pct", "Empty", "Mixed"},
		[][]string{
			{"parse", "12", "42.50%", "", "3"},
			{"decode", "3", "\x1b[32m7.00%\x1b[0m", "", "n/a"},
		}, nil, nil)
	got := tbl.alignments()
	want := []tw.Align{tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignLeft, tw.AlignLeft}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d align = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTableRenderDataStripsColor(t *testing.T) {
	tbl := NewTable("", []string{"Pct"}, [][]string{{Percent(80, 30, 70, true)}}, nil, nil)
	rows := tbl.RenderData().([]map[string]string)
	if rows[0]["Pct"] != "80.00%" {
		t.Errorf("RenderData() cell = %q, want 80.00%%", rows[0]["Pct"])
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(42.5, 30, 70, false); got != "42.50%" {
		t.Errorf("Percent() = %q, want 42.50%%", got)
	}
	if got := SeverityColor(8, "ok"); !strings.Contains(got, "ok") {
		t.Errorf("SeverityColor() = %q, should contain text", got)
	}
}
