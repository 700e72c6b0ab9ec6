package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Section is a titled block of prose with nested subsections.
type Section struct {
	Title    string    `json:"title,omitempty"`
	Content  string    `json:"content,omitempty"`
	Sections []Section `json:"sections,omitempty"`
}

// RenderData implements Renderable.
func (s *Section) RenderData() any {
	return s
}

// RenderText implements Renderable.
func (s *Section) RenderText(w io.Writer, colored bool) error {
	s.text(w, colored, 0)
	return nil
}

func (s *Section) text(w io.Writer, colored bool, depth int) {
	if s.Title != "" {
		underline := "="
		if depth > 0 {
			underline = "-"
		}
		heading(w, s.Title, underline, colored && s.Title == stripANSI(s.Title), color.Bold)
	}
	if s.Content != "" {
		fmt.Fprintln(w, s.Content)
	}
	for i := range s.Sections {
		fmt.Fprintln(w)
		s.Sections[i].text(w, colored, depth+1)
	}
}

// RenderMarkdown implements Renderable.
func (s *Section) RenderMarkdown(w io.Writer) error {
	s.markdown(w, 2)
	return nil
}

func (s *Section) markdown(w io.Writer, level int) {
	if s.Title != "" {
		fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), stripANSI(s.Title))
	}
	if s.Content != "" {
		fmt.Fprintf(w, "%s\n\n", s.Content)
	}
	for i := range s.Sections {
		s.Sections[i].markdown(w, level+1)
	}
}

// Report is an ordered list of renderables under one title.
type Report struct {
	Title    string       `json:"title,omitempty"`
	Sections []Renderable `json:"-"`
	Data     any          `json:"data,omitempty"`
}

// RenderData implements Renderable. Without Data the sections are
// serialized in order.
func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{
		"title":    r.Title,
		"sections": parts,
	}
}

// RenderText implements Renderable.
func (r *Report) RenderText(w io.Writer, colored bool) error {
	if r.Title != "" {
		heading(w, r.Title, "=", colored, color.Bold, color.FgCyan)
		fmt.Fprintln(w)
	}
	for i, s := range r.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

// RenderMarkdown implements Renderable.
func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

// SeverityColor colors text by a conclusion severity: 0 to 3 red, 4 to 6
// yellow, 7 and above green.
func SeverityColor(severity int, text string) string {
	switch {
	case severity >= 7:
		return color.GreenString(text)
	case severity >= 4:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

// Percent formats a percentage, colored against low and high marks when
// colored is set.
func Percent(pct, low, high float64, colored bool) string {
	text := fmt.Sprintf("%.2f%%", pct)
	if !colored {
		return text
	}
	switch {
	case pct >= high:
		return color.GreenString(text)
	case pct >= low:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
