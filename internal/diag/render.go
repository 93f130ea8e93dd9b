package diag

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/muesli/termenv"
)

const (
	MAX_EXCERPT_LINES = 3

	//chroma has no lexer for the language, the Clojure lexer is close enough for an excerpt.
	EXCERPT_LEXER     = "clojure"
	EXCERPT_FORMATTER = "terminal256"
	EXCERPT_STYLE     = "monokai"
)

// A SourceProvider returns the text of a source, it is used to print excerpts.
type SourceProvider func(sourceName string) (string, bool)

// A Renderer writes diagnostics for humans: a colored header, the location and a highlighted
// excerpt of the source with a caret line under the erroneous range.
type Renderer struct {
	w       io.Writer
	out     *termenv.Output
	color   bool
	sources SourceProvider
}

func NewRenderer(w io.Writer, color bool, sources SourceProvider) *Renderer {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}

	return &Renderer{
		w:       w,
		out:     termenv.NewOutput(w, termenv.WithProfile(profile)),
		color:   color,
		sources: sources,
	}
}

func (r *Renderer) Render(diagnostics []Diagnostic) error {
	for _, d := range diagnostics {
		if err := r.render(d); err != nil {
			return err
		}
	}

	if len(diagnostics) > 0 {
		summary := fmt.Sprintf("%d error(s)", len(diagnostics))
		_, err := fmt.Fprintln(r.w, r.out.String(summary).Foreground(r.out.Color("1")).Bold())
		return err
	}
	return nil
}

func (r *Renderer) render(d Diagnostic) error {
	buf := bytes.NewBuffer(nil)

	header := r.out.String("error[" + string(d.Kind) + "]").Foreground(r.out.Color("1")).Bold()
	buf.WriteString(header.String())
	if d.Namespace != "" {
		buf.WriteString(" ")
		buf.WriteString(r.out.String(d.Namespace).Foreground(r.out.Color("6")).String())
	}
	buf.WriteString(": ")
	buf.WriteString(r.out.String(d.Message).Bold().String())
	buf.WriteByte('\n')

	if d.Location != nil {
		loc := d.Location
		fmt.Fprintf(buf, "  --> %s:%d:%d\n", loc.Source, loc.Line, loc.Column)

		if r.sources != nil {
			if src, ok := r.sources(loc.Source); ok {
				r.writeExcerpt(buf, src, loc)
			}
		}
	}

	buf.WriteByte('\n')
	_, err := r.w.Write(buf.Bytes())
	return err
}

func (r *Renderer) writeExcerpt(buf *bytes.Buffer, src string, loc *Location) {
	lines := strings.Split(src, "\n")
	if loc.Line < 1 || int(loc.Line) > len(lines) {
		return
	}

	first := int(loc.Line)
	last := max(first, int(loc.EndLine))
	last = min(last, first+MAX_EXCERPT_LINES-1, len(lines))

	excerpt := lines[first-1 : last]
	highlighted := excerpt
	if r.color {
		highlighted = highlight(excerpt)
	}

	gutterWidth := len(strconv.Itoa(last))
	gutter := func(s string) string {
		return r.out.String(fmt.Sprintf("%*s | ", gutterWidth, s)).Faint().String()
	}

	for i, line := range highlighted {
		buf.WriteString(gutter(strconv.Itoa(first + i)))
		buf.WriteString(line)
		buf.WriteByte('\n')

		if i == 0 {
			startCol := max(int(loc.Column), 1)
			endCol := len(excerpt[0]) + 1
			if loc.EndLine == loc.Line && int(loc.EndColumn) > startCol {
				endCol = int(loc.EndColumn)
			}
			carets := strings.Repeat(" ", startCol-1) + strings.Repeat("^", max(endCol-startCol, 1))

			buf.WriteString(gutter(""))
			buf.WriteString(r.out.String(carets).Foreground(r.out.Color("1")).String())
			buf.WriteByte('\n')
		}
	}
}

func highlight(lines []string) []string {
	buf := bytes.NewBuffer(nil)
	if err := quick.Highlight(buf, strings.Join(lines, "\n"), EXCERPT_LEXER, EXCERPT_FORMATTER, EXCERPT_STYLE); err != nil {
		return lines
	}

	highlighted := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(highlighted) != len(lines) {
		return lines
	}
	return highlighted
}
