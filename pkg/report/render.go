package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/imgtest/pkg/runner"
)

// Reporter writes per-test lines as results arrive and a final summary.
// With JSON set, nothing is written until Finish, which emits one document.
type Reporter struct {
	Out     io.Writer
	JSON    bool
	Verbose bool

	mu sync.Mutex
}

// NewReporter returns a Reporter writing to out.
func NewReporter(out io.Writer, asJSON, verbose bool) *Reporter {
	return &Reporter{Out: out, JSON: asJSON, Verbose: verbose}
}

// Result prints the status line for r.
func (rp *Reporter) Result(r *runner.Result) {
	if rp.JSON {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	fmt.Fprintln(rp.Out, ResultLine(r))
	if rp.Verbose && r.Detail != "" {
		fmt.Fprintln(rp.Out, detailStyle.Render(r.Detail))
	}
}

// Finish prints the summary, or the whole run as JSON. In verbose mode the
// failures are listed again, grouped by error class.
func (rp *Reporter) Finish(results []*runner.Result) error {
	summary := Summarize(results)
	if rp.JSON {
		return WriteJSON(rp.Out, struct {
			Results []*runner.Result `json:"results"`
			Summary Summary          `json:"summary"`
		}{results, summary})
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	fmt.Fprintln(rp.Out)
	if rp.Verbose {
		writeFailures(rp.Out, Failures(results))
	}
	fmt.Fprintln(rp.Out, SummaryLine(summary))
	return nil
}

// writeFailures lists failed results under one heading per error class.
func writeFailures(w io.Writer, failed []*runner.Result) {
	if len(failed) == 0 {
		return
	}
	fmt.Fprintln(w, headerStyle.Render("Failures"))
	var class string
	for i, r := range failed {
		if i == 0 || string(r.ErrorClass) != class {
			class = string(r.ErrorClass)
			fmt.Fprintf(w, "  %s\n", failedStyle.Render(class))
		}
		fmt.Fprintf(w, "    %s\n", ResultLine(r))
	}
	fmt.Fprintln(w)
}

// ResultLine formats one result: glyph, id and, unless passed without a
// note, the reason.
func ResultLine(r *runner.Result) string {
	var glyph string
	switch r.Status {
	case runner.StatusPassed:
		glyph = passedStyle.Render(GlyphPassed)
	case runner.StatusSkipped:
		glyph = skippedStyle.Render(GlyphSkipped)
	default:
		glyph = failedStyle.Render(GlyphFailed)
	}
	line := glyph + " " + r.ID
	if r.Reason != "" {
		line += reasonStyle.Render(": " + firstLine(r.Reason))
	}
	return line
}

// SummaryLine formats the aggregate counts.
func SummaryLine(s Summary) string {
	parts := []string{
		passedStyle.Render(fmt.Sprintf("%d passed", s.Passed)),
		failedStyle.Render(fmt.Sprintf("%d failed", s.Failed)),
		skippedStyle.Render(fmt.Sprintf("%d skipped", s.Skipped)),
	}
	return headerStyle.Render(fmt.Sprintf("%d tests:", s.Total)) + " " + strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type statsSection struct {
	title  string
	counts map[string]int
}

func (s Stats) sections() []statsSection {
	return []statsSection{
		{"distro", s.ByDistro},
		{"arch", s.ByArch},
		{"image-type", s.ByImageType},
	}
}

// WriteTable writes the stats as aligned columns, keys in sorted order.
func (s Stats) WriteTable(w io.Writer) error {
	for i, sec := range s.sections() {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		keys := SortedKeys(sec.counts)
		width := runewidth.StringWidth(sec.title)
		for _, k := range keys {
			width = max(width, runewidth.StringWidth(k))
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(runewidth.FillRight(sec.title, width)), headerStyle.Render("count")); err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "%s  %5d\n", runewidth.FillRight(k, width), sec.counts[k]); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%d tests\n", s.Total)
	return err
}

// Markdown returns the stats as markdown tables.
func (s Stats) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Test corpus\n\n%d tests\n", s.Total)
	for _, sec := range s.sections() {
		fmt.Fprintf(&b, "\n## By %s\n\n| %s | count |\n|---|---:|\n", sec.title, sec.title)
		for _, k := range SortedKeys(sec.counts) {
			fmt.Fprintf(&b, "| %s | %d |\n", k, sec.counts[k])
		}
	}
	return b.String()
}

// RenderMarkdown renders md for the terminal at the given wrap width,
// falling back to the raw markdown when rendering fails.
func RenderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
