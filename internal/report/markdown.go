package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ferrumweb/internal/model"
)

// MarkdownWriter outputs the crawl in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, alerts and mermaid charts without
// hand-escaping.
type MarkdownWriter struct {
	baseWriter

	// maxLinks caps the rows of the link table; 0 means no limit.
	maxLinks int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxLinks caps the number of rows in the link table.
func WithMaxLinks(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxLinks = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl in Markdown format.
func (w *MarkdownWriter) Write(tree *model.Tree) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, tree)
	w.writeDepths(md, tree)
	w.writeHosts(md, tree)
	w.writeLinks(md, tree)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the crawl summary table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, tree *model.Tree) {
	md.H1("FerrumWeb Link Tree")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + tree.Root.Link.URL + "`"},
			{"Links", w.count(tree.Size())},
			{"Max Depth", strconv.Itoa(tree.MaxDepth())},
			{"Hosts", w.count(len(tree.HostCounts()))},
		},
	})
	md.PlainText("")

	if len(tree.Orphans) > 0 {
		md.Warningf("%d link(s) reference a parent that is not stored.", len(tree.Orphans))
		md.PlainText("")
	}
}

// writeDepths writes the per-depth table and pie chart.
func (w *MarkdownWriter) writeDepths(md *markdown.Markdown, tree *model.Tree) {
	md.H2("Links per Depth")
	md.PlainText("")

	counts := tree.DepthCounts()
	rows := make([][]string, len(counts))
	for depth, c := range counts {
		rows[depth] = []string{strconv.Itoa(depth), w.count(c)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Links"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(counts) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Links per Depth"),
		piechart.WithShowData(true),
	)
	for depth, c := range counts {
		if c > 0 {
			chart.LabelAndIntValue("Depth "+strconv.Itoa(depth), uint64(c)) //nolint:gosec // counts are non-negative
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeHosts writes the links-per-host table.
func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, tree *model.Tree) {
	md.H2("Hosts")
	md.PlainText("")

	hosts := tree.HostCounts()
	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		host := h.Host
		if host == "" {
			host = "-"
		}
		rows[i] = []string{host, w.count(h.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeLinks writes one row per link in tree order.
func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, tree *model.Tree) {
	md.H2("Links")
	md.PlainText("")

	var rows [][]string
	truncated := false
	tree.Walk(func(n *model.TreeNode) bool {
		if w.maxLinks > 0 && len(rows) >= w.maxLinks {
			truncated = true
			return false
		}
		parent := "-"
		if !n.Link.IsRoot() {
			parent = strconv.FormatInt(n.Link.ParentID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(n.Link.ID, 10),
			strconv.Itoa(n.Link.Depth),
			parent,
			truncateString(n.Link.URL, 80),
		})
		return true
	})

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Depth", "Parent", "URL"},
		Rows:   rows,
	})
	md.PlainText("")

	if truncated {
		md.Note(fmt.Sprintf("Showing the first %d of %s links.", w.maxLinks, w.count(tree.Size())))
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [FerrumWeb](https://github.com/nao1215/ferrumweb)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
