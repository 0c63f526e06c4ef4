package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/ferrumweb/internal/model"
)

// TextWriter outputs the crawl as an indented tree.
// Each line shows the link id, its URL and its depth.
type TextWriter struct {
	baseWriter

	// maxDepth hides links deeper than this; -1 shows all.
	maxDepth int

	// indent is repeated once per depth level.
	indent string
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithMaxDisplayDepth hides links deeper than depth.
func WithMaxDisplayDepth(depth int) TextWriterOption {
	return func(w *TextWriter) {
		w.maxDepth = depth
	}
}

// WithIndentString sets the string repeated once per depth level.
func WithIndentString(indent string) TextWriterOption {
	return func(w *TextWriter) {
		w.indent = indent
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		maxDepth:   -1,
		indent:     "  ",
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the tree in human-readable format.
func (w *TextWriter) Write(tree *model.Tree) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, tree)
	w.writeTree(&sb, tree)
	w.writeOrphans(&sb, tree)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the crawl summary.
func (w *TextWriter) writeHeader(sb *strings.Builder, tree *model.Tree) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         FERRUMWEB LINK TREE\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:      %s\n", tree.Root.Link.URL)
	fmt.Fprintf(sb, "Links:     %s\n", w.count(tree.Size()))
	fmt.Fprintf(sb, "Max depth: %d\n", tree.MaxDepth())
	for depth, c := range tree.DepthCounts() {
		fmt.Fprintf(sb, "  depth %d: %s\n", depth, w.count(c))
	}
	sb.WriteString("\n")
}

// writeTree writes one line per link, depth-first in discovery order.
func (w *TextWriter) writeTree(sb *strings.Builder, tree *model.Tree) {
	tree.Walk(func(n *model.TreeNode) bool {
		if w.maxDepth >= 0 && n.Link.Depth > w.maxDepth {
			return false
		}
		fmt.Fprintf(sb, "%s[%d] %s (depth %d)\n",
			strings.Repeat(w.indent, n.Link.Depth), n.Link.ID, n.Link.URL, n.Link.Depth)
		return true
	})
}

// writeOrphans lists links whose parent is missing.
func (w *TextWriter) writeOrphans(sb *strings.Builder, tree *model.Tree) {
	if len(tree.Orphans) == 0 {
		return
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "ORPHANED LINKS (%d)\n", len(tree.Orphans))
	for _, l := range tree.Orphans {
		fmt.Fprintf(sb, "[%d] %s (depth %d, missing parent %d)\n", l.ID, l.URL, l.Depth, l.ParentID)
	}
}
