package report

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/ferrumweb/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write renders the tree to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(tree *model.Tree) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the tree with every configured Writer.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(tree *model.Tree) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(tree)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Format names an output format accepted by New.
type Format string

const (
	// FormatText is the indented tree.
	FormatText Format = "text"
	// FormatMarkdown is the Markdown report.
	FormatMarkdown Format = "markdown"
	// FormatJSON is the nested JSON tree, indented.
	FormatJSON Format = "json"
	// FormatJSONCompact is the nested JSON tree on a single line.
	FormatJSONCompact Format = "json-compact"
)

// New returns the Writer for the named format.
func New(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewTextWriter(output), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatJSONCompact:
		return NewJSONWriter(output), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (use text, markdown, json or json-compact)", format)
	}
}

// Summary holds the aggregate numbers shown at the top of every report.
type Summary struct {
	Seed        string            `json:"seed"`
	Links       int               `json:"links"`
	MaxDepth    int               `json:"max_depth"`
	DepthCounts []int             `json:"depth_counts"`
	Hosts       []model.HostCount `json:"hosts"`
	Orphans     int               `json:"orphans"`
}

// NewSummary computes the summary of a tree.
func NewSummary(tree *model.Tree) Summary {
	return Summary{
		Seed:        tree.Root.Link.URL,
		Links:       tree.Size(),
		MaxDepth:    tree.MaxDepth(),
		DepthCounts: tree.DepthCounts(),
		Hosts:       tree.HostCounts(),
		Orphans:     len(tree.Orphans),
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output  io.Writer
	printer *message.Printer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{
		output:  output,
		printer: message.NewPrinter(language.English),
	}
}

// count formats n with thousands separators.
func (b baseWriter) count(n int) string {
	return b.printer.Sprintf("%d", n)
}
