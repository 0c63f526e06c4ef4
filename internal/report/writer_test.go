package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/ferrumweb/internal/model"
)

// createTestTree builds a tree with sample links for testing.
func createTestTree(t *testing.T) *model.Tree {
	t.Helper()

	links := []model.Link{
		{ID: 1, URL: "https://example.com", Depth: 0, ParentID: model.RootParentID},
		{ID: 2, URL: "https://example.com/about", Depth: 1, ParentID: 1},
		{ID: 3, URL: "https://other.test/", Depth: 1, ParentID: 1},
		{ID: 4, URL: "https://example.com/team", Depth: 2, ParentID: 2},
	}
	tree, err := model.BuildTree(links)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	return tree
}

// createLargeTree builds a root with n children.
func createLargeTree(t *testing.T, n int) *model.Tree {
	t.Helper()

	links := []model.Link{{ID: 1, URL: "https://big.test", Depth: 0, ParentID: model.RootParentID}}
	for i := range n {
		links = append(links, model.Link{ID: int64(i + 2), URL: "https://big.test/p", Depth: 1, ParentID: 1})
	}
	tree, err := model.BuildTree(links)
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	return tree
}

// TestTextWriter tests the indented tree writer.
func TestTextWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and indented links", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewTextWriter(&buf).Write(createTestTree(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}

		output := buf.String()
		for _, want := range []string{
			"FERRUMWEB LINK TREE",
			"Seed:      https://example.com",
			"Links:     4",
			"[1] https://example.com (depth 0)",
			"  [2] https://example.com/about (depth 1)",
			"    [4] https://example.com/team (depth 2)",
			"  [3] https://other.test/ (depth 1)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Index(output, "[4]") > strings.Index(output, "[3]") {
			t.Error("expected depth-first order")
		}
	})

	t.Run("limits display depth", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf, WithMaxDisplayDepth(1)).Write(createTestTree(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "[4]") {
			t.Error("expected depth 2 link to be hidden")
		}
	})

	t.Run("lists orphans", func(t *testing.T) {
		t.Parallel()

		tree, err := model.BuildTree([]model.Link{
			{ID: 1, URL: "https://example.com", Depth: 0, ParentID: model.RootParentID},
			{ID: 5, URL: "https://lost.test", Depth: 2, ParentID: 4},
		})
		if err != nil {
			t.Fatalf("failed to build tree: %v", err)
		}

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).Write(tree); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "ORPHANED LINKS (1)") {
			t.Errorf("expected orphan section\n%s", buf.String())
		}
	})

	t.Run("formats large counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTextWriter(&buf).Write(createLargeTree(t, 1200)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Links:     1,201") {
			t.Errorf("expected grouped count\n%s", buf.String()[:300])
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestTree(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# FerrumWeb Link Tree",
			"## Links per Depth",
			"## Hosts",
			"## Links",
			"```mermaid",
			"example.com",
			"other.test",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("omits chart for a single depth", func(t *testing.T) {
		t.Parallel()

		tree, err := model.BuildTree([]model.Link{
			{ID: 1, URL: "https://example.com", Depth: 0, ParentID: model.RootParentID},
		})
		if err != nil {
			t.Fatalf("failed to build tree: %v", err)
		}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(tree); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("expected no chart")
		}
	})

	t.Run("caps link rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, WithMaxLinks(10)).Write(createLargeTree(t, 50)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Showing the first 10 of 51 links.") {
			t.Error("expected truncation note")
		}
	})
}

// TestJSONWriter tests the JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes nested tree with summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestTree(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Summary.Links != 4 || got.Summary.MaxDepth != 2 || got.Summary.Seed != "https://example.com" {
			t.Errorf("unexpected summary: %+v", got.Summary)
		}
		if len(got.Root.Children) != 2 || len(got.Root.Children[0].Children) != 1 {
			t.Errorf("unexpected tree shape: %+v", got.Root)
		}
		if got.Root.Children[0].Children[0].Link.URL != "https://example.com/team" {
			t.Errorf("unexpected grandchild: %+v", got.Root.Children[0].Children[0].Link)
		}
	})

	t.Run("compact unless pretty printed", func(t *testing.T) {
		t.Parallel()

		var compact, pretty bytes.Buffer
		tree := createTestTree(t)
		if _, err := NewJSONWriter(&compact).Write(tree); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewJSONWriter(&pretty, WithPrettyPrint()).Write(tree); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(compact.String(), "\n") != 1 {
			t.Error("expected compact output on one line")
		}
		if !strings.Contains(pretty.String(), "\n  \"summary\"") {
			t.Error("expected indented output")
		}
	})
}

// TestNew tests writer selection by format.
func TestNew(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		format  Format
		wantErr bool
	}{
		{format: FormatText},
		{format: ""},
		{format: FormatMarkdown},
		{format: "md"},
		{format: FormatJSON},
		{format: FormatJSONCompact},
		{format: "xml", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.format), func(t *testing.T) {
			t.Parallel()

			w, err := New(tc.format, &bytes.Buffer{})
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil || w == nil {
				t.Errorf("unexpected result: %v, %v", w, err)
			}
		})
	}
}

// failingWriter fails after the first write.
type failingWriter struct{}

func (failingWriter) Write(*model.Tree) (int, error) { return 0, errors.New("write failed") }

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		n, err := NewMultiWriter(NewTextWriter(&a), NewJSONWriter(&b)).Write(createTestTree(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Len() == 0 || b.Len() == 0 || n != a.Len()+b.Len() {
			t.Errorf("unexpected byte counts: total=%d a=%d b=%d", n, a.Len(), b.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewTextWriter(&after)).Write(createTestTree(t))
		if err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}
