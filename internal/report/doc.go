// Package report renders a stored crawl for people and tools.
//
// This package contains writers for different output formats:
//   - TextWriter: Indented link tree for terminal display
//   - MarkdownWriter: Summary, depth and host tables with a mermaid chart
//   - JSONWriter: Nested tree with a summary for tool integration
//
// Design decision: Writers take a model.Tree rather than reading a store,
// so the same rendering works for SQLite and PostgreSQL crawls and for
// trees built in tests.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed with MultiWriter.
package report
