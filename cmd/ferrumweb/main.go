// Package main provides the entry point for the FerrumWeb CLI.
//
// FerrumWeb discovers the links reachable from a seed URL up to a fixed
// depth and records, for every link, the page it was found on.
//
// Usage:
//
//	ferrumweb crawl https://example.com --depth 2
//	ferrumweb tree --format markdown
//
// See --help for all available options.
package main

// main is the entry point for FerrumWeb.
func main() {
	Execute()
}
