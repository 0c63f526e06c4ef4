// Package model defines the core data structures used throughout FerrumWeb.
//
// This package contains the following main types:
//   - Link: One persisted, discovered URL with its depth and parent
//   - Node: An in-memory unit of traversal work for a persisted link
//   - Tree: The parent/child lineage of a crawl rebuilt for reporting
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, the stores and the report writers all need these
// types, so centralizing them prevents import cycles.
//
// The lineage invariants (single root at depth 0, parents inserted before
// their children, child depth = parent depth + 1) are checked by ValidateLinks.
package model
