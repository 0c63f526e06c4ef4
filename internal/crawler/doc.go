// Package crawler discovers links by expanding web pages to a bounded depth.
//
// # Architecture
//
// The Engine stores the seed URL at depth 0 and then expands pages from an
// explicit worklist. Expanding a page means fetching it, extracting the href
// of every anchor, keeping the absolute http(s) ones, dropping repeats on
// that page and storing each survivor one level deeper with the page as its
// parent. Links at the depth limit are stored but never fetched.
//
// Design decision: Pages are not deduplicated across the traversal. A URL
// linked from two pages is stored twice, once under each parent, because
// the stored rows describe where a link was found, not which documents
// exist. Cycles terminate through the depth bound alone.
//
// # Components
//
//   - Engine: owns the worklist and is the only writer to the LinkStore
//   - HTTPFetcher: GETs a page with the configured headers and body limit
//   - HTMLExtractor: returns anchor hrefs in document order
//   - Candidates: filters hrefs to absolute links, first occurrence wins
//
// # Failures
//
// A page that cannot be fetched or parsed contributes no links and the
// traversal continues. The seed page is the exception: if it cannot be
// fetched the run reports ErrSeedUnreachable. A store failure ends the run
// with a *PersistenceError, since continuing would break lineage.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(httpClient, crawler.WithUserAgent(ua))
//	engine := crawler.NewEngine(store, fetcher, crawler.WithMaxDepth(2))
//	result, err := engine.Run(ctx, "https://example.com")
package crawler
