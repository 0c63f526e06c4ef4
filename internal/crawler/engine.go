package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/ferrumweb/internal/model"
)

// LinkStore persists discovered links. database.LinkDB and
// database.PostgresStore implement it.
type LinkStore interface {
	InsertLink(ctx context.Context, url string, depth int, parentID int64) (int64, error)
}

// Fetcher retrieves a page. A returned error is a failed fetch; a page with
// a non-2xx status is treated as failed by the engine.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Extractor lists the href values of a document's anchors in document order.
type Extractor interface {
	ExtractHrefs(r io.Reader) ([]string, error)
}

// Engine performs a depth-bounded link discovery from a seed URL.
//
// Design decision: The traversal uses an explicit LIFO worklist owned by a
// single coordinator goroutine instead of recursion. Fetch workers only
// fetch and extract; the coordinator is the only caller of the store, so
// link ids follow one total order and every parent row exists before its
// children are inserted. With one worker the visit order is the same
// depth-first, discovery-ordered walk a recursive crawler would make.
type Engine struct {
	store     LinkStore
	fetcher   Fetcher
	extractor Extractor
	logger    *slog.Logger

	// maxDepth is the greatest depth a stored link may have.
	maxDepth int

	// workers is the number of concurrent fetches.
	workers int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxDepth sets the greatest depth a stored link may have.
// 0 stores only the seed; 1 also stores the links found on the seed page.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithWorkers sets the number of pages fetched concurrently.
// Values below 1 are ignored.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithExtractor replaces the default HTMLExtractor.
func WithExtractor(x Extractor) EngineOption {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithLogger sets the logger used for progress and node failures.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an Engine that stores links in store and fetches pages
// with fetcher. Defaults: depth 2, one worker, HTMLExtractor, slog.Default().
func NewEngine(store LinkStore, fetcher Fetcher, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		fetcher:   fetcher,
		extractor: HTMLExtractor{},
		maxDepth:  2,
		workers:   1,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Result summarizes one traversal.
type Result struct {
	// RunID identifies the run in log output.
	RunID string `json:"run_id"`

	// RootID is the id of the stored seed link, 0 if it was never stored.
	RootID int64 `json:"root_id"`

	// Links is the number of links stored, including the seed.
	Links int `json:"links"`

	// PagesFetched counts pages fetched with a 2xx status.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed counts pages whose fetch failed.
	PagesFailed int `json:"pages_failed"`

	// ParseFailures counts fetched pages whose body could not be parsed.
	ParseFailures int `json:"parse_failures"`

	// Abandoned counts fetches discarded because the run was stopping.
	Abandoned int `json:"abandoned"`

	// Pending counts stored links that were still waiting to be fetched
	// when the run stopped early.
	Pending int `json:"pending"`

	// MaxDepthReached is the greatest depth among stored links.
	MaxDepthReached int `json:"max_depth_reached"`

	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed"`

	// Interrupted is set when the caller's context ended the run.
	Interrupted bool `json:"interrupted"`

	// Failures aggregates the node-level transport and parse errors.
	Failures error `json:"-"`
}

// fetchResult is what a worker reports for one node.
type fetchResult struct {
	node     model.Node
	hrefs    []string
	fetchErr error
	parseErr error
}

// Run stores the seed at depth 0 and expands it until no link within the
// depth bound is left to fetch.
//
// Node failures (fetch and parse errors) are isolated: they are logged,
// aggregated in Result.Failures, and never stop the traversal. Run returns
// an error in these cases only:
//   - ErrInvalidSeed: nothing was stored
//   - ErrSeedUnreachable: the seed page could not be fetched
//   - *PersistenceError: the store rejected an insert; the run stops
//   - ctx.Err(): the run was cancelled; stored links remain valid
//
// The Result is non-nil whenever the seed was stored.
func (e *Engine) Run(ctx context.Context, seedURL string) (*Result, error) {
	start := time.Now()

	if !IsAbsoluteLink(seedURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seedURL)
	}

	res := &Result{RunID: uuid.NewString()}
	logger := e.logger.With("run", res.RunID)
	defer func() { res.Elapsed = time.Since(start) }()

	rootID, err := e.insert(ctx, seedURL, 0, model.RootParentID)
	if err != nil {
		return nil, err
	}
	res.RootID = rootID
	res.Links = 1

	logger.Info("crawl started", "seed", seedURL, "max_depth", e.maxDepth, "workers", e.workers)

	root := model.Node{LinkID: rootID, URL: seedURL, Depth: 0}
	if !e.canExpand(root) {
		return res, nil
	}

	runErr := e.traverse(ctx, root, res, logger)

	logger.Info("crawl finished",
		"links", res.Links,
		"fetched", res.PagesFetched,
		"failed", res.PagesFailed,
		"interrupted", res.Interrupted,
	)

	return res, runErr
}

// canExpand reports whether the children of n would still be within the
// depth bound. Nodes at the bound are stored but never fetched.
func (e *Engine) canExpand(n model.Node) bool {
	return n.ChildDepth() <= e.maxDepth
}

// insert stores one link. It ignores cancellation of ctx so that a page's
// children are either all stored or the run fails with a PersistenceError.
func (e *Engine) insert(ctx context.Context, url string, depth int, parentID int64) (int64, error) {
	id, err := e.store.InsertLink(context.WithoutCancel(ctx), url, depth, parentID)
	if err != nil {
		return 0, &PersistenceError{URL: url, Depth: depth, ParentID: parentID, Err: err}
	}
	return id, nil
}

// traverse runs the coordinator loop: it hands nodes from the worklist to
// the fetch workers and processes their results until the worklist is
// empty and no fetch is in flight.
func (e *Engine) traverse(ctx context.Context, root model.Node, res *Result, logger *slog.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan model.Node)
	results := make(chan fetchResult, e.workers)

	g, gctx := errgroup.WithContext(runCtx)
	for range e.workers {
		g.Go(func() error {
			for node := range jobs {
				results <- e.visit(gctx, node)
			}
			return nil
		})
	}

	var (
		stack    = []model.Node{root}
		inFlight int
		failures *multierror.Error
		runErr   error
		stopping bool
		done     = ctx.Done()
	)

	stop := func(err error) {
		if !stopping {
			stopping = true
			runErr = err
			cancel()
		}
	}

	for {
		// Checked before every dispatch; select picks randomly among ready cases.
		if !stopping && ctx.Err() != nil {
			done = nil
			res.Interrupted = true
			stop(ctx.Err())
		}

		var (
			send chan model.Node
			next model.Node
		)
		if !stopping && len(stack) > 0 {
			send = jobs
			next = stack[len(stack)-1]
		}
		if send == nil && inFlight == 0 {
			break
		}

		select {
		case send <- next:
			stack = stack[:len(stack)-1]
			inFlight++

		case r := <-results:
			inFlight--
			if stopping {
				res.Abandoned++
				continue
			}
			children, err := e.handle(ctx, r, res, logger)
			if err != nil {
				stop(err)
				continue
			}
			if r.fetchErr != nil {
				failures = multierror.Append(failures, r.fetchErr)
			}
			if r.parseErr != nil {
				failures = multierror.Append(failures, r.parseErr)
			}
			// Reverse order so the first discovered child is expanded first.
			for i := len(children) - 1; i >= 0; i-- {
				if e.canExpand(children[i]) {
					stack = append(stack, children[i])
				}
			}

		case <-done:
			done = nil
			res.Interrupted = true
			stop(ctx.Err())
		}
	}

	close(jobs)
	_ = g.Wait() //nolint:errcheck // workers never return an error

	res.Pending = len(stack)
	res.Failures = failures.ErrorOrNil()

	return runErr
}

// visit fetches one node and extracts its hrefs. It runs on a worker.
func (e *Engine) visit(ctx context.Context, node model.Node) fetchResult {
	r := fetchResult{node: node}

	page, err := e.fetcher.Fetch(ctx, node.URL)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{URL: node.URL, Err: err}
		}
		r.fetchErr = err
		return r
	}
	if !page.OK() {
		r.fetchErr = &TransportError{URL: node.URL, StatusCode: page.StatusCode}
		return r
	}
	if !isHTML(page.ContentType) {
		return r
	}

	hrefs, err := e.extractor.ExtractHrefs(bytes.NewReader(page.Body))
	if err != nil {
		r.parseErr = &ParseError{URL: node.URL, Err: err}
		return r
	}
	r.hrefs = hrefs
	return r
}

// isHTML reports whether a Content-Type can hold anchors. An empty value is
// accepted because servers often omit it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

// handle applies one worker result on the coordinator: it records the
// outcome and stores the page's candidate links in discovery order.
// It returns the stored children as nodes ready for expansion.
func (e *Engine) handle(ctx context.Context, r fetchResult, res *Result, logger *slog.Logger) ([]model.Node, error) {
	node := r.node

	if r.fetchErr != nil {
		res.PagesFailed++
		if node.Depth == 0 {
			return nil, fmt.Errorf("%w: %w", ErrSeedUnreachable, r.fetchErr)
		}
		logger.Warn("fetch failed", "url", node.URL, "depth", node.Depth, "error", r.fetchErr)
		return nil, nil
	}

	res.PagesFetched++
	if r.parseErr != nil {
		res.ParseFailures++
		logger.Warn("parse failed, treating page as having no links", "url", node.URL, "error", r.parseErr)
		return nil, nil
	}

	candidates := Candidates(r.hrefs)
	logger.Debug("page expanded",
		"url", node.URL,
		"depth", node.Depth,
		"anchors", len(r.hrefs),
		"links", len(candidates),
	)

	children := make([]model.Node, 0, len(candidates))
	for _, c := range candidates {
		id, err := e.insert(ctx, c, node.ChildDepth(), node.LinkID)
		if err != nil {
			return nil, err
		}
		res.Links++
		res.MaxDepthReached = max(res.MaxDepthReached, node.ChildDepth())
		children = append(children, model.Node{LinkID: id, URL: c, Depth: node.ChildDepth()})
	}
	return children, nil
}
