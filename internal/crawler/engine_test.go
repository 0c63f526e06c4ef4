package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/ferrumweb/internal/database"
	"github.com/nao1215/ferrumweb/internal/model"
)

// fakeWeb serves canned pages to the engine without a network.
type fakeWeb struct {
	mu sync.Mutex

	// pages maps a URL to the hrefs of its anchors. A URL missing from
	// pages and statuses fails with a connection error.
	pages map[string][]string

	// statuses maps a URL to a non-2xx response status.
	statuses map[string]int

	// contentTypes overrides the default text/html content type.
	contentTypes map[string]string

	// onFetch runs before a page is served. A non-nil error is returned
	// from Fetch.
	onFetch func(ctx context.Context, url string) error

	fetched []string
}

func (w *fakeWeb) Fetch(ctx context.Context, url string) (*Page, error) {
	w.mu.Lock()
	w.fetched = append(w.fetched, url)
	w.mu.Unlock()

	if w.onFetch != nil {
		if err := w.onFetch(ctx, url); err != nil {
			return nil, err
		}
	}
	if status, ok := w.statuses[url]; ok {
		return &Page{URL: url, StatusCode: status}, nil
	}
	hrefs, ok := w.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")

	contentType := "text/html; charset=utf-8"
	if ct, ok := w.contentTypes[url]; ok {
		contentType = ct
	}
	return &Page{URL: url, StatusCode: http.StatusOK, ContentType: contentType, Body: []byte(b.String())}, nil
}

func (w *fakeWeb) fetchedURLs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.fetched...)
}

// failingStore rejects the insert of one URL.
type failingStore struct {
	LinkStore
	failURL string
}

func (s failingStore) InsertLink(ctx context.Context, url string, depth int, parentID int64) (int64, error) {
	if url == s.failURL {
		return 0, errors.New("disk full")
	}
	return s.LinkStore.InsertLink(ctx, url, depth, parentID)
}

// failingExtractor never parses anything.
type failingExtractor struct{}

func (failingExtractor) ExtractHrefs(io.Reader) ([]string, error) {
	return nil, errors.New("unexpected EOF in tag")
}

func setupTestStore(t *testing.T) *database.LinkDB {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storedLinks(t *testing.T, db *database.LinkDB) []model.Link {
	t.Helper()

	links, err := db.ListLinks(context.Background())
	if err != nil {
		t.Fatalf("failed to list links: %v", err)
	}
	return links
}

// lineages renders every stored link as the chain of URLs from the root,
// sorted, so two runs can be compared regardless of id assignment.
func lineages(t *testing.T, links []model.Link) []string {
	t.Helper()

	out := make([]string, 0, len(links))
	for _, l := range links {
		chain, err := model.Lineage(links, l.ID)
		if err != nil {
			t.Fatalf("lineage of %d: %v", l.ID, err)
		}
		urls := make([]string, 0, len(chain))
		for _, c := range chain {
			urls = append(urls, c.URL)
		}
		out = append(out, strings.Join(urls, " > "))
	}
	sort.Strings(out)
	return out
}

func assertWellFormed(t *testing.T, links []model.Link, maxDepth int) {
	t.Helper()

	if v := model.ValidateLinks(links); len(v) != 0 {
		t.Fatalf("lineage violations: %v", v)
	}
	for _, l := range links {
		if l.Depth > maxDepth {
			t.Errorf("link %d %s has depth %d beyond %d", l.ID, l.URL, l.Depth, maxDepth)
		}
	}
}

// cyclicSite is a small site whose pages link back to each other.
func cyclicSite() *fakeWeb {
	return &fakeWeb{
		pages: map[string][]string{
			"https://site.test/":  {"https://site.test/a", "https://site.test/b", "/relative"},
			"https://site.test/a": {"https://site.test/", "https://site.test/b", "https://other.test/"},
			"https://site.test/b": {"https://site.test/a", "https://site.test/c"},
			"https://site.test/c": {"https://site.test/", "https://site.test/c"},
			"https://other.test/": {"https://site.test/c", "mailto:x@y.com"},
		},
	}
}

// TestEngine_DepthBound tests that no link exceeds the depth limit and that
// lineage holds for every stored link.
func TestEngine_DepthBound(t *testing.T) {
	t.Parallel()

	for depth := range 5 {
		t.Run(fmt.Sprintf("depth %d", depth), func(t *testing.T) {
			t.Parallel()

			db := setupTestStore(t)
			engine := NewEngine(db, cyclicSite(), WithMaxDepth(depth), WithLogger(discardLogger()))

			res, err := engine.Run(context.Background(), "https://site.test/")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			links := storedLinks(t, db)
			assertWellFormed(t, links, depth)
			if res.Links != len(links) {
				t.Errorf("result reports %d links, store has %d", res.Links, len(links))
			}
			if res.MaxDepthReached != depth {
				t.Errorf("expected max depth reached %d, got %d", depth, res.MaxDepthReached)
			}
			if links[0].URL != "https://site.test/" || !links[0].IsRoot() {
				t.Errorf("expected seed as first root link, got %+v", links[0])
			}
		})
	}
}

// TestEngine_SequentialOrder tests the depth-first, discovery-ordered walk
// made with a single worker.
func TestEngine_SequentialOrder(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{
		pages: map[string][]string{
			"https://r.test": {"https://a.test", "https://b.test"},
			"https://a.test": {"https://c.test"},
			"https://b.test": {"https://d.test"},
			"https://c.test": {},
			"https://d.test": {},
		},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(3), WithWorkers(1), WithLogger(discardLogger()))

	if _, err := engine.Run(context.Background(), "https://r.test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantFetch := []string{"https://r.test", "https://a.test", "https://c.test", "https://b.test", "https://d.test"}
	assertStrings(t, wantFetch, web.fetchedURLs())

	want := []model.Link{
		{ID: 1, URL: "https://r.test", Depth: 0, ParentID: model.RootParentID},
		{ID: 2, URL: "https://a.test", Depth: 1, ParentID: 1},
		{ID: 3, URL: "https://b.test", Depth: 1, ParentID: 1},
		{ID: 4, URL: "https://c.test", Depth: 2, ParentID: 2},
		{ID: 5, URL: "https://d.test", Depth: 2, ParentID: 3},
	}
	links := storedLinks(t, db)
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d", len(want), len(links))
	}
	for i, w := range want {
		l := links[i]
		if l.ID != w.ID || l.URL != w.URL || l.Depth != w.Depth || l.ParentID != w.ParentID {
			t.Errorf("link %d: expected %+v, got %+v", i, w, l)
		}
	}
}

// TestEngine_ConcurrentWorkers tests that several workers store the same
// links as a single worker.
func TestEngine_ConcurrentWorkers(t *testing.T) {
	t.Parallel()

	pages := make(map[string][]string)
	page := func(n int) string { return fmt.Sprintf("https://mesh.test/p%d", n%12) }
	for n := range 12 {
		pages[page(n)] = []string{page(2*n + 1), page(3*n + 2), page(n + 1)}
	}

	run := func(workers int) []model.Link {
		db := setupTestStore(t)
		engine := NewEngine(db, &fakeWeb{pages: pages},
			WithMaxDepth(4), WithWorkers(workers), WithLogger(discardLogger()))
		if _, err := engine.Run(context.Background(), page(0)); err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}
		return storedLinks(t, db)
	}

	sequential := run(1)
	concurrent := run(8)

	assertWellFormed(t, concurrent, 4)
	assertStrings(t, lineages(t, sequential), lineages(t, concurrent))

	// Siblings keep the order they appear in on their page.
	byParent := make(map[int64][]string)
	for _, l := range concurrent {
		if !l.IsRoot() {
			byParent[l.ParentID] = append(byParent[l.ParentID], l.URL)
		}
	}
	for _, l := range concurrent {
		children, ok := byParent[l.ID]
		if !ok {
			continue
		}
		assertStrings(t, Candidates(pages[l.URL]), children)
	}
}

// TestEngine_PageDeduplication tests that repeated hrefs on one page are
// stored once while the same URL on another page is stored again.
func TestEngine_PageDeduplication(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{
		pages: map[string][]string{
			"https://r.test": {"https://a.test", "https://b.test", "https://a.test", "https://c.test", "https://b.test"},
			"https://a.test": {"https://b.test"},
		},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(2), WithLogger(discardLogger()))

	if _, err := engine.Run(context.Background(), "https://r.test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links := storedLinks(t, db)
	var rootChildren, bCount []string
	for _, l := range links {
		if l.ParentID == 1 {
			rootChildren = append(rootChildren, l.URL)
		}
		if l.URL == "https://b.test" {
			bCount = append(bCount, l.URL)
		}
	}
	assertStrings(t, []string{"https://a.test", "https://b.test", "https://c.test"}, rootChildren)
	if len(bCount) != 2 {
		t.Errorf("expected b stored once per discovering page, got %d", len(bCount))
	}
}

// TestEngine_RelativeLinksIgnored tests that only absolute http(s) hrefs
// become links.
func TestEngine_RelativeLinksIgnored(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{
		pages: map[string][]string{
			"https://r.test": {"/relative", "mailto:x@y.com", "https://ok.test"},
		},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(1), WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://r.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Links != 2 {
		t.Fatalf("expected 2 links, got %d", res.Links)
	}
	links := storedLinks(t, db)
	if links[1].URL != "https://ok.test" || links[1].Depth != 1 || links[1].ParentID != links[0].ID {
		t.Errorf("unexpected child: %+v", links[1])
	}
}

// TestEngine_FailureIsolation tests that one failing page does not stop
// its siblings from being expanded.
func TestEngine_FailureIsolation(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{
		pages: map[string][]string{
			"https://r.test": {"https://x.test", "https://y.test", "https://gone.test"},
			"https://y.test": {"https://z.test"},
		},
		statuses: map[string]int{
			"https://gone.test": http.StatusNotFound,
		},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(2), WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://r.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links := storedLinks(t, db)
	assertWellFormed(t, links, 2)
	if len(links) != 5 {
		t.Fatalf("expected 5 links, got %d: %v", len(links), links)
	}
	if links[4].URL != "https://z.test" || links[4].ParentID != links[2].ID {
		t.Errorf("expected z under y, got %+v", links[4])
	}
	if res.PagesFailed != 2 {
		t.Errorf("expected 2 failed pages, got %d", res.PagesFailed)
	}
	if res.PagesFetched != 2 {
		t.Errorf("expected 2 fetched pages, got %d", res.PagesFetched)
	}
	if !errors.Is(res.Failures, ErrTransport) {
		t.Errorf("expected aggregated transport failures, got %v", res.Failures)
	}
	var te *TransportError
	if !errors.As(res.Failures, &te) {
		t.Fatalf("expected a TransportError in failures, got %v", res.Failures)
	}
}

// TestEngine_LeavesAreNotFetched tests that links at the depth limit are
// stored without being fetched.
func TestEngine_LeavesAreNotFetched(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{
		pages: map[string][]string{
			"https://r.test": {"https://a.test", "https://b.test"},
			"https://a.test": {"https://c.test"},
		},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(1), WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://r.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var urls []string
	for _, l := range storedLinks(t, db) {
		urls = append(urls, l.URL)
	}
	assertStrings(t, []string{"https://r.test", "https://a.test", "https://b.test"}, urls)
	assertStrings(t, []string{"https://r.test"}, web.fetchedURLs())
	if res.PagesFailed != 0 {
		t.Errorf("expected no failures, got %d", res.PagesFailed)
	}
}

// TestEngine_ZeroDepth tests that depth 0 stores only the seed.
func TestEngine_ZeroDepth(t *testing.T) {
	t.Parallel()

	web := cyclicSite()
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(0), WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://site.test/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Links != 1 || res.RootID != 1 {
		t.Errorf("expected only the root, got links=%d root=%d", res.Links, res.RootID)
	}
	if got := web.fetchedURLs(); len(got) != 0 {
		t.Errorf("expected no fetches, got %v", got)
	}
}

// TestEngine_InvalidSeed tests that nothing is stored for a bad seed.
func TestEngine_InvalidSeed(t *testing.T) {
	t.Parallel()

	for _, seed := range []string{"", "example.com", "/path", "ftp://example.com"} {
		t.Run(seed, func(t *testing.T) {
			t.Parallel()

			db := setupTestStore(t)
			res, err := NewEngine(db, &fakeWeb{}).Run(context.Background(), seed)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Fatalf("expected ErrInvalidSeed, got %v", err)
			}
			if res != nil {
				t.Errorf("expected nil result, got %+v", res)
			}
			if n, _ := db.CountLinks(context.Background()); n != 0 {
				t.Errorf("expected empty store, got %d links", n)
			}
		})
	}
}

// TestEngine_SeedUnreachable tests that a failed seed fetch is reported.
func TestEngine_SeedUnreachable(t *testing.T) {
	t.Parallel()

	db := setupTestStore(t)
	engine := NewEngine(db, &fakeWeb{}, WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://down.test")
	if !errors.Is(err, ErrSeedUnreachable) {
		t.Fatalf("expected ErrSeedUnreachable, got %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
	if res == nil || res.RootID != 1 || res.Links != 1 {
		t.Fatalf("expected stored root in result, got %+v", res)
	}
	if n, _ := db.CountLinks(context.Background()); n != 1 {
		t.Errorf("expected root to stay stored, got %d links", n)
	}
}

// TestEngine_PersistenceFailure tests that a rejected insert stops the run.
func TestEngine_PersistenceFailure(t *testing.T) {
	t.Parallel()

	t.Run("child insert", func(t *testing.T) {
		t.Parallel()

		web := &fakeWeb{
			pages: map[string][]string{
				"https://r.test": {"https://a.test", "https://bad.test", "https://c.test"},
				"https://a.test": {"https://d.test"},
			},
		}
		db := setupTestStore(t)
		engine := NewEngine(failingStore{LinkStore: db, failURL: "https://bad.test"}, web,
			WithMaxDepth(3), WithLogger(discardLogger()))

		res, err := engine.Run(context.Background(), "https://r.test")
		if !errors.Is(err, ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
		var pe *PersistenceError
		if !errors.As(err, &pe) || pe.URL != "https://bad.test" || pe.Depth != 1 || pe.ParentID != 1 {
			t.Errorf("unexpected persistence error: %+v", pe)
		}
		if res == nil {
			t.Fatal("expected partial result")
		}

		links := storedLinks(t, db)
		assertWellFormed(t, links, 3)
		if len(links) != 2 {
			t.Errorf("expected root and a only, got %v", links)
		}
		for _, u := range web.fetchedURLs() {
			if u != "https://r.test" {
				t.Errorf("expected no fetch after the failure, got %s", u)
			}
		}
	})

	t.Run("root insert", func(t *testing.T) {
		t.Parallel()

		db := setupTestStore(t)
		engine := NewEngine(failingStore{LinkStore: db, failURL: "https://r.test"}, &fakeWeb{})

		res, err := engine.Run(context.Background(), "https://r.test")
		if !errors.Is(err, ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
		if res != nil {
			t.Errorf("expected nil result, got %+v", res)
		}
	})
}

// TestEngine_Cancellation tests that cancelling the context stops the run
// and leaves a valid link set behind.
func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	web := &fakeWeb{
		pages: map[string][]string{
			"https://r.test": {"https://a.test", "https://b.test"},
			"https://a.test": {"https://c.test"},
			"https://b.test": {"https://d.test"},
		},
		onFetch: func(fctx context.Context, url string) error {
			if url != "https://a.test" {
				return nil
			}
			cancel()
			<-fctx.Done()
			return fctx.Err()
		},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithMaxDepth(2), WithLogger(discardLogger()))

	res, err := engine.Run(ctx, "https://r.test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || !res.Interrupted {
		t.Fatalf("expected interrupted result, got %+v", res)
	}
	if res.Pending != 1 {
		t.Errorf("expected b to be left pending, got %d", res.Pending)
	}

	links := storedLinks(t, db)
	assertWellFormed(t, links, 2)
	if len(links) != 3 {
		t.Errorf("expected root, a and b, got %v", links)
	}
	for _, u := range web.fetchedURLs() {
		if u == "https://b.test" {
			t.Error("expected b not to be fetched after cancellation")
		}
	}
}

// TestEngine_ParseFailure tests that an unparsable page counts as having
// no links.
func TestEngine_ParseFailure(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{pages: map[string][]string{"https://r.test": {"https://a.test"}}}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithExtractor(failingExtractor{}), WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://r.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Links != 1 || res.ParseFailures != 1 || res.PagesFetched != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if !errors.Is(res.Failures, ErrParse) {
		t.Errorf("expected parse failure, got %v", res.Failures)
	}
}

// TestEngine_NonHTMLPage tests that non-HTML bodies yield no links.
func TestEngine_NonHTMLPage(t *testing.T) {
	t.Parallel()

	web := &fakeWeb{
		pages:        map[string][]string{"https://r.test/doc.pdf": {"https://a.test"}},
		contentTypes: map[string]string{"https://r.test/doc.pdf": "application/pdf"},
	}
	db := setupTestStore(t)
	engine := NewEngine(db, web, WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), "https://r.test/doc.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Links != 1 || res.PagesFetched != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

// TestEngine_HTTP runs the engine against a local server with the real
// fetcher and extractor.
func TestEngine_HTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<a href="%[1]s/a">a</a><a href="/skip">skip</a><a href="%[1]s/missing">missing</a>`, server.URL)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<a href="%[1]s/">home</a>`, server.URL)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	db := setupTestStore(t)
	engine := NewEngine(db, NewHTTPFetcher(server.Client()),
		WithMaxDepth(2), WithWorkers(2), WithLogger(discardLogger()))

	res, err := engine.Run(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	links := storedLinks(t, db)
	assertWellFormed(t, links, 2)
	want := []string{
		server.URL + "/",
		server.URL + "/ > " + server.URL + "/a",
		server.URL + "/ > " + server.URL + "/a > " + server.URL + "/",
		server.URL + "/ > " + server.URL + "/missing",
	}
	sort.Strings(want)
	assertStrings(t, want, lineages(t, links))
	if res.PagesFailed != 1 {
		t.Errorf("expected the 404 page to fail, got %d failures", res.PagesFailed)
	}
}
