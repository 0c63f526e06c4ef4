package model

import (
	"net/url"
	"strings"
	"time"
)

// RootParentID is the parent identifier of the seed link.
// Stores persist it as SQL NULL so that parent_id can reference link(id).
const RootParentID int64 = 0

// Link is one discovered absolute URL together with its position in the
// crawl lineage. Links are created once and never updated.
type Link struct {
	// ID is assigned by the store at insert time and increases with
	// insertion order.
	ID int64 `json:"id"`

	// URL is the absolute URL exactly as it appeared in the href attribute.
	URL string `json:"url"`

	// Depth is the number of fetch hops from the seed. The seed has depth 0.
	Depth int `json:"depth"`

	// ParentID is the ID of the link on whose page this URL was found.
	// RootParentID for the seed.
	ParentID int64 `json:"parent_id"`

	// DiscoveredAt is when the row was written.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// IsRoot reports whether the link is the seed of the crawl.
func (l Link) IsRoot() bool {
	return l.ParentID == RootParentID
}

// Host returns the lowercase host name of the link, or an empty string when
// the URL cannot be parsed.
func (l Link) Host() string {
	u, err := url.Parse(l.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Node is a persisted link waiting to be fetched and expanded.
// Children of a node are stored with ParentID = LinkID and Depth = Depth+1.
type Node struct {
	LinkID int64
	URL    string
	Depth  int
}

// ChildDepth returns the depth assigned to links discovered on this node's page.
func (n Node) ChildDepth() int {
	return n.Depth + 1
}
