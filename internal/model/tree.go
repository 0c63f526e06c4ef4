package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoRoot is returned by BuildTree when the link set has no seed link.
var ErrNoRoot = errors.New("no root link found")

// TreeNode is a link with its children in discovery order.
type TreeNode struct {
	Link     Link        `json:"link"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree is the lineage of a single crawl rebuilt from stored links.
type Tree struct {
	Root *TreeNode `json:"root"`

	// Orphans are links whose parent is not part of the link set.
	// A well-formed crawl has none.
	Orphans []Link `json:"orphans,omitempty"`

	// byDepth counts links per depth.
	byDepth map[int]int

	size int
}

// BuildTree rebuilds the parent/child lineage from a flat list of links.
// Links may be given in any order; children are sorted by ID, which is
// the order in which they were discovered.
func BuildTree(links []Link) (*Tree, error) {
	sorted := make([]Link, len(links))
	copy(sorted, links)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	nodes := make(map[int64]*TreeNode, len(sorted))
	tree := &Tree{byDepth: make(map[int]int)}

	for _, l := range sorted {
		n := &TreeNode{Link: l}
		nodes[l.ID] = n
		if l.IsRoot() && tree.Root == nil {
			tree.Root = n
		}
	}
	if tree.Root == nil {
		return nil, ErrNoRoot
	}

	for _, l := range sorted {
		if l.ID == tree.Root.Link.ID {
			continue
		}
		parent, ok := nodes[l.ParentID]
		if !ok || l.IsRoot() {
			tree.Orphans = append(tree.Orphans, l)
			continue
		}
		parent.Children = append(parent.Children, nodes[l.ID])
	}

	tree.Walk(func(n *TreeNode) bool {
		tree.size++
		tree.byDepth[n.Link.Depth]++
		return true
	})

	return tree, nil
}

// Walk visits the tree depth-first in discovery order. Returning false from
// fn skips the children of the current node.
func (t *Tree) Walk(fn func(n *TreeNode) bool) {
	if t.Root == nil {
		return
	}
	stack := []*TreeNode{t.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Size returns the number of links reachable from the root.
func (t *Tree) Size() int {
	return t.size
}

// MaxDepth returns the greatest depth present in the tree.
func (t *Tree) MaxDepth() int {
	maxDepth := 0
	for d := range t.byDepth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

// DepthCounts returns the number of links per depth, indexed by depth.
func (t *Tree) DepthCounts() []int {
	counts := make([]int, t.MaxDepth()+1)
	for d, c := range t.byDepth {
		counts[d] = c
	}
	return counts
}

// HostCount is the number of links pointing at one host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// HostCounts returns the links per host, most frequent first.
func (t *Tree) HostCounts() []HostCount {
	counts := make(map[string]int)
	t.Walk(func(n *TreeNode) bool {
		counts[n.Link.Host()]++
		return true
	})

	result := make([]HostCount, 0, len(counts))
	for host, c := range counts {
		result = append(result, HostCount{Host: host, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Host < result[j].Host
	})
	return result
}

// Lineage returns the chain of links from the root to the link with the
// given ID, root first.
func Lineage(links []Link, id int64) ([]Link, error) {
	byID := make(map[int64]Link, len(links))
	for _, l := range links {
		byID[l.ID] = l
	}

	var chain []Link
	current, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("link %d not found", id)
	}
	// A well-formed set terminates after depth+1 steps; anything longer is a cycle.
	for steps := 0; ; steps++ {
		if steps > len(links) {
			return nil, fmt.Errorf("cycle detected while following parents of link %d", id)
		}
		chain = append(chain, current)
		if current.IsRoot() {
			break
		}
		parent, ok := byID[current.ParentID]
		if !ok {
			return nil, fmt.Errorf("link %d references missing parent %d", current.ID, current.ParentID)
		}
		current = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
