package model

import (
	"fmt"
	"sort"
)

// Violation describes a link that breaks a lineage invariant.
type Violation struct {
	LinkID int64
	Reason string
}

// String implements fmt.Stringer.
func (v Violation) String() string {
	return fmt.Sprintf("link %d: %s", v.LinkID, v.Reason)
}

// ValidateLinks checks the lineage invariants of a crawl:
//   - exactly one root, at depth 0
//   - every parent was inserted strictly before its child
//   - a child's depth is its parent's depth plus one
//
// Cycles are impossible once the first two hold, because parents always
// have a smaller ID. All violations are returned; nil means well-formed.
func ValidateLinks(links []Link) []Violation {
	sorted := make([]Link, len(links))
	copy(sorted, links)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var violations []Violation
	byID := make(map[int64]Link, len(sorted))
	roots := 0

	for _, l := range sorted {
		if _, dup := byID[l.ID]; dup {
			violations = append(violations, Violation{LinkID: l.ID, Reason: "duplicate id"})
			continue
		}
		byID[l.ID] = l

		if l.Depth < 0 {
			violations = append(violations, Violation{LinkID: l.ID, Reason: "negative depth"})
		}

		if l.IsRoot() {
			roots++
			if l.Depth != 0 {
				violations = append(violations, Violation{
					LinkID: l.ID,
					Reason: fmt.Sprintf("root has depth %d, want 0", l.Depth),
				})
			}
			continue
		}

		if l.ParentID >= l.ID {
			violations = append(violations, Violation{
				LinkID: l.ID,
				Reason: fmt.Sprintf("parent %d was not inserted before the link", l.ParentID),
			})
			continue
		}

		parent, ok := byID[l.ParentID]
		if !ok {
			violations = append(violations, Violation{
				LinkID: l.ID,
				Reason: fmt.Sprintf("parent %d does not exist", l.ParentID),
			})
			continue
		}
		if l.Depth != parent.Depth+1 {
			violations = append(violations, Violation{
				LinkID: l.ID,
				Reason: fmt.Sprintf("depth %d, want parent depth %d + 1", l.Depth, parent.Depth),
			})
		}
	}

	if len(sorted) > 0 && roots != 1 {
		violations = append(violations, Violation{
			LinkID: RootParentID,
			Reason: fmt.Sprintf("found %d root links, want exactly 1", roots),
		})
	}

	return violations
}
