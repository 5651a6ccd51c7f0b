package uitree

import "strings"

// FindByID returns the first node in document order whose identifier equals
// id. Fully qualified identifiers ("pkg:id/name") also match on their short
// name.
func (n *Node) FindByID(id string) *Node {
	if n == nil || id == "" {
		return nil
	}
	var found *Node
	n.Walk(func(c *Node) bool {
		if matchID(c.ID, id) {
			found = c
			return false
		}
		return true
	})
	return found
}

func matchID(have, want string) bool {
	if have == "" {
		return false
	}
	if have == want {
		return true
	}
	if i := strings.LastIndex(have, "/"); i >= 0 && have[i+1:] == want {
		return true
	}
	return false
}

// FindByText returns the first node whose text or description contains
// text, ignoring case.
func (n *Node) FindByText(text string) *Node {
	if n == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.HasText(text) {
			found = c
			return false
		}
		return true
	})
	return found
}

// FindAnyText tries each candidate in order and returns the first match
// along with the candidate that produced it.
func (n *Node) FindAnyText(candidates []string) (*Node, string) {
	for _, c := range candidates {
		if found := n.FindByText(c); found != nil {
			return found, c
		}
	}
	return nil, ""
}

// Locate finds a control by identifier first, then by the fallback labels.
// via reports which lookup succeeded ("id" or the matching label).
func (n *Node) Locate(id string, labels []string) (found *Node, via string) {
	if found = n.FindByID(id); found != nil {
		return found, "id"
	}
	return n.FindAnyText(labels)
}

// Segments collects the text and description of every node in the subtree,
// trimmed, non-empty and de-duplicated, in document order.
func (n *Node) Segments() []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	n.Walk(func(c *Node) bool {
		add(c.Text)
		add(c.Desc)
		return true
	})
	return out
}
