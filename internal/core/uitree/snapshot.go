package uitree

import (
	"strings"
	"sync/atomic"
	"time"
)

// Snapshot is a read-only view of the observed tree at one instant.
type Snapshot struct {
	Root       *Node
	Context    string // identifies the application/page the tree belongs to
	Screen     Size
	CapturedAt time.Time
}

// NewSnapshot links root and wraps it in a Snapshot.
func NewSnapshot(root *Node, context string, screen Size, at time.Time) *Snapshot {
	if root != nil {
		root.parent = nil
		root.index = 0
		root.link()
	}
	return &Snapshot{Root: root, Context: context, Screen: screen, CapturedAt: at}
}

// Live reports whether the snapshot has content and belongs to the expected
// target context. An empty expectation accepts any context.
func (s *Snapshot) Live(expected string) bool {
	if s == nil || s.Root == nil {
		return false
	}
	if expected == "" {
		return true
	}
	return strings.Contains(s.Context, expected)
}

func (s *Snapshot) FindByID(id string) *Node { return s.Root.FindByID(id) }
func (s *Snapshot) FindByText(text string) *Node { return s.Root.FindByText(text) }

func (s *Snapshot) FindAnyText(candidates []string) (*Node, string) {
	return s.Root.FindAnyText(candidates)
}

func (s *Snapshot) Locate(id string, labels []string) (*Node, string) {
	return s.Root.Locate(id, labels)
}

// HasAnyText reports whether any candidate text is on screen.
func (s *Snapshot) HasAnyText(candidates []string) bool {
	n, _ := s.FindAnyText(candidates)
	return n != nil
}

// Resolve re-finds the node r points to. It returns nil when the path no
// longer exists or now lands on a node with a different identifier.
func (s *Snapshot) Resolve(r Ref) *Node {
	if s == nil || s.Root == nil {
		return nil
	}
	cur := s.Root
	for _, idx := range r.Path {
		if idx < 0 || idx >= len(cur.Children) {
			return nil
		}
		cur = cur.Children[idx]
	}
	if r.ID != "" && cur.ID != r.ID {
		return nil
	}
	return cur
}

// Cell holds the most recent snapshot. Writers overwrite, readers take
// whatever is latest; nothing queues.
type Cell struct {
	p atomic.Pointer[Snapshot]
}

// Submit replaces the held snapshot.
func (c *Cell) Submit(s *Snapshot) { c.p.Store(s) }

// Latest returns the held snapshot, or nil.
func (c *Cell) Latest() *Snapshot { return c.p.Load() }

// Invalidate drops s if it is still the held snapshot.
func (c *Cell) Invalidate(s *Snapshot) bool { return c.p.CompareAndSwap(s, nil) }
