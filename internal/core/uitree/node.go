// Package uitree models a point-in-time view of the observed UI tree. A
// Snapshot is disposable: nodes are never carried across ticks, later ticks
// re-resolve them through a Ref.
package uitree

import (
	"fmt"
	"strings"
)

// Rect is a screen region in device pixels.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Width() int { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Center returns the midpoint of r.
func (r Rect) Center() (x, y int) {
	return r.Left + r.Width()/2, r.Top + r.Height()/2
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Size is the screen size of the device presenting the tree.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Node is one element of the UI tree.
type Node struct {
	ID        string  `json:"id,omitempty"`
	Class     string  `json:"class,omitempty"`
	Text      string  `json:"text,omitempty"`
	Desc      string  `json:"desc,omitempty"`
	Clickable bool    `json:"clickable,omitempty"`
	Enabled   bool    `json:"enabled"`
	Bounds    Rect    `json:"bounds"`
	Handle    string  `json:"handle,omitempty"` // driver specific locator
	Children  []*Node `json:"children,omitempty"`

	parent *Node
	index  int
}

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// link wires parent pointers and sibling indexes below n.
func (n *Node) link() {
	for i, c := range n.Children {
		c.parent = n
		c.index = i
		c.link()
	}
}

// Walk visits n and its descendants in document order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Actionable reports whether n accepts direct activation.
func (n *Node) Actionable() bool {
	return n != nil && n.Clickable && n.Enabled
}

// ClickableAncestor returns the nearest self-or-ancestor that is actionable.
func (n *Node) ClickableAncestor() *Node {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Actionable() {
			return cur
		}
	}
	return nil
}

// HasText reports whether the node's text or description contains s,
// ignoring case.
func (n *Node) HasText(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	return strings.Contains(strings.ToLower(n.Text), s) ||
		strings.Contains(strings.ToLower(n.Desc), s)
}

// Ref returns a locator that can re-find this node in a later snapshot.
func (n *Node) Ref() Ref {
	var path []int
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		path = append(path, cur.index)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Ref{Path: path, ID: n.ID, Bounds: n.Bounds, Handle: n.Handle}
}

// Ref locates a node by index path from the root. ID and Handle are kept
// to detect a re-rendered tree where the path now points elsewhere.
type Ref struct {
	Path   []int  `json:"path"`
	ID     string `json:"id,omitempty"`
	Bounds Rect   `json:"bounds"`
	Handle string `json:"handle,omitempty"`
}

// Clone returns a deep copy of r.
func (r Ref) Clone() Ref {
	out := r
	out.Path = append([]int(nil), r.Path...)
	return out
}

func (r Ref) String() string {
	return fmt.Sprintf("ref(%v id=%q %s)", r.Path, r.ID, r.Bounds)
}
