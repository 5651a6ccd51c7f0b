package uitree

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContextMeta is the <meta name> that carries a snapshot's context in HTML
// captures.
const ContextMeta = "farepilot-context"

// ParseHTML builds a snapshot from an HTML capture. The body element becomes
// the root. Attributes map onto nodes as follows:
//
//	id / data-id            -> ID
//	aria-label / title      -> Desc
//	data-bounds="l,t,r,b"   -> Bounds
//	button, a[href], role=button, onclick, data-clickable=true -> Clickable
//	disabled, aria-disabled=true -> !Enabled
//
// When context is empty the farepilot-context meta tag is used.
func ParseHTML(r io.Reader, context string) (*Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Body:
				if body == nil {
					body = n
				}
			case atom.Meta:
				if context == "" && attr(n, "name") == ContextMeta {
					context = attr(n, "content")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if body == nil {
		return nil, fmt.Errorf("parse html: no body element")
	}

	root := convert(body, "body")
	screen := Size{Width: root.Bounds.Width(), Height: root.Bounds.Height()}
	return NewSnapshot(root, context, screen, time.Now()), nil
}

func convert(n *html.Node, handle string) *Node {
	node := &Node{
		ID:        firstAttr(n, "data-id", "id"),
		Class:     n.Data,
		Text:      ownText(n),
		Desc:      firstAttr(n, "aria-label", "title"),
		Clickable: clickable(n),
		Enabled:   !hasAttr(n, "disabled") && attr(n, "aria-disabled") != "true",
		Bounds:    parseBounds(attr(n, "data-bounds")),
		Handle:    handle,
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || skipped(c) {
			continue
		}
		childHandle := fmt.Sprintf("%s > %s:nth-of-type(%d)", handle, c.Data, nthOfType(c))
		node.Children = append(node.Children, convert(c, childHandle))
	}
	return node
}

func skipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Template, atom.Noscript:
		return true
	}
	return false
}

func nthOfType(n *html.Node) int {
	i := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			i++
		}
	}
	return i
}

func ownText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.Join(strings.Fields(c.Data), " "); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

func clickable(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button:
		return true
	case atom.A:
		return hasAttr(n, "href")
	case atom.Input:
		switch attr(n, "type") {
		case "button", "submit":
			return true
		}
	}
	return attr(n, "role") == "button" || hasAttr(n, "onclick") || attr(n, "data-clickable") == "true"
}

// parseBounds reads "left,top,right,bottom". Malformed input yields an
// empty rect.
func parseBounds(v string) Rect {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return Rect{}
	}
	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}
		}
		nums[i] = n
	}
	return Rect{Left: nums[0], Top: nums[1], Right: nums[2], Bottom: nums[3]}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstAttr(n *html.Node, keys ...string) string {
	for _, k := range keys {
		if v := attr(n, k); v != "" {
			return v
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
