package sanitizer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// removeEmptyNodesBottomUp walks post-order so nested empty containers are
// cleaned innermost-first.
func removeEmptyNodesBottomUp(node *html.Node) {
	if node == nil {
		return
	}

	var children []*html.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	for _, child := range children {
		removeEmptyNodesBottomUp(child)
	}

	if node.Type == html.ElementNode && isEmptyNode(node) && shouldRemoveEmptyElement(node.Data) {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// voidElements and structuralElements are exempt from empty-node removal:
// void elements are valid when empty, structural containers are left for
// higher-level checks to decide on.
var (
	voidElements = map[string]bool{
		"area": true, "base": true, "br": true, "col": true, "embed": true,
		"hr": true, "img": true, "input": true, "link": true, "meta": true,
		"param": true, "source": true, "track": true, "wbr": true,
	}
	structuralElements = map[string]bool{
		"html": true, "head": true, "body": true, "main": true,
	}
)

func shouldRemoveEmptyElement(tag string) bool {
	return !voidElements[tag] && !structuralElements[tag]
}

// removeDuplicateNodes removes sibling elements that share a signature
// with one already kept under the same parent, preserving the first
// occurrence. Headings and landmark elements are never deduplicated
// (see isMeaningfulElement).
func removeDuplicateNodes(root *html.Node) {
	if root == nil {
		return
	}

	seenSignatures := make(map[*html.Node]map[string]bool)

	var traverse func(node *html.Node)
	traverse = func(node *html.Node) {
		if node == nil {
			return
		}

		if node.Type == html.ElementNode && isMeaningfulElement(node.Data) && node.Parent != nil {
			parent := node.Parent
			if seenSignatures[parent] == nil {
				seenSignatures[parent] = make(map[string]bool)
			}
			sig := nodeSignature(node)
			if seenSignatures[parent][sig] {
				parent.RemoveChild(node)
				return
			}
			seenSignatures[parent][sig] = true
		}

		var children []*html.Node
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			children = append(children, child)
		}
		for _, child := range children {
			traverse(child)
		}
	}

	traverse(root)
}

// nodeSignature hashes a node's tag, sorted attributes, and full rendered
// text content, so two structurally and textually identical siblings
// produce the same signature regardless of attribute order.
func nodeSignature(node *html.Node) string {
	var b strings.Builder
	b.WriteString(node.Data)
	b.WriteByte('|')

	attrs := make([]string, 0, len(node.Attr))
	for _, a := range node.Attr {
		attrs = append(attrs, a.Key+"="+a.Val)
	}
	sort.Strings(attrs)
	b.WriteString(strings.Join(attrs, ","))
	b.WriteByte('|')
	b.WriteString(nodeText(node))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// nodeText concatenates every text node under node, depth-first.
func nodeText(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return b.String()
}
