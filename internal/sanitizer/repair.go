package sanitizer

import (
	"strings"
	"unsafe"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// UnrepairabilityReason identifies why isRepairable rejected a document.
type UnrepairabilityReason string

const (
	// ReasonCompetingRoots: more than one <main>, or sibling <article>
	// elements, which leaves no single provable document root.
	ReasonCompetingRoots UnrepairabilityReason = "competing_roots"

	// ReasonNoStructuralAnchor: no headings and no main/article/section
	// to treat as the document body.
	ReasonNoStructuralAnchor UnrepairabilityReason = "no_structural_anchor"

	// ReasonMultipleH1NoRoot: more than one <h1>, and two of them are
	// siblings with no <main> or <article> above them as a shared root.
	ReasonMultipleH1NoRoot UnrepairabilityReason = "multiple_h1_no_root"
)

// RepairableResult reports whether isRepairable accepted a document and,
// if not, which structural check rejected it.
type RepairableResult struct {
	Repairable bool
	Reason     UnrepairabilityReason
}

// headingInfo is a single heading found during isRepairable's scan, kept
// alongside its DOM node so later checks can inspect ancestry.
type headingInfo struct {
	level int
	node  *html.Node
}

// isEmptyNode checks if a node is empty (has no children or only whitespace text nodes).
// Returns true for element nodes with no meaningful content.
func isEmptyNode(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				return false
			}
		}
	}
	return true
}

// isMeaningfulElement returns true if the element type should be considered
// for deduplication. Headings and semantic landmarks are structural anchors
// and are never removed as duplicates.
func isMeaningfulElement(tag string) bool {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return false
	}
	switch tag {
	case "main", "article", "header", "footer", "nav", "aside":
		return false
	default:
		return true
	}
}

// parentAddr returns a stable key identifying node's parent, for grouping
// siblings without relying on DOM equality.
func parentAddr(node *html.Node) uintptr {
	if node == nil || node.Parent == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(node.Parent))
}

// hasCompetingDocumentRoots reports whether the document has more than one
// <main>, or more than one <article> sharing the same parent: either case
// means no single element can be treated as the document's root.
func hasCompetingDocumentRoots(doc *goquery.Document) bool {
	if doc.Find("main").Length() > 1 {
		return true
	}

	siblingCounts := make(map[uintptr]int)
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		siblingCounts[parentAddr(s.Get(0))]++
	})
	for _, count := range siblingCounts {
		if count > 1 {
			return true
		}
	}
	return false
}

// collectHeadings walks the document in DOM order and returns every h1-h6.
func collectHeadings(doc *goquery.Document) []headingInfo {
	var headings []headingInfo
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil || len(node.Data) != 2 {
			return
		}
		headings = append(headings, headingInfo{level: int(node.Data[1] - '0'), node: node})
	})
	return headings
}

// hasStructuralAnchors reports whether the document has a landmark element
// that can stand in for the document body even without any headings.
func hasStructuralAnchors(doc *goquery.Document) bool {
	return doc.Find("article").Length() > 0 ||
		doc.Find("main").Length() > 0 ||
		doc.Find("section").Has("*").Length() > 0
}

// hasMultipleH1WithoutPrimaryRoot reports whether the document has more
// than one <h1> and two of those h1s are siblings outside any <main> or
// <article>, which leaves no provable primary root for them.
func hasMultipleH1WithoutPrimaryRoot(headings []headingInfo) bool {
	var h1s []headingInfo
	for _, h := range headings {
		if h.level == 1 {
			h1s = append(h1s, h)
		}
	}
	if len(h1s) <= 1 {
		return false
	}

	underLandmark := func(node *html.Node) bool {
		for p := node.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && (p.Data == "main" || p.Data == "article") {
				return true
			}
		}
		return false
	}

	seenParents := make(map[uintptr]bool)
	for _, h1 := range h1s {
		addr := parentAddr(h1.node)
		if seenParents[addr] && !underLandmark(h1.node) {
			return true
		}
		seenParents[addr] = true
	}
	return false
}

// isRepairable runs the structural checks a document must pass before
// heading normalization and deduplication are attempted: a single provable
// root, at least one landmark or heading, and no sibling h1s outside a
// main or article root.
func isRepairable(doc *html.Node) RepairableResult {
	docQuery := goquery.NewDocumentFromNode(doc)

	if hasCompetingDocumentRoots(docQuery) {
		return RepairableResult{Reason: ReasonCompetingRoots}
	}

	headings := collectHeadings(docQuery)
	if len(headings) == 0 && !hasStructuralAnchors(docQuery) {
		return RepairableResult{Reason: ReasonNoStructuralAnchor}
	}

	if hasMultipleH1WithoutPrimaryRoot(headings) {
		return RepairableResult{Reason: ReasonMultipleH1NoRoot}
	}

	return RepairableResult{Repairable: true}
}
