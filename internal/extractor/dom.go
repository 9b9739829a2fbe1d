package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/hlopes/crawld/internal/metadata"
	"github.com/hlopes/crawld/pkg/failure"
	"golang.org/x/net/html"
)

/*
Responsibilities
- Parse HTML into a DOM tree
- Isolate main documentation content
- Remove site chrome and noise

Extraction Strategy
- Priority order:
	- Semantic containers (main, article)
    - Configured selectors
    - Heuristic fallback (largest coherent text block)
Removal Rules
- Strip:
    - Navigation menus
    - Headers and footers
    - Sidebars
    - Cookie banners
    - Version selectors
    - Edit links

Only content relevant to the document body may pass through.
*/

type DomExtractor struct {
	metadataSink    metadata.MetadataSink
	customSelectors []string
	params          ExtractParam
}

func NewDomExtractor(
	metadataSink metadata.MetadataSink,
	params ExtractParam,
	customSelectors ...string,
) DomExtractor {
	return DomExtractor{
		metadataSink:    metadataSink,
		customSelectors: customSelectors,
		params:          params,
	}
}

func (d *DomExtractor) Extract(
	sourceUrl url.URL,
	htmlByte []byte,
) (ExtractionResult, failure.ClassifiedError) {
	result, err := d.extract(htmlByte)
	if err != nil {
		var extractionError *ExtractionError
		errors.As(err, &extractionError)
		d.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"DomExtractor.Extract",
			mapExtractionErrorToMetadataCause(extractionError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fmt.Sprintf("%v", sourceUrl)),
			},
		)
		return ExtractionResult{}, extractionError
	}
	return result, nil
}

func (d *DomExtractor) extract(htmlByte []byte) (ExtractionResult, error) {
	doc, err := html.Parse(bytes.NewReader(htmlByte))
	if err != nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}
	if !isValidHTML(doc) {
		return ExtractionResult{}, &ExtractionError{
			Message:   "input is not valid HTML document",
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	if contentNode := extractSemanticContainer(doc); contentNode != nil {
		return ExtractionResult{DocumentRoot: doc, ContentNode: contentNode}, nil
	}
	if contentNode := d.extractKnownDocContainer(doc); contentNode != nil {
		return ExtractionResult{DocumentRoot: doc, ContentNode: contentNode}, nil
	}
	if contentNode := d.extractContainerAfterExplicitChromesRemoval(*doc); contentNode != nil {
		return ExtractionResult{DocumentRoot: doc, ContentNode: contentNode}, nil
	}

	return ExtractionResult{}, &ExtractionError{
		Message:   "no meaningful content container found",
		Retryable: false,
		Cause:     ErrCauseNoContent,
	}
}

// isValidHTML reports whether doc contains an <html> element anywhere.
func isValidHTML(doc *html.Node) bool {
	var findHTML func(*html.Node) bool
	findHTML = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "html" {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if findHTML(c) {
				return true
			}
		}
		return false
	}
	return findHTML(doc)
}

// extractSemanticContainer is the first extraction layer: <main>, then
// <article>, then [role="main"], first meaningful match wins.
func extractSemanticContainer(doc *html.Node) *html.Node {
	gqDoc := goquery.NewDocumentFromNode(doc)

	for _, selector := range []string{"main", "article", "[role='main']"} {
		if sel := gqDoc.Find(selector).First(); sel.Length() > 0 {
			if node := sel.Nodes[0]; isMeaningful(node) {
				return node
			}
		}
	}
	return nil
}

// extractKnownDocContainer is the second extraction layer: per-framework
// selectors (KnownDocSelectors) plus any caller-supplied custom selectors,
// tried in priority order.
func (d *DomExtractor) extractKnownDocContainer(doc *html.Node) *html.Node {
	allSelectors := mergeSelectors(getAllSelectors(), d.customSelectors)
	gqDoc := goquery.NewDocumentFromNode(doc)

	for _, selector := range allSelectors {
		if elem := gqDoc.Find(selector).First(); elem.Length() > 0 {
			if node := elem.Nodes[0]; isMeaningful(node) {
				return node
			}
		}
	}
	return nil
}

// extractContainerAfterExplicitChromesRemoval is the third and final
// extraction layer: strip chrome, score what's left, and take the winner
// if it passes isMeaningful.
func (d *DomExtractor) extractContainerAfterExplicitChromesRemoval(doc html.Node) *html.Node {
	cleanedDoc := removeExplicitChromes(&doc)
	if cleanedDoc == nil {
		return nil
	}
	contentNode := d.findBestContentContainer(cleanedDoc)
	if contentNode == nil || !isMeaningful(contentNode) {
		return nil
	}
	return contentNode
}

// removeExplicitChromes clones doc and strips nav/header/footer/aside
// elements and anything whose class/id matches chromeAttributeKeywords.
func removeExplicitChromes(doc *html.Node) *html.Node {
	clonedDoc := deepCloneNode(doc)
	if clonedDoc == nil {
		return nil
	}
	removeChromeElements(clonedDoc)
	removeElementsWithChromeAttributes(clonedDoc)
	return clonedDoc
}

// deepCloneNode creates a deep copy of an html.Node
func deepCloneNode(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}

	// Create new node with same properties
	cloned := &html.Node{
		Type:      node.Type,
		DataAtom:  node.DataAtom,
		Data:      node.Data,
		Namespace: node.Namespace,
	}

	// Clone attributes
	if len(node.Attr) > 0 {
		cloned.Attr = make([]html.Attribute, len(node.Attr))
		copy(cloned.Attr, node.Attr)
	}

	// Clone children recursively
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		clonedChild := deepCloneNode(child)
		if clonedChild != nil {
			cloned.AppendChild(clonedChild)
		}
	}

	return cloned
}

// chromeElementNames contains element names that are always chrome
var chromeElementNames = map[string]bool{
	"nav":    true,
	"header": true,
	"footer": true,
	"aside":  true,
}

// chromeAttributeKeywords contains keywords that indicate chrome when found in class/id
var chromeAttributeKeywords = []string{
	"nav", "sidebar", "menu", "breadcrumb",
	"search", "footer", "header", "cookie",
	"consent", "version", "language", "theme",
	"edit", "github",
}

// removeChromeElements removes elements that are always chrome (nav, header, footer, aside)
func removeChromeElements(root *html.Node) {
	var nodesToRemove []*html.Node

	// First pass: collect all chrome elements
	var collectChromeElements func(*html.Node)
	collectChromeElements = func(n *html.Node) {
		if n == nil {
			return
		}

		if n.Type == html.ElementNode && chromeElementNames[n.Data] {
			nodesToRemove = append(nodesToRemove, n)
		}

		// Recurse into children (but not into already marked chrome elements)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectChromeElements(c)
		}
	}
	collectChromeElements(root)

	// Second pass: remove collected nodes
	for _, node := range nodesToRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// removeElementsWithChromeAttributes removes elements with class/id containing chrome keywords
func removeElementsWithChromeAttributes(root *html.Node) {
	var nodesToRemove []*html.Node

	// First pass: collect elements with chrome-related attributes
	var collectChromeAttributedElements func(*html.Node)
	collectChromeAttributedElements = func(n *html.Node) {
		if n == nil {
			return
		}

		if n.Type == html.ElementNode && hasChromeAttribute(n) {
			nodesToRemove = append(nodesToRemove, n)
		}

		// Recurse into children
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectChromeAttributedElements(c)
		}
	}
	collectChromeAttributedElements(root)

	// Second pass: remove collected nodes
	for _, node := range nodesToRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// hasChromeAttribute checks if an element has class or id containing chrome keywords
func hasChromeAttribute(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" || attr.Key == "id" {
			lowerValue := strings.ToLower(attr.Val)
			for _, keyword := range chromeAttributeKeywords {
				if strings.Contains(lowerValue, keyword) {
					return true
				}
			}
		}
	}
	return false
}

// findBestContentContainer finds the best content container using weighted scoring
// It applies specificity bias: prefers child containers over <body>
func (d *DomExtractor) findBestContentContainer(doc *html.Node) *html.Node {
	candidates := collectCandidateNodes(doc)
	if len(candidates) == 0 {
		return nil
	}

	// Score all candidates
	scores := make(map[*html.Node]float64)
	var bodyNode *html.Node
	var bodyScore float64

	for _, candidate := range candidates {
		score := calculateContentScore(candidate, d.params.LinkDensityThreshold)
		scores[candidate] = score

		if candidate.Data == "body" {
			bodyNode = candidate
			bodyScore = score
		}
	}

	// Find highest scoring node
	var bestNode *html.Node
	var bestScore float64

	for node, score := range scores {
		if score > bestScore {
			bestScore = score
			bestNode = node
		}
	}

	// Apply specificity bias: if <body> is best, check if a child is close enough
	if bestNode == bodyNode && bodyNode != nil {
		for node, score := range scores {
			if node == bodyNode {
				continue
			}
			// If child score is >= bias * bodyScore, prefer the child
			if score >= d.params.BodySpecificityBias*bodyScore {
				if score > bestScore*0.9 { // Must also be reasonably close to best
					bestNode = node
					bestScore = score
					break
				}
			}
		}
	}

	return bestNode
}

// collectCandidateNodes collects potential content container nodes
func collectCandidateNodes(root *html.Node) []*html.Node {
	var candidates []*html.Node

	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n == nil {
			return
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "div", "section", "body":
				candidates = append(candidates, n)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}

	collect(root)
	return candidates
}

// nodeStats is the shared text/structure tally both the scorer and the
// meaningful-content gate walk a subtree to collect, so the two heuristics
// never drift out of sync on what counts as a paragraph or a code block.
type nodeStats struct {
	textLength    int
	nonWhitespace int
	paragraphs    int
	headings      int
	headingsH3    int // h1-h3 only, used by the scorer
	codeBlocks    int
	listItems     int
	links         int
	linkTextLen   int
}

func collectNodeStats(node *html.Node) nodeStats {
	var s nodeStats

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}

		switch n.Type {
		case html.TextNode:
			s.textLength += len(n.Data)
			for _, r := range n.Data {
				if !unicode.IsSpace(r) {
					s.nonWhitespace++
				}
			}

		case html.ElementNode:
			switch n.Data {
			case "p":
				s.paragraphs++
			case "h1", "h2", "h3":
				s.headingsH3++
				s.headings++
			case "h4", "h5", "h6":
				s.headings++
			case "pre":
				if hasCodeChild(n) {
					s.codeBlocks++
				}
			case "code":
				if n.Parent == nil || n.Parent.Data != "pre" {
					s.codeBlocks++
				}
			case "li":
				s.listItems++
			case "a":
				s.links++
				s.linkTextLen += directTextLen(n)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return s
}

func hasCodeChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			return true
		}
	}
	return false
}

func directTextLen(n *html.Node) int {
	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			total += len(strings.TrimSpace(c.Data))
		}
	}
	return total
}

// contentScoreWeights are the point values assigned to each structural
// signal when ranking candidate content containers.
type contentScoreWeights struct {
	perNonWhitespaceChars float64
	paragraph             float64
	heading               float64
	codeBlock             float64
	listItem              float64
}

var defaultScoreWeights = contentScoreWeights{
	perNonWhitespaceChars: 50, // +1 point per this many non-whitespace chars
	paragraph:             5,
	heading:               10,
	codeBlock:             15,
	listItem:              2,
}

// calculateContentScore ranks a candidate container by how much
// documentation-shaped content it holds, then discounts it if too much of
// its text lives inside links (a sign it is a navigation block, not prose).
func calculateContentScore(node *html.Node, linkDensityThreshold float64) float64 {
	s := collectNodeStats(node)
	w := defaultScoreWeights

	score := float64(s.nonWhitespace)/w.perNonWhitespaceChars +
		float64(s.paragraphs)*w.paragraph +
		float64(s.headingsH3)*w.heading +
		float64(s.codeBlocks)*w.codeBlock +
		float64(s.listItems)*w.listItem

	if s.textLength > 0 {
		if density := float64(s.linkTextLen) / float64(s.textLength); density > linkDensityThreshold {
			score -= (density - linkDensityThreshold) * score
		}
	}
	return score
}

const (
	minMeaningfulNonWhitespace = 50
	minMeaningfulHeadingText   = 20
	maxMeaningfulLinkDensity   = 0.8
)

// isMeaningful rejects nodes that are mostly whitespace or mostly
// navigation links, keeping anything with real prose, a code sample, or a
// heading backed by some text. Used by all three extraction layers as the
// final gate before a candidate container is accepted.
func isMeaningful(node *html.Node) bool {
	if node == nil {
		return false
	}
	s := collectNodeStats(node)

	if s.nonWhitespace < minMeaningfulNonWhitespace {
		return false
	}
	if s.textLength > 0 && s.links > 2 {
		if density := float64(s.linkTextLen) / float64(s.textLength); density > maxMeaningfulLinkDensity {
			return false
		}
	}

	hasProse := s.paragraphs > 0 || s.codeBlocks > 0
	hasHeadingWithText := s.headings > 0 && s.nonWhitespace >= minMeaningfulHeadingText
	return hasProse || hasHeadingWithText
}
