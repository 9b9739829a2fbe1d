package sanitizer

import (
	"golang.org/x/net/html"
)

// SanitizedHTMLDoc is the output of a successful Sanitize call: a DOM tree
// with empty/duplicate nodes removed and heading levels renumbered. Link
// discovery is the crawler's job (internal/linkextract), not the
// sanitizer's, so this holds nothing but the cleaned tree.
type SanitizedHTMLDoc struct {
	contentNode *html.Node
}

// GetContentNode returns the sanitized DOM tree for downstream conversion.
func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}

// NewSanitizedHTMLDoc builds a SanitizedHTMLDoc directly from an already-
// cleaned node, bypassing Sanitize. Tests use this to hand mdconvert a
// fixed DOM without running the full structural-repair pipeline.
func NewSanitizedHTMLDoc(node *html.Node) SanitizedHTMLDoc {
	return SanitizedHTMLDoc{contentNode: node}
}
