/*
Responsibilities
- Normalize malformed markup
- Remove empty or duplicate nodes
- Stabilize heading hierarchy

This stage ensures downstream Markdown conversion is deterministic.
*/
package sanitizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hlopes/crawld/internal/metadata"
	"github.com/hlopes/crawld/pkg/failure"
	"golang.org/x/net/html"
)

type HtmlSanitizer struct {
	metadataSink metadata.MetadataSink
}

func NewHTMLSanitizer(metadataSink metadata.MetadataSink) HtmlSanitizer {
	return HtmlSanitizer{
		metadataSink: metadataSink,
	}
}

// Sanitize is the exported entry point for HTML sanitization.
// It accepts an html.Node as the canonical data source for configuration.
// All sanitization errors are recorded via metadataSink before being returned.
func (h *HtmlSanitizer) Sanitize(
	inputContentNode *html.Node,
) (SanitizedHTMLDoc, failure.ClassifiedError) {
	sanitizedHtmlDoc, err := sanitize(inputContentNode)
	if err != nil {
		var sanitizationError *SanitizationError
		errors.As(err, &sanitizationError)

		// Build contextual attributes based on the error cause
		attrs := buildErrorAttributes(sanitizationError)

		h.metadataSink.RecordError(
			time.Now(),
			"sanitizer",
			"HtmlSanitizer.Sanitize",
			mapSanitizationErrorToMetadataCause(*sanitizationError),
			err.Error(),
			attrs,
		)
		return SanitizedHTMLDoc{}, sanitizationError
	}
	return sanitizedHtmlDoc, nil
}

// causeMessages gives each SanitizationErrorCause a human-readable message
// for the metadata attributes attached to RecordError.
var causeMessages = map[SanitizationErrorCause]string{
	ErrCauseUnparseableHTML:    "HTML cannot be parsed: nil node or no content",
	ErrCauseCompetingRoots:     "multiple competing document roots found",
	ErrCauseNoStructuralAnchor: "no headings and no structural anchors like article/main",
	ErrCauseMultipleH1NoRoot:   "multiple h1 elements without provable primary root",
}

// buildErrorAttributes creates metadata attributes based on the sanitization error cause.
// This provides contextual information for observability and debugging.
func buildErrorAttributes(err *SanitizationError) []metadata.Attribute {
	msg, ok := causeMessages[err.Cause]
	if !ok {
		msg = "unknown sanitization error"
	}
	return []metadata.Attribute{
		metadata.NewAttr(metadata.AttrField, string(err.Cause)),
		metadata.NewAttr(metadata.AttrMessage, msg),
	}
}

// sanitize is the private orchestration method that coordinates all sanitization steps.
// It first checks if the document is parseable, then proceeds with structural repairs.
func sanitize(doc *html.Node) (SanitizedHTMLDoc, *SanitizationError) {
	// Step 1: Check if the document is parseable
	if !isParseable(doc) {
		return SanitizedHTMLDoc{}, &SanitizationError{
			Message:   "input HTML cannot be parsed: nil node or no content",
			Retryable: false,
			Cause:     ErrCauseUnparseableHTML,
		}
	}

	// Step 2: Check if the document is repairable
	result := isRepairable(doc)
	if !result.Repairable {
		cause := mapReasonToErrorCause(result.Reason)
		return SanitizedHTMLDoc{}, &SanitizationError{
			Message:   fmt.Sprintf("document is not repairable: %s", result.Reason),
			Retryable: false,
			Cause:     cause,
		}
	}

	// Step 3: Normalize heading levels (Invariant H1)
	// This renumbers headings to fix skipped levels without reordering nodes
	normalizedDoc := normalizeHeadingLevels(doc)

	// Step 4: Remove duplicate and empty nodes (Invariant S4)
	// This performs structural cleanup: removes empty wrappers and deduplicates identical nodes
	cleanedDoc := removeDuplicateAndEmptyNode(normalizedDoc)

	return SanitizedHTMLDoc{
		contentNode: cleanedDoc,
	}, nil
}

// reasonCauses maps UnrepairabilityReason to SanitizationErrorCause. The
// translation happens here, at the sanitize() level, to keep isRepairable()
// independent of error-cause types.
var reasonCauses = map[UnrepairabilityReason]SanitizationErrorCause{
	ReasonCompetingRoots:     ErrCauseCompetingRoots,
	ReasonNoStructuralAnchor: ErrCauseNoStructuralAnchor,
	ReasonMultipleH1NoRoot:   ErrCauseMultipleH1NoRoot,
}

func mapReasonToErrorCause(reason UnrepairabilityReason) SanitizationErrorCause {
	return reasonCauses[reason]
}

// isParseable reports whether doc is a non-nil node with at least one
// child and a structure goquery can traverse.
func isParseable(doc *html.Node) bool {
	if doc == nil || doc.FirstChild == nil {
		return false
	}
	docQuery := goquery.NewDocumentFromNode(doc)
	return docQuery != nil && docQuery.Find("*") != nil
}

// normalizeHeadingLevels renumbers headings so no level is skipped by more
// than one step going deeper (h1 -> h3 becomes h1 -> h2); going backward
// (h4 -> h2) is left alone since it starts a new section. Operates on a
// clone, leaving doc untouched.
func normalizeHeadingLevels(doc *html.Node) *html.Node {
	docQuery := goquery.NewDocumentFromNode(doc)
	clonedDoc := goquery.CloneDocument(docQuery)

	var headings []*html.Node
	clonedDoc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
		if node := s.Get(0); node != nil {
			headings = append(headings, node)
		}
	})
	if len(headings) == 0 {
		return clonedDoc.Get(0)
	}

	prevEffectiveLevel := 0
	for _, node := range headings {
		currentLevel := 0
		if len(node.Data) == 2 && node.Data[0] == 'h' {
			currentLevel = int(node.Data[1] - '0')
		}
		if currentLevel < 1 || currentLevel > 6 {
			continue
		}

		effectiveLevel := currentLevel
		if prevEffectiveLevel == 0 || currentLevel > prevEffectiveLevel {
			if currentLevel > prevEffectiveLevel+1 {
				newLevel := prevEffectiveLevel + 1
				if newLevel >= 1 && newLevel <= 6 {
					node.Data = fmt.Sprintf("h%d", newLevel)
					effectiveLevel = newLevel
				}
			}
		}
		prevEffectiveLevel = effectiveLevel
	}

	return clonedDoc.Get(0)
}

// removeDuplicateAndEmptyNode operates on a clone of doc: it first strips
// empty containers bottom-up, then removes structurally and textually
// duplicate siblings, keeping the first occurrence of each.
func removeDuplicateAndEmptyNode(doc *html.Node) *html.Node {
	docQuery := goquery.NewDocumentFromNode(doc)
	clonedDoc := goquery.CloneDocument(docQuery)
	rootNode := clonedDoc.Get(0)

	removeEmptyNodesBottomUp(rootNode)
	removeDuplicateNodes(rootNode)

	return rootNode
}
