// Package linkextract implements the Link Extractor (C5): pull candidate
// links out of a fetched HTML body with a regex, push them through
// canonicalisation and admission into the frontier, then hand the page
// to the user-supplied content hook.
package linkextract

import (
	"context"
	"regexp"
	"strings"

	"github.com/hlopes/crawld/internal/admission"
	"github.com/hlopes/crawld/internal/frontier"
	"github.com/hlopes/crawld/internal/urlcanon"
)

// hrefPattern matches href="..." and href='...' case-insensitively. No
// HTML parsing is performed.
var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']*)["']`)

// ContentHandler is the user-supplied extension point: a polymorphic
// capability injected at construction, not a subclass. It is invoked
// exactly once per successfully-fetched page, after link extraction for
// that page has been attempted.
type ContentHandler interface {
	OnPage(ctx context.Context, pageURL string, body string) error
}

// Store is the subset of the frontier Store the extractor needs.
type Store interface {
	HasHash(ctx context.Context, tokenID int64, hashID string) (bool, error)
	AddURL(ctx context.Context, tokenID int64, url string, hashID string) error
	Count(ctx context.Context, tokenID int64) (int, error)
}

// Extractor wires urlcanon and admission between a fetched page and the
// frontier's insert operation.
type Extractor struct {
	store   Store
	filter  admission.Filter
	tokenID int64
	hook    ContentHandler
}

func New(store Store, filter admission.Filter, tokenID int64, hook ContentHandler) Extractor {
	return Extractor{store: store, filter: filter, tokenID: tokenID, hook: hook}
}

// Run extracts links from body, canonicalising each against parentURL and
// admitting it into the frontier, then invokes the content hook. The
// cap sample is read once per pass and incremented locally as candidates
// are admitted, deliberately allowing the final count to exceed the
// configured limit by up to N-1 under concurrency.
func (e Extractor) Run(ctx context.Context, parentURL string, body string) error {
	parent := urlcanon.Canonicalize(parentURL, urlcanon.URL{})

	runningCount, err := e.store.Count(ctx, e.tokenID)
	if err != nil {
		return err
	}

	for _, href := range extractHrefs(body) {
		if strings.HasPrefix(href, "#") {
			continue
		}

		candidate := urlcanon.Canonicalize(href, parent)
		if !candidate.Valid() {
			continue
		}

		hashID := candidate.Fingerprint()
		alreadyPresent, err := e.store.HasHash(ctx, e.tokenID, hashID)
		if err != nil {
			return err
		}

		if !e.filter.Admit(candidate, alreadyPresent, runningCount) {
			continue
		}

		if err := e.store.AddURL(ctx, e.tokenID, candidate.String(), hashID); err != nil {
			return err
		}
		runningCount++
	}

	if e.hook == nil {
		return nil
	}
	return e.hook.OnPage(ctx, parentURL, body)
}

// extractHrefs returns every href attribute value found in body, in
// document order, without decoding HTML entities.
func extractHrefs(body string) []string {
	matches := hrefPattern.FindAllStringSubmatch(body, -1)
	hrefs := make([]string, 0, len(matches))
	for _, m := range matches {
		hrefs = append(hrefs, m[1])
	}
	return hrefs
}
