// Package markdown is the reference content hook: it turns a fetched HTML
// page into a normalized Markdown document and persists it to disk. It is
// the worked example of the extension point linkextract.ContentHandler
// describes — a crawl can run with none of this wired in, or with a
// different hook entirely.
package markdown

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/hlopes/crawld/internal/extractor"
	"github.com/hlopes/crawld/internal/mdconvert"
	"github.com/hlopes/crawld/internal/metadata"
	"github.com/hlopes/crawld/internal/normalize"
	"github.com/hlopes/crawld/internal/sanitizer"
	"github.com/hlopes/crawld/internal/storage"
	"github.com/hlopes/crawld/pkg/hashutil"
)

// ArtifactRecorder lets the hook write into the same crawl database its
// caller's frontier uses, demonstrating that a content hook may define
// and use its own tables rather than a separate store.
type ArtifactRecorder interface {
	RecordArtifact(ctx context.Context, tokenID int64, url string, path string, contentHash string) error
}

// Hook wires extraction, sanitization, conversion, normalization and
// storage into a single pipeline driven off a fetched page body.
type Hook struct {
	extractor    extractor.DomExtractor
	sanitizer    sanitizer.HtmlSanitizer
	converter    mdconvert.ConvertRule
	constraint   normalize.Constraint
	sink         storage.Sink
	artifacts    ArtifactRecorder
	tokenID      int64
	outputDir    string
	hashAlgo     hashutil.HashAlgo
	appVersion   string
	pathPrefixes []string
}

func New(
	metadataSink metadata.MetadataSink,
	extractParam extractor.ExtractParam,
	outputDir string,
	hashAlgo hashutil.HashAlgo,
	appVersion string,
	pathPrefixes []string,
	artifacts ArtifactRecorder,
	tokenID int64,
) *Hook {
	domExtractor := extractor.NewDomExtractor(metadataSink, extractParam)
	htmlSanitizer := sanitizer.NewHTMLSanitizer(metadataSink)
	rule := mdconvert.NewRule(metadataSink)
	constraint := normalize.NewMarkdownConstraint(metadataSink)
	sink := storage.NewLocalSink(metadataSink)

	return &Hook{
		extractor:    domExtractor,
		sanitizer:    htmlSanitizer,
		converter:    rule,
		constraint:   &constraint,
		sink:         &sink,
		artifacts:    artifacts,
		tokenID:      tokenID,
		outputDir:    outputDir,
		hashAlgo:     hashAlgo,
		appVersion:   appVersion,
		pathPrefixes: pathPrefixes,
	}
}

// OnPage runs the pipeline for a single fetched page. Content-quality
// failures (unparseable HTML, no extractable container, broken heading
// structure) are page-local: each stage already records them via the
// metadata sink, and OnPage swallows them so one malformed page never
// halts the rest of the crawl. A storage write failure is treated as an
// infrastructure fault and returned to the caller.
func (h *Hook) OnPage(ctx context.Context, pageURL string, body string) error {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	extraction, classifiedErr := h.extractor.Extract(*parsed, []byte(body))
	if classifiedErr != nil {
		return nil
	}

	sanitized, classifiedErr := h.sanitizer.Sanitize(extraction.ContentNode)
	if classifiedErr != nil {
		return nil
	}

	converted, classifiedErr := h.converter.Convert(sanitized)
	if classifiedErr != nil {
		return nil
	}

	normalizeParam := normalize.NewNormalizeParam(h.appVersion, time.Now(), h.hashAlgo, 0, h.pathPrefixes)
	normalizedDoc, classifiedErr := h.constraint.Normalize(*parsed, bytes.TrimSpace(converted.GetMarkdownContent()), normalizeParam)
	if classifiedErr != nil {
		return nil
	}

	writeResult, classifiedErr := h.sink.Write(h.outputDir, normalizedDoc, h.hashAlgo)
	if classifiedErr != nil {
		return classifiedErr
	}

	if h.artifacts == nil {
		return nil
	}
	return h.artifacts.RecordArtifact(ctx, h.tokenID, pageURL, writeResult.Path(), writeResult.ContentHash())
}
