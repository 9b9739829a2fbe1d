package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"time"

	"go.uber.org/zap"
)

// MetadataSink is the write side every pipeline stage depends on. It is
// observational only: nothing it records may be read back to decide
// control flow (retry, continuation, abort).
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the one terminal summary a completed crawl
// produces. It is constructed without reading metadata: callers pass in
// the counts they tracked during the run.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

// Recorder is the zap-backed implementation of both interfaces above. A
// Recorder is per-session state (carries the token id it is reporting
// against); it is never shared across crawler instances.
type Recorder struct {
	logger  *zap.Logger
	tokenID int
}

// NewRecorder builds a Recorder around the given zap logger. Passing
// zap.NewNop() is the common choice in tests that don't care about log
// output.
func NewRecorder(logger *zap.Logger, tokenID int) Recorder {
	return Recorder{
		logger:  logger,
		tokenID: tokenID,
	}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.logger.Info("fetch",
		zap.Int("token_id", r.tokenID),
		zap.String("url", fetchUrl),
		zap.Int("status", httpStatus),
		zap.Duration("duration", duration),
		zap.String("content_type", contentType),
		zap.Int("depth", crawlDepth),
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	fields := []zap.Field{
		zap.Int("token_id", r.tokenID),
		zap.Time("observed_at", observedAt),
		zap.String("package", packageName),
		zap.String("action", action),
		zap.Int("cause", int(cause)),
		zap.String("error", errorString),
	}
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Error("crawl error", fields...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	fields := []zap.Field{
		zap.Int("token_id", r.tokenID),
		zap.String("kind", string(kind)),
		zap.String("path", path),
	}
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value))
	}
	r.logger.Info("artifact", fields...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.logger.Info("Crawling finished",
		zap.Int("token_id", r.tokenID),
		zap.Int("total_pages", totalPages),
		zap.Int("total_errors", totalErrors),
		zap.Int("total_assets", totalAssets),
		zap.Duration("duration", duration),
	)
}

// NoopSink is a MetadataSink that discards everything recorded through
// it. Tests embed it in a spy struct and override only the method they
// care about, rather than stubbing all three every time.
type NoopSink struct{}

func (NoopSink) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
}

func (NoopSink) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
}

func (NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

// ProcessedLine logs the per-URL progress line, reproducing greencrawler's
// `{url} [status: {status}]` notice as a structured field instead of a
// bare print.
func (r *Recorder) ProcessedLine(url string, status int) {
	r.logger.Info("processed",
		zap.Int("token_id", r.tokenID),
		zap.String("url", url),
		zap.Int("status", status),
	)
}
