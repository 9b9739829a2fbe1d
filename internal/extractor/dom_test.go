package extractor_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/hlopes/crawld/internal/extractor"
	"github.com/hlopes/crawld/internal/metadata"
	"github.com/hlopes/crawld/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// mockMetadataSink is a test spy that captures recorded errors.
type mockMetadataSink struct {
	metadata.NoopSink
	errors []recordedError
}

type recordedError struct {
	PackageName string
	Action      string
	Cause       metadata.ErrorCause
	ErrorString string
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	errorString string,
	attrs []metadata.Attribute,
) {
	m.errors = append(m.errors, recordedError{
		PackageName: packageName,
		Action:      action,
		Cause:       cause,
		ErrorString: errorString,
	})
}

func setupExtractor() (*extractor.DomExtractor, *mockMetadataSink) {
	sink := &mockMetadataSink{}
	ext := extractor.NewDomExtractor(sink, extractor.NewExtractParam(0.5, 0.5))
	return &ext, sink
}

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func isElementNode(node *html.Node, tag string) bool {
	return node != nil && node.Type == html.ElementNode && node.Data == tag
}

const longProse = `Documentation crawlers walk a site's link graph, fetch each page's
HTML, and isolate the part of the document that actually describes the
product rather than the chrome surrounding it. Getting this right matters
because downstream consumers index the extracted text, not the raw page.`

func TestExtract_MainWithProseIsChosen(t *testing.T) {
	ext, _ := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/docs")
	htmlBytes := []byte(`<html><body><nav>Home About</nav>
		<main><h1>Guide</h1><p>` + longProse + `</p></main>
		<footer>copyright</footer></body></html>`)

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.NoError(t, err, "expected successful extraction")
	assert.NotNil(t, result.DocumentRoot)
	assert.True(t, isElementNode(result.ContentNode, "main"))
}

func TestExtract_EmptyMainIsRejected(t *testing.T) {
	ext, sink := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/empty")
	htmlBytes := []byte(`<html><body><main></main></body></html>`)

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.Error(t, err, "expected extraction to fail on an empty main")
	assert.Nil(t, result.ContentNode)
	assert.Equal(t, string(failure.SeverityFatal), string(err.Severity()))
	require.Len(t, sink.errors, 1)
	assert.Equal(t, int(metadata.CauseContentInvalid), int(sink.errors[0].Cause))
}

func TestExtract_NavOnlyMainIsRejected(t *testing.T) {
	ext, sink := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/nav-only")
	htmlBytes := []byte(`<html><body><main>
		<a href="/a">A</a><a href="/b">B</a><a href="/c">C</a>
		<a href="/d">D</a><a href="/e">E</a>
	</main></body></html>`)

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.Error(t, err, "nav-only content should not be meaningful")
	assert.Nil(t, result.ContentNode)
	require.Len(t, sink.errors, 1)
	assert.Equal(t, int(metadata.CauseContentInvalid), int(sink.errors[0].Cause))
}

func TestExtract_ArticleFallbackWhenMainIsEmpty(t *testing.T) {
	ext, _ := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/article-fallback")
	htmlBytes := []byte(`<html><body><main></main>
		<article><h1>Guide</h1><p>` + longProse + `</p></article>
	</body></html>`)

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.NoError(t, err, "expected extraction to fall back to article")
	assert.True(t, isElementNode(result.ContentNode, "article"))
}

func TestExtract_CodeHeavyContentIsMeaningful(t *testing.T) {
	ext, _ := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/code-docs")
	htmlBytes := []byte(`<html><body><main></main>
		<article>
			<h1>Install</h1>
			<pre><code>go install github.com/hlopes/crawld/cmd/crawld@latest</code></pre>
			<pre><code>crawld start --seed-url https://example.com --output ./out</code></pre>
		</article>
	</body></html>`)

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.NoError(t, err, "expected code-heavy content to be accepted")
	assert.True(t, isElementNode(result.ContentNode, "article"))
}

func TestExtract_NoMeaningfulContentAnywhere(t *testing.T) {
	ext, sink := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/no-content")
	htmlBytes := []byte(`<html><body><nav>Home</nav><footer>copyright</footer></body></html>`)

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.Error(t, err, "expected extraction to fail when nothing meaningful remains")
	assert.Nil(t, result.ContentNode)
	require.Len(t, sink.errors, 1)
	assert.Equal(t, int(metadata.CauseContentInvalid), int(sink.errors[0].Cause))
}

func TestExtract_ThinPlainTextBodyIsRejected(t *testing.T) {
	ext, sink := setupExtractor()
	sourceURL := mustParseURL(t, "https://example.com/plaintext")
	htmlBytes := []byte("just a short line of unstructured text")

	result, err := ext.Extract(sourceURL, htmlBytes)

	require.Error(t, err, "expected a bare text blob with no structure to be rejected")
	assert.Nil(t, result.ContentNode)
	require.Len(t, sink.errors, 1)
	assert.Equal(t, int(metadata.CauseContentInvalid), int(sink.errors[0].Cause))
}
