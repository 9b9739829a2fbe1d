package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hlopes/crawld/internal/fetcher"
	"github.com/hlopes/crawld/internal/metadata"
)

type mockMetadataSink struct {
	fetchEvents []fetchEvent
	errorEvents []errorEvent
}

type fetchEvent struct {
	fetchUrl    string
	httpStatus  int
	contentType string
	crawlDepth  int
}

type errorEvent struct {
	packageName string
	cause       metadata.ErrorCause
}

func (m *mockMetadataSink) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	m.fetchEvents = append(m.fetchEvents, fetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		contentType: contentType,
		crawlDepth:  crawlDepth,
	})
}

func (m *mockMetadataSink) RecordError(observedAt time.Time, packageName string, action string, cause metadata.ErrorCause, details string, attrs []metadata.Attribute) {
	m.errorEvents = append(m.errorEvents, errorEvent{packageName: packageName, cause: cause})
}

func (m *mockMetadataSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {}

var _ metadata.MetadataSink = &mockMetadataSink{}

func newTestFetcher() (fetcher.HtmlFetcher, *mockMetadataSink) {
	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{Timeout: 2 * time.Second})
	return f, sink
}

func TestFetch_HTMLReturnsActualStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer server.Close()

	f, sink := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	result := f.Fetch(context.Background(), 2, fetcher.NewFetchParam(*fetchUrl, "test-agent"))

	if result.Code() != http.StatusOK {
		t.Fatalf("Code() = %d, want 200", result.Code())
	}
	if string(result.Body()) != "<html><body>hi</body></html>" {
		t.Errorf("unexpected body %q", result.Body())
	}
	if len(sink.fetchEvents) != 1 || sink.fetchEvents[0].crawlDepth != 2 {
		t.Errorf("expected one recorded fetch at depth 2, got %+v", sink.fetchEvents)
	}
}

// A non-2xx status is still returned verbatim as long as the content
// type is HTML — an error page is not special-cased.
func TestFetch_HTML404StillReturnsStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html>not found</html>"))
	}))
	defer server.Close()

	f, _ := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	result := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl, "test-agent"))

	if result.Code() != http.StatusNotFound {
		t.Fatalf("Code() = %d, want 404", result.Code())
	}
	if string(result.Body()) != "<html>not found</html>" {
		t.Errorf("expected body to be preserved for HTML 404, got %q", result.Body())
	}
}

func TestFetch_NonHTMLContentYieldsStatus13(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f, sink := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	result := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl, "test-agent"))

	if result.Code() != 13 {
		t.Fatalf("Code() = %d, want 13", result.Code())
	}
	if len(result.Body()) != 0 {
		t.Errorf("expected discarded body, got %q", result.Body())
	}
	if len(sink.fetchEvents) != 1 {
		t.Fatalf("expected one recorded fetch")
	}
}

func TestFetch_NetworkFailureYieldsStatus0(t *testing.T) {
	f, sink := newTestFetcher()
	// Nothing listens on this port; the dial must fail.
	fetchUrl, _ := url.Parse("http://127.0.0.1:1")
	result := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl, "test-agent"))

	if result.Code() != 0 {
		t.Fatalf("Code() = %d, want 0", result.Code())
	}
	if len(result.Body()) != 0 {
		t.Errorf("expected empty body on network failure, got %q", result.Body())
	}
	if len(sink.errorEvents) != 1 || sink.errorEvents[0].cause != metadata.CauseNetworkFailure {
		t.Errorf("expected a CauseNetworkFailure error event, got %+v", sink.errorEvents)
	}
}

func TestFetch_ContextCancellationYieldsStatus0(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f, _ := newTestFetcher()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	fetchUrl, _ := url.Parse(server.URL)
	result := f.Fetch(ctx, 0, fetcher.NewFetchParam(*fetchUrl, "test-agent"))

	if result.Code() != 0 {
		t.Fatalf("Code() = %d, want 0 on context deadline", result.Code())
	}
}

func TestFetchResult_Accessors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Custom-Header", "v")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>x</html>"))
	}))
	defer server.Close()

	f, _ := newTestFetcher()
	fetchUrl, _ := url.Parse(server.URL)
	result := f.Fetch(context.Background(), 0, fetcher.NewFetchParam(*fetchUrl, "test-agent"))

	if result.URL().String() != fetchUrl.String() {
		t.Errorf("URL() = %s, want %s", result.URL().String(), fetchUrl.String())
	}
	if result.SizeByte() != uint64(len("<html>x</html>")) {
		t.Errorf("SizeByte() = %d", result.SizeByte())
	}
	if result.Headers()["X-Custom-Header"] != "v" {
		t.Errorf("missing custom header in Headers()")
	}
}
