package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hlopes/crawld/internal/metadata"
)

/*
Responsibilities

- Perform one HTTP GET per URL, no retries
- Apply a stable set of browser-like headers
- Gate the response on Content-Type
- Classify every outcome into a status code; never throw

Fetch Semantics

  - If the response Content-Type contains "text/html" (case-insensitive),
    the actual HTTP status code and body are returned, whatever the status
    code is — a 404 page that happens to be HTML still comes back as
    (404, body).
  - If the Content-Type does not contain "text/html", the result is
    (13, "") — content discarded, regardless of status code.
  - If the request never completes — connection refused, DNS failure,
    TLS error, or the client's idle timeout firing — the result is
    (0, "").

The fetcher never parses content; it only returns bytes and a status.
*/

const statusNonHTML = 13

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

func NewHtmlFetcher(metadataSink metadata.MetadataSink) HtmlFetcher {
	return HtmlFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{},
	}
}

func (h *HtmlFetcher) Init(httpClient *http.Client) {
	h.httpClient = httpClient
}

func (h *HtmlFetcher) Fetch(ctx context.Context, crawlDepth int, fetchParam FetchParam) FetchResult {
	startTime := time.Now()

	result := h.performFetch(ctx, fetchParam.fetchUrl, fetchParam.userAgent)

	duration := time.Since(startTime)
	contentType := h.extractContentType(result.Headers())

	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		result.Code(),
		duration,
		contentType,
		0,
		crawlDepth,
	)

	if result.Code() == 0 {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			"HtmlFetcher.Fetch",
			metadata.CauseNetworkFailure,
			"request did not complete",
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl.String()),
			},
		)
	}

	return result
}

func (h *HtmlFetcher) extractContentType(headers map[string]string) string {
	if ct, ok := headers["Content-Type"]; ok {
		return ct
	}
	return ""
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return newNetworkFailureResult(fetchUrl)
	}

	for key, value := range requestHeaders(userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return newNetworkFailureResult(fetchUrl)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return FetchResult{
			url:       fetchUrl,
			fetchedAt: time.Now(),
			meta: ResponseMeta{
				statusCode:      statusNonHTML,
				responseHeaders: flattenHeaders(resp.Header),
			},
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newNetworkFailureResult(fetchUrl)
	}

	return FetchResult{
		url:       fetchUrl,
		body:      body,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: flattenHeaders(resp.Header),
		},
	}
}

func newNetworkFailureResult(fetchUrl url.URL) FetchResult {
	return FetchResult{
		url:       fetchUrl,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      0,
			responseHeaders: map[string]string{},
		},
	}
}

func flattenHeaders(header http.Header) map[string]string {
	flattened := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			flattened[key] = values[0]
		}
	}
	return flattened
}

func isHTMLContent(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
}
