package fetcher

import (
	"context"
	"net/http"
)

// Fetcher performs the single HTTP GET the worker pool needs: issue the
// request, gate on content type, and classify the outcome into a status
// code. It never retries — each URL is attempted exactly once per crawl —
// and it never returns a Go error: every outcome, including network
// failures and timeouts, is encoded in the returned FetchResult's status
// code.
type Fetcher interface {
	Init(httpClient *http.Client)
	Fetch(ctx context.Context, crawlDepth int, fetchParam FetchParam) FetchResult
}
