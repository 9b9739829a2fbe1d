// Package scheduler implements the Worker Pool (C6): N cooperating workers
// draining a shared frontier until every worker has, in the same round,
// found nothing left to claim.
package scheduler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/hlopes/crawld/internal/fetcher"
	"github.com/hlopes/crawld/internal/frontier"
)

const idleWait = time.Second

// Frontier is the subset of the frontier Store the pool needs. NextURL is
// expected to atomically claim the row it returns (set fetched=true as
// part of the same transaction that selects it) — this pool does not
// issue a separate mark_fetched call, since frontier.Store's NextURL
// already folds that claim into its own transaction under sqlite's
// single-writer guarantee.
type Frontier interface {
	NextURL(ctx context.Context, tokenID int64) (frontier.URLRecord, bool, error)
	MarkProcessed(ctx context.Context, id int64, status int) error
}

// Fetcher is the subset of fetcher.Fetcher the pool drives.
type Fetcher interface {
	Fetch(ctx context.Context, crawlDepth int, fetchParam fetcher.FetchParam) fetcher.FetchResult
}

// Extractor is the subset of linkextract.Extractor the pool drives.
type Extractor interface {
	Run(ctx context.Context, parentURL string, body string) error
}

// ProgressRecorder emits the per-URL observability line after each fetch.
type ProgressRecorder interface {
	ProcessedLine(url string, status int)
}

// Sleeper abstracts the idle wait so tests never take a real second.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Pool is a fixed-size worker pool draining a single crawl token.
type Pool struct {
	frontier  Frontier
	fetcher   Fetcher
	extractor Extractor
	recorder  ProgressRecorder
	sleeper   Sleeper
	userAgent string
}

func New(fr Frontier, ft Fetcher, ex Extractor, rec ProgressRecorder, sleeper Sleeper, userAgent string) *Pool {
	return &Pool{
		frontier:  fr,
		fetcher:   ft,
		extractor: ex,
		recorder:  rec,
		sleeper:   sleeper,
		userAgent: userAgent,
	}
}

// Run spawns n workers against tokenID and blocks until the pool reaches
// quiescence (every worker idle in the same round) or a worker reports an
// unrecoverable store failure.
func (p *Pool) Run(ctx context.Context, tokenID int64, n int) error {
	state := NewTasksState(n)

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := p.runWorker(ctx, tokenID, i, state); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// runWorker drains the frontier until every worker in the pool has, in the
// same round, observed it empty.
func (p *Pool) runWorker(ctx context.Context, tokenID int64, i int, state *TasksState) error {
	for {
		if state.AllIdle() {
			return nil
		}

		rec, ok, err := p.frontier.NextURL(ctx, tokenID)
		if err != nil {
			return err
		}
		if !ok {
			state.SetIdle(i)
			p.sleeper.Sleep(idleWait)
			continue
		}
		state.ClearAll()

		status, body := p.fetchOne(ctx, rec.URL)

		if len(body) > 0 && status >= 200 && status <= 299 {
			if err := p.extractor.Run(ctx, rec.URL, body); err != nil {
				return err
			}
		}

		if err := p.frontier.MarkProcessed(ctx, rec.ID, status); err != nil {
			return err
		}
		p.recorder.ProcessedLine(rec.URL, status)
	}
}

// fetchOne issues the fetch for a single claimed record. A URL that fails
// to parse cannot have reached the frontier through canonicalisation, so
// this is treated the same as a network failure: status 0, empty body.
func (p *Pool) fetchOne(ctx context.Context, rawURL string) (int, string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, ""
	}
	result := p.fetcher.Fetch(ctx, 0, fetcher.NewFetchParam(*parsed, p.userAgent))
	return result.Code(), string(result.Body())
}
