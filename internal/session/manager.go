// Package session implements the Session Manager (C7): the single entry
// point that turns a seed URL or an existing token into a running worker
// pool, enforcing that at most one crawl runs at a time in this process.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hlopes/crawld/internal/admission"
	"github.com/hlopes/crawld/internal/config"
	"github.com/hlopes/crawld/internal/extractor"
	"github.com/hlopes/crawld/internal/fetcher"
	"github.com/hlopes/crawld/internal/frontier"
	"github.com/hlopes/crawld/internal/hook/markdown"
	"github.com/hlopes/crawld/internal/linkextract"
	"github.com/hlopes/crawld/internal/metadata"
	"github.com/hlopes/crawld/internal/scheduler"
	"github.com/hlopes/crawld/internal/urlcanon"
	"github.com/hlopes/crawld/pkg/timeutil"
	"go.uber.org/zap"
)

// Store is the subset of frontier.Store the manager uses: the session
// calls it drives directly, plus the methods it hands on as
// linkextract.Store, scheduler.Frontier and the markdown hook's artifact
// recorder.
type Store interface {
	CreateSession(ctx context.Context, seedURL string, mode string, seedHashID string) (int64, error)
	GetToken(ctx context.Context, tokenID int64) (frontier.Token, error)
	ResetInflight(ctx context.Context, tokenID int64) error
	UnprocessedCount(ctx context.Context, tokenID int64) (int, error)
	Count(ctx context.Context, tokenID int64) (int, error)
	NextURL(ctx context.Context, tokenID int64) (frontier.URLRecord, bool, error)
	MarkProcessed(ctx context.Context, id int64, status int) error
	HasHash(ctx context.Context, tokenID int64, hashID string) (bool, error)
	AddURL(ctx context.Context, tokenID int64, url string, hashID string) error
	RecordArtifact(ctx context.Context, tokenID int64, url string, path string, contentHash string) error
}

// Manager is the busy guard: only one of Start/Resume may be in flight at
// a time, process-wide.
type Manager struct {
	mu     sync.Mutex
	busy   bool
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Start canonicalises seedURL, opens a new token plus its seed row in one
// transaction, then delegates to Resume. Returns (false, nil) if a crawl is
// already running.
func (m *Manager) Start(ctx context.Context, seedURL string, mode admission.CrawlingMode, cfg config.Config) (bool, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		m.logger.Info("crawl already in progress, ignoring start")
		return false, nil
	}
	m.mu.Unlock()

	canonical := urlcanon.Canonicalize(seedURL, urlcanon.URL{})
	if !canonical.Valid() {
		return false, newSessionError(ErrCauseInvalidSeed, fmt.Sprintf("seed url %q is not a valid absolute http(s) url", seedURL), nil)
	}

	tokenID, err := m.store.CreateSession(ctx, canonical.String(), string(mode), canonical.Fingerprint())
	if err != nil {
		return false, newSessionError(ErrCauseStoreFailure, "create session", err)
	}

	return m.Resume(ctx, tokenID, cfg)
}

// Resume continues an existing token: resets inflight claims, reports
// early if the token is already fully processed, otherwise runs the
// worker pool to quiescence. Returns (false, nil) if a crawl is already
// running.
func (m *Manager) Resume(ctx context.Context, tokenID int64, cfg config.Config) (bool, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		m.logger.Info("crawl already in progress, ignoring resume")
		return false, nil
	}
	m.busy = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	token, err := m.store.GetToken(ctx, tokenID)
	if err != nil {
		return false, newSessionError(ErrCauseUnknownToken, fmt.Sprintf("token %d", tokenID), err)
	}

	filter, err := admission.NewFilter(
		hostOf(token.URL), admission.CrawlingMode(token.Mode),
		cfg.ForbiddenDomains(), cfg.ForbiddenKeywords(), cfg.UrlsLimit(),
	)
	if err != nil {
		return false, newSessionError(ErrCauseBadFilterConfig, "admission filter", err)
	}

	if err := m.store.ResetInflight(ctx, tokenID); err != nil {
		return false, newSessionError(ErrCauseStoreFailure, "reset inflight", err)
	}

	remaining, err := m.store.UnprocessedCount(ctx, tokenID)
	if err != nil {
		return false, newSessionError(ErrCauseStoreFailure, "unprocessed count", err)
	}
	if remaining == 0 {
		m.logger.Info("Crawling finished", zap.Int64("tokenId", tokenID))
		return true, nil
	}

	recorder := metadata.NewRecorder(m.logger, int(tokenID))

	htmlFetcher := fetcher.NewHtmlFetcher(&recorder)
	htmlFetcher.Init(&http.Client{Timeout: cfg.Timeout()})

	var hook linkextract.ContentHandler
	if !cfg.HookDisabled() {
		hook = markdown.New(
			&recorder,
			extractParamFromConfig(cfg),
			cfg.OutputDir(), cfg.HashAlgo(), cfg.AppVersion(), cfg.AllowedPathPrefixes(),
			m.store, tokenID,
		)
	}
	extractor := linkextract.New(m.store, filter, tokenID, hook)

	pool := scheduler.New(m.store, &htmlFetcher, extractor, &recorder, timeutil.RealSleeper{}, cfg.UserAgent())

	start := time.Now()
	runErr := pool.Run(ctx, tokenID, cfg.NumberOfTasks())
	duration := time.Since(start)

	total, _ := m.store.Count(ctx, tokenID)
	recorder.RecordFinalCrawlStats(total, 0, 0, duration)

	if runErr != nil {
		return false, runErr
	}
	return true, nil
}

func extractParamFromConfig(cfg config.Config) extractor.ExtractParam {
	return extractor.NewExtractParam(cfg.BodySpecificityBias(), cfg.LinkDensityThreshold())
}

func hostOf(rawURL string) string {
	canonical := urlcanon.Canonicalize(rawURL, urlcanon.URL{})
	if !canonical.Valid() {
		return ""
	}
	return canonical.Host()
}
