package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hlopes/crawld/internal/admission"
	"github.com/hlopes/crawld/pkg/hashutil"
)

// Config is the immutable, fully-validated configuration for one crawl
// session (a `start` or `resume` invocation).
type Config struct {
	//===============
	// Crawl scope
	//===============
	// Seed URL the session is started from. Required for `start`; ignored
	// for `resume`, which instead carries tokenID.
	seedURL url.URL
	// Scope discipline applied to discovered links.
	crawlingMode admission.CrawlingMode
	// Existing token to continue; zero means "start a new crawl".
	tokenID int64

	//===============
	// Limits
	//===============
	// Soft cap on total URLs admitted into the frontier; nil means
	// unlimited.
	urlsLimit *int
	// Regex patterns; any admitted link matching one of these hosts or
	// containing one of these keywords is rejected.
	forbiddenDomains  []string
	forbiddenKeywords []string

	//===============
	// Concurrency
	//===============
	// Number of worker goroutines draining the frontier concurrently.
	numberOfTasks int

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request.
	timeout time.Duration
	// User agent sent with every request.
	userAgent string

	//===============
	// Storage
	//===============
	// DSN passed to frontier.Open; a file path, or ":memory:" for tests.
	dbDSN string
	// Root directory the reference content hook writes Markdown into.
	outputDir string
	// Algorithm used for the reference hook's content/URL hashes.
	hashAlgo hashutil.HashAlgo

	//===============
	// Reference content hook
	//===============
	// Disables the reference Markdown hook entirely (link discovery
	// still runs; nothing is persisted to outputDir).
	hookDisabled bool
	// Path prefixes the hook strips before deriving a document's section.
	allowedPathPrefixes []string
	// Version string stamped into generated frontmatter.
	appVersion string

	//===============
	// Extraction
	//===============
	// BodySpecificityBias is the threshold for preferring a child container
	// over <body>. If a child node's score is >= BodySpecificityBias *
	// bodyScore and also above 90% of the best score, the child is
	// preferred. Default: 0.75 (75%).
	bodySpecificityBias float64
	// LinkDensityThreshold is the maximum ratio of link text to total text
	// before applying a penalty. Default: 0.80 (80%).
	linkDensityThreshold float64
}

type configDTO struct {
	SeedURL              string  `json:"seedUrl"`
	CrawlingMode         string  `json:"crawlingMode,omitempty"`
	TokenID              int64   `json:"tokenId,omitempty"`
	UrlsLimit            *int    `json:"urlsLimit,omitempty"`
	ForbiddenDomains     []string `json:"forbiddenDomains,omitempty"`
	ForbiddenKeywords    []string `json:"forbiddenKeywords,omitempty"`
	NumberOfTasks        int     `json:"numberOfTasks,omitempty"`
	Timeout              time.Duration `json:"timeout,omitempty"`
	UserAgent            string  `json:"userAgent,omitempty"`
	DBDsn                string  `json:"dbDsn,omitempty"`
	OutputDir            string  `json:"outputDir,omitempty"`
	HashAlgo             string  `json:"hashAlgo,omitempty"`
	HookDisabled         bool    `json:"hookDisabled,omitempty"`
	AllowedPathPrefixes  []string `json:"allowedPathPrefixes,omitempty"`
	AppVersion           string  `json:"appVersion,omitempty"`
	BodySpecificityBias  float64 `json:"bodySpecificityBias,omitempty"`
	LinkDensityThreshold float64 `json:"linkDensityThreshold,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	seed, err := url.Parse(dto.SeedURL)
	if err != nil {
		return Config{}, fmt.Errorf("%w: seedUrl: %s", ErrInvalidConfig, err)
	}

	cfg, err := WithDefault(*seed).WithTokenID(dto.TokenID).Build()
	if err != nil {
		return Config{}, err
	}

	if dto.CrawlingMode != "" {
		mode, ok := admission.ParseCrawlingMode(dto.CrawlingMode)
		if !ok {
			return Config{}, fmt.Errorf("%w: crawlingMode: %q", ErrInvalidConfig, dto.CrawlingMode)
		}
		cfg.crawlingMode = mode
	}
	if dto.TokenID != 0 {
		cfg.tokenID = dto.TokenID
	}
	if dto.UrlsLimit != nil {
		cfg.urlsLimit = dto.UrlsLimit
	}
	cfg.forbiddenDomains = dto.ForbiddenDomains
	cfg.forbiddenKeywords = dto.ForbiddenKeywords

	if dto.NumberOfTasks != 0 {
		cfg.numberOfTasks = dto.NumberOfTasks
	}
	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.DBDsn != "" {
		cfg.dbDSN = dto.DBDsn
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}
	if dto.HashAlgo != "" {
		cfg.hashAlgo = hashutil.HashAlgo(dto.HashAlgo)
	}
	cfg.hookDisabled = dto.HookDisabled
	if len(dto.AllowedPathPrefixes) > 0 {
		cfg.allowedPathPrefixes = dto.AllowedPathPrefixes
	}
	if dto.AppVersion != "" {
		cfg.appVersion = dto.AppVersion
	}
	if dto.BodySpecificityBias != 0 {
		cfg.bodySpecificityBias = dto.BodySpecificityBias
	}
	if dto.LinkDensityThreshold != 0 {
		cfg.linkDensityThreshold = dto.LinkDensityThreshold
	}

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	if err := json.Unmarshal(configContent, &cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config for seedURL with default values for
// every other field.
func WithDefault(seedURL url.URL) *Config {
	defaultConfig := Config{
		seedURL:              seedURL,
		crawlingMode:         admission.DomainOnly,
		numberOfTasks:        3,
		timeout:              time.Second * 10,
		userAgent:            "crawld/1.0",
		dbDSN:                "crawld.db",
		outputDir:            "output",
		hashAlgo:             hashutil.HashAlgoSHA256,
		allowedPathPrefixes:  []string{"/"},
		appVersion:           "dev",
		bodySpecificityBias:  0.75,
		linkDensityThreshold: 0.80,
	}
	return &defaultConfig
}

func (c *Config) WithCrawlingMode(mode admission.CrawlingMode) *Config {
	c.crawlingMode = mode
	return c
}

func (c *Config) WithTokenID(tokenID int64) *Config {
	c.tokenID = tokenID
	return c
}

func (c *Config) WithUrlsLimit(limit *int) *Config {
	c.urlsLimit = limit
	return c
}

func (c *Config) WithForbiddenDomains(patterns []string) *Config {
	c.forbiddenDomains = patterns
	return c
}

func (c *Config) WithForbiddenKeywords(patterns []string) *Config {
	c.forbiddenKeywords = patterns
	return c
}

func (c *Config) WithNumberOfTasks(n int) *Config {
	c.numberOfTasks = n
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithDBDsn(dsn string) *Config {
	c.dbDSN = dsn
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithHashAlgo(algo hashutil.HashAlgo) *Config {
	c.hashAlgo = algo
	return c
}

func (c *Config) WithHookDisabled(disabled bool) *Config {
	c.hookDisabled = disabled
	return c
}

func (c *Config) WithAllowedPathPrefixes(prefixes []string) *Config {
	c.allowedPathPrefixes = prefixes
	return c
}

func (c *Config) WithAppVersion(version string) *Config {
	c.appVersion = version
	return c
}

func (c *Config) WithBodySpecificityBias(bias float64) *Config {
	c.bodySpecificityBias = bias
	return c
}

func (c *Config) WithLinkDensityThreshold(threshold float64) *Config {
	c.linkDensityThreshold = threshold
	return c
}

// Build validates the accumulated configuration. A bad regex in
// forbiddenDomains/forbiddenKeywords is deliberately not validated here:
// admission.NewFilter is the single place patterns are compiled, so the
// same configuration error surfaces consistently whether Config was built
// from flags or from a file.
func (c *Config) Build() (Config, error) {
	if c.numberOfTasks <= 0 {
		return Config{}, fmt.Errorf("%w: numberOfTasks must be positive", ErrInvalidConfig)
	}
	if c.tokenID == 0 && c.seedURL.Host == "" {
		return Config{}, fmt.Errorf("%w: seedUrl is required when starting a new crawl", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) SeedURL() url.URL                  { return c.seedURL }
func (c Config) CrawlingMode() admission.CrawlingMode { return c.crawlingMode }
func (c Config) TokenID() int64                     { return c.tokenID }
func (c Config) UrlsLimit() *int                    { return c.urlsLimit }
func (c Config) ForbiddenDomains() []string {
	out := make([]string, len(c.forbiddenDomains))
	copy(out, c.forbiddenDomains)
	return out
}
func (c Config) ForbiddenKeywords() []string {
	out := make([]string, len(c.forbiddenKeywords))
	copy(out, c.forbiddenKeywords)
	return out
}
func (c Config) NumberOfTasks() int       { return c.numberOfTasks }
func (c Config) Timeout() time.Duration   { return c.timeout }
func (c Config) UserAgent() string        { return c.userAgent }
func (c Config) DBDsn() string            { return c.dbDSN }
func (c Config) OutputDir() string        { return c.outputDir }
func (c Config) HashAlgo() hashutil.HashAlgo { return c.hashAlgo }
func (c Config) HookDisabled() bool       { return c.hookDisabled }
func (c Config) AllowedPathPrefixes() []string {
	out := make([]string, len(c.allowedPathPrefixes))
	copy(out, c.allowedPathPrefixes)
	return out
}
func (c Config) AppVersion() string              { return c.appVersion }
func (c Config) BodySpecificityBias() float64    { return c.bodySpecificityBias }
func (c Config) LinkDensityThreshold() float64   { return c.linkDensityThreshold }
