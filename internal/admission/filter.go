// Package admission implements the scope/forbidden-domain/forbidden-keyword/
// extension/cap checks that decide whether a canonicalised link may be
// inserted into the frontier. It holds only per-session configuration state;
// nothing here is process-global, so multiple crawler instances in the same
// process never share forbidden patterns.
package admission

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hlopes/crawld/internal/urlcanon"
	"github.com/hlopes/crawld/pkg/urlutil"
)

// allowedExtensions is the fixed extension allowlist. The empty string
// stands for "no extension".
var allowedExtensions = map[string]struct{}{
	"htm": {}, "html": {}, "shtml": {}, "asp": {}, "aspx": {},
	"jsp": {}, "jspx": {}, "php": {}, "php5": {}, "php4": {},
	"txt": {}, "": {},
}

const maxExtensionLength = 5

// Filter is the admission choke point: every link must pass Admit before a
// worker may insert it into the frontier.
type Filter struct {
	seedHost           string
	mode               CrawlingMode
	forbiddenDomains   []*regexp.Regexp
	forbiddenKeywords  []*regexp.Regexp
	urlsLimit          *int
}

// NewFilter compiles the configured patterns once at session start. A bad
// pattern is a configuration error; it must never reach a running worker.
func NewFilter(
	seedHost string,
	mode CrawlingMode,
	forbiddenDomainPatterns []string,
	forbiddenKeywordPatterns []string,
	urlsLimit *int,
) (Filter, error) {
	domains := make([]*regexp.Regexp, 0, len(forbiddenDomainPatterns))
	for _, p := range forbiddenDomainPatterns {
		re, err := regexp.Compile(`(?i)^([a-z0-9-]+\.)*(` + p + `)$`)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %q: %s", ErrInvalidForbiddenDomainPattern, p, err)
		}
		domains = append(domains, re)
	}

	keywords := make([]*regexp.Regexp, 0, len(forbiddenKeywordPatterns))
	for _, p := range forbiddenKeywordPatterns {
		re, err := regexp.Compile(`(?i).*(` + p + `).*`)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %q: %s", ErrInvalidForbiddenKeywordPattern, p, err)
		}
		keywords = append(keywords, re)
	}

	return Filter{
		seedHost:          urlutil.LowerASCII(seedHost),
		mode:              mode,
		forbiddenDomains:  domains,
		forbiddenKeywords: keywords,
		urlsLimit:         urlsLimit,
	}, nil
}

// Admit applies the scope, forbidden-domain, forbidden-keyword, extension,
// and cap checks in order, short-circuiting on the first rejection.
// alreadyPresent is the result of the frontier's has_hash probe;
// runningCount is the caller-maintained, once-per-pass sample used for the
// soft cap.
func (f Filter) Admit(candidate urlcanon.URL, alreadyPresent bool, runningCount int) bool {
	if alreadyPresent {
		return false
	}
	if !f.inScope(candidate.Host()) {
		return false
	}
	if f.matchesForbiddenDomain(candidate.Host()) {
		return false
	}
	if f.matchesForbiddenKeyword(candidate.String()) {
		return false
	}
	if !f.extensionAllowed(candidate.Path()) {
		return false
	}
	if f.urlsLimit != nil && runningCount >= *f.urlsLimit {
		return false
	}
	return true
}

func (f Filter) inScope(host string) bool {
	host = urlutil.LowerASCII(host)
	switch f.mode {
	case DomainOnly:
		return host == f.seedHost
	case DomainAndSubdomains:
		return urlutil.HasHostSuffix(host, f.seedHost)
	case All:
		return true
	default:
		return false
	}
}

func (f Filter) matchesForbiddenDomain(host string) bool {
	for _, re := range f.forbiddenDomains {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

func (f Filter) matchesForbiddenKeyword(fullURL string) bool {
	for _, re := range f.forbiddenKeywords {
		if re.MatchString(fullURL) {
			return true
		}
	}
	return false
}

func (f Filter) extensionAllowed(path string) bool {
	ext := extensionOf(path)
	_, ok := allowedExtensions[ext]
	return ok
}

// extensionOf returns the lowercased substring after the last "." in path;
// if it is longer than maxExtensionLength it is treated as empty, which
// also covers paths with no "." at all.
func extensionOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	ext := strings.ToLower(path[idx+1:])
	if len(ext) > maxExtensionLength {
		return ""
	}
	return ext
}
