// Package urlcanon parses a raw discovered link against an optional parent
// URL, validates it, and produces both a normalised absolute URL (kept
// verbatim for storage) and a stable MD5 fingerprint used as the frontier's
// deduplication key.
//
// Nothing here touches the database or the network; it is a pure function
// over strings.
package urlcanon

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/hlopes/crawld/pkg/urlutil"
)

// absoluteURLPattern matches http(s) URLs whose host is a dotted domain,
// "localhost", or a dotted-quad IPv4 address, with an optional port and an
// optional path/query. Fragments are never part of this pattern; callers
// strip them before matching.
var absoluteURLPattern = regexp.MustCompile(
	`(?i)^(https?)://` +
		`(localhost|(?:\d{1,3}\.){3}\d{1,3}|[a-z0-9]([a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*)` +
		`(:\d+)?` +
		`(/[^?]*)?` +
		`(\?[^#]*)?$`,
)

// URL is the canonicalised form of a discovered link: a normalised absolute
// URL plus enough of its parsed structure to compute a fingerprint. A zero
// URL with Valid() == false is the "not valid" sentinel; callers must
// check Valid before using any other field.
type URL struct {
	raw    string
	scheme string
	host   string
	path   string
	query  string
	valid  bool
}

// Valid reports whether this value can be stored and fetched.
func (u URL) Valid() bool {
	return u.valid
}

// String returns the normalised absolute URL as it should be stored.
func (u URL) String() string {
	return u.raw
}

// Host returns the (un-lowercased) host component, for scope checks that
// compare against the seed's raw host.
func (u URL) Host() string {
	return u.host
}

// Path returns the URL path component (empty string means "/").
func (u URL) Path() string {
	return u.path
}

// invalid is the shared "not valid" sentinel.
var invalid = URL{}

// Canonicalize strips the fragment, accepts an already absolute URL as-is,
// or resolves relative to parent. parent may be the zero
// URL (Valid() == false) when there is no base to resolve against, in which
// case only already-absolute links are accepted. An empty or
// fragment-only link (e.g. "#top") is invalid.
func Canonicalize(raw string, parent URL) URL {
	raw = stripFragment(raw)
	if raw == "" {
		return invalid
	}

	if m := absoluteURLPattern.FindStringSubmatch(raw); m != nil {
		return fromMatch(m)
	}

	if hasScheme(raw) {
		// Has a scheme but didn't match the absolute pattern: e.g. mailto:,
		// javascript:, ftp://. Not admissible.
		return invalid
	}

	if !parent.valid {
		return invalid
	}

	resolved := resolveRelative(raw, parent)
	resolved = stripFragment(resolved)

	if m := absoluteURLPattern.FindStringSubmatch(resolved); m != nil {
		return fromMatch(m)
	}
	return invalid
}

func fromMatch(m []string) URL {
	scheme := strings.ToLower(m[1])
	host := m[2]
	// m[3] and m[4] are the host pattern's inner label groups.
	port := m[5]
	path := m[6]
	query := m[7]

	raw := scheme + "://" + host + port + path + query
	return URL{
		raw:    raw,
		scheme: scheme,
		host:   host,
		path:   path,
		query:  strings.TrimPrefix(query, "?"),
		valid:  true,
	}
}

func hasScheme(raw string) bool {
	i := strings.Index(raw, ":")
	if i <= 0 {
		return false
	}
	scheme := raw[:i]
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	// A bare "host:port" form (no "//") is not a scheme.
	return strings.HasPrefix(raw[i:], "://") || !strings.HasPrefix(raw[i+1:], "/")
}

func stripFragment(raw string) string {
	if i := strings.Index(raw, "#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// resolveRelative implements the four relative-resolution branches
// (protocol-relative, root-relative, dot-relative, sibling-relative). It
// does not itself validate the result; the caller re-validates against
// the absolute pattern.
func resolveRelative(link string, parent URL) string {
	switch {
	case strings.HasPrefix(link, "//"):
		return parent.scheme + ":" + link
	case strings.HasPrefix(link, "/"):
		return parent.scheme + "://" + parent.host + link
	case strings.HasPrefix(link, "?"):
		path := parent.path
		if path == "" {
			path = "/"
		}
		return parent.scheme + "://" + parent.host + path + link
	case strings.HasPrefix(link, "."):
		joined := parent.scheme + "://" + parent.host + replaceLastSegment(parent.path, link)
		u, err := url.Parse(joined)
		if err != nil {
			return joined
		}
		// Resolving a URL against itself removes its "." and ".." segments.
		return u.ResolveReference(&url.URL{}).String()
	default:
		return parent.scheme + "://" + parent.host + replaceLastSegment(parent.path, link)
	}
}

// replaceLastSegment swaps the final path segment of base for replacement,
// the way a browser resolves "y.html" against ".../x/index.html".
func replaceLastSegment(base, replacement string) string {
	if base == "" {
		return "/" + replacement
	}
	idx := strings.LastIndex(base, "/")
	if idx < 0 {
		return "/" + replacement
	}
	return base[:idx+1] + replacement
}

// Fingerprint computes a 32-hex MD5 fingerprint of the canonical URL. It is
// only meaningful for http(s) URLs, which Canonicalize guarantees. A
// trailing slash on a non-root path does not change the fingerprint.
func (u URL) Fingerprint() string {
	host := urlutil.StripWWW(urlutil.LowerASCII(u.host))

	path := urlutil.CollapseSlashes(urlutil.LowerASCII(u.path))
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}

	query := canonicalQuery(u.query)

	canonical := u.scheme + ">" + host + ">" + path + ">" + query
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalQuery parses a raw query string into key->multi-value pairs,
// lowercases keys and values, sorts each key's values and joins them with
// "#", then sorts the pairs by key and joins them with "&" as "key=v1#v2".
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}

	keys := make([]string, 0, len(values))
	lowered := make(map[string][]string, len(values))
	for k, vs := range values {
		lk := urlutil.LowerASCII(k)
		lvs := make([]string, len(vs))
		for i, v := range vs {
			lvs[i] = urlutil.LowerASCII(v)
		}
		sort.Strings(lvs)
		if existing, ok := lowered[lk]; ok {
			lowered[lk] = append(existing, lvs...)
			sort.Strings(lowered[lk])
		} else {
			lowered[lk] = lvs
			keys = append(keys, lk)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(lowered[k], "#"))
	}
	return strings.Join(pairs, "&")
}
