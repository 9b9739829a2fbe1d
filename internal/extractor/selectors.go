package extractor

// KnownDocSelectors contains framework-specific documentation container selectors.
// These are used as Layer 2 heuristic when semantic containers (Layer 1) fail.
//
// Each slice contains selectors for a specific documentation framework or platform,
// ordered by specificity and reliability based on trained data.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var KnownDocSelectors = map[string][]string{
	"generic": {
		// Core documentation selectors (framework-agnostic)
		".content",
		".doc-content",
		".markdown-body",
		"#docs-content",
		".rst-content",
		".theme-doc-markdown",
		".md-content",
	},
	"docusaurus": {
		// Docusaurus (Meta/Facebook documentation framework)
		".theme-doc-markdown",
		".docMainContainer",
	},
	"gitbook": {
		// GitBook platform
		".book-body",
		".markdown-section",
	},
	"mkdocs": {
		// MkDocs (Python-based)
		".md-content",
		".md-main__inner",
	},
	"sphinx": {
		// Sphinx/ReadTheDocs (Python documentation)
		".rst-content",
		".document",
	},
	"vuepress": {
		// VuePress (Vue.js documentation)
		".theme-default-content",
		".content__default",
	},
	"docsify": {
		// Docsify (client-side rendering)
		"#main",
		".content",
	},
	"hexo": {
		// Hexo blog framework (often used for docs)
		".post-content",
		".article-content",
	},
	"jekyll": {
		// Jekyll (GitHub Pages)
		".post-content",
		".entry-content",
	},
}

// frameworkPriority orders the KnownDocSelectors categories: generic
// selectors are checked first, then framework-specific ones, most common
// static-site generators before niche blog platforms.
var frameworkPriority = []string{
	"generic",
	"docusaurus",
	"sphinx",
	"mkdocs",
	"gitbook",
	"vuepress",
	"docsify",
	"hexo",
	"jekyll",
}

// dedupeAppend appends each of vals to into, skipping any already recorded
// in seen; into itself is not searched.
func dedupeAppend(into []string, seen map[string]bool, vals ...string) []string {
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			into = append(into, v)
		}
	}
	return into
}

// getAllSelectors returns a flattened, prioritized list of all known documentation selectors.
func getAllSelectors() []string {
	var allSelectors []string
	seen := make(map[string]bool)
	for _, framework := range frameworkPriority {
		allSelectors = dedupeAppend(allSelectors, seen, KnownDocSelectors[framework]...)
	}
	return allSelectors
}

// mergeSelectors combines default selectors with user-provided custom selectors,
// deduplicating to ensure each selector appears only once.
func mergeSelectors(defaultSelectors, customSelectors []string) []string {
	seen := make(map[string]bool)
	merged := dedupeAppend(nil, seen, defaultSelectors...)
	return dedupeAppend(merged, seen, customSelectors...)
}
