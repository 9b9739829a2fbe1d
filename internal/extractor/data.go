package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam carries the tunable heuristic thresholds used by the
// content-scoring fallback when no semantic container or custom selector
// matches.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
}

func NewExtractParam(bodySpecificityBias float64, linkDensityThreshold float64) ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  bodySpecificityBias,
		LinkDensityThreshold: linkDensityThreshold,
	}
}
