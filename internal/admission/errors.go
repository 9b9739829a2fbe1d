package admission

import "errors"

// Configuration errors: these are the only admission-filter failures a
// caller ever sees, and they are raised before any worker starts.
var (
	ErrInvalidForbiddenDomainPattern  = errors.New("invalid forbidden domain pattern")
	ErrInvalidForbiddenKeywordPattern = errors.New("invalid forbidden keyword pattern")
	ErrInvalidCrawlingMode            = errors.New("invalid crawling mode")
)
