package normalize

import (
	"fmt"

	"github.com/hlopes/crawld/internal/metadata"
	"github.com/hlopes/crawld/pkg/failure"
)

type NormalizationErrorCause string

const (
	ErrCauseEmptyContent          NormalizationErrorCause = "empty content"
	ErrCauseBrokenH1Invariant     NormalizationErrorCause = "broken H1 invariant"
	ErrCauseSkippedHeadingLevels  NormalizationErrorCause = "skipped heading levels"
	ErrCauseOrphanContent         NormalizationErrorCause = "orphan content before H1"
	ErrCauseBrokenAtomicBlock     NormalizationErrorCause = "heading inside code block"
	ErrCauseSectionDerivationFailed NormalizationErrorCause = "section derivation failed"
	ErrCauseTitleExtractionFailed   NormalizationErrorCause = "title extraction failed"
	ErrCauseHashComputationFailed   NormalizationErrorCause = "hash computation failed"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBrokenH1Invariant, ErrCauseSkippedHeadingLevels, ErrCauseOrphanContent, ErrCauseBrokenAtomicBlock:
		return metadata.CauseInvariantViolation
	case ErrCauseEmptyContent:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
