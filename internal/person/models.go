// Package person resolves subject identities with access-restriction
// awareness. Some subjects are limited-access (LAO); their case data must
// never reach a non-privileged response, so every consumer renders through
// the SummaryInfoResult variants rather than touching upstream data directly.
package person

import "casework/pkg/domain"

// Placeholder names rendered for redacted outcomes. Fixed strings: report
// and search consumers rely on them verbatim.
const (
	RestrictedDisplayName = "Limited Access Offender"
	UnknownDisplayName    = "Unknown"
)

// SummaryKind discriminates the resolution outcome for one CRN.
type SummaryKind int

const (
	// SummaryFull means the caller may see the subject's case summary.
	SummaryFull SummaryKind = iota
	// SummaryRestricted means the subject exists but the caller's access is
	// limited; only the CRN may be shown.
	SummaryRestricted
	// SummaryNotFound means the upstream service has no record for the CRN.
	SummaryNotFound
)

// CaseSummary is the subset of upstream case data the core needs.
type CaseSummary struct {
	CRN       domain.CRN
	FirstName string
	Surname   string
}

// SummaryInfoResult is the tagged access-control outcome for one subject.
type SummaryInfoResult struct {
	kind    SummaryKind
	crn     domain.CRN
	summary CaseSummary
}

func Full(summary CaseSummary) SummaryInfoResult {
	return SummaryInfoResult{kind: SummaryFull, crn: summary.CRN, summary: summary}
}

func Restricted(crn domain.CRN) SummaryInfoResult {
	return SummaryInfoResult{kind: SummaryRestricted, crn: crn}
}

func NotFound(crn domain.CRN) SummaryInfoResult {
	return SummaryInfoResult{kind: SummaryNotFound, crn: crn}
}

func (r SummaryInfoResult) Kind() SummaryKind { return r.kind }
func (r SummaryInfoResult) CRN() domain.CRN   { return r.crn }

// Summary returns the case data. Only meaningful for SummaryFull; the zero
// value otherwise.
func (r SummaryInfoResult) Summary() CaseSummary {
	if r.kind != SummaryFull {
		return CaseSummary{}
	}
	return r.summary
}

// DisplayName is the single rendering rule for subject names. Restricted
// and not-found subjects always render as their fixed placeholders.
func (r SummaryInfoResult) DisplayName() string {
	switch r.kind {
	case SummaryFull:
		return r.summary.FirstName + " " + r.summary.Surname
	case SummaryRestricted:
		return RestrictedDisplayName
	default:
		return UnknownDisplayName
	}
}
