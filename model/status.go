package model

// CoverageStatus classifies how much of a site is covered by overlay imagery.
type CoverageStatus string

const (
	CoverageFull    CoverageStatus = "Full"
	CoveragePartial CoverageStatus = "Partial"
	CoverageNo      CoverageStatus = "No"
)

// Valid reports whether s is one of the known coverage states.
func (s CoverageStatus) Valid() bool {
	switch s {
	case CoverageFull, CoveragePartial, CoverageNo:
		return true
	}
	return false
}

// VisitStatus is the human-tracked field visit state of a site.
type VisitStatus string

const (
	VisitSeen    VisitStatus = "Seen"
	VisitNotSeen VisitStatus = "Not Seen"
	VisitPartial VisitStatus = "Partial"
)

// Valid reports whether s is one of the known visit states.
func (s VisitStatus) Valid() bool {
	switch s {
	case VisitSeen, VisitNotSeen, VisitPartial:
		return true
	}
	return false
}

// MergedStatus combines coverage with the visit state.
type MergedStatus string

const (
	MergedSeen         MergedStatus = "Seen"
	MergedPartialCover MergedStatus = "Partial Cover"
	MergedPartialSeen  MergedStatus = "Partial Seen"
	MergedNotSeen      MergedStatus = "Not Seen"
	MergedNotCover     MergedStatus = "Not Cover"
)

// MergeStatus folds a coverage status and a visit status into the status
// shown to field teams.
func MergeStatus(cover CoverageStatus, visit VisitStatus) MergedStatus {
	switch cover {
	case CoverageFull:
		if visit == VisitSeen {
			return MergedSeen
		}
		return MergedNotSeen
	case CoveragePartial:
		switch visit {
		case VisitPartial:
			return MergedPartialSeen
		case VisitNotSeen:
			return MergedPartialCover
		}
		return MergedNotSeen
	}
	return MergedNotCover
}
