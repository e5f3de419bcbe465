package model

import "testing"

func TestMergeStatus(t *testing.T) {
	tests := []struct {
		cover CoverageStatus
		visit VisitStatus
		want  MergedStatus
	}{
		{CoverageFull, VisitSeen, MergedSeen},
		{CoverageFull, VisitNotSeen, MergedNotSeen},
		{CoverageFull, VisitPartial, MergedNotSeen},
		{CoveragePartial, VisitPartial, MergedPartialSeen},
		{CoveragePartial, VisitNotSeen, MergedPartialCover},
		{CoveragePartial, VisitSeen, MergedNotSeen},
		{CoverageNo, VisitSeen, MergedNotCover},
		{CoverageNo, VisitNotSeen, MergedNotCover},
		{CoverageNo, VisitPartial, MergedNotCover},
		{CoverageStatus(""), VisitSeen, MergedNotCover},
	}
	for _, tt := range tests {
		if got := MergeStatus(tt.cover, tt.visit); got != tt.want {
			t.Errorf("MergeStatus(%q, %q) = %q, want %q", tt.cover, tt.visit, got, tt.want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []CoverageStatus{CoverageFull, CoveragePartial, CoverageNo} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if CoverageStatus("Most").Valid() {
		t.Error("unknown coverage status reported valid")
	}
	for _, s := range []VisitStatus{VisitSeen, VisitNotSeen, VisitPartial} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if VisitStatus("seen").Valid() {
		t.Error("visit status must be case sensitive")
	}
}
