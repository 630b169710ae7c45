package domain

import dErrors "surasmart/pkg/domain-errors"

// MatchSource tags which external database produced a match candidate.
type MatchSource string

const (
	SourceMorgue     MatchSource = "morgue"
	SourceJail       MatchSource = "jail"
	SourcePolice     MatchSource = "police"
	SourceUserUpload MatchSource = "user_upload"
)

var validMatchSources = map[MatchSource]bool{
	SourceMorgue:     true,
	SourceJail:       true,
	SourcePolice:     true,
	SourceUserUpload: true,
}

// ParseMatchSource constructs a MatchSource from external input.
func ParseMatchSource(s string) (MatchSource, error) {
	m := MatchSource(s)
	if !validMatchSources[m] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown match source %q", s)
	}
	return m, nil
}

// String returns the string representation of the source.
func (m MatchSource) String() string {
	return string(m)
}

// Jurisdiction tags the legal jurisdiction a case is filed under. It travels
// with every audit event so compliance tooling can partition trails.
type Jurisdiction string

const (
	JurisdictionKE Jurisdiction = "KE"
	JurisdictionEU Jurisdiction = "EU"
	JurisdictionUS Jurisdiction = "US"
)

var validJurisdictions = map[Jurisdiction]bool{
	JurisdictionKE: true,
	JurisdictionEU: true,
	JurisdictionUS: true,
}

// ParseJurisdiction constructs a Jurisdiction from external input.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	j := Jurisdiction(s)
	if !validJurisdictions[j] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown jurisdiction %q", s)
	}
	return j, nil
}

// String returns the string representation of the jurisdiction.
func (j Jurisdiction) String() string {
	return string(j)
}
