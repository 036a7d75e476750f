package types

import "fmt"

// QueryLevel is the granularity of a C-FIND or C-MOVE, one of the four
// levels of the DICOM query/retrieve information model.
type QueryLevel string

const (
	QueryLevelPatient QueryLevel = "PATIENT"
	QueryLevelStudy   QueryLevel = "STUDY"
	QueryLevelSeries  QueryLevel = "SERIES"
	QueryLevelImage   QueryLevel = "IMAGE"
)

// ParseQueryLevel maps the QueryRetrieveLevel element's value onto a
// QueryLevel. Unknown values are an error: an SCP must not guess the
// granularity of a retrieve.
func ParseQueryLevel(s string) (QueryLevel, error) {
	switch QueryLevel(s) {
	case QueryLevelPatient, QueryLevelStudy, QueryLevelSeries, QueryLevelImage:
		return QueryLevel(s), nil
	default:
		return "", fmt.Errorf("unknown query retrieve level %q", s)
	}
}
