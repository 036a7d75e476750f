package client

import (
	"fmt"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/types"
)

// Query tag groups, per Q/R level. A query at level L may carry the tags of
// L and of every enclosing level, a small per-level counter/status set, and
// SpecificCharacterSet; everything else is stripped by NormalizeQuery before
// the identifier goes on the wire (some SCPs abort the whole query over a
// single unexpected tag).
var (
	patientQueryTags = []dicom.Tag{
		{Group: 0x0010, Element: 0x0010}, // PatientName
		{Group: 0x0010, Element: 0x0020}, // PatientID
		{Group: 0x0010, Element: 0x0030}, // PatientBirthDate
		{Group: 0x0010, Element: 0x0040}, // PatientSex
		{Group: 0x0010, Element: 0x1000}, // OtherPatientIDs
	}

	patientCounterTags = []dicom.Tag{
		{Group: 0x0020, Element: 0x1200}, // NumberOfPatientRelatedStudies
		{Group: 0x0020, Element: 0x1202}, // NumberOfPatientRelatedSeries
		{Group: 0x0020, Element: 0x1204}, // NumberOfPatientRelatedInstances
	}

	studyQueryTags = []dicom.Tag{
		{Group: 0x0008, Element: 0x0020}, // StudyDate
		{Group: 0x0008, Element: 0x0030}, // StudyTime
		{Group: 0x0008, Element: 0x0050}, // AccessionNumber
		{Group: 0x0008, Element: 0x0061}, // ModalitiesInStudy
		{Group: 0x0008, Element: 0x0090}, // ReferringPhysicianName
		{Group: 0x0008, Element: 0x1030}, // StudyDescription
		{Group: 0x0020, Element: 0x000D}, // StudyInstanceUID
		{Group: 0x0020, Element: 0x0010}, // StudyID
	}

	studyCounterTags = []dicom.Tag{
		{Group: 0x0020, Element: 0x1206}, // NumberOfStudyRelatedSeries
		{Group: 0x0020, Element: 0x1208}, // NumberOfStudyRelatedInstances
	}

	seriesQueryTags = []dicom.Tag{
		{Group: 0x0008, Element: 0x0021}, // SeriesDate
		{Group: 0x0008, Element: 0x0031}, // SeriesTime
		{Group: 0x0008, Element: 0x0060}, // Modality
		{Group: 0x0008, Element: 0x103E}, // SeriesDescription
		{Group: 0x0018, Element: 0x0015}, // BodyPartExamined
		{Group: 0x0020, Element: 0x000E}, // SeriesInstanceUID
		{Group: 0x0020, Element: 0x0011}, // SeriesNumber
	}

	seriesCounterTags = []dicom.Tag{
		{Group: 0x0020, Element: 0x1209}, // NumberOfSeriesRelatedInstances
	}

	instanceQueryTags = []dicom.Tag{
		{Group: 0x0008, Element: 0x0016}, // SOPClassUID
		{Group: 0x0008, Element: 0x0018}, // SOPInstanceUID
		{Group: 0x0020, Element: 0x0013}, // InstanceNumber
	}
)

// mainIdentifierTags lists the tags an SCP expects present (possibly empty)
// at each level: the level's own unique key plus the keys of every
// enclosing level.
func mainIdentifierTags(level types.QueryLevel) []dicom.Tag {
	patient := dicom.Tag{Group: 0x0010, Element: 0x0020} // PatientID
	study := dicom.Tag{Group: 0x0020, Element: 0x000D}   // StudyInstanceUID
	series := dicom.Tag{Group: 0x0020, Element: 0x000E}  // SeriesInstanceUID
	instance := dicom.Tag{Group: 0x0008, Element: 0x0018} // SOPInstanceUID

	switch level {
	case types.QueryLevelPatient:
		return []dicom.Tag{patient}
	case types.QueryLevelStudy:
		return []dicom.Tag{patient, study}
	case types.QueryLevelSeries:
		return []dicom.Tag{patient, study, series}
	case types.QueryLevelImage:
		return []dicom.Tag{patient, study, series, instance}
	default:
		return nil
	}
}

// allowedQueryTags builds the full allowed-tag set for a level: the level's
// tags, every enclosing level's tags, the level's counter tags, and
// SpecificCharacterSet.
func allowedQueryTags(level types.QueryLevel) map[dicom.Tag]bool {
	allowed := map[dicom.Tag]bool{
		dicom.TagSpecificCharacterSet: true,
		dicom.TagQueryRetrieveLevel:   true,
	}
	include := func(tags []dicom.Tag) {
		for _, t := range tags {
			allowed[t] = true
		}
	}

	include(patientQueryTags)
	switch level {
	case types.QueryLevelPatient:
		include(patientCounterTags)
	case types.QueryLevelStudy:
		include(studyQueryTags)
		include(studyCounterTags)
	case types.QueryLevelSeries:
		include(studyQueryTags)
		include(seriesQueryTags)
		include(seriesCounterTags)
	case types.QueryLevelImage:
		include(studyQueryTags)
		include(seriesQueryTags)
		include(instanceQueryTags)
	}
	return allowed
}

// NormalizeQuery shapes a caller-supplied C-FIND identifier for level:
// strips tags outside the level's allowed set, stamps QueryRetrieveLevel,
// applies the manufacturer's wildcard rewrites, and injects the expected
// (empty or "*", per manufacturer) identifier tags when absent. The result
// is a new dataset; normalizing an already-normalized query is a no-op.
func NormalizeQuery(query *dicom.Dataset, level types.QueryLevel, manufacturer types.Manufacturer) *dicom.Dataset {
	normalized := dicom.NewDataset()
	if query != nil {
		allowed := allowedQueryTags(level)
		for tag, element := range query.Elements {
			if allowed[tag] {
				normalized.AddElement(tag, element.VR, element.Value)
			}
		}
	}

	normalized.AddElement(dicom.TagQueryRetrieveLevel, dicom.VR_CS, string(level))
	applyManufacturerQuirks(normalized, manufacturer)

	missingValue := ""
	if manufacturer == types.ManufacturerGE {
		missingValue = "*"
	}
	for _, tag := range mainIdentifierTags(level) {
		if !normalized.HasElement(tag) {
			normalized.AddElement(tag, queryVR(tag), missingValue)
		}
	}

	return normalized
}

// applyManufacturerQuirks rewrites universal-wildcard values in place
// according to the manufacturer's tolerance for them.
func applyManufacturerQuirks(query *dicom.Dataset, manufacturer types.Manufacturer) {
	switch manufacturer {
	case types.ManufacturerGenericNoUniversalWildcard:
		for _, element := range query.Elements {
			if s, ok := element.Value.(string); ok && s == "*" {
				element.Value = ""
			}
		}
	case types.ManufacturerGenericNoWildcardInDates:
		for _, element := range query.Elements {
			if s, ok := element.Value.(string); ok && s == "*" && element.VR == dicom.VR_DA {
				element.Value = ""
			}
		}
	}
}

// queryVR returns the VR used when injecting a missing identifier tag.
func queryVR(tag dicom.Tag) string {
	switch tag {
	case dicom.Tag{Group: 0x0010, Element: 0x0020}:
		return dicom.VR_LO
	default:
		return dicom.VR_UI
	}
}

// findSOPClassForLevel maps a Q/R level onto the study-root (default) or
// patient-root FIND information model.
func findSOPClassForLevel(level types.QueryLevel) (string, error) {
	switch level {
	case types.QueryLevelPatient:
		return types.PatientRootQueryRetrieveInformationModelFind, nil
	case types.QueryLevelStudy, types.QueryLevelSeries, types.QueryLevelImage:
		return types.StudyRootQueryRetrieveInformationModelFind, nil
	default:
		return "", fmt.Errorf("unknown query level %q", level)
	}
}

// moveSOPClassForLevel maps a Q/R level onto the matching MOVE information
// model the same way findSOPClassForLevel does for FIND.
func moveSOPClassForLevel(level types.QueryLevel) (string, error) {
	switch level {
	case types.QueryLevelPatient:
		return types.PatientRootQueryRetrieveInformationModelMove, nil
	case types.QueryLevelStudy, types.QueryLevelSeries, types.QueryLevelImage:
		return types.StudyRootQueryRetrieveInformationModelMove, nil
	default:
		return "", fmt.Errorf("unknown query level %q", level)
	}
}
