package dicom

// Common tags referenced by the service layer above the parser: query
// shaping, find-answer emission rules, and storage-commitment sequences.
// Grouped here rather than scattered as literals across services/ and
// client/ so the handful of well-known elements the core cares about have
// one name each.
var (
	TagSpecificCharacterSet       = Tag{Group: 0x0008, Element: 0x0005}
	TagSOPInstanceUID             = Tag{Group: 0x0008, Element: 0x0018}
	TagQueryRetrieveLevel         = Tag{Group: 0x0008, Element: 0x0052}
	TagMediaStorageSOPInstanceUID = Tag{Group: 0x0002, Element: 0x0003}

	TagTransactionUID          = Tag{Group: 0x0008, Element: 0x1195}
	TagReferencedSOPSequence   = Tag{Group: 0x0008, Element: 0x1199}
	TagFailedSOPSequence       = Tag{Group: 0x0008, Element: 0x1198}
	TagReferencedSOPClassUID   = Tag{Group: 0x0008, Element: 0x1150}
	TagReferencedSOPInstanceUID = Tag{Group: 0x0008, Element: 0x1155}
	TagFailureReason           = Tag{Group: 0x0008, Element: 0x1197}
)

// Clone returns a deep-enough copy of d: a new Dataset whose element map is
// independent of the original, so mutating the copy (e.g. stripping tags
// for emission) never affects the stored answer. Sequence values are
// copied by reference since ExtractDatasetForEmission only ever removes
// top-level elements, never rewrites sequence contents.
func (d *Dataset) Clone() *Dataset {
	clone := NewDataset()
	for tag, element := range d.Elements {
		clone.Elements[tag] = &Element{
			Tag:    element.Tag,
			VR:     element.VR,
			Length: element.Length,
			Value:  element.Value,
		}
	}
	return clone
}

// RemoveElement deletes tag from the dataset, if present. A no-op
// otherwise.
func (d *Dataset) RemoveElement(tag Tag) {
	delete(d.Elements, tag)
}

// HasElement reports whether tag is present in the dataset.
func (d *Dataset) HasElement(tag Tag) bool {
	_, ok := d.Elements[tag]
	return ok
}
