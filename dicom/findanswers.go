package dicom

import "github.com/caretech-io/dicomgate/errors"

// FindAnswers is the ordered collection a C-FIND or worklist handler builds
// up one dataset at a time before the dispatcher emits each as a pending
// response. Every contained dataset shares the container's Specific
// Character Set encoding; worklist mode, once set, is frozen as soon as the
// first answer is added (mode and content can't drift mid-request).
type FindAnswers struct {
	worklist bool
	encoding string
	complete bool
	answers  []*Dataset
}

// NewFindAnswers creates an empty container. worklist selects the
// tag-stripping rule applied to every inserted answer.
func NewFindAnswers(worklist bool) *FindAnswers {
	return &FindAnswers{worklist: worklist}
}

// SetEncoding rewrites the Specific Character Set (0008,0005) of every
// contained answer to e, and becomes the encoding future insertions are
// stamped with.
func (f *FindAnswers) SetEncoding(e string) {
	f.encoding = e
	for _, answer := range f.answers {
		f.stampEncoding(answer)
	}
}

// SetWorklist changes the worklist mode. Permitted only while the container
// is empty; once an answer has been added, the mode is frozen.
func (f *FindAnswers) SetWorklist(b bool) error {
	if len(f.answers) > 0 && b != f.worklist {
		return errors.ErrBadSequenceOfCalls
	}
	f.worklist = b
	return nil
}

// IsWorklist reports the container's current worklist mode.
func (f *FindAnswers) IsWorklist() bool {
	return f.worklist
}

// AddFromMap builds a dataset from tag/value pairs, inferring each
// element's VR from the package's built-in tag table (determineVR; tags it
// does not list get VR UN), and adds it.
func (f *FindAnswers) AddFromMap(m map[Tag]interface{}) {
	dataset := NewDataset()
	for tag, value := range m {
		dataset.AddElement(tag, determineVR(tag), value)
	}
	f.add(dataset)
}

// AddFromParsed adds an already-built dataset, applying the container's
// worklist-stripping and encoding rules to a clone of it.
func (f *FindAnswers) AddFromParsed(p *Dataset) {
	f.add(p.Clone())
}

// AddFromBytes decodes an Implicit VR Little Endian dataset fragment and
// adds it.
func (f *FindAnswers) AddFromBytes(b []byte) error {
	dataset, err := ParseDatasetWithTransferSyntax(b, TransferSyntaxImplicitVRLittleEndian)
	if err != nil {
		return err
	}
	f.add(dataset)
	return nil
}

// add applies the worklist tag-stripping rule and current encoding to
// dataset, then appends it.
func (f *FindAnswers) add(dataset *Dataset) {
	if f.worklist {
		dataset.RemoveElement(TagSOPInstanceUID)
		dataset.RemoveElement(TagMediaStorageSOPInstanceUID)
	}
	f.stampEncoding(dataset)
	f.answers = append(f.answers, dataset)
}

func (f *FindAnswers) stampEncoding(dataset *Dataset) {
	if f.encoding == "" {
		return
	}
	dataset.AddElement(TagSpecificCharacterSet, VR_CS, f.encoding)
}

// Get returns answer i, or nil if out of range.
func (f *FindAnswers) Get(i int) *Dataset {
	if i < 0 || i >= len(f.answers) {
		return nil
	}
	return f.answers[i]
}

// Size returns the number of contained answers.
func (f *FindAnswers) Size() int {
	return len(f.answers)
}

// Clear empties the container, but leaves its worklist mode and encoding
// untouched so mode-freeze rules don't reset between uses of the same
// instance.
func (f *FindAnswers) Clear() {
	f.answers = nil
}

// SetComplete marks whether every answer this query will ever produce has
// been added.
func (f *FindAnswers) SetComplete(b bool) {
	f.complete = b
}

// IsComplete reports whether SetComplete(true) has been called.
func (f *FindAnswers) IsComplete() bool {
	return f.complete
}

// ExtractDatasetForEmission returns a copy of answer i stripped of every
// element in a group below 0x0008 and of group-length elements (element ==
// 0x0000) — the shape sent on the wire as a C-FIND/C-FIND-worklist
// response dataset.
func (f *FindAnswers) ExtractDatasetForEmission(i int) *Dataset {
	answer := f.Get(i)
	if answer == nil {
		return nil
	}
	emitted := answer.Clone()
	for tag := range answer.Elements {
		if tag.Group < 0x0008 || tag.Element == 0x0000 {
			emitted.RemoveElement(tag)
		}
	}
	return emitted
}
