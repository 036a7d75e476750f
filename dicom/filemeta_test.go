package dicom

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/caretech-io/dicomgate/types"
)

// buildPart10 assembles a minimal Part 10 file: preamble, DICM prefix, an
// Explicit VR Little Endian meta group, then the given dataset bytes.
func buildPart10(t *testing.T, sopClassUID, sopInstanceUID, transferSyntaxUID string, dataset []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")

	writeMetaElement := func(element uint16, value string) {
		padded := value
		if len(padded)%2 == 1 {
			padded += "\x00"
		}
		binary.Write(&buf, binary.LittleEndian, uint16(0x0002))
		binary.Write(&buf, binary.LittleEndian, element)
		buf.WriteString("UI")
		binary.Write(&buf, binary.LittleEndian, uint16(len(padded)))
		buf.WriteString(padded)
	}

	writeMetaElement(0x0002, sopClassUID)
	writeMetaElement(0x0003, sopInstanceUID)
	writeMetaElement(0x0010, transferSyntaxUID)

	buf.Write(dataset)
	return buf.Bytes()
}

func TestReadFileMeta(t *testing.T) {
	file := buildPart10(t, types.CTImageStorage, "1.2.3.4.5", types.ExplicitVRLittleEndian, nil)

	meta, err := ReadFileMeta(file)
	if err != nil {
		t.Fatalf("ReadFileMeta failed: %v", err)
	}

	if meta.MediaStorageSOPClassUID != types.CTImageStorage {
		t.Errorf("SOP class = %q, want CT image storage", meta.MediaStorageSOPClassUID)
	}
	if meta.MediaStorageSOPInstanceUID != "1.2.3.4.5" {
		t.Errorf("SOP instance = %q, want 1.2.3.4.5", meta.MediaStorageSOPInstanceUID)
	}
	if meta.TransferSyntaxUID != types.ExplicitVRLittleEndian {
		t.Errorf("transfer syntax = %q, want explicit VR LE", meta.TransferSyntaxUID)
	}
}

func TestReadFileMeta_NotPart10(t *testing.T) {
	if _, err := ReadFileMeta([]byte("not a dicom file")); err == nil {
		t.Error("expected error for non-Part-10 input")
	}
}

func TestStripPart10Header_ReturnsDataset(t *testing.T) {
	source := NewDataset()
	source.AddElement(Tag{Group: 0x0010, Element: 0x0020}, VR_LO, "P7")
	datasetBytes, err := EncodeDatasetWithTransferSyntax(source, types.ExplicitVRLittleEndian)
	if err != nil {
		t.Fatal(err)
	}

	file := buildPart10(t, types.CTImageStorage, "1.2.3", types.ExplicitVRLittleEndian, datasetBytes)

	stripped, err := StripPart10Header(file)
	if err != nil {
		t.Fatalf("StripPart10Header failed: %v", err)
	}
	if !bytes.Equal(stripped, datasetBytes) {
		t.Error("stripped bytes do not match the original dataset")
	}

	parsed, err := ParseDatasetWithTransferSyntax(stripped, types.ExplicitVRLittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if got := parsed.GetString(Tag{Group: 0x0010, Element: 0x0020}); got != "P7" {
		t.Errorf("patient id = %q, want P7", got)
	}
}
