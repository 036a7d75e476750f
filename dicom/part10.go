package dicom

import (
	"bytes"
	"fmt"
	"strings"

	godicom "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/caretech-io/dicomgate/types"
)

// FileMeta carries the group-0x0002 File Meta Information a DIMSE store
// needs from a Part 10 file: which SOP class/instance the payload is, and
// which transfer syntax its dataset is encoded in.
type FileMeta struct {
	MediaStorageSOPClassUID    string
	MediaStorageSOPInstanceUID string
	TransferSyntaxUID          string
}

// ReadFileMeta extracts the File Meta Information from a DICOM Part 10
// file. Parsing is delegated to the suyashkumar/dicom codec; when the full
// file fails to parse (e.g. encapsulated pixel data in a syntax the codec
// does not handle), the meta group is recovered with a direct scan instead,
// since group 0x0002 is always Explicit VR Little Endian regardless of the
// dataset's transfer syntax.
func ReadFileMeta(data []byte) (FileMeta, error) {
	if !HasPart10Header(data) {
		return FileMeta{}, fmt.Errorf("not a DICOM Part 10 file")
	}

	parsed, err := godicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err == nil {
		meta := FileMeta{
			MediaStorageSOPClassUID:    firstStringValue(&parsed, tag.MediaStorageSOPClassUID),
			MediaStorageSOPInstanceUID: firstStringValue(&parsed, tag.MediaStorageSOPInstanceUID),
			TransferSyntaxUID:          firstStringValue(&parsed, tag.TransferSyntaxUID),
		}
		if meta.TransferSyntaxUID != "" {
			return meta, nil
		}
	}

	return scanFileMeta(data)
}

func firstStringValue(dataset *godicom.Dataset, t tag.Tag) string {
	element, err := dataset.FindElementByTag(t)
	if err != nil || element == nil {
		return ""
	}
	if values, ok := element.Value.GetValue().([]string); ok && len(values) > 0 {
		return strings.TrimRight(values[0], "\x00 ")
	}
	return ""
}

// scanFileMeta walks the group-0x0002 elements directly.
func scanFileMeta(data []byte) (FileMeta, error) {
	var meta FileMeta
	walkMetaGroup(data, func(element uint16, value []byte) {
		switch element {
		case 0x0002:
			meta.MediaStorageSOPClassUID = strings.TrimRight(string(value), "\x00 ")
		case 0x0003:
			meta.MediaStorageSOPInstanceUID = strings.TrimRight(string(value), "\x00 ")
		case 0x0010:
			meta.TransferSyntaxUID = strings.TrimRight(string(value), "\x00 ")
		}
	})
	if meta.TransferSyntaxUID == "" {
		return meta, fmt.Errorf("file meta information has no transfer syntax UID")
	}
	return meta, nil
}

// walkMetaGroup visits every group-0x0002 element in a Part 10 file and
// returns the offset where the dataset proper begins. The meta group is
// always Explicit VR Little Endian.
func walkMetaGroup(data []byte, visit func(element uint16, value []byte)) int {
	offset := 132

	for offset+8 <= len(data) {
		group := uint16(data[offset]) | (uint16(data[offset+1]) << 8)
		element := uint16(data[offset+2]) | (uint16(data[offset+3]) << 8)

		if group != 0x0002 {
			break
		}

		vr := string(data[offset+4 : offset+6])

		var length uint32
		if vr == "OB" || vr == "OW" || vr == "OF" || vr == "SQ" || vr == "UN" || vr == "UT" {
			// Explicit VR with 32-bit length: tag (4) + VR (2) + reserved (2) + length (4)
			if offset+12 > len(data) {
				return len(data)
			}
			length = uint32(data[offset+8]) | (uint32(data[offset+9]) << 8) |
				(uint32(data[offset+10]) << 16) | (uint32(data[offset+11]) << 24)
			offset += 12
		} else {
			// Explicit VR with 16-bit length: tag (4) + VR (2) + length (2)
			if offset+8 > len(data) {
				return len(data)
			}
			length = uint32(data[offset+6]) | (uint32(data[offset+7]) << 8)
			offset += 8
		}

		if offset+int(length) > len(data) {
			return len(data)
		}
		if visit != nil {
			visit(element, data[offset:offset+int(length)])
		}
		offset += int(length)
	}

	return offset
}

// StripPart10Header removes the 128-byte preamble, "DICM" prefix, and File
// Meta Information from a Part 10 file, returning just the dataset bytes —
// the shape DIMSE operations like C-STORE put on the wire.
func StripPart10Header(data []byte) ([]byte, error) {
	if len(data) < 132 {
		return nil, fmt.Errorf("data too short to be DICOM Part 10 (need at least 132 bytes, got %d)", len(data))
	}

	if string(data[128:132]) != "DICM" {
		return nil, fmt.Errorf("not a valid DICOM Part 10 file (missing DICM prefix at offset 128)")
	}

	offset := walkMetaGroup(data, nil)
	if offset >= len(data) {
		return nil, fmt.Errorf("failed to find dataset after File Meta Information")
	}

	return data[offset:], nil
}

// HasPart10Header checks if the data starts with a DICOM Part 10 header.
//
// Returns true if the data contains the 128-byte preamble followed by "DICM".
func HasPart10Header(data []byte) bool {
	if len(data) < 132 {
		return false
	}
	return string(data[128:132]) == "DICM"
}

// DefaultFileMetaTransferSyntax is the transfer syntax assumed for a bare
// dataset handed to the store path without a Part 10 wrapper.
const DefaultFileMetaTransferSyntax = types.ImplicitVRLittleEndian
