package dimse

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caretech-io/dicomgate/types"
)

// parseDIMSECommand parses a DIMSE command from raw bytes
func parseDIMSECommand(data []byte) (*types.Message, error) {
	msg := &types.Message{}

	// This is a simplified parser - in practice you'd need a full DICOM parser
	// For now, we'll extract key fields assuming implicit VR little endian

	if len(data) < 12 {
		return nil, fmt.Errorf("DIMSE data too short: %d bytes", len(data))
	}

	slog.Debug("Parsing DIMSE command data", "size_bytes", len(data))

	// Parse DICOM elements with proper variable-length handling
	offset := 0
	for offset < len(data)-8 {
		if offset+8 > len(data) {
			slog.Debug("Not enough data for header", "offset", offset)
			break
		}

		// Read tag (group, element)
		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		// Sanity check length
		if length > 1000000 { // 1MB limit
			slog.Warn("Element length too large, probably parsing error", "length", length)
			break
		}

		// Ensure we have enough data for the value
		if offset+8+int(length) > len(data) {
			slog.Debug("Not enough data for element value",
				"have_bytes", len(data),
				"need_bytes", offset+8+int(length))
			break
		}

		// Only process command group elements (group 0000)
		if group == 0x0000 {
			valueStart := offset + 8
			valueEnd := valueStart + int(length)

			switch element {
			case 0x0100: // Command Field
				if length == 2 {
					msg.CommandField = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				} else {
					slog.Warn("Command Field has wrong length", "length", length)
				}
			case 0x0110: // Message ID
				if length == 2 {
					msg.MessageID = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				} else {
					slog.Warn("Message ID has wrong length", "length", length)
				}
			case 0x0120: // Message ID Being Responded To
				if length == 2 {
					msg.MessageIDBeingRespondedTo = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0700: // Priority
				if length == 2 {
					msg.Priority = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0800: // Command Data Set Type
				if length == 2 {
					msg.CommandDataSetType = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				} else {
					slog.Warn("Command Data Set Type has wrong length", "length", length)
				}
			case 0x0900: // Status
				if length == 2 {
					msg.Status = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0002: // Affected SOP Class UID
				if length > 0 {
					msg.AffectedSOPClassUID = trimUIDPadding(data[valueStart:valueEnd])
				}
			case 0x0003: // Requested SOP Class UID
				if length > 0 {
					msg.RequestedSOPClassUID = trimUIDPadding(data[valueStart:valueEnd])
				}
			case 0x1000: // Affected SOP Instance UID
				if length > 0 {
					msg.AffectedSOPInstanceUID = trimUIDPadding(data[valueStart:valueEnd])
				}
			case 0x1001: // Requested SOP Instance UID
				if length > 0 {
					msg.RequestedSOPInstanceUID = trimUIDPadding(data[valueStart:valueEnd])
				}
			case 0x1002: // Event Type ID
				if length == 2 {
					msg.EventTypeID = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x1008: // Action Type ID
				if length == 2 {
					msg.ActionTypeID = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			case 0x0600: // Move Destination (for C-MOVE-RQ)
				if length > 0 {
					msg.MoveDestination = trimUIDPadding(data[valueStart:valueEnd])
				}
			case 0x1030: // Move Originator Application Entity Title
				if length > 0 {
					msg.MoveOriginatorAET = trimUIDPadding(data[valueStart:valueEnd])
				}
			case 0x1031: // Move Originator Message ID
				if length == 2 {
					msg.MoveOriginatorID = binary.LittleEndian.Uint16(data[valueStart:valueEnd])
				}
			default:
				// Skip unknown command elements silently
			}
		}

		// Move to next element
		offset += 8 + int(length)

		// Ensure even alignment (DICOM elements should be even-length)
		if length%2 == 1 {
			offset++ // Skip padding byte
		}
	}

	slog.Debug("Parsed DIMSE command",
		"command_field", fmt.Sprintf("0x%04x", msg.CommandField),
		"message_id", msg.MessageID)
	return msg, nil
}

// trimUIDPadding strips the trailing null or space padding DICOM uses to
// keep UID-like string values even-length.
func trimUIDPadding(value []byte) string {
	s := string(value)
	if idx := strings.IndexByte(s, 0); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
