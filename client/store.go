package client

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/dimse"
	"github.com/caretech-io/dicomgate/errors"
	"github.com/caretech-io/dicomgate/pdu"
	"github.com/caretech-io/dicomgate/types"
)

// CStoreRequest represents a C-STORE request
type CStoreRequest struct {
	SOPClassUID    string
	SOPInstanceUID string
	Data           []byte
	MessageID      uint16

	// MoveOriginatorAET/MoveOriginatorID, when set, tunnel the identity of
	// the C-MOVE-RQ this store is a sub-operation of. Leave zero for
	// a store issued outside a C-MOVE.
	MoveOriginatorAET string
	MoveOriginatorID  uint16
}

// CStoreResponse represents a C-STORE response
type CStoreResponse struct {
	Status         uint16
	MessageID      uint16
	SOPClassUID    string
	SOPInstanceUID string
}

// StoreInstance sends a DICOM instance held in memory. A Part 10 file is
// unwrapped first; its meta group supplies the SOP class/instance UIDs and
// the dataset's transfer syntax. A bare dataset is assumed Implicit VR
// Little Endian and must carry SOPClassUID/SOPInstanceUID itself.
//
// When the instance's transfer syntax is incompatible with the
// association's current preferred syntax (generic vs specific, or two
// different specific syntaxes), the association is closed, the preference
// switched, and the association reopened before the store proceeds: an
// established association cannot change its negotiated syntaxes mid-flight.
func (a *Association) StoreInstance(fileData []byte, moveOriginatorAET string, moveOriginatorID uint16) (*CStoreResponse, error) {
	var (
		datasetData    []byte
		sopClassUID    string
		sopInstanceUID string
		instanceTS     string
	)

	if dicom.HasPart10Header(fileData) {
		meta, err := dicom.ReadFileMeta(fileData)
		if err != nil {
			return nil, fmt.Errorf("failed to read file meta information: %w", err)
		}
		datasetData, err = dicom.StripPart10Header(fileData)
		if err != nil {
			return nil, err
		}
		sopClassUID = meta.MediaStorageSOPClassUID
		sopInstanceUID = meta.MediaStorageSOPInstanceUID
		instanceTS = meta.TransferSyntaxUID
	} else {
		datasetData = fileData
		instanceTS = dicom.DefaultFileMetaTransferSyntax
	}

	if sopClassUID == "" || sopInstanceUID == "" {
		parsed, err := dicom.ParseDatasetWithTransferSyntax(datasetData, instanceTS)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrNoSOPClassOrInstance, err)
		}
		if sopClassUID == "" {
			sopClassUID = parsed.GetString(dicom.Tag{Group: 0x0008, Element: 0x0016})
		}
		if sopInstanceUID == "" {
			sopInstanceUID = parsed.GetString(dicom.TagSOPInstanceUID)
		}
	}
	if sopClassUID == "" || sopInstanceUID == "" {
		return nil, errors.ErrNoSOPClassOrInstance
	}

	if err := a.ensureTransferSyntax(instanceTS); err != nil {
		return nil, err
	}

	return a.SendCStore(&CStoreRequest{
		SOPClassUID:       sopClassUID,
		SOPInstanceUID:    sopInstanceUID,
		Data:              datasetData,
		MessageID:         a.nextMessageID(),
		MoveOriginatorAET: moveOriginatorAET,
		MoveOriginatorID:  moveOriginatorID,
	})
}

// transferSyntaxCompatible reports whether an instance encoded with
// instanceTS can be sent over contexts negotiated with preferred: the three
// generic VR syntaxes are interchangeable (the SCU re-frames nothing; SCPs
// accepting one generic syntax accept the dataset), while a specific
// (encapsulated) syntax must match exactly.
func transferSyntaxCompatible(preferred, instanceTS string) bool {
	if types.IsGeneric(preferred) && types.IsGeneric(instanceTS) {
		return true
	}
	return preferred == instanceTS
}

// ensureTransferSyntax renegotiates the association when the instance's
// transfer syntax is incompatible with the current preference. Switching to
// a specific syntax proposes it first with the generic syntaxes as
// fallback; switching back from specific to generic restores the implicit-
// first default.
func (a *Association) ensureTransferSyntax(instanceTS string) error {
	if transferSyntaxCompatible(a.PreferredTransferSyntax(), instanceTS) {
		return nil
	}

	a.logger.Info("Renegotiating association for transfer syntax change",
		"previous", a.PreferredTransferSyntax(),
		"required", instanceTS)

	if types.IsGeneric(instanceTS) {
		a.SetPreferredTransferSyntaxes([]string{
			types.ImplicitVRLittleEndian,
			types.ExplicitVRLittleEndian,
		})
	} else {
		a.SetPreferredTransferSyntaxes([]string{
			instanceTS,
			types.ImplicitVRLittleEndian,
			types.ExplicitVRLittleEndian,
		})
	}

	return a.Reopen()
}

// SendCStore sends a C-STORE request and waits for response. If the SOP
// class has never been registered on this association, it is added to the
// explicit set and the association is transparently reopened before the
// store is retried.
func (a *Association) SendCStore(req *CStoreRequest) (*CStoreResponse, error) {
	presContextID, err := a.GetPresentationContextID(req.SOPClassUID)
	if err != nil {
		if !a.RegisterStorageClass(req.SOPClassUID) {
			return nil, fmt.Errorf("no presentation context for SOP class %s: %w", req.SOPClassUID, err)
		}
		if err := a.Reopen(); err != nil {
			return nil, fmt.Errorf("failed to reopen association for SOP class %s: %w", req.SOPClassUID, err)
		}
		presContextID, err = a.GetPresentationContextID(req.SOPClassUID)
		if err != nil {
			return nil, fmt.Errorf("no presentation context for SOP class %s after reopen: %w", req.SOPClassUID, err)
		}
	}

	// Build C-STORE-RQ command
	command := &types.Message{
		CommandField:           dimse.CStoreRQ,
		MessageID:              req.MessageID,
		Priority:               0x0000, // Medium
		CommandDataSetType:     0x0000, // Dataset present
		AffectedSOPClassUID:    req.SOPClassUID,
		AffectedSOPInstanceUID: req.SOPInstanceUID,
		MoveOriginatorAET:      req.MoveOriginatorAET,
		MoveOriginatorID:       req.MoveOriginatorID,
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	// Send C-STORE-RQ with dataset
	if err := a.sendDIMSEMessage(presContextID, commandData, req.Data); err != nil {
		return nil, fmt.Errorf("failed to send C-STORE: %w", err)
	}

	a.logger.Debug("Sent C-STORE-RQ",
		"sop_class", req.SOPClassUID,
		"sop_instance", req.SOPInstanceUID,
		"data_size", len(req.Data))

	// Receive C-STORE-RSP
	resp, err := a.receiveCStoreResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to receive C-STORE-RSP: %w", err)
	}

	if resp.Status != types.StatusSuccess && !types.IsStoreWarningAllowed(resp.Status) {
		return resp, fmt.Errorf("C-STORE rejected with status 0x%04x", resp.Status)
	}

	return resp, nil
}

// sendDIMSEMessage sends a DIMSE message with optional dataset
func (a *Association) sendDIMSEMessage(presContextID byte, commandData []byte, datasetData []byte) error {
	return dimse.SendDIMSEMessage(a.conn, presContextID, a.maxPDULength, commandData, datasetData)
}

// receiveCStoreResponse receives and parses C-STORE-RSP
func (a *Association) receiveCStoreResponse() (*CStoreResponse, error) {
	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return nil, err
	}

	if msg.CommandField != dimse.CStoreRSP {
		return nil, fmt.Errorf("unexpected command: 0x%04x (expected C-STORE-RSP)", msg.CommandField)
	}

	return &CStoreResponse{
		Status:         msg.Status,
		MessageID:      msg.MessageIDBeingRespondedTo,
		SOPClassUID:    msg.AffectedSOPClassUID,
		SOPInstanceUID: msg.AffectedSOPInstanceUID,
	}, nil
}

// receiveDIMSEMessage reads a complete DIMSE message (command and optional dataset)
// from the association connection.
func (a *Association) receiveDIMSEMessage() (*types.Message, []byte, error) {
	var commandData []byte
	var datasetData []byte
	commandComplete := false
	datasetComplete := false
	datasetExpected := false
	var currentMsg *types.Message

	for {
		header := make([]byte, 6)
		if _, err := io.ReadFull(a.conn, header); err != nil {
			return nil, nil, fmt.Errorf("failed to read PDU header: %w", err)
		}

		pduType := header[0]
		pduLength := binary.BigEndian.Uint32(header[2:6])

		switch pduType {
		case pdu.TypePDataTF:
			payload := make([]byte, pduLength)
			if _, err := io.ReadFull(a.conn, payload); err != nil {
				return nil, nil, fmt.Errorf("failed to read PDU data: %w", err)
			}

			offset := 0
			for offset < len(payload) {
				if offset+6 > len(payload) {
					return nil, nil, fmt.Errorf("malformed PDV encountered")
				}

				pdvLength := binary.BigEndian.Uint32(payload[offset : offset+4])
				end := offset + 4 + int(pdvLength)
				if end > len(payload) {
					return nil, nil, fmt.Errorf("PDV length exceeds PDU payload")
				}

				controlHeader := payload[offset+5]
				value := payload[offset+6 : end]
				isCommand := controlHeader&0x01 != 0
				isLastFragment := controlHeader&0x02 != 0

				if isCommand {
					commandData = append(commandData, value...)
					if isLastFragment {
						commandComplete = true
						decoded, err := dimse.DecodeCommand(commandData)
						if err != nil {
							return nil, nil, fmt.Errorf("failed to decode command: %w", err)
						}
						currentMsg = decoded

						if currentMsg.CommandDataSetType != 0x0101 {
							datasetExpected = true
							if len(datasetData) == 0 {
								datasetComplete = false
							}
						} else {
							datasetExpected = false
							datasetComplete = true
						}
					}
				} else {
					datasetData = append(datasetData, value...)
					if isLastFragment {
						datasetComplete = true
					}
				}

				offset = end
			}
		case pdu.TypeAbort:
			abortData := make([]byte, pduLength)
			if _, err := io.ReadFull(a.conn, abortData); err != nil {
				return nil, nil, fmt.Errorf("failed to read ABORT data: %w", err)
			}

			var source, reason byte
			if len(abortData) >= 4 {
				source = abortData[2]
				reason = abortData[3]
			}

			a.logger.Error("Received A-ABORT from peer",
				"source", source,
				"reason", reason)

			return nil, nil, errors.NewAbortError(source, reason)
		default:
			// Skip payload for unexpected PDU types to maintain stream alignment
			discard := make([]byte, pduLength)
			if _, err := io.ReadFull(a.conn, discard); err != nil {
				return nil, nil, fmt.Errorf("failed to read unexpected PDU payload: %w", err)
			}
			return nil, nil, fmt.Errorf("unexpected PDU type: 0x%02x", pduType)
		}

		if commandComplete && (!datasetExpected || datasetComplete) {
			return currentMsg, datasetData, nil
		}
	}
}
