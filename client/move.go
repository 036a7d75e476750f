package client

import (
	"fmt"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/dimse"
	"github.com/caretech-io/dicomgate/errors"
	"github.com/caretech-io/dicomgate/types"
)

// CMoveRequest encapsulates a C-MOVE operation: which instances to move
// (identified by Dataset at the given information model) and where to move
// them (DestinationAETitle, resolved by the SCP).
type CMoveRequest struct {
	SOPClassUID        string
	MessageID          uint16
	Priority           uint16
	DestinationAETitle string
	Dataset            *dicom.Dataset
}

// CMoveResponse represents a single C-MOVE response from the SCP, carrying
// the sub-operation counters of the fan-out in progress.
type CMoveResponse struct {
	Status                         uint16
	MessageID                      uint16
	NumberOfRemainingSuboperations *uint16
	NumberOfCompletedSuboperations *uint16
	NumberOfFailedSuboperations    *uint16
	NumberOfWarningSuboperations   *uint16
}

// MovePatient asks the SCP to move every instance of a patient to
// destination.
func (a *Association) MovePatient(destination, patientID string) ([]*CMoveResponse, error) {
	identifier := dicom.NewDataset()
	identifier.AddElement(dicom.TagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelPatient))
	identifier.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0020}, dicom.VR_LO, patientID)
	return a.move(destination, types.QueryLevelPatient, identifier)
}

// MoveStudy asks the SCP to move one study to destination.
func (a *Association) MoveStudy(destination, studyInstanceUID string) ([]*CMoveResponse, error) {
	identifier := dicom.NewDataset()
	identifier.AddElement(dicom.TagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelStudy))
	identifier.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, studyInstanceUID)
	return a.move(destination, types.QueryLevelStudy, identifier)
}

// MoveSeries asks the SCP to move one series to destination. The enclosing
// study UID is required alongside the series UID.
func (a *Association) MoveSeries(destination, studyInstanceUID, seriesInstanceUID string) ([]*CMoveResponse, error) {
	identifier := dicom.NewDataset()
	identifier.AddElement(dicom.TagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelSeries))
	identifier.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, studyInstanceUID)
	identifier.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000E}, dicom.VR_UI, seriesInstanceUID)
	return a.move(destination, types.QueryLevelSeries, identifier)
}

// MoveInstance asks the SCP to move a single instance to destination. The
// full study/series/instance UID chain is required.
func (a *Association) MoveInstance(destination, studyInstanceUID, seriesInstanceUID, sopInstanceUID string) ([]*CMoveResponse, error) {
	identifier := dicom.NewDataset()
	identifier.AddElement(dicom.TagQueryRetrieveLevel, dicom.VR_CS, string(types.QueryLevelImage))
	identifier.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, studyInstanceUID)
	identifier.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000E}, dicom.VR_UI, seriesInstanceUID)
	identifier.AddElement(dicom.TagSOPInstanceUID, dicom.VR_UI, sopInstanceUID)
	return a.move(destination, types.QueryLevelImage, identifier)
}

func (a *Association) move(destination string, level types.QueryLevel, identifier *dicom.Dataset) ([]*CMoveResponse, error) {
	sopClass, err := moveSOPClassForLevel(level)
	if err != nil {
		return nil, err
	}
	return a.SendCMove(&CMoveRequest{
		SOPClassUID:        sopClass,
		MessageID:          a.nextMessageID(),
		DestinationAETitle: destination,
		Dataset:            identifier,
	})
}

// SendCMove performs a DICOM C-MOVE and collects every response in order.
// Pending (sub-operations-continuing) responses keep the series open; the
// final response must be success, or the whole move is surfaced as a
// protocol error carrying the SCP's status.
func (a *Association) SendCMove(req *CMoveRequest) ([]*CMoveResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-move request cannot be nil")
	}
	if req.Dataset == nil {
		return nil, fmt.Errorf("c-move request requires a dataset")
	}
	if err := types.ValidateAETitle(req.DestinationAETitle); err != nil {
		return nil, fmt.Errorf("c-move destination: %w", err)
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.StudyRootQueryRetrieveInformationModelMove
	}

	messageID := req.MessageID
	if messageID == 0 {
		messageID = 1
	}

	presContextID, err := a.GetPresentationContextID(sopClass)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMoveUnavailable, err)
	}

	datasetData, err := dicom.EncodeDatasetWithTransferSyntax(req.Dataset, a.transferSyntaxFor(presContextID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode C-MOVE identifier: %w", err)
	}

	datasetType := uint16(0x0000)
	if len(datasetData) == 0 {
		datasetType = 0x0101
	}

	command := &types.Message{
		CommandField:        dimse.CMoveRQ,
		MessageID:           messageID,
		CommandDataSetType:  datasetType,
		Priority:            req.Priority,
		AffectedSOPClassUID: sopClass,
		MoveDestination:     req.DestinationAETitle,
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode C-MOVE command: %w", err)
	}

	if err := a.sendDIMSEMessage(presContextID, commandData, datasetData); err != nil {
		return nil, fmt.Errorf("failed to send C-MOVE request: %w", err)
	}

	var responses []*CMoveResponse

	for {
		msg, _, err := a.receiveDIMSEMessage()
		if err != nil {
			return responses, err
		}

		if msg.CommandField != dimse.CMoveRSP {
			return responses, fmt.Errorf("unexpected command: 0x%04x (expected C-MOVE-RSP)", msg.CommandField)
		}

		responses = append(responses, &CMoveResponse{
			Status:                         msg.Status,
			MessageID:                      msg.MessageIDBeingRespondedTo,
			NumberOfRemainingSuboperations: msg.NumberOfRemainingSuboperations,
			NumberOfCompletedSuboperations: msg.NumberOfCompletedSuboperations,
			NumberOfFailedSuboperations:    msg.NumberOfFailedSuboperations,
			NumberOfWarningSuboperations:   msg.NumberOfWarningSuboperations,
		})

		switch msg.Status {
		case types.StatusPending:
			continue
		case types.StatusSuccess:
			return responses, nil
		default:
			return responses, fmt.Errorf("C-MOVE failed with status 0x%04x", msg.Status)
		}
	}
}
