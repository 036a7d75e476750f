package client

import (
	"fmt"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/dimse"
	"github.com/caretech-io/dicomgate/types"
)

// CFindRequest encapsulates the information required to perform a C-FIND query.
type CFindRequest struct {
	SOPClassUID string
	MessageID   uint16
	Priority    uint16
	Dataset     *dicom.Dataset
}

// CFindResponse represents a single C-FIND response from the SCP.
type CFindResponse struct {
	Status    uint16
	MessageID uint16
	Dataset   *dicom.Dataset
}

// Find issues a normalized C-FIND at the given query/retrieve level and
// collects the pending answers into a FindAnswers container. When normalize
// is true (the usual case), the query is first shaped for the level and the
// association's manufacturer quirks via NormalizeQuery; pass false only when
// the caller has prepared an exact identifier already.
func (a *Association) Find(level types.QueryLevel, query *dicom.Dataset, normalize bool) (*dicom.FindAnswers, error) {
	sopClass, err := findSOPClassForLevel(level)
	if err != nil {
		return nil, err
	}

	identifier := query
	if normalize {
		identifier = NormalizeQuery(query, level, a.manufacturer)
	}

	responses, err := a.SendCFind(&CFindRequest{
		SOPClassUID: sopClass,
		MessageID:   a.nextMessageID(),
		Dataset:     identifier,
	})
	if err != nil {
		return nil, err
	}

	return collectFindAnswers(responses, false)
}

// FindWorklist issues a modality-worklist C-FIND. Worklist identifiers are
// not level-shaped; the query goes out as supplied, and the answers come
// back in a worklist-mode container (SOP instance tags stripped).
func (a *Association) FindWorklist(query *dicom.Dataset) (*dicom.FindAnswers, error) {
	responses, err := a.SendCFind(&CFindRequest{
		SOPClassUID: types.ModalityWorklistInformationModelFind,
		MessageID:   a.nextMessageID(),
		Dataset:     query,
	})
	if err != nil {
		return nil, err
	}

	return collectFindAnswers(responses, true)
}

// collectFindAnswers folds a pending-response series into a FindAnswers
// container, marking it complete once the final success response arrives.
func collectFindAnswers(responses []*CFindResponse, worklist bool) (*dicom.FindAnswers, error) {
	answers := dicom.NewFindAnswers(worklist)
	for _, resp := range responses {
		switch {
		case types.IsPending(resp.Status):
			if resp.Dataset != nil {
				answers.AddFromParsed(resp.Dataset)
			}
		case resp.Status == types.StatusSuccess:
			answers.SetComplete(true)
		default:
			return nil, fmt.Errorf("C-FIND failed with status 0x%04x", resp.Status)
		}
	}
	return answers, nil
}

// SendCFind performs a DICOM C-FIND query and returns all responses in
// order, pending responses included. Both pending bands (matches-continuing
// and matches-continuing-with-warning) keep the series open; any other
// status ends it.
func (a *Association) SendCFind(req *CFindRequest) ([]*CFindResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("c-find request cannot be nil")
	}

	if req.Dataset == nil {
		return nil, fmt.Errorf("c-find request requires a dataset")
	}

	sopClass := req.SOPClassUID
	if sopClass == "" {
		sopClass = types.StudyRootQueryRetrieveInformationModelFind
	}

	messageID := req.MessageID
	if messageID == 0 {
		messageID = 1
	}

	presContextID, err := a.GetPresentationContextID(sopClass)
	if err != nil {
		return nil, err
	}

	datasetData, err := dicom.EncodeDatasetWithTransferSyntax(req.Dataset, a.transferSyntaxFor(presContextID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode C-FIND identifier: %w", err)
	}

	// An identifier with no elements encodes to zero bytes and therefore
	// never produces a dataset PDV; the command set must not claim one or
	// the SCP will wait for a fragment that never arrives.
	datasetType := uint16(0x0000)
	if len(datasetData) == 0 {
		datasetType = 0x0101
	}

	command := &types.Message{
		CommandField:        dimse.CFindRQ,
		MessageID:           messageID,
		CommandDataSetType:  datasetType,
		Priority:            req.Priority,
		AffectedSOPClassUID: sopClass,
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode C-FIND command: %w", err)
	}

	if err := a.sendDIMSEMessage(presContextID, commandData, datasetData); err != nil {
		return nil, fmt.Errorf("failed to send C-FIND request: %w", err)
	}

	var responses []*CFindResponse

	for {
		msg, data, err := a.receiveDIMSEMessage()
		if err != nil {
			return nil, err
		}

		if msg.CommandField != dimse.CFindRSP {
			return nil, fmt.Errorf("unexpected command: 0x%04x (expected C-FIND-RSP)", msg.CommandField)
		}

		var dataset *dicom.Dataset
		if len(data) > 0 {
			dataset, err = dicom.ParseDatasetWithTransferSyntax(data, a.transferSyntaxFor(presContextID))
			if err != nil {
				a.logger.Warn("Failed to parse C-FIND response dataset",
					"error", err,
					"message_id", msg.MessageIDBeingRespondedTo,
					"status", fmt.Sprintf("0x%04X", msg.Status))
			}
		}

		responses = append(responses, &CFindResponse{
			Status:    msg.Status,
			MessageID: msg.MessageIDBeingRespondedTo,
			Dataset:   dataset,
		})

		if !types.IsPending(msg.Status) {
			break
		}
	}

	return responses, nil
}
