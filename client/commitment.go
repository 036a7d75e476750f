package client

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/dimse"
	"github.com/caretech-io/dicomgate/errors"
	"github.com/caretech-io/dicomgate/types"
)

// transactionUIDRoot is the UUID-derived UID root DICOM reserves for
// generating UIDs from a random UUID (PS3.5 Annex B.2). Every
// TransactionUID this client mints starts with it.
const transactionUIDRoot = "2.25."

// ReferencedInstance identifies one SOP instance inside a storage
// commitment request or report.
type ReferencedInstance struct {
	SOPClassUID    string
	SOPInstanceUID string
}

// StorageCommitmentResult is the outcome reported back by a peer's
// N-EVENT-REPORT-RQ for a previously requested storage commitment.
type StorageCommitmentResult struct {
	TransactionUID string
	Success        []ReferencedInstance
	Failed         []ReferencedInstance
}

// NewTransactionUID mints a fresh storage-commitment transaction UID rooted
// at the UUID-derived UID arc, so independently requested commitments never
// collide.
func NewTransactionUID() string {
	u := uuid.New()
	return transactionUIDRoot + new(big.Int).SetBytes(u[:]).String()
}

// RequestStorageCommitment sends an N-ACTION-RQ (ActionTypeID=1) asking the
// peer to commit to long-term storage of the given instances, identified by
// transactionUID (minted with NewTransactionUID if the caller has none yet).
// It returns once the N-ACTION-RSP confirming receipt of the request
// arrives; the actual commitment outcome is delivered asynchronously via a
// later N-EVENT-REPORT-RQ, which the caller's SCP side must handle (see
// ReportStorageCommitment for the peer-initiated analogue).
func (a *Association) RequestStorageCommitment(transactionUID string, instances []ReferencedInstance) error {
	if !strings.HasPrefix(transactionUID, transactionUIDRoot) {
		return fmt.Errorf("%w: transaction UID %q must start with %q", errors.ErrParameterOutOfRange, transactionUID, transactionUIDRoot)
	}
	if len(instances) == 0 {
		return fmt.Errorf("%w: storage commitment request needs at least one referenced instance", errors.ErrBadParameter)
	}

	presContextID, err := a.GetPresentationContextID(types.StorageCommitmentPushModelSOPClass)
	if err != nil {
		return fmt.Errorf("no presentation context for storage commitment: %w", err)
	}

	dataset := dicom.NewDataset()
	dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1195}, dicom.VR_UI, transactionUID)
	dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1199}, dicom.VR_SQ, referencedSOPSequenceItems(instances))

	messageID := a.nextMessageID()
	command := &types.Message{
		CommandField:            dimse.NActionRQ,
		MessageID:               messageID,
		CommandDataSetType:      0x0000, // Dataset present
		RequestedSOPClassUID:    types.StorageCommitmentPushModelSOPClass,
		RequestedSOPInstanceUID: types.StorageCommitmentPushModelSOPInstance,
		ActionTypeID:            types.ActionTypeIDStorageCommitment,
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return fmt.Errorf("failed to encode N-ACTION-RQ: %w", err)
	}

	datasetData, err := dicom.EncodeDatasetWithTransferSyntax(dataset, a.transferSyntaxFor(presContextID))
	if err != nil {
		return fmt.Errorf("failed to encode storage commitment dataset: %w", err)
	}

	if err := a.sendDIMSEMessage(presContextID, commandData, datasetData); err != nil {
		return fmt.Errorf("failed to send N-ACTION-RQ: %w", err)
	}

	msg, respData, err := a.receiveDIMSEMessage()
	if err != nil {
		return fmt.Errorf("failed to receive N-ACTION-RSP: %w", err)
	}
	if msg.CommandField != dimse.NActionRSP {
		return fmt.Errorf("unexpected command: 0x%04x (expected N-ACTION-RSP)", msg.CommandField)
	}
	if msg.MessageIDBeingRespondedTo != messageID {
		return fmt.Errorf("N-ACTION-RSP responds to message %d, want %d", msg.MessageIDBeingRespondedTo, messageID)
	}
	if affected := msg.AffectedSOPClassUID; affected != "" && affected != types.StorageCommitmentPushModelSOPClass {
		return fmt.Errorf("N-ACTION-RSP carries foreign SOP class %s", affected)
	}
	if instance := msg.AffectedSOPInstanceUID; instance != "" && instance != types.StorageCommitmentPushModelSOPInstance {
		return fmt.Errorf("N-ACTION-RSP carries foreign SOP instance %s", instance)
	}
	if len(respData) > 0 {
		return fmt.Errorf("N-ACTION-RSP carries an unexpected dataset (%d bytes)", len(respData))
	}
	if msg.Status != types.StatusSuccess {
		return fmt.Errorf("N-ACTION-RSP returned non-success status: 0x%04x", msg.Status)
	}

	return nil
}

// ReportStorageCommitment sends an N-EVENT-REPORT-RQ carrying the outcome of
// a storage commitment this association's peer previously requested of us.
// EventTypeID is StorageCommitmentSuccess when result.Failed is empty,
// StorageCommitmentFailuresExist otherwise. Each FailedSOPSequence item
// carries only the referenced SOP class and instance UIDs; no Failure Reason
// (0008,1197) is sent.
func (a *Association) ReportStorageCommitment(result StorageCommitmentResult) error {
	if !strings.HasPrefix(result.TransactionUID, transactionUIDRoot) {
		return fmt.Errorf("%w: transaction UID %q must start with %q", errors.ErrParameterOutOfRange, result.TransactionUID, transactionUIDRoot)
	}

	presContextID, err := a.GetPresentationContextID(types.StorageCommitmentPushModelSOPClass)
	if err != nil {
		return fmt.Errorf("no presentation context for storage commitment: %w", err)
	}

	eventTypeID := uint16(types.EventTypeIDStorageCommitmentSuccess)
	if len(result.Failed) > 0 {
		eventTypeID = types.EventTypeIDStorageCommitmentFailuresExist
	}

	dataset := dicom.NewDataset()
	dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1195}, dicom.VR_UI, result.TransactionUID)
	if len(result.Success) > 0 {
		dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1199}, dicom.VR_SQ, referencedSOPSequenceItems(result.Success))
	}
	if len(result.Failed) > 0 {
		dataset.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1198}, dicom.VR_SQ, referencedSOPSequenceItems(result.Failed))
	}

	messageID := a.nextMessageID()
	command := &types.Message{
		CommandField:           dimse.NEventReportRQ,
		MessageID:              messageID,
		CommandDataSetType:     0x0000,
		AffectedSOPClassUID:    types.StorageCommitmentPushModelSOPClass,
		AffectedSOPInstanceUID: types.StorageCommitmentPushModelSOPInstance,
		EventTypeID:            eventTypeID,
	}

	commandData, err := dimse.EncodeCommand(command)
	if err != nil {
		return fmt.Errorf("failed to encode N-EVENT-REPORT-RQ: %w", err)
	}

	datasetData, err := dicom.EncodeDatasetWithTransferSyntax(dataset, a.transferSyntaxFor(presContextID))
	if err != nil {
		return fmt.Errorf("failed to encode storage commitment report dataset: %w", err)
	}

	if err := a.sendDIMSEMessage(presContextID, commandData, datasetData); err != nil {
		return fmt.Errorf("failed to send N-EVENT-REPORT-RQ: %w", err)
	}

	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return fmt.Errorf("failed to receive N-EVENT-REPORT-RSP: %w", err)
	}
	if msg.CommandField != dimse.NEventReportRSP {
		return fmt.Errorf("unexpected command: 0x%04x (expected N-EVENT-REPORT-RSP)", msg.CommandField)
	}
	if msg.MessageIDBeingRespondedTo != messageID {
		return fmt.Errorf("N-EVENT-REPORT-RSP responds to message %d, want %d", msg.MessageIDBeingRespondedTo, messageID)
	}
	if msg.Status != types.StatusSuccess {
		return fmt.Errorf("N-EVENT-REPORT-RSP returned non-success status: 0x%04x", msg.Status)
	}

	return nil
}

// referencedSOPSequenceItems builds the item datasets for a
// ReferencedSOPSequence/FailedSOPSequence element.
func referencedSOPSequenceItems(instances []ReferencedInstance) []*dicom.Dataset {
	items := make([]*dicom.Dataset, 0, len(instances))
	for _, inst := range instances {
		item := dicom.NewDataset()
		item.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1150}, dicom.VR_UI, inst.SOPClassUID)
		item.AddElement(dicom.Tag{Group: 0x0008, Element: 0x1155}, dicom.VR_UI, inst.SOPInstanceUID)
		items = append(items, item)
	}
	return items
}

// transferSyntaxFor returns the negotiated transfer syntax for a
// presentation context, defaulting to Implicit VR Little Endian if
// negotiation somehow left it blank.
func (a *Association) transferSyntaxFor(presContextID byte) string {
	if pc, ok := a.presentationCtxs[presContextID]; ok && pc.TransferSyntax != "" {
		return pc.TransferSyntax
	}
	return types.ImplicitVRLittleEndian
}
