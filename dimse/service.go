package dimse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

// cancelPollTimeout bounds how long a streaming handler's cancellation
// check blocks the association waiting for a possible C-CANCEL-RQ.
const cancelPollTimeout = 20 * time.Millisecond

// Command types. Re-exported from types so callers elsewhere in this
// package (and client/, services/) can write dimse.CEchoRQ instead of
// reaching into types directly.
const (
	CStoreRQ  = types.CStoreRQ
	CStoreRSP = types.CStoreRSP
	CGetRQ    = types.CGetRQ
	CGetRSP   = types.CGetRSP
	CFindRQ   = types.CFindRQ
	CFindRSP  = types.CFindRSP
	CMoveRQ   = types.CMoveRQ
	CMoveRSP  = types.CMoveRSP
	CEchoRQ   = types.CEchoRQ
	CEchoRSP  = types.CEchoRSP
	CCancelRQ = types.CCancelRQ

	NEventReportRQ  = types.NEventReportRQ
	NEventReportRSP = types.NEventReportRSP
	NActionRQ       = types.NActionRQ
	NActionRSP      = types.NActionRSP
)

// Status codes
const (
	StatusSuccess = types.StatusSuccess
	StatusPending = types.StatusPending
	StatusFailure = types.StatusFailure
)

// PDULayer interface for sending responses
type PDULayer interface {
	SendDIMSEResponse(presContextID byte, commandData []byte) error
	SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error
	GetTransferSyntax(presContextID byte) (string, error)
	CallingAETitle() string
	PollCancel(timeout time.Duration) (messageIDBeingRespondedTo uint16, cancelled bool, err error)
}

// Service manages DIMSE operations and message routing
type Service struct {
	handler     interfaces.ServiceHandler
	commandData []byte
	datasetData []byte
	currentMsg  *types.Message
	logger      *slog.Logger
	transferUID string
	contextID   byte
	cancelled   bool
}

// responseHandler implements ResponseSender for streaming responses
type responseHandler struct {
	service               *Service
	presContextID         byte
	pduLayer              PDULayer
	defaultTransferSyntax string
}

// SendResponse implements ResponseSender interface
func (r *responseHandler) SendResponse(msg *types.Message, dataset *dicom.Dataset, transferSyntaxUID string) error {
	tsUID := transferSyntaxUID
	if tsUID == "" {
		tsUID = r.defaultTransferSyntax
	}

	var datasetBytes []byte
	var err error
	if dataset != nil {
		datasetBytes, err = dicom.EncodeDatasetWithTransferSyntax(dataset, tsUID)
		if err != nil {
			return fmt.Errorf("failed to encode dataset with transfer syntax %s: %w", tsUID, err)
		}
	}

	// Propagate transfer syntax to message for downstream consumers
	msg.TransferSyntaxUID = tsUID

	return r.service.sendDIMSEResponse(msg, datasetBytes, r.presContextID, r.pduLayer)
}

// cGetResponder implements CGetResponder for C-GET operations
type cGetResponder struct {
	responseHandler
	messageIDCounter uint16
}

// SendCStore implements CGetResponder interface - sends C-STORE sub-operation on same association
func (c *cGetResponder) SendCStore(sopClassUID, sopInstanceUID string, data []byte) error {
	c.messageIDCounter++

	// Build C-STORE-RQ command
	command := &types.Message{
		CommandField:           CStoreRQ,
		MessageID:              c.messageIDCounter,
		Priority:               0x0002, // Low priority (EncodeCommand omits a zero Priority, so Medium 0x0000 would not be sent)
		AffectedSOPClassUID:    sopClassUID,
		AffectedSOPInstanceUID: sopInstanceUID,
		CommandDataSetType:     0x0000, // Dataset present
	}

	commandData, err := EncodeCommand(command)
	if err != nil {
		return fmt.Errorf("failed to encode C-STORE sub-operation command: %w", err)
	}

	// Send C-STORE-RQ with dataset on the same association
	if err := c.pduLayer.SendDIMSEResponseWithDataset(c.presContextID, commandData, data); err != nil {
		return fmt.Errorf("failed to send C-STORE sub-operation: %w", err)
	}

	// Note: In a full implementation, we should wait for C-STORE-RSP
	// For now, we'll assume success
	return nil
}

// NewService creates a new DIMSE service with a handler
func NewService(handler interfaces.ServiceHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		handler: handler,
		logger:  logger,
	}
}

// HandleDIMSEMessage processes DIMSE messages and routes to appropriate service
func (d *Service) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error {
	// Create context for this message handling
	ctx := context.Background()

	d.logger.Debug("Processing DIMSE message",
		"context_id", presContextID,
		"control_header", fmt.Sprintf("0x%02x", msgCtrlHeader))
	tsUID, err := pduLayer.GetTransferSyntax(presContextID)
	if err != nil {
		d.logger.Warn("Failed to retrieve transfer syntax for presentation context",
			"context_id", presContextID,
			"error", err)
	}
	if tsUID != "" {
		d.transferUID = tsUID
	}
	d.contextID = presContextID

	// Check message control header
	// 0x01 = command, more fragments
	// 0x02 = dataset, last fragment
	// 0x03 = command, last fragment
	// 0x00 = dataset, more fragments

	isCommand := (msgCtrlHeader & 0x01) != 0
	isLastFragment := (msgCtrlHeader & 0x02) != 0

	if isCommand {
		// This is command data
		d.logger.Debug("Received command data", "size_bytes", len(data))
		if isLastFragment {
			// Last command fragment: parse the accumulated command
			d.commandData = append(d.commandData, data...)
			msg, err := parseDIMSECommand(d.commandData)
			if err != nil {
				return fmt.Errorf("failed to parse DIMSE command: %v", err)
			}
			d.currentMsg = msg

			// If CommandDataSetType indicates no dataset, process immediately
			if msg.CommandDataSetType == 0x0101 {
				return d.processCompleteMessage(ctx, presContextID, pduLayer)
			}
		} else {
			// Multi-fragment command (accumulate)
			d.commandData = append(d.commandData, data...)
		}
	} else {
		// This is dataset data
		d.logger.Debug("Received dataset data", "size_bytes", len(data))
		if isLastFragment {
			// Complete dataset received
			d.datasetData = append(d.datasetData, data...)
			return d.processCompleteMessage(ctx, presContextID, pduLayer)
		} else {
			// Multi-fragment dataset (accumulate)
			d.datasetData = append(d.datasetData, data...)
		}
	}

	return nil
}

// processCompleteMessage processes a complete DIMSE message (command + optional dataset)
func (d *Service) processCompleteMessage(ctx context.Context, presContextID byte, pduLayer PDULayer) error {
	if d.currentMsg == nil {
		return fmt.Errorf("no current message to process")
	}

	d.logger.InfoContext(ctx, "Processing complete DIMSE message",
		"command_field", fmt.Sprintf("0x%04x", d.currentMsg.CommandField),
		"message_id", d.currentMsg.MessageID,
		"dataset_size", len(d.datasetData))

	tsUID := d.transferUID
	if tsUID == "" {
		if negotiatedTS, err := pduLayer.GetTransferSyntax(presContextID); err == nil {
			tsUID = negotiatedTS
		} else {
			d.logger.WarnContext(ctx, "Unable to determine transfer syntax for presentation context",
				"context_id", presContextID,
				"error", err)
		}
	}
	d.currentMsg.TransferSyntaxUID = tsUID

	var parsedDataset *dicom.Dataset
	if len(d.datasetData) > 0 {
		var err error
		parsedDataset, err = dicom.ParseDatasetWithTransferSyntax(d.datasetData, tsUID)
		if err != nil {
			d.logger.WarnContext(ctx, "Failed to parse dataset with negotiated transfer syntax",
				"transfer_syntax", tsUID,
				"error", err)
		} else {
			d.logger.DebugContext(ctx, "Parsed dataset using transfer syntax",
				"transfer_syntax", tsUID)
		}
	}

	// C-CANCEL-RQ carries no response (PS3.7 9.3.2.3) and is normally
	// intercepted mid-stream by PollCancel; this path only fires when one
	// arrives outside an active streaming operation (nothing to cancel).
	if d.currentMsg.CommandField == types.CCancelRQ {
		d.logger.DebugContext(ctx, "Received C-CANCEL-RQ with no matching operation in progress",
			"message_id_being_responded_to", d.currentMsg.MessageIDBeingRespondedTo)
		d.resetState()
		return nil
	}

	requestMessageID := d.currentMsg.MessageID
	meta := interfaces.MessageContext{
		PresentationContextID: presContextID,
		TransferSyntaxUID:     tsUID,
		CallingAETitle:        pduLayer.CallingAETitle(),
		Dataset:               parsedDataset,
		Cancelled: func() bool {
			return d.checkCancelled(requestMessageID, pduLayer)
		},
	}

	defer d.resetState()

	if streamingHandler, ok := d.handler.(interfaces.StreamingServiceHandler); ok {
		d.logger.DebugContext(ctx, "Using streaming handler for multi-response operation")

		responder := d.buildResponder(presContextID, pduLayer, tsUID)
		return streamingHandler.HandleDIMSEStreaming(ctx, d.currentMsg, d.datasetData, meta, responder)
	}

	// Handler errors do not tear the association down: they are logged and
	// converted to a processing-failure response, and the dispatch loop
	// continues with the next command. Only transport failures below
	// (encode/send) propagate and abort.
	responseMsg, responseDataset, err := d.handler.HandleDIMSE(ctx, d.currentMsg, d.datasetData, meta)
	if err != nil {
		d.logger.WarnContext(ctx, "Service handler failed, responding with processing failure",
			"command_field", fmt.Sprintf("0x%04x", d.currentMsg.CommandField),
			"message_id", d.currentMsg.MessageID,
			"error", err)
		responseMsg = &types.Message{
			CommandField:              types.ResponseCommandFor(d.currentMsg.CommandField),
			MessageIDBeingRespondedTo: d.currentMsg.MessageID,
			AffectedSOPClassUID:       d.currentMsg.AffectedSOPClassUID,
			CommandDataSetType:        0x0101,
			Status:                    types.StatusProcessingFailure,
		}
		responseMsg.TransferSyntaxUID = tsUID
		return d.sendDIMSEResponse(responseMsg, nil, presContextID, pduLayer)
	}

	responseTS := responseMsg.TransferSyntaxUID
	if responseTS == "" {
		responseTS = tsUID
	}

	var encodedDataset []byte
	if responseDataset != nil {
		var encodeErr error
		encodedDataset, encodeErr = dicom.EncodeDatasetWithTransferSyntax(responseDataset, responseTS)
		if encodeErr != nil {
			return fmt.Errorf("failed to encode response dataset using transfer syntax %s: %w", responseTS, encodeErr)
		}
	}

	responseMsg.TransferSyntaxUID = responseTS
	return d.sendDIMSEResponse(responseMsg, encodedDataset, presContextID, pduLayer)
}

func (d *Service) buildResponder(presContextID byte, pduLayer PDULayer, defaultTS string) interfaces.ResponseSender {
	base := responseHandler{
		service:               d,
		presContextID:         presContextID,
		pduLayer:              pduLayer,
		defaultTransferSyntax: defaultTS,
	}

	if d.currentMsg != nil && d.currentMsg.CommandField == CGetRQ {
		return &cGetResponder{responseHandler: base}
	}

	return &base
}

func (d *Service) resetState() {
	d.commandData = nil
	d.datasetData = nil
	d.currentMsg = nil
	d.transferUID = ""
	d.contextID = 0
	d.cancelled = false
}

// checkCancelled polls the association for a pending C-CANCEL-RQ addressed
// to messageID, remembering a positive result so later polls short-circuit
// without touching the socket again for this message.
func (d *Service) checkCancelled(messageID uint16, pduLayer PDULayer) bool {
	if d.cancelled {
		return true
	}
	respondingTo, cancelled, err := pduLayer.PollCancel(cancelPollTimeout)
	if err != nil {
		d.logger.Debug("PollCancel failed, treating as not cancelled", "error", err)
		return false
	}
	if cancelled && respondingTo == messageID {
		d.cancelled = true
	}
	return d.cancelled
}

// sendDIMSEResponse sends a DIMSE response
func (d *Service) sendDIMSEResponse(msg *types.Message, data []byte, presContextID byte, pduLayer PDULayer) error {
	commandData, err := EncodeCommand(msg)
	if err != nil {
		return fmt.Errorf("failed to encode response command: %w", err)
	}
	return pduLayer.SendDIMSEResponseWithDataset(presContextID, commandData, data)
}
