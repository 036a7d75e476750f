// Package interfaces contains all service and handler interfaces
package interfaces

import (
	"context"
	"time"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/types"
)

// MessageContext carries the per-message plumbing a service handler needs
// beyond the command set itself: which presentation context the message
// arrived on, the transfer syntax negotiated for it, the already-parsed
// dataset (nil if the command carries none or parsing failed), and a
// cancellation probe a long-running streaming handler (C-FIND, C-MOVE,
// C-GET) should poll between answers to honor an incoming C-CANCEL-RQ.
type MessageContext struct {
	PresentationContextID byte
	TransferSyntaxUID     string
	CallingAETitle        string
	Dataset               *dicom.Dataset
	Cancelled             func() bool
}

// IsCancelled reports whether the originating requestor has since sent a
// C-CANCEL-RQ for this message. Safe to call even when Cancelled is nil.
func (m MessageContext) IsCancelled() bool {
	return m.Cancelled != nil && m.Cancelled()
}

// ServiceHandler interface for handling DIMSE operations
type ServiceHandler interface {
	HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, meta MessageContext) (*types.Message, *dicom.Dataset, error)
}

// StreamingServiceHandler interface for multi-response DIMSE operations
type StreamingServiceHandler interface {
	HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data []byte, meta MessageContext, responder ResponseSender) error
}

// ResponseSender interface for sending intermediate responses
type ResponseSender interface {
	SendResponse(msg *types.Message, dataset *dicom.Dataset, transferSyntaxUID string) error
}

// CGetResponder interface for C-GET operations that need to send C-STORE sub-operations
type CGetResponder interface {
	ResponseSender
	// SendCStore sends a C-STORE sub-operation on the same association
	SendCStore(sopClassUID, sopInstanceUID string, data []byte) error
}

// DIMSEHandler interface for PDU layer to communicate with DIMSE layer
type DIMSEHandler interface {
	HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error
}

// PDULayer interface for DIMSE layer to communicate with PDU layer
type PDULayer interface {
	SendDIMSEResponse(presContextID byte, commandData []byte) error
	SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, dataset []byte) error
	GetTransferSyntax(presContextID byte) (string, error)
	// CallingAETitle returns the peer AE title negotiated at association
	// time, empty before the association phase completes.
	CallingAETitle() string
	// PollCancel opportunistically checks, within timeout, whether the peer
	// has sent a C-CANCEL-RQ. A timeout with nothing pending is not an
	// error; cancelled is true only when a C-CANCEL-RQ was actually read.
	PollCancel(timeout time.Duration) (messageIDBeingRespondedTo uint16, cancelled bool, err error)
}
