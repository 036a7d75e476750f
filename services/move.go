package services

import (
	"context"
	"log/slog"

	"github.com/caretech-io/dicomgate/client"
	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

// MoveInstance is one SOP instance a C-MOVE sub-operation stores to the
// move destination, already encoded in its own transfer syntax.
type MoveInstance struct {
	SOPClassUID    string
	SOPInstanceUID string
	Data           []byte
}

// MoveProvider enumerates the instances matching a C-MOVE query. next
// returns one instance at a time and reports false once exhausted;
// subOpCount is the total sub-operations the handler should expect, used to
// seed the "remaining" counter before the first sub-op completes.
type MoveProvider interface {
	Move(ctx context.Context, sopClassUID string, query *dicom.Dataset) (subOpCount int, next func() (MoveInstance, bool), err error)
}

// MoveDestinationResolver maps a Move Destination AE title, as carried by
// the C-MOVE-RQ, to a network address this server can dial for the
// sub-operation C-STORE associations.
type MoveDestinationResolver interface {
	Resolve(aeTitle string) (address string, ok bool)
}

// MoveService implements C-MOVE as a streaming DIMSE handler: it resolves
// the move destination, fans the matching instances out as C-STORE
// sub-operations tunneling the move-originator identity, and reports
// progress with intermediate C-MOVE-RSP messages.
type MoveService struct {
	provider       MoveProvider
	resolver       MoveDestinationResolver
	callingAETitle string
	logger         *slog.Logger
}

// NewMoveService creates a C-MOVE handler. callingAETitle is presented as
// the calling AE title on every sub-operation association opened to a move
// destination.
func NewMoveService(provider MoveProvider, resolver MoveDestinationResolver, callingAETitle string, logger *slog.Logger) *MoveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MoveService{provider: provider, resolver: resolver, callingAETitle: callingAETitle, logger: logger}
}

// HandleDIMSEStreaming implements interfaces.StreamingServiceHandler.
func (s *MoveService) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data []byte, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	if s.provider == nil {
		return responder.SendResponse(NewCMoveErrorResponse(msg, types.StatusProcessingFailure), nil, meta.TransferSyntaxUID)
	}

	address, ok := s.resolver.Resolve(msg.MoveDestination)
	if !ok {
		s.logger.WarnContext(ctx, "Unknown C-MOVE destination", "ae_title", msg.MoveDestination)
		return responder.SendResponse(NewCMoveErrorResponse(msg, types.StatusMoveDestinationUnknown), nil, meta.TransferSyntaxUID)
	}

	var level types.QueryLevel
	if meta.Dataset != nil {
		var err error
		if level, err = types.ParseQueryLevel(meta.Dataset.GetString(dicom.TagQueryRetrieveLevel)); err != nil {
			s.logger.WarnContext(ctx, "C-MOVE identifier has no usable retrieve level", "error", err)
			return responder.SendResponse(NewCMoveErrorResponse(msg, types.StatusIdentifierDoesNotMatchSOPClass), nil, meta.TransferSyntaxUID)
		}
	}
	s.logger.InfoContext(ctx, "C-MOVE request",
		"destination", msg.MoveDestination,
		"level", string(level),
		"message_id", msg.MessageID)

	// The move originator tunneled into each sub-operation C-STORE is the
	// AE title of the peer that issued the C-MOVE, paired with its message
	// id, so the destination can attribute the stores it receives.
	moveOriginatorAET := meta.CallingAETitle
	if moveOriginatorAET == "" {
		moveOriginatorAET = s.callingAETitle
	}

	subOpCount, next, err := s.provider.Move(ctx, msg.AffectedSOPClassUID, meta.Dataset)
	if err != nil {
		s.logger.WarnContext(ctx, "C-MOVE provider failed", "error", err)
		return responder.SendResponse(NewCMoveErrorResponse(msg, types.StatusProcessingFailure), nil, meta.TransferSyntaxUID)
	}

	var (
		completed, failed, warning uint16
		remaining                  = uint16(subOpCount)
		dest                       *client.Association
		lastWarningStatus          uint16
		hardFailure                bool
		subMessageID               uint16
	)
	defer func() {
		if dest != nil {
			dest.Close()
		}
	}()

	for {
		if meta.IsCancelled() {
			s.logger.InfoContext(ctx, "C-MOVE cancelled by requestor", "message_id", msg.MessageID)
			return responder.SendResponse(NewCMoveErrorResponse(msg, types.StatusCancel), nil, meta.TransferSyntaxUID)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		instance, more := next()
		if !more {
			break
		}
		remaining--

		if dest == nil {
			dest, err = client.Connect(address, client.Config{
				CallingAETitle: s.callingAETitle,
				CalledAETitle:  msg.MoveDestination,
				Logger:         s.logger,
			})
			if err != nil {
				s.logger.WarnContext(ctx, "Failed to open sub-operation association", "destination", msg.MoveDestination, "error", err)
				failed++
				hardFailure = true
				continue
			}
		}

		subMessageID++
		storeResp, err := dest.SendCStore(&client.CStoreRequest{
			SOPClassUID:       instance.SOPClassUID,
			SOPInstanceUID:    instance.SOPInstanceUID,
			Data:              instance.Data,
			MessageID:         subMessageID,
			MoveOriginatorAET: moveOriginatorAET,
			MoveOriginatorID:  msg.MessageID,
		})
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "C-STORE sub-operation failed", "sop_instance", instance.SOPInstanceUID, "error", err)
			failed++
			hardFailure = true
		case storeResp.Status == types.StatusSuccess:
			completed++
		case types.IsWarningBand(storeResp.Status):
			warning++
			lastWarningStatus = storeResp.Status
		default:
			failed++
			hardFailure = true
		}

		if err := responder.SendResponse(NewCMovePendingResponse(msg, completed, failed, warning, remaining), nil, meta.TransferSyntaxUID); err != nil {
			return err
		}
	}

	switch {
	case failed == 0:
		return responder.SendResponse(NewCMoveSuccessResponse(msg, completed, failed, warning), nil, meta.TransferSyntaxUID)
	case !hardFailure:
		finalRemaining := uint16(0)
		return responder.SendResponse(
			NewResponseBuilder(msg).CMoveResponse(lastWarningStatus, &completed, &failed, &warning, &finalRemaining),
			nil, meta.TransferSyntaxUID)
	default:
		finalRemaining := uint16(0)
		return responder.SendResponse(
			NewResponseBuilder(msg).CMoveResponse(types.StatusFailure, &completed, &failed, &warning, &finalRemaining),
			nil, meta.TransferSyntaxUID)
	}
}
