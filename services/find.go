package services

import (
	"context"
	"log/slog"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/errors"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

// FindProvider answers a single C-FIND/worklist query by appending matching
// datasets to answers. sopClassUID identifies the information model the
// query was issued against (a Q/R FIND model or the modality worklist
// model); worklist-mode tag stripping is already configured on answers.
// An error aborts the operation with a processing-failure status.
type FindProvider interface {
	Find(ctx context.Context, sopClassUID string, query *dicom.Dataset, answers *dicom.FindAnswers) error
}

// FindService implements C-FIND (query/retrieve and modality worklist) as a
// streaming DIMSE handler: every matching answer is sent as a pending
// response, followed by a single final response once the provider is done
// or the requestor cancels.
type FindService struct {
	provider FindProvider
	logger   *slog.Logger
}

// NewFindService creates a C-FIND handler backed by provider. provider may
// be nil, in which case every query fails with a processing-failure status.
func NewFindService(provider FindProvider, logger *slog.Logger) *FindService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FindService{provider: provider, logger: logger}
}

// HandleDIMSEStreaming implements interfaces.StreamingServiceHandler.
func (s *FindService) HandleDIMSEStreaming(ctx context.Context, msg *types.Message, data []byte, meta interfaces.MessageContext, responder interfaces.ResponseSender) error {
	if s.provider == nil {
		s.logger.WarnContext(ctx, "No C-FIND provider registered", "error", errors.ErrFindUnavailable)
		return responder.SendResponse(NewCFindErrorResponse(msg, types.StatusProcessingFailure), nil, meta.TransferSyntaxUID)
	}

	worklist := msg.AffectedSOPClassUID == types.ModalityWorklistInformationModelFind
	answers := dicom.NewFindAnswers(worklist)

	var level string
	if meta.Dataset != nil {
		level = meta.Dataset.GetString(dicom.TagQueryRetrieveLevel)
	}

	if err := s.provider.Find(ctx, msg.AffectedSOPClassUID, meta.Dataset, answers); err != nil {
		s.logger.WarnContext(ctx, "C-FIND provider failed", "error", err)
		return responder.SendResponse(NewCFindErrorResponse(msg, types.StatusProcessingFailure), nil, meta.TransferSyntaxUID)
	}

	if !worklist && level != "" {
		for i := 0; i < answers.Size(); i++ {
			answer := answers.Get(i)
			if !answer.HasElement(dicom.TagQueryRetrieveLevel) {
				answer.AddElement(dicom.TagQueryRetrieveLevel, dicom.VR_CS, level)
			}
		}
	}

	for i := 0; i < answers.Size(); i++ {
		if meta.IsCancelled() {
			s.logger.InfoContext(ctx, "C-FIND cancelled by requestor", "message_id", msg.MessageID, "answers_sent", i)
			return responder.SendResponse(NewCFindErrorResponse(msg, types.StatusCancel), nil, meta.TransferSyntaxUID)
		}

		emitted := answers.ExtractDatasetForEmission(i)
		if err := responder.SendResponse(NewCFindPendingResponse(msg), emitted, meta.TransferSyntaxUID); err != nil {
			return err
		}
	}

	return responder.SendResponse(NewCFindSuccessResponse(msg), nil, meta.TransferSyntaxUID)
}
