package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

// CommitmentRequestHandler records an incoming storage-commitment request
// (N-ACTION-RQ). The handler is expected to verify the referenced instances
// asynchronously and deliver the outcome later via a reverse
// N-EVENT-REPORT on a new association (the client package's
// ReportStorageCommitment); only the receipt of the request is acknowledged
// synchronously.
type CommitmentRequestHandler interface {
	OnCommitmentRequest(ctx context.Context, callingAETitle, transactionUID string, instances []types.ReferencedSOPInstance) error
}

// CommitmentReportHandler reconciles an incoming storage-commitment result
// (N-EVENT-REPORT-RQ) against the transaction this node requested earlier.
type CommitmentReportHandler interface {
	OnCommitmentReport(ctx context.Context, transactionUID string, success []types.ReferencedSOPInstance, failed []types.FailedSOPInstance) error
}

// CommitmentService implements the SCP side of the storage-commitment push
// model: N-ACTION-RQ (a peer asks us to commit) and N-EVENT-REPORT-RQ (a
// peer reports on a commitment we asked for). Register it for both
// NActionRQ and NEventReportRQ command fields.
type CommitmentService struct {
	requests       CommitmentRequestHandler
	reports        CommitmentReportHandler
	callingAETitle string
	logger         *slog.Logger
}

// NewCommitmentService creates a storage-commitment handler. Either handler
// may be nil; the corresponding message kind then fails with
// processing-failure.
func NewCommitmentService(requests CommitmentRequestHandler, reports CommitmentReportHandler, logger *slog.Logger) *CommitmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommitmentService{requests: requests, reports: reports, logger: logger}
}

// HandleDIMSE implements interfaces.ServiceHandler.
func (s *CommitmentService) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	switch msg.CommandField {
	case types.NActionRQ:
		return s.handleRequest(ctx, msg, meta)
	case types.NEventReportRQ:
		return s.handleReport(ctx, msg, meta)
	default:
		return nil, nil, fmt.Errorf("commitment service cannot handle command 0x%04x", msg.CommandField)
	}
}

func (s *CommitmentService) handleRequest(ctx context.Context, msg *types.Message, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	if status, reason := s.checkRequestPreconditions(msg, meta); status != types.StatusSuccess {
		s.logger.WarnContext(ctx, "Rejecting N-ACTION-RQ", "reason", reason)
		return newNActionResponse(msg, status), nil, nil
	}

	transactionUID, instances, err := parseCommitmentDataset(meta.Dataset)
	if err != nil {
		s.logger.WarnContext(ctx, "Malformed storage commitment request", "error", err)
		return newNActionResponse(msg, types.StatusProcessingFailure), nil, nil
	}

	if err := s.requests.OnCommitmentRequest(ctx, meta.CallingAETitle, transactionUID, instances); err != nil {
		s.logger.ErrorContext(ctx, "Storage commitment request handler failed",
			"transaction_uid", transactionUID,
			"error", err)
		return newNActionResponse(msg, types.StatusProcessingFailure), nil, nil
	}

	s.logger.InfoContext(ctx, "Storage commitment requested",
		"transaction_uid", transactionUID,
		"instances", len(instances))

	return newNActionResponse(msg, types.StatusSuccess), nil, nil
}

func (s *CommitmentService) checkRequestPreconditions(msg *types.Message, meta interfaces.MessageContext) (uint16, string) {
	if s.requests == nil {
		return types.StatusProcessingFailure, "no commitment request handler registered"
	}
	if msg.ActionTypeID != types.ActionTypeIDStorageCommitment {
		return types.StatusProcessingFailure, fmt.Sprintf("unsupported action type %d", msg.ActionTypeID)
	}
	if requested := msg.RequestedSOPClassUID; requested != "" && requested != types.StorageCommitmentPushModelSOPClass {
		return types.StatusProcessingFailure, fmt.Sprintf("unexpected requested SOP class %s", requested)
	}
	if instance := msg.RequestedSOPInstanceUID; instance != "" && instance != types.StorageCommitmentPushModelSOPInstance {
		return types.StatusProcessingFailure, fmt.Sprintf("unexpected requested SOP instance %s", instance)
	}
	if meta.Dataset == nil {
		return types.StatusProcessingFailure, "storage commitment request carries no dataset"
	}
	return types.StatusSuccess, ""
}

func (s *CommitmentService) handleReport(ctx context.Context, msg *types.Message, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	if s.reports == nil {
		s.logger.WarnContext(ctx, "No commitment report handler registered")
		return newNEventReportResponse(msg, types.StatusProcessingFailure), nil, nil
	}
	if msg.EventTypeID != types.EventTypeIDStorageCommitmentSuccess &&
		msg.EventTypeID != types.EventTypeIDStorageCommitmentFailuresExist {
		s.logger.WarnContext(ctx, "Unsupported storage commitment event type", "event_type_id", msg.EventTypeID)
		return newNEventReportResponse(msg, types.StatusProcessingFailure), nil, nil
	}
	if affected := msg.AffectedSOPClassUID; affected != "" && affected != types.StorageCommitmentPushModelSOPClass {
		s.logger.WarnContext(ctx, "Unexpected affected SOP class on commitment report", "sop_class", affected)
		return newNEventReportResponse(msg, types.StatusProcessingFailure), nil, nil
	}
	if meta.Dataset == nil {
		s.logger.WarnContext(ctx, "Storage commitment report carries no dataset")
		return newNEventReportResponse(msg, types.StatusProcessingFailure), nil, nil
	}

	transactionUID := meta.Dataset.GetString(dicom.TagTransactionUID)
	if !strings.HasPrefix(transactionUID, "2.25.") {
		s.logger.WarnContext(ctx, "Storage commitment report with foreign transaction UID",
			"transaction_uid", transactionUID)
	}

	success := parseReferencedSequence(meta.Dataset.GetSequence(dicom.TagReferencedSOPSequence))

	var failed []types.FailedSOPInstance
	if msg.EventTypeID == types.EventTypeIDStorageCommitmentFailuresExist {
		for _, item := range meta.Dataset.GetSequence(dicom.TagFailedSOPSequence) {
			failed = append(failed, types.FailedSOPInstance{
				SOPClassUID:    item.GetString(dicom.TagReferencedSOPClassUID),
				SOPInstanceUID: item.GetString(dicom.TagReferencedSOPInstanceUID),
				FailureReason:  parseFailureReason(item),
			})
		}
		if len(failed) == 0 {
			s.logger.WarnContext(ctx, "Failures-exist commitment report without failed SOP sequence",
				"transaction_uid", transactionUID)
			return newNEventReportResponse(msg, types.StatusProcessingFailure), nil, nil
		}
	}

	if err := s.reports.OnCommitmentReport(ctx, transactionUID, success, failed); err != nil {
		s.logger.ErrorContext(ctx, "Storage commitment report handler failed",
			"transaction_uid", transactionUID,
			"error", err)
		return newNEventReportResponse(msg, types.StatusProcessingFailure), nil, nil
	}

	s.logger.InfoContext(ctx, "Storage commitment reconciled",
		"transaction_uid", transactionUID,
		"committed", len(success),
		"failed", len(failed))

	return newNEventReportResponse(msg, types.StatusSuccess), nil, nil
}

// parseCommitmentDataset extracts the transaction UID and referenced
// instances from an N-ACTION-RQ dataset. The sequence is mandatory and must
// be non-empty.
func parseCommitmentDataset(dataset *dicom.Dataset) (string, []types.ReferencedSOPInstance, error) {
	transactionUID := dataset.GetString(dicom.TagTransactionUID)
	if transactionUID == "" {
		return "", nil, fmt.Errorf("missing TransactionUID")
	}

	instances := parseReferencedSequence(dataset.GetSequence(dicom.TagReferencedSOPSequence))
	if len(instances) == 0 {
		return "", nil, fmt.Errorf("missing or empty ReferencedSOPSequence")
	}

	return transactionUID, instances, nil
}

func parseReferencedSequence(items []*dicom.Dataset) []types.ReferencedSOPInstance {
	var instances []types.ReferencedSOPInstance
	for _, item := range items {
		instances = append(instances, types.ReferencedSOPInstance{
			SOPClassUID:    item.GetString(dicom.TagReferencedSOPClassUID),
			SOPInstanceUID: item.GetString(dicom.TagReferencedSOPInstanceUID),
		})
	}
	return instances
}

func parseFailureReason(item *dicom.Dataset) uint16 {
	element, ok := item.GetElement(dicom.TagFailureReason)
	if !ok {
		return types.FailureReasonProcessingFailure
	}
	switch v := element.Value.(type) {
	case uint16:
		return v
	case int:
		return uint16(v)
	case string:
		var reason uint16
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &reason); err == nil {
			return reason
		}
	}
	return types.FailureReasonProcessingFailure
}

func newNActionResponse(request *types.Message, status uint16) *types.Message {
	return &types.Message{
		CommandField:              types.NActionRSP,
		MessageIDBeingRespondedTo: request.MessageID,
		AffectedSOPClassUID:       types.StorageCommitmentPushModelSOPClass,
		AffectedSOPInstanceUID:    types.StorageCommitmentPushModelSOPInstance,
		ActionTypeID:              types.ActionTypeIDStorageCommitment,
		CommandDataSetType:        0x0101, // No dataset
		Status:                    status,
	}
}

func newNEventReportResponse(request *types.Message, status uint16) *types.Message {
	return &types.Message{
		CommandField:              types.NEventReportRSP,
		MessageIDBeingRespondedTo: request.MessageID,
		AffectedSOPClassUID:       types.StorageCommitmentPushModelSOPClass,
		AffectedSOPInstanceUID:    types.StorageCommitmentPushModelSOPInstance,
		EventTypeID:               request.EventTypeID,
		CommandDataSetType:        0x0101, // No dataset
		Status:                    status,
	}
}
