package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

// StoreProvider persists one received instance. data is the dataset exactly
// as it arrived on the wire, encoded in transferSyntaxUID; dataset is the
// parsed form (nil when parsing failed, which a provider may still accept
// since the raw bytes are authoritative). The returned status must come from
// the C-STORE status table: success, one of the 0xB000-band warnings for
// coercion/discard, or a failure code.
type StoreProvider interface {
	Store(ctx context.Context, sopClassUID, sopInstanceUID, transferSyntaxUID string, data []byte, dataset *dicom.Dataset) (uint16, error)
}

// StoreService implements the C-STORE SCP side: it hands the received
// dataset to a provider and converts the provider's verdict into a
// C-STORE-RSP.
type StoreService struct {
	provider StoreProvider
	logger   *slog.Logger
}

// NewStoreService creates a C-STORE handler backed by provider. provider
// may be nil, in which case every store fails with out-of-resources.
func NewStoreService(provider StoreProvider, logger *slog.Logger) *StoreService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreService{provider: provider, logger: logger}
}

// HandleDIMSE implements interfaces.ServiceHandler.
func (s *StoreService) HandleDIMSE(ctx context.Context, msg *types.Message, data []byte, meta interfaces.MessageContext) (*types.Message, *dicom.Dataset, error) {
	if s.provider == nil {
		s.logger.WarnContext(ctx, "No C-STORE provider registered",
			"sop_instance", msg.AffectedSOPInstanceUID)
		return NewCStoreResponse(msg, types.StatusStoreOutOfResources), nil, nil
	}

	if msg.MoveOriginatorAET != "" {
		s.logger.DebugContext(ctx, "C-STORE is a C-MOVE sub-operation",
			"move_originator_ae", msg.MoveOriginatorAET,
			"move_originator_id", msg.MoveOriginatorID)
	}

	status, err := s.provider.Store(ctx, msg.AffectedSOPClassUID, msg.AffectedSOPInstanceUID, meta.TransferSyntaxUID, data, meta.Dataset)
	if err != nil {
		s.logger.ErrorContext(ctx, "C-STORE provider failed",
			"sop_instance", msg.AffectedSOPInstanceUID,
			"error", err)
		return NewCStoreResponse(msg, types.StatusProcessingFailure), nil, nil
	}

	if status != types.StatusSuccess {
		s.logger.WarnContext(ctx, "C-STORE completed with non-success status",
			"sop_instance", msg.AffectedSOPInstanceUID,
			"status", fmt.Sprintf("0x%04x", status))
	}

	return NewCStoreResponse(msg, status), nil, nil
}
