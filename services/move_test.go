package services

import (
	"context"
	"errors"
	"testing"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

type fakeMoveProvider struct {
	subOpCount int
	instances  []MoveInstance
	err        error
}

func (f *fakeMoveProvider) Move(ctx context.Context, sopClassUID string, query *dicom.Dataset) (int, func() (MoveInstance, bool), error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	i := 0
	next := func() (MoveInstance, bool) {
		if i >= len(f.instances) {
			return MoveInstance{}, false
		}
		inst := f.instances[i]
		i++
		return inst, true
	}
	return f.subOpCount, next, nil
}

type fakeResolver struct {
	address string
	ok      bool
}

func (f *fakeResolver) Resolve(aeTitle string) (string, bool) {
	return f.address, f.ok
}

func moveRequest() *types.Message {
	return &types.Message{
		CommandField:        0x0021, // C-MOVE-RQ
		MessageID:            9,
		AffectedSOPClassUID: types.StudyRootQueryRetrieveInformationModelMove,
		MoveDestination:     "REMOTE_AE",
		CommandDataSetType:  0x0000,
	}
}

func TestMoveService_NoProvider(t *testing.T) {
	service := NewMoveService(nil, &fakeResolver{ok: true}, "US", nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), moveRequest(), nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 || responder.responses[0].msg.Status != types.StatusProcessingFailure {
		t.Fatalf("expected single processing-failure response, got %+v", responder.responses)
	}
}

func TestMoveService_UnknownDestination(t *testing.T) {
	service := NewMoveService(&fakeMoveProvider{}, &fakeResolver{ok: false}, "US", nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), moveRequest(), nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 || responder.responses[0].msg.Status != types.StatusMoveDestinationUnknown {
		t.Fatalf("expected move-destination-unknown response, got %+v", responder.responses)
	}
}

func TestMoveService_ProviderError(t *testing.T) {
	service := NewMoveService(&fakeMoveProvider{err: errors.New("lookup failed")}, &fakeResolver{address: "127.0.0.1:1", ok: true}, "US", nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), moveRequest(), nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 || responder.responses[0].msg.Status != types.StatusProcessingFailure {
		t.Fatalf("expected processing-failure response, got %+v", responder.responses)
	}
}

func TestMoveService_NoMatchesSendsImmediateSuccess(t *testing.T) {
	service := NewMoveService(&fakeMoveProvider{subOpCount: 0}, &fakeResolver{address: "127.0.0.1:1", ok: true}, "US", nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), moveRequest(), nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 {
		t.Fatalf("expected single final response for an empty match set, got %d", len(responder.responses))
	}
	final := responder.responses[0]
	if final.msg.Status != types.StatusSuccess {
		t.Errorf("Status = 0x%04x, want success", final.msg.Status)
	}
	if final.msg.NumberOfCompletedSuboperations == nil || *final.msg.NumberOfCompletedSuboperations != 0 {
		t.Errorf("expected zero completed sub-operations")
	}
}

func TestMoveService_CancelledBeforeFirstSubOp(t *testing.T) {
	service := NewMoveService(&fakeMoveProvider{subOpCount: 1, instances: []MoveInstance{{SOPClassUID: "1.2", SOPInstanceUID: "1.3"}}},
		&fakeResolver{address: "127.0.0.1:1", ok: true}, "US", nil)
	responder := &fakeResponder{}
	meta := interfaces.MessageContext{Cancelled: func() bool { return true }}

	err := service.HandleDIMSEStreaming(context.Background(), moveRequest(), nil, meta, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 || responder.responses[0].msg.Status != types.StatusCancel {
		t.Fatalf("expected single cancel response, got %+v", responder.responses)
	}
}
