package services

import (
	"context"
	"errors"
	"testing"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

type recordedResponse struct {
	msg     *types.Message
	dataset *dicom.Dataset
}

type fakeResponder struct {
	responses []recordedResponse
	failAfter int
}

func (f *fakeResponder) SendResponse(msg *types.Message, dataset *dicom.Dataset, transferSyntaxUID string) error {
	if f.failAfter > 0 && len(f.responses) >= f.failAfter {
		return errors.New("send failed")
	}
	f.responses = append(f.responses, recordedResponse{msg: msg, dataset: dataset})
	return nil
}

type fakeFindProvider struct {
	answers []map[dicom.Tag]interface{}
	err     error
}

func (f *fakeFindProvider) Find(ctx context.Context, sopClassUID string, query *dicom.Dataset, answers *dicom.FindAnswers) error {
	if f.err != nil {
		return f.err
	}
	for _, a := range f.answers {
		answers.AddFromMap(a)
	}
	return nil
}

func findRequest(sopClassUID string) *types.Message {
	return &types.Message{
		CommandField:        0x0020, // C-FIND-RQ
		MessageID:            7,
		AffectedSOPClassUID: sopClassUID,
		CommandDataSetType:  0x0000,
	}
}

func TestFindService_NoProvider(t *testing.T) {
	service := NewFindService(nil, nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), findRequest(types.StudyRootQueryRetrieveInformationModelFind),
		nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 {
		t.Fatalf("expected exactly one response, got %d", len(responder.responses))
	}
	if responder.responses[0].msg.Status != types.StatusProcessingFailure {
		t.Errorf("Status = 0x%04x, want 0x%04x", responder.responses[0].msg.Status, types.StatusProcessingFailure)
	}
}

func TestFindService_SendsPendingThenSuccess(t *testing.T) {
	provider := &fakeFindProvider{answers: []map[dicom.Tag]interface{}{
		{dicom.TagSOPInstanceUID: "1.2.3"},
		{dicom.TagSOPInstanceUID: "1.2.4"},
	}}
	service := NewFindService(provider, nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), findRequest(types.StudyRootQueryRetrieveInformationModelFind),
		nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 3 {
		t.Fatalf("expected 2 pending + 1 final response, got %d", len(responder.responses))
	}
	for _, r := range responder.responses[:2] {
		if r.msg.Status != types.StatusPending {
			t.Errorf("Status = 0x%04x, want pending", r.msg.Status)
		}
	}
	final := responder.responses[2]
	if final.msg.Status != types.StatusSuccess {
		t.Errorf("final Status = 0x%04x, want success", final.msg.Status)
	}
}

func TestFindService_WorklistStripsInstanceUID(t *testing.T) {
	provider := &fakeFindProvider{answers: []map[dicom.Tag]interface{}{
		{dicom.TagSOPInstanceUID: "1.2.3"},
	}}
	service := NewFindService(provider, nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), findRequest(types.ModalityWorklistInformationModelFind),
		nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	pending := responder.responses[0]
	if pending.dataset != nil && pending.dataset.HasElement(dicom.TagSOPInstanceUID) {
		t.Error("worklist answer still carries SOPInstanceUID")
	}
}

func TestFindService_CancelledStopsEarly(t *testing.T) {
	provider := &fakeFindProvider{answers: []map[dicom.Tag]interface{}{
		{dicom.TagSOPInstanceUID: "1.2.3"},
		{dicom.TagSOPInstanceUID: "1.2.4"},
		{dicom.TagSOPInstanceUID: "1.2.5"},
	}}
	service := NewFindService(provider, nil)
	responder := &fakeResponder{}

	cancelOnSecondCheck := 0
	meta := interfaces.MessageContext{
		Cancelled: func() bool {
			cancelOnSecondCheck++
			return cancelOnSecondCheck >= 2
		},
	}

	err := service.HandleDIMSEStreaming(context.Background(), findRequest(types.StudyRootQueryRetrieveInformationModelFind),
		nil, meta, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 2 {
		t.Fatalf("expected 1 pending + 1 cancel response, got %d", len(responder.responses))
	}
	final := responder.responses[len(responder.responses)-1]
	if final.msg.Status != types.StatusCancel {
		t.Errorf("final Status = 0x%04x, want cancel", final.msg.Status)
	}
}

func TestFindService_ProviderErrorSendsFailure(t *testing.T) {
	provider := &fakeFindProvider{err: errors.New("backend unavailable")}
	service := NewFindService(provider, nil)
	responder := &fakeResponder{}

	err := service.HandleDIMSEStreaming(context.Background(), findRequest(types.StudyRootQueryRetrieveInformationModelFind),
		nil, interfaces.MessageContext{}, responder)
	if err != nil {
		t.Fatalf("HandleDIMSEStreaming() error = %v", err)
	}
	if len(responder.responses) != 1 || responder.responses[0].msg.Status != types.StatusProcessingFailure {
		t.Fatalf("expected single processing-failure response, got %+v", responder.responses)
	}
}
