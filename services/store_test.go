package services

import (
	"context"
	"errors"
	"testing"

	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/types"
)

type fakeStoreProvider struct {
	status uint16
	err    error

	gotSOPClass    string
	gotSOPInstance string
	gotTS          string
	gotData        []byte
}

func (f *fakeStoreProvider) Store(ctx context.Context, sopClassUID, sopInstanceUID, transferSyntaxUID string, data []byte, dataset *dicom.Dataset) (uint16, error) {
	f.gotSOPClass = sopClassUID
	f.gotSOPInstance = sopInstanceUID
	f.gotTS = transferSyntaxUID
	f.gotData = data
	return f.status, f.err
}

func storeRequest() *types.Message {
	return &types.Message{
		CommandField:           types.CStoreRQ,
		MessageID:              4,
		AffectedSOPClassUID:    types.CTImageStorage,
		AffectedSOPInstanceUID: "1.2.3.4",
		CommandDataSetType:     0x0000,
	}
}

func TestStoreService_Success(t *testing.T) {
	provider := &fakeStoreProvider{status: types.StatusSuccess}
	service := NewStoreService(provider, nil)

	data := []byte{0x01, 0x02}
	meta := interfaces.MessageContext{TransferSyntaxUID: types.ExplicitVRLittleEndian}

	resp, dataset, err := service.HandleDIMSE(context.Background(), storeRequest(), data, meta)
	if err != nil {
		t.Fatalf("HandleDIMSE() error = %v", err)
	}
	if dataset != nil {
		t.Error("C-STORE-RSP must not carry a dataset")
	}
	if resp.CommandField != types.CStoreRSP {
		t.Errorf("response command = 0x%04X, want C-STORE-RSP", resp.CommandField)
	}
	if resp.Status != types.StatusSuccess {
		t.Errorf("status = 0x%04X, want success", resp.Status)
	}
	if resp.MessageIDBeingRespondedTo != 4 {
		t.Errorf("message id being responded to = %d, want 4", resp.MessageIDBeingRespondedTo)
	}

	if provider.gotSOPInstance != "1.2.3.4" {
		t.Errorf("provider saw SOP instance %q", provider.gotSOPInstance)
	}
	if provider.gotTS != types.ExplicitVRLittleEndian {
		t.Errorf("provider saw transfer syntax %q", provider.gotTS)
	}
	if len(provider.gotData) != 2 {
		t.Errorf("provider saw %d data bytes, want 2", len(provider.gotData))
	}
}

func TestStoreService_WarningStatusPassedThrough(t *testing.T) {
	provider := &fakeStoreProvider{status: types.StatusStoreCoercion}
	service := NewStoreService(provider, nil)

	resp, _, err := service.HandleDIMSE(context.Background(), storeRequest(), nil, interfaces.MessageContext{})
	if err != nil {
		t.Fatalf("HandleDIMSE() error = %v", err)
	}
	if resp.Status != types.StatusStoreCoercion {
		t.Errorf("status = 0x%04X, want coercion warning 0xB000", resp.Status)
	}
}

func TestStoreService_ProviderError(t *testing.T) {
	provider := &fakeStoreProvider{err: errors.New("disk full")}
	service := NewStoreService(provider, nil)

	resp, _, err := service.HandleDIMSE(context.Background(), storeRequest(), nil, interfaces.MessageContext{})
	if err != nil {
		t.Fatalf("provider errors must become statuses, not handler errors: %v", err)
	}
	if resp.Status != types.StatusProcessingFailure {
		t.Errorf("status = 0x%04X, want processing failure", resp.Status)
	}
}

func TestStoreService_NoProvider(t *testing.T) {
	service := NewStoreService(nil, nil)

	resp, _, err := service.HandleDIMSE(context.Background(), storeRequest(), nil, interfaces.MessageContext{})
	if err != nil {
		t.Fatalf("HandleDIMSE() error = %v", err)
	}
	if resp.Status != types.StatusStoreOutOfResources {
		t.Errorf("status = 0x%04X, want out-of-resources", resp.Status)
	}
}
