package types

import (
	stderrors "errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/caretech-io/dicomgate/errors"
)

func TestRemoteModality_UnmarshalTuple(t *testing.T) {
	var m RemoteModality
	if err := yaml.Unmarshal([]byte(`["ORTHANC", "192.168.1.5", "4242"]`), &m); err != nil {
		t.Fatalf("unmarshal tuple failed: %v", err)
	}

	if m.AETitle != "ORTHANC" || m.Host != "192.168.1.5" || m.Port != 4242 {
		t.Errorf("parsed modality = %+v", m)
	}
	if m.Manufacturer != ManufacturerGeneric {
		t.Errorf("manufacturer = %q, want Generic", m.Manufacturer)
	}
	for _, kind := range []RequestKind{RequestEcho, RequestStore, RequestFind, RequestGet, RequestMove, RequestNAction, RequestNEventReport} {
		if !m.IsAllowed(kind) {
			t.Errorf("tuple form should allow every verb, %s denied", kind)
		}
	}
}

func TestRemoteModality_UnmarshalTupleWithManufacturer(t *testing.T) {
	var m RemoteModality
	if err := yaml.Unmarshal([]byte(`["GE_PACS", "pacs.local", "104", "GE"]`), &m); err != nil {
		t.Fatalf("unmarshal tuple failed: %v", err)
	}
	if m.Manufacturer != ManufacturerGE {
		t.Errorf("manufacturer = %q, want GE", m.Manufacturer)
	}
}

func TestRemoteModality_UnmarshalRecord(t *testing.T) {
	doc := `
AET: PACS1
Host: 10.0.0.9
Port: 11112
AllowEcho: true
AllowStore: false
AllowStorageCommitment: true
`
	var m RemoteModality
	if err := yaml.Unmarshal([]byte(doc), &m); err != nil {
		t.Fatalf("unmarshal record failed: %v", err)
	}

	if m.AllowStore {
		t.Error("AllowStore should be false")
	}
	if !m.AllowEcho || !m.AllowFind {
		t.Error("unset verbs should default to allowed")
	}
	if !m.AllowNAction || !m.AllowNEventReport {
		t.Error("AllowStorageCommitment should expand to both N-Action and N-EventReport")
	}
}

func TestRemoteModality_MarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		modality func() RemoteModality
	}{
		{
			name: "all verbs tuple",
			modality: func() RemoteModality {
				m, _ := NewRemoteModality("ORTHANC", "orthanc", 4242, ManufacturerGeneric)
				return m
			},
		},
		{
			name: "restricted record",
			modality: func() RemoteModality {
				m, _ := NewRemoteModality("PACS2", "pacs2", 104, ManufacturerGE)
				m.AllowMove = false
				m.AllowNAction = false
				m.AllowNEventReport = false
				return m
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.modality()
			encoded, err := yaml.Marshal(original)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}

			var decoded RemoteModality
			if err := yaml.Unmarshal(encoded, &decoded); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if decoded != original {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, original)
			}
		})
	}
}

func TestRemoteModality_Validate(t *testing.T) {
	tests := []struct {
		name    string
		aeTitle string
		host    string
		port    int
		wantErr error
	}{
		{name: "valid", aeTitle: "OK", host: "h", port: 104},
		{name: "empty aet", aeTitle: "", host: "h", port: 104, wantErr: errors.ErrBadAETitle},
		{name: "long aet", aeTitle: "SEVENTEEN_CHARS__", host: "h", port: 104, wantErr: errors.ErrBadAETitle},
		{name: "port zero", aeTitle: "OK", host: "h", port: 0, wantErr: errors.ErrParameterOutOfRange},
		{name: "port too high", aeTitle: "OK", host: "h", port: 65535, wantErr: errors.ErrParameterOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRemoteModality(tt.aeTitle, tt.host, tt.port, ManufacturerGeneric)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !stderrors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseManufacturer(t *testing.T) {
	if m, err := ParseManufacturer(""); err != nil || m != ManufacturerGeneric {
		t.Errorf("empty string should parse as Generic, got %q, %v", m, err)
	}
	if _, err := ParseManufacturer("Siemens"); err == nil {
		t.Error("unknown manufacturer should be an error")
	}
}
