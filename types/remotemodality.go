package types

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caretech-io/dicomgate/errors"
)

// Manufacturer tags a remote modality with the vendor-specific query-shaping
// quirks the SCU applies to outgoing C-FIND identifiers.
type Manufacturer string

const (
	// ManufacturerGeneric applies no rewrites and injects missing level
	// identifier tags as empty strings.
	ManufacturerGeneric Manufacturer = "Generic"
	// ManufacturerGenericNoUniversalWildcard replaces every value equal to
	// "*" with an empty string before the query leaves the client.
	ManufacturerGenericNoUniversalWildcard Manufacturer = "GenericNoUniversalWildcard"
	// ManufacturerGenericNoWildcardInDates does the same replacement, but
	// only for elements whose value representation is Date.
	ManufacturerGenericNoWildcardInDates Manufacturer = "GenericNoWildcardInDates"
	// ManufacturerGE injects missing level identifier tags as "*" instead of
	// the empty string.
	ManufacturerGE Manufacturer = "GE"
)

// ParseManufacturer maps a config-file string onto a Manufacturer value. An
// empty string means Generic; anything unrecognized is an error rather than
// a silent fallback, since a typo here changes wire behavior.
func ParseManufacturer(s string) (Manufacturer, error) {
	switch Manufacturer(s) {
	case "", ManufacturerGeneric:
		return ManufacturerGeneric, nil
	case ManufacturerGenericNoUniversalWildcard:
		return ManufacturerGenericNoUniversalWildcard, nil
	case ManufacturerGenericNoWildcardInDates:
		return ManufacturerGenericNoWildcardInDates, nil
	case ManufacturerGE:
		return ManufacturerGE, nil
	default:
		return ManufacturerGeneric, fmt.Errorf("unknown manufacturer %q", s)
	}
}

// RequestKind names one DIMSE verb for per-modality permission checks.
type RequestKind int

const (
	RequestEcho RequestKind = iota
	RequestStore
	RequestFind
	RequestGet
	RequestMove
	RequestNAction
	RequestNEventReport
)

func (k RequestKind) String() string {
	switch k {
	case RequestEcho:
		return "Echo"
	case RequestStore:
		return "Store"
	case RequestFind:
		return "Find"
	case RequestGet:
		return "Get"
	case RequestMove:
		return "Move"
	case RequestNAction:
		return "N-Action"
	case RequestNEventReport:
		return "N-EventReport"
	default:
		return "Unknown"
	}
}

// RemoteModality describes one configured DICOM peer: where to reach it,
// which vendor quirks apply when querying it, and which DIMSE verbs it is
// allowed to use against this server.
type RemoteModality struct {
	AETitle      string
	Host         string
	Port         int
	Manufacturer Manufacturer

	AllowEcho         bool
	AllowStore        bool
	AllowFind         bool
	AllowGet          bool
	AllowMove         bool
	AllowNAction      bool
	AllowNEventReport bool
}

// NewRemoteModality builds a modality entry with every verb allowed, after
// validating the AE title and port.
func NewRemoteModality(aeTitle, host string, port int, manufacturer Manufacturer) (RemoteModality, error) {
	m := RemoteModality{
		AETitle:      aeTitle,
		Host:         host,
		Port:         port,
		Manufacturer: manufacturer,

		AllowEcho:         true,
		AllowStore:        true,
		AllowFind:         true,
		AllowGet:          true,
		AllowMove:         true,
		AllowNAction:      true,
		AllowNEventReport: true,
	}
	if err := m.Validate(); err != nil {
		return RemoteModality{}, err
	}
	return m, nil
}

// Validate checks the structural constraints on a modality entry: AE title
// length, host length, and port range.
func (m RemoteModality) Validate() error {
	if err := ValidateAETitle(m.AETitle); err != nil {
		return err
	}
	if len(m.Host) >= 247 {
		return fmt.Errorf("%w: host name too long (%d chars)", errors.ErrParameterOutOfRange, len(m.Host))
	}
	if m.Port < 1 || m.Port > 65534 {
		return fmt.Errorf("%w: port %d outside [1,65534]", errors.ErrParameterOutOfRange, m.Port)
	}
	return nil
}

// Address returns the host:port string the client dials for this modality.
func (m RemoteModality) Address() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// IsAllowed reports whether kind is permitted for this modality.
func (m RemoteModality) IsAllowed(kind RequestKind) bool {
	switch kind {
	case RequestEcho:
		return m.AllowEcho
	case RequestStore:
		return m.AllowStore
	case RequestFind:
		return m.AllowFind
	case RequestGet:
		return m.AllowGet
	case RequestMove:
		return m.AllowMove
	case RequestNAction:
		return m.AllowNAction
	case RequestNEventReport:
		return m.AllowNEventReport
	default:
		return false
	}
}

// allVerbsAllowed reports whether the entry can use the compact tuple form.
func (m RemoteModality) allVerbsAllowed() bool {
	return m.AllowEcho && m.AllowStore && m.AllowFind && m.AllowGet &&
		m.AllowMove && m.AllowNAction && m.AllowNEventReport
}

// remoteModalityRecord is the explicit YAML form, used whenever any verb is
// disallowed. AllowStorageCommitment expands to both N-Action and
// N-EventReport on load.
type remoteModalityRecord struct {
	AETitle      string `yaml:"AET"`
	Host         string `yaml:"Host"`
	Port         int    `yaml:"Port"`
	Manufacturer string `yaml:"Manufacturer,omitempty"`

	AllowEcho              *bool `yaml:"AllowEcho,omitempty"`
	AllowStore             *bool `yaml:"AllowStore,omitempty"`
	AllowFind              *bool `yaml:"AllowFind,omitempty"`
	AllowGet               *bool `yaml:"AllowGet,omitempty"`
	AllowMove              *bool `yaml:"AllowMove,omitempty"`
	AllowNAction           *bool `yaml:"AllowNAction,omitempty"`
	AllowNEventReport      *bool `yaml:"AllowNEventReport,omitempty"`
	AllowStorageCommitment *bool `yaml:"AllowStorageCommitment,omitempty"`
}

// UnmarshalYAML accepts either the compact [aet, host, port, manufacturer?]
// tuple (all verbs allowed) or the explicit record form with Allow* flags.
func (m *RemoteModality) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return m.unmarshalTuple(value)
	case yaml.MappingNode:
		return m.unmarshalRecord(value)
	default:
		return fmt.Errorf("remote modality must be a sequence or a mapping, got %v", value.Kind)
	}
}

func (m *RemoteModality) unmarshalTuple(value *yaml.Node) error {
	var tuple []string
	if err := value.Decode(&tuple); err != nil {
		return fmt.Errorf("remote modality tuple: %w", err)
	}
	if len(tuple) < 3 || len(tuple) > 4 {
		return fmt.Errorf("remote modality tuple needs 3 or 4 entries, got %d", len(tuple))
	}

	var port int
	if _, err := fmt.Sscanf(tuple[2], "%d", &port); err != nil {
		return fmt.Errorf("remote modality port %q: %w", tuple[2], err)
	}

	manufacturer := ManufacturerGeneric
	if len(tuple) == 4 {
		var err error
		if manufacturer, err = ParseManufacturer(tuple[3]); err != nil {
			return err
		}
	}

	parsed, err := NewRemoteModality(strings.TrimSpace(tuple[0]), strings.TrimSpace(tuple[1]), port, manufacturer)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *RemoteModality) unmarshalRecord(value *yaml.Node) error {
	var record remoteModalityRecord
	if err := value.Decode(&record); err != nil {
		return fmt.Errorf("remote modality record: %w", err)
	}

	manufacturer, err := ParseManufacturer(record.Manufacturer)
	if err != nil {
		return err
	}

	parsed, err := NewRemoteModality(record.AETitle, record.Host, record.Port, manufacturer)
	if err != nil {
		return err
	}

	setIf := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setIf(&parsed.AllowEcho, record.AllowEcho)
	setIf(&parsed.AllowStore, record.AllowStore)
	setIf(&parsed.AllowFind, record.AllowFind)
	setIf(&parsed.AllowGet, record.AllowGet)
	setIf(&parsed.AllowMove, record.AllowMove)
	setIf(&parsed.AllowNAction, record.AllowNAction)
	setIf(&parsed.AllowNEventReport, record.AllowNEventReport)
	if record.AllowStorageCommitment != nil {
		parsed.AllowNAction = *record.AllowStorageCommitment
		parsed.AllowNEventReport = *record.AllowStorageCommitment
	}

	*m = parsed
	return nil
}

// MarshalYAML emits the compact tuple when every verb is allowed, the
// explicit record otherwise. Storage-commitment flags collapse back to
// AllowStorageCommitment when N-Action and N-EventReport agree.
func (m RemoteModality) MarshalYAML() (interface{}, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if m.allVerbsAllowed() {
		tuple := []string{m.AETitle, m.Host, fmt.Sprintf("%d", m.Port)}
		if m.Manufacturer != "" && m.Manufacturer != ManufacturerGeneric {
			tuple = append(tuple, string(m.Manufacturer))
		}
		return tuple, nil
	}

	record := remoteModalityRecord{
		AETitle: m.AETitle,
		Host:    m.Host,
		Port:    m.Port,
	}
	if m.Manufacturer != "" && m.Manufacturer != ManufacturerGeneric {
		record.Manufacturer = string(m.Manufacturer)
	}
	boolPtr := func(b bool) *bool { return &b }
	record.AllowEcho = boolPtr(m.AllowEcho)
	record.AllowStore = boolPtr(m.AllowStore)
	record.AllowFind = boolPtr(m.AllowFind)
	record.AllowGet = boolPtr(m.AllowGet)
	record.AllowMove = boolPtr(m.AllowMove)
	if m.AllowNAction == m.AllowNEventReport {
		record.AllowStorageCommitment = boolPtr(m.AllowNAction)
	} else {
		record.AllowNAction = boolPtr(m.AllowNAction)
		record.AllowNEventReport = boolPtr(m.AllowNEventReport)
	}
	return record, nil
}

// ValidateAETitle checks the structural constraint on an application entity
// title: non-empty and at most 16 characters. Characters outside [A-Z0-9_-]
// are allowed but discouraged, so no character-class check is made here.
func ValidateAETitle(aeTitle string) error {
	if aeTitle == "" {
		return fmt.Errorf("%w: empty", errors.ErrBadAETitle)
	}
	if len(aeTitle) > 16 {
		return fmt.Errorf("%w: %q longer than 16 characters", errors.ErrBadAETitle, aeTitle)
	}
	return nil
}
