package client

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/caretech-io/dicomgate/pdu"
	"github.com/caretech-io/dicomgate/types"
)

// Mode selects which family of presentation contexts Open builds.
type Mode int

const (
	// ModeGeneric registers every reserved, explicitly-registered, and
	// default storage SOP class.
	ModeGeneric Mode = iota
	// ModeRequestStorageCommitment registers a single context for
	// StorageCommitmentPushModelSOPClass in the default (SCU) role.
	ModeRequestStorageCommitment
	// ModeReportStorageCommitment registers a single context for
	// StorageCommitmentPushModelSOPClass in the SCP role, since the reply is
	// sent back to the peer that originally requested commitment.
	ModeReportStorageCommitment
)

// maxSOPClasses is the presentation-context ceiling: each SOP
// class costs two context IDs and the peer supports at most 128.
const maxSOPClasses = 64

// reservedSOPClasses are always registered in ModeGeneric, ahead of any
// explicit or default storage classes, and never evicted.
var reservedSOPClasses = []string{
	types.VerificationSOPClass,
	types.PatientRootQueryRetrieveInformationModelFind,
	types.StudyRootQueryRetrieveInformationModelFind,
	types.PatientStudyOnlyQueryRetrieveInformationModelFind,
	types.PatientRootQueryRetrieveInformationModelMove,
	types.StudyRootQueryRetrieveInformationModelMove,
	types.PatientStudyOnlyQueryRetrieveInformationModelMove,
	types.PatientRootQueryRetrieveInformationModelGet,
	types.StudyRootQueryRetrieveInformationModelGet,
	types.PatientStudyOnlyQueryRetrieveInformationModelGet,
	types.ModalityWorklistInformationModelFind,
}

// defaultStorageSOPClasses seeds the client's default storage-class set: a
// short list of the most commonly exchanged storage SOP classes, evicted
// first (highest UID, lexicographic) whenever the 64-class ceiling is
// threatened by a dynamically-registered class.
var defaultStorageSOPClasses = []string{
	types.CTImageStorage,
	types.MRImageStorage,
	types.UltrasoundImageStorage,
	types.SecondaryCaptureImageStorage,
	types.XRayAngiographicImageStorage,
	types.NuclearMedicineImageStorage,
	types.PETImageStorage,
	types.RTImageStorage,
	types.RTDoseStorage,
	types.RTStructureSetStorage,
	types.RTPlanStorage,
	types.EnhancedCTImageStorage,
	types.EnhancedMRImageStorage,
	types.DigitalXRayImageStorageForPresentation,
	types.ComputedRadiographyImageStorage,
	types.EncapsulatedPDFStorage,
}

// Association represents a client-side DICOM association
type Association struct {
	conn                      net.Conn
	callingAETitle            string
	calledAETitle             string
	maxPDULength              uint32
	presentationCtxs          map[byte]*PresentationContext
	logger                    *slog.Logger
	preferredTransferSyntaxes []string

	mode              Mode
	explicitSOPClass  []string // dynamically registered, insertion order
	defaultSOPClasses []string // mutable copy of defaultStorageSOPClasses, shrinks under eviction

	manufacturer types.Manufacturer
	nextMsgID    uint16

	address string
	config  Config
}

// nextMessageID returns the association's next monotonically increasing
// DIMSE message id. IDs are per-association; the first request gets 1.
func (a *Association) nextMessageID() uint16 {
	a.nextMsgID++
	if a.nextMsgID == 0 {
		a.nextMsgID = 1
	}
	return a.nextMsgID
}

// SetPreferredTransferSyntaxes replaces the transfer-syntax list proposed
// for every context the next time the association is (re-)opened. Used by
// the store path when an instance's encoding forces a renegotiation.
func (a *Association) SetPreferredTransferSyntaxes(syntaxes []string) {
	a.preferredTransferSyntaxes = append([]string(nil), syntaxes...)
}

// PreferredTransferSyntax returns the highest-preference transfer syntax
// this association proposes.
func (a *Association) PreferredTransferSyntax() string {
	if len(a.preferredTransferSyntaxes) == 0 {
		return types.ImplicitVRLittleEndian
	}
	return a.preferredTransferSyntaxes[0]
}

// registeredSOPClasses returns reserved+explicit+default in that priority
// order, the set Open(ModeGeneric) turns into presentation contexts.
func (a *Association) registeredSOPClasses() []string {
	classes := make([]string, 0, len(reservedSOPClasses)+len(a.explicitSOPClass)+len(a.defaultSOPClasses))
	classes = append(classes, reservedSOPClasses...)
	classes = append(classes, a.explicitSOPClass...)
	classes = append(classes, a.defaultSOPClasses...)
	return classes
}

// hasSOPClass reports whether uid is already covered by the reserved,
// explicit, or default sets.
func (a *Association) hasSOPClass(uid string) bool {
	for _, c := range a.registeredSOPClasses() {
		if c == uid {
			return true
		}
	}
	return false
}

// RegisterStorageClass ensures uid has a presentation context the next time
// the association is (re-)opened. It implements the dynamic SOP-class
// registration algorithm: a newly seen class is added to the
// explicit set; if reserved+explicit alone would exceed the 64-class
// ceiling, the entire default set is cleared; otherwise default classes are
// evicted one at a time, highest UID first (lexicographic-descending),
// until the budget holds. Returns true if the registered-class set changed,
// meaning the caller must close and reopen the association for uid to be
// negotiable.
func (a *Association) RegisterStorageClass(uid string) bool {
	if a.hasSOPClass(uid) {
		return false
	}

	a.explicitSOPClass = append(a.explicitSOPClass, uid)

	total := len(reservedSOPClasses) + len(a.explicitSOPClass)
	if total > maxSOPClasses {
		if len(a.defaultSOPClasses) > 0 {
			a.logger.Debug("Clearing default SOP classes to stay under ceiling",
				"total_explicit", total, "ceiling", maxSOPClasses)
			a.defaultSOPClasses = nil
		}
		return true
	}

	for total+len(a.defaultSOPClasses) > maxSOPClasses {
		evictIdx := highestLexicographicIndex(a.defaultSOPClasses)
		a.logger.Debug("Evicting default SOP class to stay under ceiling",
			"evicted", a.defaultSOPClasses[evictIdx])
		a.defaultSOPClasses = append(a.defaultSOPClasses[:evictIdx], a.defaultSOPClasses[evictIdx+1:]...)
	}

	return true
}

// highestLexicographicIndex returns the index of the lexicographically
// greatest UID in classes. classes is assumed non-empty by the caller.
func highestLexicographicIndex(classes []string) int {
	sorted := append([]string(nil), classes...)
	sort.Strings(sorted)
	highest := sorted[len(sorted)-1]
	for i, c := range classes {
		if c == highest {
			return i
		}
	}
	return 0
}

// PresentationContext holds negotiated presentation context info
type PresentationContext struct {
	ID             byte
	AbstractSyntax string
	TransferSyntax string
	Accepted       bool
}

// Config holds client configuration
type Config struct {
	CallingAETitle            string
	CalledAETitle             string
	MaxPDULength              uint32
	ConnectTimeout            time.Duration      // Timeout for establishing connection (default: process-wide default)
	ReadTimeout               time.Duration      // Timeout for read operations (default: process-wide default)
	WriteTimeout              time.Duration      // Timeout for write operations (default: process-wide default)
	Logger                    *slog.Logger       // Logger for the association (default: slog.Default())
	PreferredTransferSyntaxes []string           // Transfer syntaxes to propose (default: Implicit VR, Explicit VR)
	Mode                      Mode               // Which family of presentation contexts to negotiate (default: ModeGeneric)
	Manufacturer              types.Manufacturer // Peer vendor quirks applied to outgoing queries (default: Generic)
}

// Connect establishes a DICOM association with a remote SCP. Timeout fields
// left zero fall back to the process-wide default timeout (SetDefaultTimeout),
// read once here at construction.
func Connect(address string, config Config) (*Association, error) {
	if config.MaxPDULength == 0 {
		config.MaxPDULength = 16384 // Default 16KB
	}
	processDefault := DefaultTimeout()
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = processDefault
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = processDefault
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = processDefault
	}

	// Establish TCP connection with timeout
	dialer := &net.Dialer{
		Timeout: config.ConnectTimeout,
	}
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Set initial read/write timeouts (zero leaves reads/writes blocking)
	if config.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(config.ReadTimeout)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}
	if config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(config.WriteTimeout)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	// Set logger
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Set default transfer syntaxes if not provided. Implicit VR Little
	// Endian leads: every conformant SCP accepts it, so a first store never
	// forces a renegotiation.
	transferSyntaxes := config.PreferredTransferSyntaxes
	if len(transferSyntaxes) == 0 {
		transferSyntaxes = []string{
			types.ImplicitVRLittleEndian,
			types.ExplicitVRLittleEndian,
		}
	}

	assoc := &Association{
		conn:                      conn,
		callingAETitle:            config.CallingAETitle,
		calledAETitle:             config.CalledAETitle,
		maxPDULength:              config.MaxPDULength,
		presentationCtxs:          make(map[byte]*PresentationContext),
		logger:                    logger,
		preferredTransferSyntaxes: transferSyntaxes,
		mode:                      config.Mode,
		defaultSOPClasses:         append([]string(nil), defaultStorageSOPClasses...),
		manufacturer:              config.Manufacturer,
		address:                   address,
		config:                    config,
	}

	// Send association request
	if err := assoc.sendAssociateRQ(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send A-ASSOCIATE-RQ: %w", err)
	}

	// Wait for association accept
	if err := assoc.receiveAssociateAC(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to receive A-ASSOCIATE-AC: %w", err)
	}

	logger.Info("DICOM association established",
		"remote_addr", address,
		"calling_ae", config.CallingAETitle,
		"called_ae", config.CalledAETitle,
		"mode", config.Mode)

	return assoc, nil
}

// Close gracefully closes the association
func (a *Association) Close() error {
	// Send release request
	if err := a.sendReleaseRQ(); err != nil {
		a.logger.Warn("Failed to send release request", "error", err)
	}

	// Wait for release response (with timeout handled by TCP)
	a.receiveReleaseRP()

	return a.conn.Close()
}

// Reopen closes the current association (without a graceful release, since
// the peer may already be gone) and re-establishes it with the
// currently-registered SOP-class set. Callers use this after
// RegisterStorageClass reports a change, since a running association cannot
// grow new presentation contexts mid-flight.
func (a *Association) Reopen() error {
	a.conn.Close()

	dialer := &net.Dialer{Timeout: a.config.ConnectTimeout}
	conn, err := dialer.Dial("tcp", a.address)
	if err != nil {
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	if a.config.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(a.config.ReadTimeout)); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}
	if a.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(a.config.WriteTimeout)); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	a.conn = conn
	a.presentationCtxs = make(map[byte]*PresentationContext)

	if err := a.sendAssociateRQ(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send A-ASSOCIATE-RQ: %w", err)
	}
	if err := a.receiveAssociateAC(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to receive A-ASSOCIATE-AC: %w", err)
	}

	a.logger.Info("DICOM association reopened",
		"remote_addr", a.address,
		"explicit_sop_classes", len(a.explicitSOPClass),
		"default_sop_classes", len(a.defaultSOPClasses))

	return nil
}

// presentationContextAbstractSyntaxes returns the ordered list of abstract
// syntaxes to offer for the association's mode.
func (a *Association) presentationContextAbstractSyntaxes() []string {
	switch a.mode {
	case ModeRequestStorageCommitment, ModeReportStorageCommitment:
		return []string{types.StorageCommitmentPushModelSOPClass}
	default:
		return a.registeredSOPClasses()
	}
}

// sendAssociateRQ sends an A-ASSOCIATE-RQ PDU
func (a *Association) sendAssociateRQ() error {
	buf := make([]byte, 0, 1024)

	// Protocol version (2 bytes) = 0x0001
	buf = append(buf, 0x00, 0x01)

	// Reserved (2 bytes)
	buf = append(buf, 0x00, 0x00)

	// Called AE Title (16 bytes, space-padded)
	calledAE := make([]byte, 16)
	copy(calledAE, a.calledAETitle)
	for i := len(a.calledAETitle); i < 16; i++ {
		calledAE[i] = ' '
	}
	buf = append(buf, calledAE...)

	// Calling AE Title (16 bytes, space-padded)
	callingAE := make([]byte, 16)
	copy(callingAE, a.callingAETitle)
	for i := len(a.callingAETitle); i < 16; i++ {
		callingAE[i] = ' '
	}
	buf = append(buf, callingAE...)

	// Reserved (32 bytes)
	buf = append(buf, make([]byte, 32)...)

	// Application Context Item
	buf = append(buf, 0x10)                               // Item type
	buf = append(buf, 0x00)                               // Reserved
	buf = append(buf, 0x00, 0x15)                         // Length
	buf = append(buf, []byte("1.2.840.10008.3.1.1.1")...) // Application Context UID

	// Presentation contexts: one odd-numbered context ID per abstract
	// syntax, drawn from the reserved/explicit/default SOP-class sets (or
	// the single storage-commitment context, depending on mode).
	contextID := byte(1)
	for _, abstractSyntax := range a.presentationContextAbstractSyntaxes() {
		buf = a.addPresentationContext(buf, contextID, abstractSyntax)
		contextID += 2
	}

	// User Information Item
	buf = a.addUserInformation(buf)

	// Write PDU header
	pduHeader := make([]byte, 6)
	pduHeader[0] = pdu.TypeAssociateRQ
	pduHeader[1] = 0x00 // Reserved
	binary.BigEndian.PutUint32(pduHeader[2:6], uint32(len(buf)))

	// Send PDU
	if _, err := a.conn.Write(pduHeader); err != nil {
		return err
	}
	if _, err := a.conn.Write(buf); err != nil {
		return err
	}

	return nil
}

// addPresentationContext adds a presentation context to the buffer
func (a *Association) addPresentationContext(buf []byte, contextID byte, abstractSyntax string) []byte {
	pcStart := len(buf)

	// Presentation Context Item
	buf = append(buf, 0x20)             // Item type
	buf = append(buf, 0x00)             // Reserved
	buf = append(buf, 0x00, 0x00)       // Length placeholder
	buf = append(buf, contextID)        // Presentation context ID
	buf = append(buf, 0x00, 0x00, 0x00) // Reserved

	// Abstract Syntax Sub-Item
	buf = append(buf, 0x30)                            // Item type
	buf = append(buf, 0x00)                            // Reserved
	buf = append(buf, 0x00, byte(len(abstractSyntax))) // Length
	buf = append(buf, []byte(abstractSyntax)...)

	// Transfer Syntax Sub-Items - use configured transfer syntaxes (order matters - first is preferred)
	for _, ts := range a.preferredTransferSyntaxes {
		buf = append(buf, 0x40)                // Item type
		buf = append(buf, 0x00)                // Reserved
		buf = append(buf, 0x00, byte(len(ts))) // Length
		buf = append(buf, []byte(ts)...)
	}

	// Update Presentation Context length
	pcLength := len(buf) - pcStart - 4
	binary.BigEndian.PutUint16(buf[pcStart+2:pcStart+4], uint16(pcLength))

	// Store presentation context for later use; the negotiated transfer
	// syntax stays empty until receiveAssociateAC records the peer's choice
	a.presentationCtxs[contextID] = &PresentationContext{
		ID:             contextID,
		AbstractSyntax: abstractSyntax,
		TransferSyntax: "",
		Accepted:       false,
	}

	return buf
}

// addUserInformation adds user information to the buffer
func (a *Association) addUserInformation(buf []byte) []byte {
	uiStart := len(buf)

	// User Information Item
	buf = append(buf, 0x50)       // Item type
	buf = append(buf, 0x00)       // Reserved
	buf = append(buf, 0x00, 0x00) // Length placeholder

	// Maximum Length Sub-Item
	buf = append(buf, 0x51)       // Item type
	buf = append(buf, 0x00)       // Reserved
	buf = append(buf, 0x00, 0x04) // Length
	maxLengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLengthBytes, a.maxPDULength)
	buf = append(buf, maxLengthBytes...)

	// Implementation Class UID Sub-Item. Root 1.2.826.0.1.3680043.8.641 is
	// an unregistered-but-private UID block, not a standard transfer
	// syntax, so it can't collide with a real context negotiation.
	implClassUID := "1.2.826.0.1.3680043.8.641"
	buf = append(buf, 0x52)                          // Item type
	buf = append(buf, 0x00)                          // Reserved
	buf = append(buf, 0x00, byte(len(implClassUID))) // Length
	buf = append(buf, []byte(implClassUID)...)

	// Implementation Version Name Sub-Item
	implVersion := "DICOMGATE_1_0"
	buf = append(buf, 0x55)                         // Item type
	buf = append(buf, 0x00)                         // Reserved
	buf = append(buf, 0x00, byte(len(implVersion))) // Length
	buf = append(buf, []byte(implVersion)...)

	// SCU/SCP Role Selection Sub-Item (PS3.7 D.3.3.4). Reporting a storage
	// commitment outcome means acting as the SCP of the push-model class on
	// an association we initiated, so the role must be negotiated
	// explicitly; the default (SCU-only) covers every other mode.
	if a.mode == ModeReportStorageCommitment {
		uid := types.StorageCommitmentPushModelSOPClass
		roleItem := []byte{0x54, 0x00}
		roleLen := make([]byte, 2)
		binary.BigEndian.PutUint16(roleLen, uint16(2+len(uid)+2))
		roleItem = append(roleItem, roleLen...)
		uidLen := make([]byte, 2)
		binary.BigEndian.PutUint16(uidLen, uint16(len(uid)))
		roleItem = append(roleItem, uidLen...)
		roleItem = append(roleItem, []byte(uid)...)
		roleItem = append(roleItem, 0x00, 0x01) // SCU role off, SCP role on
		buf = append(buf, roleItem...)
	}

	// Update User Information length
	uiLength := len(buf) - uiStart - 4
	binary.BigEndian.PutUint16(buf[uiStart+2:uiStart+4], uint16(uiLength))

	return buf
}

// receiveAssociateAC receives and parses A-ASSOCIATE-AC
func (a *Association) receiveAssociateAC() error {
	// Read PDU header
	header := make([]byte, 6)
	if _, err := io.ReadFull(a.conn, header); err != nil {
		return fmt.Errorf("failed to read PDU header: %w", err)
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])

	if pduType == pdu.TypeAssociateRJ {
		return fmt.Errorf("association rejected by peer")
	}

	if pduType != pdu.TypeAssociateAC {
		return fmt.Errorf("unexpected PDU type: 0x%02x (expected A-ASSOCIATE-AC)", pduType)
	}

	// Read PDU data
	data := make([]byte, pduLength)
	if _, err := io.ReadFull(a.conn, data); err != nil {
		return fmt.Errorf("failed to read PDU data: %w", err)
	}

	// Parse presentation context results (simplified)
	// In production, you'd want to parse all items properly
	offset := 68 // Skip fixed fields and app context
	for offset+4 <= len(data) {
		itemType := data[offset]
		itemLength := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		itemEnd := offset + 4 + int(itemLength)
		if itemEnd > len(data) {
			break
		}

		if itemType == 0x21 { // Presentation Context Result
			contextID := data[offset+4]
			result := byte(0xff)
			if itemLength >= 4 {
				result = data[offset+7]
			}

			transferSyntax := ""
			subOffset := offset + 8
			for subOffset+4 <= itemEnd {
				subItemType := data[subOffset]
				subItemLength := binary.BigEndian.Uint16(data[subOffset+2 : subOffset+4])
				subItemEnd := subOffset + 4 + int(subItemLength)
				if subItemEnd > itemEnd {
					break
				}

				if subItemType == 0x40 && subItemLength > 0 {
					tsVal := string(data[subOffset+4 : subItemEnd])
					transferSyntax = strings.TrimRight(tsVal, "\x00 ")
				}

				subOffset = subItemEnd
			}

			if pc, ok := a.presentationCtxs[contextID]; ok {
				pc.Accepted = (result == 0)
				if pc.Accepted && transferSyntax != "" {
					pc.TransferSyntax = transferSyntax
				}
				a.logger.Debug("Presentation context negotiation",
					"context_id", contextID,
					"abstract_syntax", pc.AbstractSyntax,
					"result", result,
					"accepted", pc.Accepted,
					"transfer_syntax", pc.TransferSyntax)
			}
		}

		offset = itemEnd
	}

	return nil
}

// sendReleaseRQ sends an A-RELEASE-RQ PDU
func (a *Association) sendReleaseRQ() error {
	pduData := make([]byte, 6)
	pduData[0] = pdu.TypeReleaseRQ
	pduData[1] = 0x00
	binary.BigEndian.PutUint32(pduData[2:6], 4) // Length is always 4
	reserved := make([]byte, 4)

	if _, err := a.conn.Write(pduData); err != nil {
		return err
	}
	if _, err := a.conn.Write(reserved); err != nil {
		return err
	}

	return nil
}

// receiveReleaseRP receives A-RELEASE-RP (or timeout)
func (a *Association) receiveReleaseRP() error {
	header := make([]byte, 6)
	if _, err := io.ReadFull(a.conn, header); err != nil {
		return err // Connection closed or timeout
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])

	if pduType != pdu.TypeReleaseRP {
		return fmt.Errorf("unexpected PDU type: 0x%02x", pduType)
	}

	// Read and discard PDU data
	data := make([]byte, pduLength)
	io.ReadFull(a.conn, data)

	return nil
}

// GetPresentationContextID finds a presentation context for the given abstract syntax
func (a *Association) GetPresentationContextID(abstractSyntax string) (byte, error) {
	for _, pc := range a.presentationCtxs {
		if pc.AbstractSyntax == abstractSyntax && pc.Accepted {
			return pc.ID, nil
		}
	}
	return 0, fmt.Errorf("no accepted presentation context for abstract syntax: %s", abstractSyntax)
}
