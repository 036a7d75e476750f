package pdu

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/caretech-io/dicomgate/errors"
	"github.com/caretech-io/dicomgate/types"
)

// PDU types
const (
	TypeAssociateRQ = 0x01
	TypeAssociateAC = 0x02
	TypeAssociateRJ = 0x03
	TypePDataTF     = 0x04
	TypeReleaseRQ   = 0x05
	TypeReleaseRP   = 0x06
	TypeAbort       = 0x07
)

// PDU represents a Protocol Data Unit
type PDU struct {
	Type   byte
	Length uint32
	Data   []byte
}

// Layer handles the DICOM Upper Layer Protocol
type Layer struct {
	conn               net.Conn
	associationCtx     *AssociationContext
	dimseHandler       DIMSEHandler
	serverAETitle      string
	logger             *slog.Logger
	policy             *Policy
	associationTimeout time.Duration
}

// LayerOption configures a Layer at construction time.
type LayerOption func(*Layer)

// WithPolicy overrides the presentation-context negotiation policy. When
// omitted, DefaultPolicy() is used.
func WithPolicy(policy *Policy) LayerOption {
	return func(l *Layer) {
		if policy != nil {
			l.policy = policy
		}
	}
}

// WithAssociationTimeout bounds how long an established association may sit
// idle between DIMSE commands before the layer aborts it. Zero (the
// default) disables the idle check. The read loop polls in ~1s steps and
// accumulates elapsed idle time across timeouts, so the bound is
// approximate, not exact.
func WithAssociationTimeout(timeout time.Duration) LayerOption {
	return func(l *Layer) {
		l.associationTimeout = timeout
	}
}

// Policy drives presentation-context negotiation (C3). It replaces a pair of
// hardcoded abstract/transfer-syntax membership maps with a declarative,
// per-server configuration so a hosting process can widen or narrow what it
// accepts without touching the negotiation code.
type Policy struct {
	// KnownAbstractSyntaxes is always accepted when proposed, independent of
	// storage-class membership. DefaultPolicy lists VerificationSOPClass and
	// the Q/R FIND/MOVE/GET information models; ModalityWorklist is accepted
	// only when added here, and StorageCommitmentPushModelSOPClass is governed
	// by StorageCommitmentDualRole.
	KnownAbstractSyntaxes []string

	// BaseTransferSyntaxes is the preference-ordered transfer-syntax list for
	// non-storage abstract syntaxes (first element wins ties).
	BaseTransferSyntaxes []string

	// StorageTransferSyntaxes is the preference-ordered transfer-syntax list
	// offered for storage SOP classes. Extended per-peer by
	// TransferSyntaxFamilyFilter.
	StorageTransferSyntaxes []string

	// StorageCommitmentDualRole, when true, accepts
	// StorageCommitmentPushModelSOPClass with both SCU and SCP roles so the
	// server can both answer N-ACTION requests and receive N-EVENT-REPORT
	// replies on the same association.
	StorageCommitmentDualRole bool

	// PromiscuousFilter, if non-nil, decides whether an abstract syntax
	// outside KnownAbstractSyntaxes and outside the storage SOP class table
	// is still accepted (with the storage transfer-syntax list) for a given
	// (remoteIP, remoteAET, calledAET).
	PromiscuousFilter func(remoteIP, remoteAET, calledAET string) bool

	// TransferSyntaxFamilyFilter, if non-nil, is asked per encoding family
	// ("Deflated", "JPEG", "JPEGLossless", "JPEG2000", "JPIP", "MPEG2",
	// "MPEG4", "RLE") and removes that family from StorageTransferSyntaxes
	// for this negotiation when it returns false.
	TransferSyntaxFamilyFilter func(family string) bool

	// OmitRefusedContexts reproduces a compatibility workaround some DICOM
	// stacks rely on: dropping refused presentation contexts from
	// A-ASSOCIATE-AC entirely instead of including them with a refusal
	// result, as PS3.8 9.3.3.3 requires. Off by default; the standards-
	// correct behavior (refused contexts present, refusal byte set) is used
	// unless a caller opts into this for a known-incompatible peer.
	OmitRefusedContexts bool

	// AllowedCalledAETitles, when non-empty, restricts which AE titles this
	// server answers to; an A-ASSOCIATE-RQ addressed to any other title is
	// rejected with RejectReasonCalledAETitleNotRecognized. Empty accepts
	// any called AE title (the A-ASSOCIATE-AC echoes the called AE title
	// from the request).
	AllowedCalledAETitles []string

	// CalledAETitleEquivalence, if non-nil, replaces exact comparison when
	// matching the called AE title against AllowedCalledAETitles, so a
	// deployment can supply vendor-specific case handling.
	CalledAETitleEquivalence func(a, b string) bool

	// ApplicationContextUIDs lists the application context names this
	// server accepts; an A-ASSOCIATE-RQ proposing any other name is
	// rejected with RejectReasonApplicationContextNotSupported. Defaults to
	// types.ApplicationContextUID when left nil.
	ApplicationContextUIDs []string

	// AEFilter, if non-nil, is the final say on whether to accept an
	// association from (remoteAddr, callingAET, calledAET), after the
	// called-AE-title and application-context checks pass. Returning false
	// rejects with RejectReasonCallingAETitleNotRecognized.
	AEFilter func(remoteAddr, callingAET, calledAET string) bool
}

// DefaultPolicy accepts the Verification, Q/R FIND/MOVE/GET information
// models, and every registered storage SOP class, offering Implicit and
// Explicit VR Little Endian for all of them.
func DefaultPolicy() *Policy {
	return &Policy{
		KnownAbstractSyntaxes: []string{
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
		},
		BaseTransferSyntaxes:      []string{types.ImplicitVRLittleEndian, types.ExplicitVRLittleEndian},
		StorageTransferSyntaxes:   []string{types.ImplicitVRLittleEndian, types.ExplicitVRLittleEndian},
		StorageCommitmentDualRole: true,
	}
}

// knowsAbstractSyntax reports whether uid is accepted unconditionally by
// this policy, independent of the promiscuous filter.
func (pol *Policy) knowsAbstractSyntax(uid string) bool {
	for _, known := range pol.KnownAbstractSyntaxes {
		if known == uid {
			return true
		}
	}
	if uid == types.StorageCommitmentPushModelSOPClass {
		return pol.StorageCommitmentDualRole
	}
	return types.IsStorageSOPClass(uid)
}

// transferSyntaxesFor returns the preference-ordered transfer-syntax list a
// proposed abstract syntax should be matched against, applying the family
// filter to the storage list when present.
func (pol *Policy) transferSyntaxesFor(abstractSyntax string) []string {
	if !types.IsStorageSOPClass(abstractSyntax) && abstractSyntax != types.StorageCommitmentPushModelSOPClass {
		return pol.BaseTransferSyntaxes
	}
	if pol.TransferSyntaxFamilyFilter == nil {
		return pol.StorageTransferSyntaxes
	}
	var filtered []string
	for _, ts := range pol.StorageTransferSyntaxes {
		if family := transferSyntaxFamily(ts); family == "" || pol.TransferSyntaxFamilyFilter(family) {
			filtered = append(filtered, ts)
		}
	}
	return filtered
}

// transferSyntaxFamily classifies a transfer-syntax UID into the coarse
// encoding-family buckets TransferSyntaxFamilyFilter is asked about. Plain
// VR Little/Big Endian syntaxes have no family and are never filtered.
func transferSyntaxFamily(uid string) string {
	switch {
	case uid == types.ImplicitVRLittleEndian, uid == types.ExplicitVRLittleEndian:
		return ""
	case strings.Contains(uid, "1.2.840.10008.1.2.1.99"):
		return "Deflated"
	case uid == types.JPIPReferenced, uid == types.JPIPReferencedDeflate:
		return "JPIP"
	case strings.Contains(uid, "1.2.840.10008.1.2.4.9"):
		return "JPEG2000"
	case uid == types.JPEGLossless, uid == types.JPEGLosslessSV1:
		return "JPEGLossless"
	case uid == types.MPEG4AVCH264HighProfile, uid == types.MPEG4AVCH264BDCompatibleHighProfile, uid == types.MPEG4AVCH264HighProfileLevel42,
		uid == types.MPEG4AVCH264HighProfileLevel42Stereo, uid == types.MPEG4AVCH264StereoHighProfile:
		return "MPEG4"
	case strings.Contains(uid, "1.2.840.10008.1.2.4.10"):
		return "MPEG2"
	case strings.Contains(uid, "1.2.840.10008.1.2.5"):
		return "RLE"
	case strings.Contains(uid, "1.2.840.10008.1.2.4"):
		return "JPEG"
	default:
		return ""
	}
}

// AssociationContext holds association state
type AssociationContext struct {
	CalledAETitle      string
	CallingAETitle     string
	ApplicationContext string
	MaxPDULength       uint32
	PresentationCtxs   map[byte]*PresentationContext

	// ProposedRoles maps an abstract-syntax UID to the (SCU, SCP) role
	// bytes the peer proposed via SCU/SCP Role Selection sub-items.
	ProposedRoles map[string][2]byte
}

// PresentationContext represents a negotiated presentation context
type PresentationContext struct {
	ID             byte
	Result         byte
	AbstractSyntax string
	TransferSyntax string
}

const (
	presentationResultAcceptance           byte = 0x00
	presentationResultRejectAbstractSyntax byte = 0x03
	presentationResultRejectTransferSyntax byte = 0x04
)

func normalizeUID(raw []byte) string {
	value := string(raw)
	value = strings.TrimRight(value, "\x00 ")
	return value
}

// parsePresentationContext negotiates one proposed presentation context
// against the layer's policy, applying the promiscuous filter (keyed on the
// peer's remote IP and the AE titles already extracted from the fixed
// fields) when the abstract syntax isn't one of the policy's known ones.
func (p *Layer) parsePresentationContext(data []byte) (*PresentationContext, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("presentation context too short: %d", len(data))
	}

	ctxID := data[0]
	subOffset := 4 // Skip reserved bytes
	var abstractSyntax string
	var transferSyntaxes []string

	for subOffset+4 <= len(data) {
		subItemType := data[subOffset]
		subItemLength := binary.BigEndian.Uint16(data[subOffset+2 : subOffset+4])
		valueStart := subOffset + 4
		valueEnd := valueStart + int(subItemLength)
		if valueEnd > len(data) {
			return nil, fmt.Errorf("presentation context %d sub-item exceeds length", ctxID)
		}

		value := data[valueStart:valueEnd]
		switch subItemType {
		case 0x30: // Abstract Syntax
			abstractSyntax = normalizeUID(value)
		case 0x40: // Transfer Syntax
			transferSyntaxes = append(transferSyntaxes, normalizeUID(value))
		}

		subOffset = valueEnd
	}

	if abstractSyntax == "" {
		return nil, fmt.Errorf("presentation context %d missing abstract syntax", ctxID)
	}

	p.logger.Debug("Parsing presentation context",
		"context_id", ctxID,
		"abstract_syntax", abstractSyntax,
		"proposed_transfer_syntaxes", transferSyntaxes,
		"num_proposed", len(transferSyntaxes))

	result := presentationResultRejectAbstractSyntax
	selectedTransfer := ""

	accepted := p.policy.knowsAbstractSyntax(abstractSyntax)
	if !accepted && p.policy.PromiscuousFilter != nil {
		remoteIP := ""
		if p.conn != nil && p.conn.RemoteAddr() != nil {
			remoteIP = p.conn.RemoteAddr().String()
		}
		calledAE, callingAE := "", ""
		if p.associationCtx != nil {
			calledAE, callingAE = p.associationCtx.CalledAETitle, p.associationCtx.CallingAETitle
		}
		accepted = p.policy.PromiscuousFilter(remoteIP, callingAE, calledAE)
	}

	if accepted {
		allowed := p.policy.transferSyntaxesFor(abstractSyntax)
		for _, preferred := range allowed {
			for _, proposed := range transferSyntaxes {
				if preferred == proposed {
					selectedTransfer = preferred
					result = presentationResultAcceptance
					break
				}
			}
			if result == presentationResultAcceptance {
				break
			}
		}
		if result != presentationResultAcceptance {
			result = presentationResultRejectTransferSyntax
		}
	}

	p.logger.Debug("Presentation context negotiation result",
		"context_id", ctxID,
		"abstract_syntax", abstractSyntax,
		"selected_transfer_syntax", selectedTransfer,
		"result", result)

	// Validation: accepted contexts MUST have a transfer syntax
	if result == presentationResultAcceptance && selectedTransfer == "" {
		// This should never happen - it means we accepted but didn't select a transfer syntax
		// Force rejection to avoid protocol violation
		result = presentationResultRejectTransferSyntax
	}

	return &PresentationContext{
		ID:             ctxID,
		Result:         result,
		AbstractSyntax: abstractSyntax,
		TransferSyntax: selectedTransfer,
	}, nil
}

func parseUserInformation(data []byte) (uint32, map[string][2]byte, error) {
	offset := 0
	var maxPDULength uint32
	roles := make(map[string][2]byte)

	for offset+4 <= len(data) {
		subItemType := data[offset]
		subItemLength := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		valueStart := offset + 4
		valueEnd := valueStart + int(subItemLength)
		if valueEnd > len(data) {
			return 0, nil, fmt.Errorf("user information sub-item exceeds length")
		}

		switch {
		case subItemType == 0x51 && subItemLength == 4:
			maxPDULength = binary.BigEndian.Uint32(data[valueStart:valueEnd])
		case subItemType == 0x54 && subItemLength >= 4:
			// SCU/SCP Role Selection: uid-length, uid, scu role, scp role.
			value := data[valueStart:valueEnd]
			uidLength := int(binary.BigEndian.Uint16(value[0:2]))
			if 2+uidLength+2 <= len(value) {
				uid := normalizeUID(value[2 : 2+uidLength])
				roles[uid] = [2]byte{value[2+uidLength], value[2+uidLength+1]}
			}
		}

		offset = valueEnd
	}

	return maxPDULength, roles, nil
}

// DIMSEHandler interface for handling DIMSE messages
type DIMSEHandler interface {
	HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer *Layer) error
}

// NewLayer creates a new PDU layer handler
func NewLayer(conn net.Conn, dimseHandler DIMSEHandler, serverAETitle string, logger *slog.Logger, opts ...LayerOption) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Layer{
		conn:          conn,
		dimseHandler:  dimseHandler,
		serverAETitle: serverAETitle,
		logger:        logger,
		policy:        DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HandleConnection manages the complete DICOM connection lifecycle
func (p *Layer) HandleConnection() error {
	defer p.conn.Close()
	p.logger.Info("New DICOM connection", "remote_addr", p.conn.RemoteAddr())

	// Handle association establishment
	if err := p.handleAssociationPhase(); err != nil {
		return fmt.Errorf("association failed: %v", err)
	}

	// Handle DIMSE messages. With an association timeout configured, each
	// read blocks at most idlePollInterval and the idle time accumulates
	// across timeouts; a completed command resets the counter.
	var elapsedIdle time.Duration
	for {
		if p.associationTimeout > 0 {
			if err := p.conn.SetReadDeadline(time.Now().Add(idlePollInterval)); err != nil {
				return fmt.Errorf("failed to arm idle timer: %v", err)
			}
		}

		pdu, err := p.readPDU()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && p.associationTimeout > 0 {
				elapsedIdle += idlePollInterval
				if elapsedIdle >= p.associationTimeout {
					p.logger.Info("Association idle timeout, aborting",
						"remote_addr", p.conn.RemoteAddr(),
						"idle", elapsedIdle)
					p.sendAbort()
					return nil
				}
				continue
			}
			if err == io.EOF {
				p.logger.Info("Connection closed by client", "remote_addr", p.conn.RemoteAddr())
			} else {
				p.logger.Warn("Error reading PDU", "error", err, "remote_addr", p.conn.RemoteAddr())
			}
			break
		}
		elapsedIdle = 0

		if err := p.handlePDU(pdu); err != nil {
			if err == io.EOF {
				break // Normal termination
			}
			p.sendAbort()
			return fmt.Errorf("error handling PDU: %v", err)
		}
	}

	return nil
}

// idlePollInterval is the per-read blocking granularity used to enforce the
// association idle timeout.
const idlePollInterval = time.Second

// sendAbort emits an A-ABORT PDU (service-provider source, reason
// not-specified), best-effort: by this point the peer may be gone.
func (p *Layer) sendAbort() {
	abort := []byte{TypeAbort, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x02, 0x00}
	if _, err := p.conn.Write(abort); err != nil {
		p.logger.Debug("Failed to send A-ABORT", "error", err)
	}
}

// readPDU reads a complete PDU from the connection
func (p *Layer) readPDU() (*PDU, error) {
	// Read PDU header (6 bytes)
	header := make([]byte, 6)
	if _, err := io.ReadFull(p.conn, header); err != nil {
		return nil, err
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])

	// Read PDU data
	pduData := make([]byte, pduLength)
	if _, err := io.ReadFull(p.conn, pduData); err != nil {
		return nil, fmt.Errorf("failed to read PDU data: %v", err)
	}

	return &PDU{
		Type:   pduType,
		Length: pduLength,
		Data:   pduData,
	}, nil
}

// handlePDU routes PDUs to appropriate handlers
func (p *Layer) handlePDU(pdu *PDU) error {
	p.logger.Debug("Received PDU", "type", fmt.Sprintf("0x%02x", pdu.Type), "length", pdu.Length)

	switch pdu.Type {
	case TypePDataTF:
		return p.handlePDataTF(pdu)
	case TypeReleaseRQ:
		return p.handleReleaseRequest()
	case TypeReleaseRP:
		p.logger.Debug("Received A-RELEASE-RP")
		return io.EOF
	case TypeAbort:
		p.logger.Info("Received A-ABORT")
		return io.EOF
	default:
		p.logger.Warn("Unhandled PDU type", "type", fmt.Sprintf("0x%02x", pdu.Type))
		return nil
	}
}

// handleAssociationPhase handles the association establishment
func (p *Layer) handleAssociationPhase() error {
	pdu, err := p.readPDU()
	if err != nil {
		return fmt.Errorf("failed to read association request: %v", err)
	}

	if pdu.Type != TypeAssociateRQ {
		return fmt.Errorf("expected A-ASSOCIATE-RQ, got PDU type: 0x%02x", pdu.Type)
	}

	return p.handleAssociateRequest(pdu)
}

// handleAssociateRequest processes A-ASSOCIATE-RQ and sends A-ASSOCIATE-AC
func (p *Layer) handleAssociateRequest(pdu *PDU) error {
	p.logger.Debug("Processing A-ASSOCIATE-RQ")

	// Initialize association context with default values (will be updated by parsing)
	p.associationCtx = &AssociationContext{
		CalledAETitle:    p.serverAETitle, // Use configured server AE title
		CallingAETitle:   "UNKNOWN",       // Default, will be updated from request
		MaxPDULength:     16384,
		PresentationCtxs: make(map[byte]*PresentationContext),
	}

	// Parse the incoming association request to get the presentation contexts
	if err := p.parseAssociationRequest(pdu); err != nil {
		p.logger.Debug("Using default presentation contexts", "reason", err)
		// Fall back to accepting common contexts
	}

	if rejErr := p.checkAssociationAcceptable(); rejErr != nil {
		p.logger.Warn("Rejecting A-ASSOCIATE-RQ",
			"calling_ae", p.associationCtx.CallingAETitle,
			"called_ae", p.associationCtx.CalledAETitle,
			"reason", rejErr.Reason)
		if _, err := p.conn.Write(p.createAssociateReject(rejErr)); err != nil {
			return fmt.Errorf("failed to send A-ASSOCIATE-RJ: %v", err)
		}
		return rejErr
	}

	// If no contexts were parsed, add default supported contexts
	if len(p.associationCtx.PresentationCtxs) == 0 {
		p.addDefaultPresentationContexts()
	}

	// Send A-ASSOCIATE-AC
	response := p.createAssociateAccept()
	if _, err := p.conn.Write(response); err != nil {
		return fmt.Errorf("failed to send A-ASSOCIATE-AC: %v", err)
	}

	p.logger.Debug("Sent A-ASSOCIATE-AC")
	return nil
}

// checkAssociationAcceptable runs the association-level acceptance checks
// (application context, called AE title, AE filter) ahead of presentation-
// context negotiation. It returns nil when the association should proceed
// to A-ASSOCIATE-AC, or the *errors.AssociationError to reject with.
func (p *Layer) checkAssociationAcceptable() *errors.AssociationError {
	allowedContexts := p.policy.ApplicationContextUIDs
	if len(allowedContexts) == 0 {
		allowedContexts = []string{types.ApplicationContextUID}
	}
	if p.associationCtx.ApplicationContext != "" {
		ok := false
		for _, uid := range allowedContexts {
			if uid == p.associationCtx.ApplicationContext {
				ok = true
				break
			}
		}
		if !ok {
			return errors.NewAssociationError(errors.RejectSourceServiceUser,
				errors.RejectReasonApplicationContextNotSupported,
				fmt.Sprintf("unsupported application context %q", p.associationCtx.ApplicationContext))
		}
	}

	if len(p.policy.AllowedCalledAETitles) > 0 {
		equals := p.policy.CalledAETitleEquivalence
		if equals == nil {
			equals = func(a, b string) bool { return a == b }
		}
		ok := false
		for _, aet := range p.policy.AllowedCalledAETitles {
			if equals(aet, p.associationCtx.CalledAETitle) {
				ok = true
				break
			}
		}
		if !ok {
			return errors.NewAssociationError(errors.RejectSourceServiceUser,
				errors.RejectReasonCalledAETitleNotRecognized,
				fmt.Sprintf("called AE title %q not recognized", p.associationCtx.CalledAETitle))
		}
	}

	if p.policy.AEFilter != nil {
		remoteAddr := ""
		if p.conn != nil && p.conn.RemoteAddr() != nil {
			remoteAddr = p.conn.RemoteAddr().String()
		}
		if !p.policy.AEFilter(remoteAddr, p.associationCtx.CallingAETitle, p.associationCtx.CalledAETitle) {
			return errors.NewAssociationError(errors.RejectSourceServiceUser,
				errors.RejectReasonCallingAETitleNotRecognized,
				fmt.Sprintf("calling AE title %q rejected by filter", p.associationCtx.CallingAETitle))
		}
	}

	return nil
}

// createAssociateReject builds an A-ASSOCIATE-RJ PDU (PS3.8 9.3.4): a fixed
// 4-byte body of Result/Source/Reason, no variable items.
func (p *Layer) createAssociateReject(rejErr *errors.AssociationError) []byte {
	const resultRejectedPermanent = 0x01

	pduData := []byte{0x00, resultRejectedPermanent, byte(rejErr.Source), byte(rejErr.Reason)}

	pduHeader := []byte{TypeAssociateRJ, 0x00}
	pduLength := make([]byte, 4)
	binary.BigEndian.PutUint32(pduLength, uint32(len(pduData)))
	pduHeader = append(pduHeader, pduLength...)

	return append(pduHeader, pduData...)
}

// handlePDataTF processes P-DATA-TF PDUs and forwards to DIMSE layer
func (p *Layer) handlePDataTF(pdu *PDU) error {
	p.logger.Debug("Processing P-DATA-TF")

	// Extract PDV from P-DATA-TF
	if len(pdu.Data) < 6 {
		return fmt.Errorf("P-DATA-TF too short")
	}

	// Parse PDV
	pdvLength := binary.BigEndian.Uint32(pdu.Data[0:4])
	if len(pdu.Data) < int(4+pdvLength) {
		return fmt.Errorf("incomplete PDV data")
	}

	pdvData := pdu.Data[4 : 4+pdvLength]
	if len(pdvData) < 2 {
		return fmt.Errorf("PDV data too short")
	}

	presContextID := pdvData[0]
	msgCtrlHeader := pdvData[1]
	dimseData := pdvData[2:]

	p.logger.Debug("Processing DIMSE message",
		"presentation_context_id", presContextID,
		"message_control_header", fmt.Sprintf("0x%02x", msgCtrlHeader))

	// Forward to DIMSE layer
	return p.dimseHandler.HandleDIMSEMessage(presContextID, msgCtrlHeader, dimseData, p)
}

// cCancelCommandField is the DIMSE Command Field value for C-CANCEL-RQ
// (PS3.7 9.3.2.2), duplicated here (rather than imported) since dimse
// already imports this package for PDU constants.
const cCancelCommandField = 0x0FFF

// PollCancel opportunistically checks for a pending C-CANCEL-RQ without
// blocking the association indefinitely. It sets a transient read deadline,
// attempts to read one PDU, and restores blocking reads afterward. A
// read-timeout is the expected common case (nothing pending) and is not
// treated as an error. Any P-DATA-TF received that doesn't carry a
// C-CANCEL-RQ command is logged and dropped: a compliant SCU never
// pipelines another command on the same association while a C-FIND/C-MOVE
// response series is outstanding.
func (p *Layer) PollCancel(timeout time.Duration) (messageIDBeingRespondedTo uint16, cancelled bool, err error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, false, err
	}
	defer p.conn.SetReadDeadline(time.Time{})

	pduPacket, readErr := p.readPDU()
	if readErr != nil {
		if ne, ok := readErr.(net.Error); ok && ne.Timeout() {
			return 0, false, nil
		}
		return 0, false, readErr
	}

	if pduPacket.Type != TypePDataTF {
		p.logger.Warn("Dropping unexpected PDU while polling for C-CANCEL", "type", fmt.Sprintf("0x%02x", pduPacket.Type))
		return 0, false, nil
	}
	if len(pduPacket.Data) < 6 {
		return 0, false, nil
	}
	pdvLength := binary.BigEndian.Uint32(pduPacket.Data[0:4])
	if len(pduPacket.Data) < int(4+pdvLength) {
		return 0, false, nil
	}
	pdvData := pduPacket.Data[4 : 4+pdvLength]
	if len(pdvData) < 2 {
		return 0, false, nil
	}
	dimseData := pdvData[2:]

	commandField, msgIDRespondedTo, ok := scanCancelCommand(dimseData)
	if !ok || commandField != cCancelCommandField {
		p.logger.Warn("Dropping non-cancel command received mid-stream")
		return 0, false, nil
	}

	return msgIDRespondedTo, true, nil
}

// scanCancelCommand scans an Implicit VR Little Endian command set for the
// Command Field (0000,0100) and Message ID Being Responded To (0000,0120)
// elements, enough to recognize a C-CANCEL-RQ without depending on dimse's
// full command codec (which itself imports this package).
func scanCancelCommand(data []byte) (commandField, msgIDRespondedTo uint16, ok bool) {
	offset := 0
	var sawCommandField bool
	for offset+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if offset+8+int(length) > len(data) {
			break
		}
		value := data[offset+8 : offset+8+int(length)]
		if group == 0x0000 {
			switch element {
			case 0x0100:
				if len(value) >= 2 {
					commandField = binary.LittleEndian.Uint16(value[:2])
					sawCommandField = true
				}
			case 0x0120:
				if len(value) >= 2 {
					msgIDRespondedTo = binary.LittleEndian.Uint16(value[:2])
				}
			}
		}
		offset += 8 + int(length)
	}
	return commandField, msgIDRespondedTo, sawCommandField
}

// handleReleaseRequest processes A-RELEASE-RQ and sends A-RELEASE-RP
func (p *Layer) handleReleaseRequest() error {
	p.logger.Debug("Processing A-RELEASE-RQ")

	// Send A-RELEASE-RP
	response := []byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00}

	if _, err := p.conn.Write(response); err != nil {
		return fmt.Errorf("failed to send A-RELEASE-RP: %v", err)
	}

	p.logger.Debug("Sent A-RELEASE-RP")
	return io.EOF
}

// SendDIMSEResponse sends a DIMSE response via P-DATA-TF
func (p *Layer) SendDIMSEResponse(presContextID byte, commandData []byte) error {
	return p.SendDIMSEResponseWithDataset(presContextID, commandData, nil)
}

// SendDIMSEResponseWithDataset sends a DIMSE response with optional dataset via P-DATA-TF
func (p *Layer) SendDIMSEResponseWithDataset(presContextID byte, commandData []byte, datasetData []byte) error {
	// First, send the command PDV as a separate P-DATA-TF PDU
	commandPDVHeader := []byte{presContextID, 0x03} // Message Control Header = 0x03 (command, last fragment)
	commandPDVData := append(commandPDVHeader, commandData...)

	// PDV Length for command
	commandPDVLength := make([]byte, 4)
	binary.BigEndian.PutUint32(commandPDVLength, uint32(len(commandPDVData)))

	// Create command P-DATA-TF PDU
	commandPDUHeader := []byte{TypePDataTF, 0x00} // P-DATA-TF PDU type
	commandPDULength := make([]byte, 4)
	binary.BigEndian.PutUint32(commandPDULength, uint32(len(commandPDVLength)+len(commandPDVData)))

	// Assemble command PDU: PDU header + PDU length + command PDV
	commandResponse := append(commandPDUHeader, commandPDULength...)
	commandResponse = append(commandResponse, commandPDVLength...)
	commandResponse = append(commandResponse, commandPDVData...)

	// Send command PDU
	if _, err := p.conn.Write(commandResponse); err != nil {
		return fmt.Errorf("failed to send command PDU: %v", err)
	}

	// If there's dataset data, send it as a separate P-DATA-TF PDU
	if len(datasetData) > 0 {
		datasetPDVHeader := []byte{presContextID, 0x02} // Message Control Header = 0x02 (dataset, last fragment)
		datasetPDVData := append(datasetPDVHeader, datasetData...)

		// PDV Length for dataset
		datasetPDVLength := make([]byte, 4)
		binary.BigEndian.PutUint32(datasetPDVLength, uint32(len(datasetPDVData)))

		// Create dataset P-DATA-TF PDU
		datasetPDUHeader := []byte{TypePDataTF, 0x00} // P-DATA-TF PDU type
		datasetPDULength := make([]byte, 4)
		binary.BigEndian.PutUint32(datasetPDULength, uint32(len(datasetPDVLength)+len(datasetPDVData)))

		// Assemble dataset PDU: PDU header + PDU length + dataset PDV
		datasetResponse := append(datasetPDUHeader, datasetPDULength...)
		datasetResponse = append(datasetResponse, datasetPDVLength...)
		datasetResponse = append(datasetResponse, datasetPDVData...)

		// Send dataset PDU
		if _, err := p.conn.Write(datasetResponse); err != nil {
			return fmt.Errorf("failed to send dataset PDU: %v", err)
		}
	}

	return nil
}

// CallingAETitle returns the peer AE title extracted from the
// A-ASSOCIATE-RQ, empty before the association phase completes.
func (p *Layer) CallingAETitle() string {
	if p.associationCtx == nil {
		return ""
	}
	return p.associationCtx.CallingAETitle
}

// GetTransferSyntax returns the negotiated transfer syntax for the given presentation context.
func (p *Layer) GetTransferSyntax(presContextID byte) (string, error) {
	if p.associationCtx == nil {
		return "", fmt.Errorf("association context not initialized")
	}

	ctx, ok := p.associationCtx.PresentationCtxs[presContextID]
	if !ok {
		return "", fmt.Errorf("presentation context %d not found", presContextID)
	}

	if ctx.TransferSyntax == "" {
		return "", fmt.Errorf("no transfer syntax negotiated for presentation context %d", presContextID)
	}

	return ctx.TransferSyntax, nil
}

// createAssociateAccept creates a proper A-ASSOCIATE-AC PDU
func (p *Layer) createAssociateAccept() []byte {
	// Fixed fields (68 bytes)
	fixedFields := make([]byte, 68)

	// Protocol version (bytes 0-1): 0x0001
	binary.BigEndian.PutUint16(fixedFields[0:2], 0x0001)

	// Use the AE titles from the association context (extracted from request)
	calledAE := p.associationCtx.CalledAETitle
	if len(calledAE) > 16 {
		calledAE = calledAE[:16]
	}
	callingAE := p.associationCtx.CallingAETitle
	if len(callingAE) > 16 {
		callingAE = callingAE[:16]
	}

	// Copy AE titles (pad with spaces to 16 bytes each)
	copy(fixedFields[4:20], fmt.Sprintf("%-16s", calledAE))   // Called AE Title
	copy(fixedFields[20:36], fmt.Sprintf("%-16s", callingAE)) // Calling AE Title

	// Application Context Item
	appContextUID := types.ApplicationContextUID
	appContextItem := []byte{0x10, 0x00} // Item type
	appContextLen := make([]byte, 2)
	binary.BigEndian.PutUint16(appContextLen, uint16(len(appContextUID)))
	appContextItem = append(appContextItem, appContextLen...)
	appContextItem = append(appContextItem, []byte(appContextUID)...)

	// Build all presentation contexts
	// Sort context IDs to ensure consistent ordering
	var contextIDs []byte
	for id := range p.associationCtx.PresentationCtxs {
		contextIDs = append(contextIDs, id)
	}
	// Simple bubble sort since we have few contexts
	for i := 0; i < len(contextIDs); i++ {
		for j := i + 1; j < len(contextIDs); j++ {
			if contextIDs[i] > contextIDs[j] {
				contextIDs[i], contextIDs[j] = contextIDs[j], contextIDs[i]
			}
		}
	}

	var allPresContextItems []byte
	for _, id := range contextIDs {
		ctx := p.associationCtx.PresentationCtxs[id]

		// PS3.8 9.3.3.3 requires every proposed context to get exactly one
		// item in the AC, accepted or refused. OmitRefusedContexts is kept
		// only as an opt-in escape hatch for peers that choke on refused
		// items being present (see Policy.OmitRefusedContexts).
		if ctx.Result != presentationResultAcceptance && p.policy.OmitRefusedContexts {
			p.logger.Debug("Omitting refused context (policy opt-in)",
				"context_id", ctx.ID,
				"result", ctx.Result)
			continue
		}

		var presContextData []byte

		// According to DICOM Part 8, Section 9.3.3.3:
		// - For accepted contexts (Result == 0x00): include ONLY Transfer Syntax
		// - For rejected contexts (Result != 0x00): include NO sub-items
		if ctx.Result == presentationResultAcceptance {
			// CRITICAL: Accepted contexts MUST have a transfer syntax
			if ctx.TransferSyntax == "" {
				p.logger.Error("Accepted presentation context missing transfer syntax",
					"context_id", ctx.ID,
					"abstract_syntax", ctx.AbstractSyntax)
				// This should never happen - reject the context instead
				ctx.Result = presentationResultRejectTransferSyntax
			} else {
				// Transfer Syntax only for accepted contexts
				transferSyntaxItem := []byte{0x40, 0x00} // Item type
				transferSyntaxLen := make([]byte, 2)
				binary.BigEndian.PutUint16(transferSyntaxLen, uint16(len(ctx.TransferSyntax)))
				transferSyntaxItem = append(transferSyntaxItem, transferSyntaxLen...)
				transferSyntaxItem = append(transferSyntaxItem, []byte(ctx.TransferSyntax)...)
				presContextData = transferSyntaxItem
			}
		}
		// For rejected contexts, presContextData remains empty (no sub-items)

		// Build this presentation context
		presContextItem := []byte{0x21, 0x00} // Item type (0x21 = Presentation Context Item - AC)
		presContextLen := make([]byte, 2)
		binary.BigEndian.PutUint16(presContextLen, uint16(4+len(presContextData)))
		presContextItem = append(presContextItem, presContextLen...)
		presContextItem = append(presContextItem, ctx.ID, ctx.Result, 0x00, 0x00)
		presContextItem = append(presContextItem, presContextData...)

		allPresContextItems = append(allPresContextItems, presContextItem...)
	}

	// User Information Item
	maxPDUItem := []byte{0x51, 0x00, 0x00, 0x04}
	maxPDUValue := make([]byte, 4)
	binary.BigEndian.PutUint32(maxPDUValue, 16384)
	maxPDUItem = append(maxPDUItem, maxPDUValue...)

	implClassUID := "1.2.3.4.5.6.7.8.9"
	implClassItem := []byte{0x52, 0x00}
	implClassLen := make([]byte, 2)
	binary.BigEndian.PutUint16(implClassLen, uint16(len(implClassUID)))
	implClassItem = append(implClassItem, implClassLen...)
	implClassItem = append(implClassItem, []byte(implClassUID)...)

	implVersionName := "DICOMGATE_1_0"
	implVersionItem := []byte{0x55, 0x00}
	implVersionLen := make([]byte, 2)
	binary.BigEndian.PutUint16(implVersionLen, uint16(len(implVersionName)))
	implVersionItem = append(implVersionItem, implVersionLen...)
	implVersionItem = append(implVersionItem, []byte(implVersionName)...)

	userInfoData := append(maxPDUItem, implClassItem...)
	userInfoData = append(userInfoData, implVersionItem...)

	// Answer SCU/SCP Role Selection proposals. Only the storage-commitment
	// push model is ever granted a non-default role here: with dual role
	// enabled the peer may act as both requester and report sender on this
	// association; every other proposal is answered with the default roles.
	for uid, proposed := range p.associationCtx.ProposedRoles {
		scuRole, scpRole := byte(1), byte(0)
		if uid == types.StorageCommitmentPushModelSOPClass && p.policy.StorageCommitmentDualRole {
			scuRole, scpRole = proposed[0], proposed[1]
		}
		roleItem := []byte{0x54, 0x00}
		roleLen := make([]byte, 2)
		binary.BigEndian.PutUint16(roleLen, uint16(2+len(uid)+2))
		roleItem = append(roleItem, roleLen...)
		uidLen := make([]byte, 2)
		binary.BigEndian.PutUint16(uidLen, uint16(len(uid)))
		roleItem = append(roleItem, uidLen...)
		roleItem = append(roleItem, []byte(uid)...)
		roleItem = append(roleItem, scuRole, scpRole)
		userInfoData = append(userInfoData, roleItem...)
	}
	userInfoItem := []byte{0x50, 0x00}
	userInfoLen := make([]byte, 2)
	binary.BigEndian.PutUint16(userInfoLen, uint16(len(userInfoData)))
	userInfoItem = append(userInfoItem, userInfoLen...)
	userInfoItem = append(userInfoItem, userInfoData...)

	// Combine all
	variableItems := append(appContextItem, allPresContextItems...)
	variableItems = append(variableItems, userInfoItem...)
	pduData := append(fixedFields, variableItems...)

	// Create PDU header
	pduHeader := []byte{TypeAssociateAC, 0x00}
	pduLength := make([]byte, 4)
	binary.BigEndian.PutUint32(pduLength, uint32(len(pduData)))
	pduHeader = append(pduHeader, pduLength...)

	return append(pduHeader, pduData...)
}

// parseAssociationRequest parses an A-ASSOCIATE-RQ PDU to extract presentation contexts and AE titles
func (p *Layer) parseAssociationRequest(pdu *PDU) error {
	p.logger.Debug("Parsing association request", "pdu_length", len(pdu.Data))

	if len(pdu.Data) < 68 { // Minimum size for a basic association request
		return fmt.Errorf("association request too short")
	}

	data := pdu.Data

	// Extract AE titles from fixed fields (bytes 4-36)
	// Called AE Title (bytes 4-19) - what they're calling us
	calledAEBytes := data[4:20]
	calledAE := string(calledAEBytes)
	if idx := strings.IndexByte(calledAE, 0); idx != -1 {
		calledAE = calledAE[:idx]
	}
	calledAE = strings.TrimSpace(calledAE)

	// Calling AE Title (bytes 20-35) - who is calling us
	callingAEBytes := data[20:36]
	callingAE := string(callingAEBytes)
	if idx := strings.IndexByte(callingAE, 0); idx != -1 {
		callingAE = callingAE[:idx]
	}
	callingAE = strings.TrimSpace(callingAE)

	// Update association context with extracted AE titles
	if p.associationCtx != nil {
		p.associationCtx.CalledAETitle = calledAE
		p.associationCtx.CallingAETitle = callingAE
		p.associationCtx.PresentationCtxs = make(map[byte]*PresentationContext)
	}

	p.logger.Info("Extracted AE titles from association request",
		"calling_ae", callingAE,
		"called_ae", calledAE)

	// Parse variable items starting from offset 68
	offset := 68
	var proposedContexts int
	var acceptedContexts int

	// Parse variable items
	for offset < len(data) {
		if offset+4 > len(data) {
			break
		}

		itemType := data[offset]
		// Skip reserved byte
		itemLength := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		valueStart := offset + 4
		valueEnd := valueStart + int(itemLength)
		if valueEnd > len(data) {
			return fmt.Errorf("association item exceeds PDU length")
		}
		itemData := data[valueStart:valueEnd]

		p.logger.Debug("Found association item", "type", fmt.Sprintf("0x%02x", itemType), "length", itemLength)

		switch itemType {
		case 0x10: // Application Context
			appContext := normalizeUID(itemData)
			p.logger.Debug("Found application context item", "uid", appContext)
			if p.associationCtx != nil {
				p.associationCtx.ApplicationContext = appContext
			}
		case 0x20: // Presentation Context
			p.logger.Debug("Found presentation context item")
			proposedContexts++
			ctx, err := p.parsePresentationContext(itemData)
			if err != nil {
				p.logger.Warn("Failed to parse presentation context", "error", err)
			} else if p.associationCtx != nil {
				p.associationCtx.PresentationCtxs[ctx.ID] = ctx
				if ctx.Result == presentationResultAcceptance {
					acceptedContexts++
				}
			}
		case 0x50: // User Information
			p.logger.Debug("Found user information item")
			if maxPDULength, roles, err := parseUserInformation(itemData); err != nil {
				p.logger.Warn("Failed to parse user information", "error", err)
			} else if p.associationCtx != nil {
				if maxPDULength > 0 {
					p.associationCtx.MaxPDULength = maxPDULength
				}
				if len(roles) > 0 {
					p.associationCtx.ProposedRoles = roles
				}
			}
		}

		offset = valueEnd
	}

	if proposedContexts == 0 {
		p.logger.Warn("No presentation contexts found in association request")
	} else {
		p.logger.Info("Negotiated presentation contexts",
			"proposed", proposedContexts,
			"accepted", acceptedContexts,
			"max_pdu_length", p.associationCtx.MaxPDULength)
	}

	return nil
}

// addDefaultPresentationContexts adds the standard presentation contexts
func (p *Layer) addDefaultPresentationContexts() {
	p.logger.Debug("Adding default presentation contexts")

	// Verification SOP Class (C-ECHO)
	p.associationCtx.PresentationCtxs[1] = &PresentationContext{
		ID:             1,
		Result:         0,                   // Acceptance
		AbstractSyntax: "1.2.840.10008.1.1", // Verification SOP Class
		TransferSyntax: "1.2.840.10008.1.2", // Implicit VR Little Endian
	}

	// Patient Root Query/Retrieve Information Model - FIND
	p.associationCtx.PresentationCtxs[3] = &PresentationContext{
		ID:             3,
		Result:         0,                             // Acceptance
		AbstractSyntax: "1.2.840.10008.5.1.4.1.2.1.1", // Patient Root Q/R - FIND
		TransferSyntax: "1.2.840.10008.1.2",           // Implicit VR Little Endian
	}

	// Study Root Query/Retrieve Information Model - FIND
	p.associationCtx.PresentationCtxs[5] = &PresentationContext{
		ID:             5,
		Result:         0,                             // Acceptance
		AbstractSyntax: "1.2.840.10008.5.1.4.1.2.2.1", // Study Root Q/R - FIND
		TransferSyntax: "1.2.840.10008.1.2",           // Implicit VR Little Endian
	}

	// Patient/Study Only Query/Retrieve Information Model - FIND
	p.associationCtx.PresentationCtxs[7] = &PresentationContext{
		ID:             7,
		Result:         0,                             // Acceptance
		AbstractSyntax: "1.2.840.10008.5.1.4.1.2.3.1", // Patient/Study Only Q/R - FIND
		TransferSyntax: "1.2.840.10008.1.2",           // Implicit VR Little Endian
	}

	// Patient Root Query/Retrieve Information Model - MOVE
	p.associationCtx.PresentationCtxs[9] = &PresentationContext{
		ID:             9,
		Result:         0,
		AbstractSyntax: "1.2.840.10008.5.1.4.1.2.1.2", // Patient Root Q/R - MOVE
		TransferSyntax: "1.2.840.10008.1.2",           // Implicit VR Little Endian
	}

	// Study Root Query/Retrieve Information Model - MOVE
	p.associationCtx.PresentationCtxs[11] = &PresentationContext{
		ID:             11,
		Result:         0,
		AbstractSyntax: "1.2.840.10008.5.1.4.1.2.2.2", // Study Root Q/R - MOVE
		TransferSyntax: "1.2.840.10008.1.2",           // Implicit VR Little Endian
	}

	// Patient/Study Only Query/Retrieve Information Model - MOVE
	p.associationCtx.PresentationCtxs[13] = &PresentationContext{
		ID:             13,
		Result:         0,
		AbstractSyntax: "1.2.840.10008.5.1.4.1.2.3.2", // Patient/Study Only Q/R - MOVE
		TransferSyntax: "1.2.840.10008.1.2",           // Implicit VR Little Endian
	}

	slog.Debug("Added presentation contexts", "count", len(p.associationCtx.PresentationCtxs))
}
