package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	dicomerrors "github.com/caretech-io/dicomgate/errors"
	"github.com/caretech-io/dicomgate/dimse"
	"github.com/caretech-io/dicomgate/interfaces"
	"github.com/caretech-io/dicomgate/pdu"
	"github.com/caretech-io/dicomgate/types"
)

// RemoteModalities is the oracle the supervisor and handlers consult about
// configured peers. Implementations must be safe for concurrent use from
// pool workers; the supervisor never mutates through it.
type RemoteModalities interface {
	// IsSameAET reports whether two AE titles identify the same entity
	// under the deployment's equivalence rules (typically case handling).
	IsSameAET(a, b string) bool
	// LookupAET resolves an AE title to its configured modality entry.
	LookupAET(aeTitle string) (types.RemoteModality, bool)
}

// StaticModalities is a RemoteModalities backed by a fixed table, compared
// case-insensitively. The zero value knows no peers.
type StaticModalities map[string]types.RemoteModality

// IsSameAET implements RemoteModalities.
func (s StaticModalities) IsSameAET(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// LookupAET implements RemoteModalities.
func (s StaticModalities) LookupAET(aeTitle string) (types.RemoteModality, bool) {
	for _, m := range s {
		if s.IsSameAET(m.AETitle, aeTitle) {
			return m, true
		}
	}
	return types.RemoteModality{}, false
}

// Resolve maps a C-MOVE destination AE title to a dialable address,
// satisfying the move handler's destination-resolver interface.
func (s StaticModalities) Resolve(aeTitle string) (string, bool) {
	m, ok := s.LookupAET(aeTitle)
	if !ok {
		return "", false
	}
	return m.Address(), true
}

// defaultMaxWorkers bounds how many associations are dispatched
// concurrently when WithMaxWorkers is not given.
const defaultMaxWorkers = 4

// defaultAssociationTimeout is the SCP-side idle timeout applied when
// WithAssociationTimeout is not given.
const defaultAssociationTimeout = 30 * time.Second

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithReadTimeout sets the read timeout for client connections.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the write timeout for client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.WriteTimeout = timeout
	}
}

// WithAssociationTimeout sets how long an established association may idle
// between DIMSE commands before it is aborted. Zero disables the check.
func WithAssociationTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.AssociationTimeout = timeout
		s.associationTimeoutSet = true
	}
}

// WithMaxWorkers bounds the worker pool: at most n associations are
// serviced concurrently, further accepted connections wait for a free
// worker. n < 1 keeps the default width.
func WithMaxWorkers(n int) Option {
	return func(s *Server) {
		if n >= 1 {
			s.MaxWorkers = n
		}
	}
}

// WithPolicy sets the presentation-context negotiation policy handed to
// every association. When unset, the PDU layer's default policy is used,
// with the called-AET restriction applied on top when enabled.
func WithPolicy(policy *pdu.Policy) Option {
	return func(s *Server) {
		s.Policy = policy
	}
}

// WithCheckCalledAETitle controls whether associations addressed to a
// called AE title other than the server's are rejected with
// called-AE-title-not-recognized. Enabled by default.
func WithCheckCalledAETitle(check bool) Option {
	return func(s *Server) {
		s.CheckCalledAETitle = check
		s.checkCalledAETSet = true
	}
}

// WithRemoteModalities installs the oracle consulted for AE-title
// equivalence and peer lookup. Must be set before Serve; workers read it
// concurrently.
func WithRemoteModalities(oracle RemoteModalities) Option {
	return func(s *Server) {
		s.Modalities = oracle
	}
}

// WithMetrics installs Prometheus instruments updated per association.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// Server exposes a reusable DICOM listener that wires the DIMSE and PDU
// layers: a single acceptor goroutine feeds accepted connections to a
// bounded pool of workers, each of which owns one association for the
// duration of its dispatch loop.
type Server struct {
	AETitle            string
	Handler            interfaces.ServiceHandler
	Logger             *slog.Logger
	ReadTimeout        time.Duration // Read timeout for connections (default: none)
	WriteTimeout       time.Duration // Write timeout for connections (default: none)
	AssociationTimeout time.Duration // Idle timeout between DIMSE commands (default: 30s)
	MaxWorkers         int           // Worker pool width (default: 4)
	Policy             *pdu.Policy   // Presentation-context negotiation policy (default: pdu.DefaultPolicy)
	CheckCalledAETitle bool          // Reject associations to foreign called AE titles (default: true)
	Modalities         RemoteModalities
	Metrics            *Metrics

	associationTimeoutSet bool
	checkCalledAETSet     bool
}

// New builds a Server with the provided AE title and handler.
func New(aeTitle string, handler interfaces.ServiceHandler, opts ...Option) *Server {
	srv := &Server{AETitle: aeTitle, Handler: handler}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.MaxWorkers == 0 {
		srv.MaxWorkers = defaultMaxWorkers
	}
	if !srv.associationTimeoutSet {
		srv.AssociationTimeout = defaultAssociationTimeout
	}
	if !srv.checkCalledAETSet {
		srv.CheckCalledAETitle = true
	}
	return srv
}

// ListenAndServe listens on the given address and serves until the context is done or an error occurs.
func ListenAndServe(ctx context.Context, address, aeTitle string, handler interfaces.ServiceHandler, opts ...Option) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return dicomerrors.ErrPortInUse
	}
	defer listener.Close()

	srv := New(aeTitle, handler, opts...)
	return srv.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an unrecoverable error occurs.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("dicomserver: listener is required")
	}
	if s == nil {
		return errors.New("dicomserver: server is nil")
	}
	if s.Handler == nil {
		return errors.New("dicomserver: handler is required")
	}
	if err := types.ValidateAETitle(s.AETitle); err != nil {
		return err
	}

	logger := s.logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	logger.Info("DICOM server listening",
		"address", listener.Addr().String(),
		"ae_title", s.AETitle,
		"max_workers", s.MaxWorkers)

	var (
		wg       sync.WaitGroup
		serveErr error
	)
	workers := make(chan struct{}, s.MaxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Warn("Accept timeout", "error", err)
				continue
			}
			serveErr = err
			break
		}

		// Claim a pool slot before dispatching; a saturated pool makes
		// the acceptor itself wait, bounding concurrent associations.
		select {
		case workers <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			continue
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer func() { <-workers }()
			s.handleConnection(ctx, c, logger)
		}(conn)
	}

	wg.Wait()

	if serveErr != nil {
		return serveErr
	}

	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	logger.Info("Accepted DICOM connection",
		"remote_addr", conn.RemoteAddr())

	start := time.Now()
	s.Metrics.associationStarted()

	// Set timeouts if configured
	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			logger.Warn("Failed to set read deadline", "error", err)
		}
	}
	if s.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
			logger.Warn("Failed to set write deadline", "error", err)
		}
	}

	adapter := &dimseHandlerAdapter{service: dimse.NewService(s.Handler, logger)}
	layer := pdu.NewLayer(conn, adapter, s.AETitle, logger,
		pdu.WithPolicy(s.negotiationPolicy()),
		pdu.WithAssociationTimeout(s.AssociationTimeout))

	if err := layer.HandleConnection(); err != nil && ctx.Err() == nil {
		result := "aborted"
		var assocErr *dicomerrors.AssociationError
		if errors.As(err, &assocErr) {
			result = "rejected"
		}
		s.Metrics.associationFinished(start, result)
		logger.Warn("DIMSE connection ended",
			"error", err,
			"remote_addr", conn.RemoteAddr())
	} else {
		s.Metrics.associationFinished(start, "accepted")
		logger.Info("DIMSE connection closed",
			"remote_addr", conn.RemoteAddr())
	}
}

// negotiationPolicy resolves the per-association policy: the configured one
// (or the default), with the called-AE-title restriction layered on when
// enabled, compared under the modality oracle's AE-title equivalence when
// one is installed. No AE filter is derived from the oracle: calling AE
// titles are not checked against the configured peers.
func (s *Server) negotiationPolicy() *pdu.Policy {
	base := s.Policy
	if base == nil {
		base = pdu.DefaultPolicy()
	}
	// Shallow copy: the configured policy is shared read-only across
	// workers, the per-association adjustments below must not write into it.
	copied := *base
	policy := &copied

	if s.CheckCalledAETitle && len(policy.AllowedCalledAETitles) == 0 {
		policy.AllowedCalledAETitles = []string{s.AETitle}
		if s.Modalities != nil && policy.CalledAETitleEquivalence == nil {
			policy.CalledAETitleEquivalence = s.Modalities.IsSameAET
		}
	}

	return policy
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type dimseHandlerAdapter struct {
	service *dimse.Service
}

func (a *dimseHandlerAdapter) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, layer *pdu.Layer) error {
	return a.service.HandleDIMSEMessage(presContextID, msgCtrlHeader, data, layer)
}
