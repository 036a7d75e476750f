// Command dicomserver runs the DICOM store-and-gateway SCP: C-ECHO, C-STORE
// into a local directory with an in-memory index, C-FIND over that index,
// C-MOVE fan-out to configured peers, and storage commitment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/caretech-io/dicomgate/client"
	"github.com/caretech-io/dicomgate/config"
	"github.com/caretech-io/dicomgate/dicom"
	"github.com/caretech-io/dicomgate/server"
	"github.com/caretech-io/dicomgate/services"
	"github.com/caretech-io/dicomgate/types"
)

func main() {
	app := &cli.App{
		Name:  "dicomserver",
		Usage: "lightweight DICOM store and gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "aet",
				Usage: "application entity title (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "DICOM listening port (overrides config)",
			},
			&cli.StringFlag{
				Name:  "storage",
				Value: "./dicom-storage",
				Usage: "directory received instances are written to",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level: debug, info, warn, error",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(c.String("log-level")),
	}))
	slog.SetDefault(logger)

	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.ApplyDefaults()
	}
	if aet := c.String("aet"); aet != "" {
		cfg.DicomAet = aet
	}
	if port := c.Int("port"); port != 0 {
		cfg.DicomPort = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client.SetDefaultTimeout(cfg.ScuTimeout())

	store, err := newDiskStore(c.String("storage"), logger)
	if err != nil {
		return err
	}

	modalities := server.StaticModalities(cfg.DicomModalities)
	commitments := &commitmentLedger{
		localAET:   cfg.DicomAet,
		modalities: modalities,
		store:      store,
		logger:     logger,
	}

	registry := services.NewRegistry()
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService())
	registry.RegisterHandler(types.CStoreRQ, services.NewStoreService(store, logger))
	registry.RegisterHandler(types.CFindRQ, services.NewFindService(store, logger))
	registry.RegisterHandler(types.CMoveRQ, services.NewMoveService(store, modalities, cfg.DicomAet, logger))
	commitmentService := services.NewCommitmentService(commitments, commitments, logger)
	registry.RegisterHandler(types.NActionRQ, commitmentService)
	registry.RegisterHandler(types.NEventReportRQ, commitmentService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = server.ListenAndServe(ctx, cfg.ListenAddress(), cfg.DicomAet, registry,
		server.WithLogger(logger),
		server.WithAssociationTimeout(cfg.ScpTimeout()),
		server.WithCheckCalledAETitle(*cfg.DicomCheckCalledAet),
		server.WithRemoteModalities(modalities),
		server.WithMetrics(server.NewMetrics(prometheus.DefaultRegisterer)),
	)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("DICOM server shutdown complete")
		return nil
	default:
		return err
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// storedInstance indexes one received instance: where its dataset lives on
// disk plus the hierarchy UIDs C-FIND and C-MOVE match on.
type storedInstance struct {
	SOPClassUID    string
	SOPInstanceUID string
	PatientID      string
	PatientName    string
	StudyUID       string
	SeriesUID      string
	TransferSyntax string
	Path           string
}

// diskStore persists datasets under root and keeps an in-memory index over
// them. It implements the store, find, and move provider interfaces.
type diskStore struct {
	root   string
	logger *slog.Logger

	mu        sync.RWMutex
	instances map[string]*storedInstance
}

func newDiskStore(root string, logger *slog.Logger) (*diskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &diskStore{
		root:      root,
		logger:    logger,
		instances: make(map[string]*storedInstance),
	}, nil
}

// Store implements services.StoreProvider.
func (d *diskStore) Store(ctx context.Context, sopClassUID, sopInstanceUID, transferSyntaxUID string, data []byte, dataset *dicom.Dataset) (uint16, error) {
	if sopInstanceUID == "" {
		return types.StatusProcessingFailure, fmt.Errorf("store request without SOP instance UID")
	}

	path := filepath.Join(d.root, sopInstanceUID+".dcm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.StatusStoreOutOfResources, err
	}

	instance := &storedInstance{
		SOPClassUID:    sopClassUID,
		SOPInstanceUID: sopInstanceUID,
		TransferSyntax: transferSyntaxUID,
		Path:           path,
	}
	if dataset != nil {
		instance.PatientID = dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0020})
		instance.PatientName = dataset.GetString(dicom.Tag{Group: 0x0010, Element: 0x0010})
		instance.StudyUID = dataset.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D})
		instance.SeriesUID = dataset.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E})
	}

	d.mu.Lock()
	d.instances[sopInstanceUID] = instance
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "Stored instance",
		"sop_instance", sopInstanceUID,
		"study_uid", instance.StudyUID,
		"path", path)

	return types.StatusSuccess, nil
}

// Find implements services.FindProvider with hierarchical matching over the
// in-memory index. Worklist queries return no matches: this node models a
// store, not a worklist source.
func (d *diskStore) Find(ctx context.Context, sopClassUID string, query *dicom.Dataset, answers *dicom.FindAnswers) error {
	if sopClassUID == types.ModalityWorklistInformationModelFind {
		return nil
	}

	var (
		level     string
		patientID string
		studyUID  string
		seriesUID string
	)
	if query != nil {
		level = query.GetString(dicom.TagQueryRetrieveLevel)
		patientID = query.GetString(dicom.Tag{Group: 0x0010, Element: 0x0020})
		studyUID = query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D})
		seriesUID = query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E})
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	for _, instance := range d.instances {
		if patientID != "" && patientID != "*" && instance.PatientID != patientID {
			continue
		}
		if studyUID != "" && studyUID != "*" && instance.StudyUID != studyUID {
			continue
		}
		if seriesUID != "" && seriesUID != "*" && instance.SeriesUID != seriesUID {
			continue
		}

		key := answerKey(level, instance)
		if seen[key] {
			continue
		}
		seen[key] = true
		answers.AddFromParsed(d.buildAnswer(level, instance))
	}

	answers.SetComplete(true)
	return nil
}

func answerKey(level string, instance *storedInstance) string {
	switch level {
	case string(types.QueryLevelPatient):
		return instance.PatientID
	case string(types.QueryLevelStudy):
		return instance.StudyUID
	case string(types.QueryLevelSeries):
		return instance.SeriesUID
	default:
		return instance.SOPInstanceUID
	}
}

func (d *diskStore) buildAnswer(level string, instance *storedInstance) *dicom.Dataset {
	answer := dicom.NewDataset()
	answer.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0020}, dicom.VR_LO, instance.PatientID)
	answer.AddElement(dicom.Tag{Group: 0x0010, Element: 0x0010}, dicom.VR_PN, instance.PatientName)
	switch level {
	case string(types.QueryLevelPatient):
	case string(types.QueryLevelStudy):
		answer.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, instance.StudyUID)
	case string(types.QueryLevelSeries):
		answer.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, instance.StudyUID)
		answer.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000E}, dicom.VR_UI, instance.SeriesUID)
	default:
		answer.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000D}, dicom.VR_UI, instance.StudyUID)
		answer.AddElement(dicom.Tag{Group: 0x0020, Element: 0x000E}, dicom.VR_UI, instance.SeriesUID)
		answer.AddElement(dicom.TagSOPInstanceUID, dicom.VR_UI, instance.SOPInstanceUID)
		answer.AddElement(dicom.Tag{Group: 0x0008, Element: 0x0016}, dicom.VR_UI, instance.SOPClassUID)
	}
	return answer
}

// Move implements services.MoveProvider: it snapshots the matching
// instances and hands them out one at a time for the sub-operation loop.
func (d *diskStore) Move(ctx context.Context, sopClassUID string, query *dicom.Dataset) (int, func() (services.MoveInstance, bool), error) {
	var studyUID, seriesUID, sopUID string
	if query != nil {
		studyUID = query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000D})
		seriesUID = query.GetString(dicom.Tag{Group: 0x0020, Element: 0x000E})
		sopUID = query.GetString(dicom.TagSOPInstanceUID)
	}

	d.mu.RLock()
	var matches []*storedInstance
	for _, instance := range d.instances {
		switch {
		case sopUID != "":
			if instance.SOPInstanceUID == sopUID {
				matches = append(matches, instance)
			}
		case seriesUID != "":
			if instance.SeriesUID == seriesUID {
				matches = append(matches, instance)
			}
		case studyUID != "":
			if instance.StudyUID == studyUID {
				matches = append(matches, instance)
			}
		}
	}
	d.mu.RUnlock()

	i := 0
	next := func() (services.MoveInstance, bool) {
		for i < len(matches) {
			instance := matches[i]
			i++
			data, err := os.ReadFile(instance.Path)
			if err != nil {
				d.logger.Warn("Failed to read stored instance for move",
					"sop_instance", instance.SOPInstanceUID,
					"error", err)
				continue
			}
			return services.MoveInstance{
				SOPClassUID:    instance.SOPClassUID,
				SOPInstanceUID: instance.SOPInstanceUID,
				Data:           data,
			}, true
		}
		return services.MoveInstance{}, false
	}

	return len(matches), next, nil
}

// Has reports whether sopInstanceUID is present in the index.
func (d *diskStore) Has(sopInstanceUID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.instances[sopInstanceUID]
	return ok
}

// commitmentLedger answers storage-commitment requests against the disk
// store: every referenced instance present in the index is committed,
// everything else is reported as failed (the report carries no failure
// reason code). The outcome travels
// back over a fresh association to the requesting peer, as the push model
// requires.
type commitmentLedger struct {
	localAET   string
	modalities server.StaticModalities
	store      *diskStore
	logger     *slog.Logger
}

// OnCommitmentRequest implements services.CommitmentRequestHandler.
func (l *commitmentLedger) OnCommitmentRequest(ctx context.Context, callingAETitle, transactionUID string, instances []types.ReferencedSOPInstance) error {
	peer, ok := l.modalities.LookupAET(callingAETitle)
	if !ok {
		return fmt.Errorf("no configured modality for AE title %q", callingAETitle)
	}

	result := client.StorageCommitmentResult{TransactionUID: transactionUID}
	for _, instance := range instances {
		ref := client.ReferencedInstance{
			SOPClassUID:    instance.SOPClassUID,
			SOPInstanceUID: instance.SOPInstanceUID,
		}
		if l.store.Has(instance.SOPInstanceUID) {
			result.Success = append(result.Success, ref)
		} else {
			result.Failed = append(result.Failed, ref)
		}
	}

	// The report goes out asynchronously on its own association; the
	// N-ACTION response returns before the peer sees the outcome.
	go l.deliverReport(peer, result)
	return nil
}

func (l *commitmentLedger) deliverReport(peer types.RemoteModality, result client.StorageCommitmentResult) {
	// Give the requesting peer a moment to release the inbound association
	// before dialing back.
	time.Sleep(100 * time.Millisecond)

	assoc, err := client.Connect(peer.Address(), client.Config{
		CallingAETitle: l.localAET,
		CalledAETitle:  peer.AETitle,
		Mode:           client.ModeReportStorageCommitment,
		Logger:         l.logger,
	})
	if err != nil {
		l.logger.Error("Failed to open commitment report association",
			"peer", peer.AETitle,
			"transaction_uid", result.TransactionUID,
			"error", err)
		return
	}
	defer assoc.Close()

	if err := assoc.ReportStorageCommitment(result); err != nil {
		l.logger.Error("Failed to deliver storage commitment report",
			"peer", peer.AETitle,
			"transaction_uid", result.TransactionUID,
			"error", err)
		return
	}

	l.logger.Info("Delivered storage commitment report",
		"peer", peer.AETitle,
		"transaction_uid", result.TransactionUID,
		"committed", len(result.Success),
		"failed", len(result.Failed))
}

// OnCommitmentReport implements services.CommitmentReportHandler.
func (l *commitmentLedger) OnCommitmentReport(ctx context.Context, transactionUID string, success []types.ReferencedSOPInstance, failed []types.FailedSOPInstance) error {
	l.logger.InfoContext(ctx, "Peer reported storage commitment outcome",
		"transaction_uid", transactionUID,
		"committed", len(success),
		"failed", len(failed))
	for _, f := range failed {
		l.logger.WarnContext(ctx, "Instance not committed by peer",
			"transaction_uid", transactionUID,
			"sop_instance", f.SOPInstanceUID,
			"failure_reason", fmt.Sprintf("0x%04x", f.FailureReason))
	}
	return nil
}
