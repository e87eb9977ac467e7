// Package service orchestrates provider acquisition: fetching listings
// through the cache, archiving snapshots and producing channel reports.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xtreamscout/xtreamscout/internal/cache"
	"github.com/xtreamscout/xtreamscout/internal/models"
	"github.com/xtreamscout/xtreamscout/internal/observability"
	"github.com/xtreamscout/xtreamscout/internal/repository"
	"github.com/xtreamscout/xtreamscout/internal/snapshot"
	"github.com/xtreamscout/xtreamscout/pkg/xmltv"
	"github.com/xtreamscout/xtreamscout/pkg/xtream"
)

// providerClient is the slice of the Xtream client the services need.
type providerClient interface {
	Authenticate(ctx context.Context) (*xtream.AuthInfo, error)
	FetchListing(ctx context.Context, action string, params map[string]string) ([]byte, error)
	GetXMLTVReader(ctx context.Context) (io.ReadCloser, error)
	GetFullEPG(ctx context.Context, streamID int64) ([]xtream.EPGListing, error)
	LiveStreamURL(streamID int64, extension string) string
}

// listingArtifact maps a provider action to its artifact file.
type listingArtifact struct {
	kind   string
	action string
}

// listingArtifacts is the fixed acquisition order. user_info and the guide
// are handled separately; the order here matches the snapshot layout.
var listingArtifacts = []listingArtifact{
	{"live_categories", xtream.ActionGetLiveCategories},
	{"live_streams", xtream.ActionGetLiveStreams},
	{"vod_categories", xtream.ActionGetVODCategories},
	{"vod_streams", xtream.ActionGetVODStreams},
	{"series_categories", xtream.ActionGetSeriesCategories},
	{"series", xtream.ActionGetSeries},
}

// AcquisitionOptions tunes snapshot behavior for one acquisition.
type AcquisitionOptions struct {
	// Raw writes user_info with credentials unmasked.
	Raw bool
	// Pretty reindents JSON artifacts before archiving.
	Pretty bool
	// Keep is the snapshot retention count per server. 0 disables pruning.
	Keep int
	// SkipGuide skips the XMLTV guide download.
	SkipGuide bool
}

// AcquisitionResult summarizes one finished acquisition.
type AcquisitionResult struct {
	RunID         models.ULID
	CorrelationID string
	SnapshotDir   string
	ArtifactCount int
	GuideStats    *xmltv.Stats
	Warnings      []string
}

// Acquisition downloads the full provider inventory into a snapshot.
type Acquisition struct {
	client    providerClient
	store     cache.Store
	archiver  *snapshot.Archiver
	runs      *repository.RunRepository
	serverKey string
	logger    *slog.Logger
}

// NewAcquisition creates an acquisition service. runs may be nil to skip
// run-history recording.
func NewAcquisition(client providerClient, store cache.Store, archiver *snapshot.Archiver, runs *repository.RunRepository, serverKey string, logger *slog.Logger) *Acquisition {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquisition{
		client:    client,
		store:     store,
		archiver:  archiver,
		runs:      runs,
		serverKey: serverKey,
		logger:    logger,
	}
}

// Run performs one full acquisition. Failure to fetch any listing aborts
// the run, since downstream consumers depend on valid listings. Archival
// failures and a failed guide download degrade to warnings.
func (a *Acquisition) Run(ctx context.Context, opts AcquisitionOptions) (*AcquisitionResult, error) {
	correlationID := uuid.NewString()
	logger := observability.WithRunID(a.logger, correlationID)

	run := &models.AcquisitionRun{
		CorrelationID: correlationID,
		ServerKey:     a.serverKey,
		Status:        models.RunStatusRunning,
		StartedAt:     time.Now(),
	}
	if a.runs != nil {
		if err := a.runs.Create(ctx, run); err != nil {
			logger.Warn("run record not created", slog.String("error", err.Error()))
		}
	}

	result, err := a.run(ctx, opts, logger)
	if err != nil {
		a.finishRun(ctx, run, result, models.RunStatusFailed, err, logger)
		return result, err
	}

	result.RunID = run.ID
	result.CorrelationID = correlationID
	run.SnapshotDir = result.SnapshotDir
	a.finishRun(ctx, run, result, models.RunStatusCompleted, nil, logger)
	return result, nil
}

func (a *Acquisition) finishRun(ctx context.Context, run *models.AcquisitionRun, result *AcquisitionResult, status string, runErr error, logger *slog.Logger) {
	if a.runs == nil || run.ID.IsZero() {
		return
	}
	if result != nil {
		run.ArtifactCount = result.ArtifactCount
		run.WarningCount = len(result.Warnings)
		if result.SnapshotDir != "" {
			run.SnapshotDir = result.SnapshotDir
		}
	}
	if err := a.runs.Complete(ctx, run, status, runErr); err != nil {
		logger.Warn("run record not updated", slog.String("error", err.Error()))
	}
}

func (a *Acquisition) run(ctx context.Context, opts AcquisitionOptions, logger *slog.Logger) (*AcquisitionResult, error) {
	result := &AcquisitionResult{}

	// Authenticate first so bad credentials fail before any disk writes.
	userInfo, err := a.store.GetOrFetch(ctx, "user_info", func(ctx context.Context) ([]byte, error) {
		auth, err := a.client.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(auth)
	})
	if err != nil {
		return result, fmt.Errorf("authenticating: %w", err)
	}

	snap, err := a.archiver.Begin(a.serverKey)
	if err != nil {
		return result, fmt.Errorf("opening snapshot: %w", err)
	}
	result.SnapshotDir = snap.Dir()
	logger.Info("snapshot started", slog.String("dir", snap.Dir()))

	if err := a.writeUserInfo(snap, userInfo, opts); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		logger.Warn("user_info not archived", slog.String("error", err.Error()))
	}

	for _, artifact := range listingArtifacts {
		payload, err := a.store.GetOrFetch(ctx, artifact.kind, func(ctx context.Context) ([]byte, error) {
			return a.client.FetchListing(ctx, artifact.action, nil)
		})
		if err != nil {
			snap.Seal()
			result.ArtifactCount = snap.ArtifactCount()
			return result, fmt.Errorf("acquiring %s: %w", artifact.kind, err)
		}

		if opts.Pretty {
			payload = reindent(payload)
		}
		if err := snap.WriteArtifact(artifact.kind+".json", payload); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s not archived: %v", artifact.kind, err))
			logger.Warn("listing not archived",
				slog.String("kind", artifact.kind),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Debug("listing archived", slog.String("kind", artifact.kind))
	}

	if !opts.SkipGuide {
		stats, err := a.acquireGuide(ctx, snap)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("guide not acquired: %v", err))
			logger.Warn("guide not acquired", slog.String("error", err.Error()))
		} else {
			result.GuideStats = stats
			logger.Info("guide archived",
				slog.Int("channels", stats.Channels),
				slog.Int("programmes", stats.Programmes),
			)
		}
	}

	snap.Seal()
	result.ArtifactCount = snap.ArtifactCount()

	if err := a.archiver.Prune(a.serverKey, opts.Keep); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("pruning snapshots: %v", err))
	}

	logger.Info("acquisition complete",
		slog.Int("artifacts", result.ArtifactCount),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (a *Acquisition) writeUserInfo(snap *snapshot.Snapshot, payload []byte, opts AcquisitionOptions) error {
	if !opts.Raw {
		masked, err := snapshot.MaskUserInfo(payload)
		if err != nil {
			return fmt.Errorf("masking user_info: %w", err)
		}
		payload = masked
	} else if opts.Pretty {
		payload = reindent(payload)
	}
	return snap.WriteArtifact("user_info.json", payload)
}

// acquireGuide streams the XMLTV guide into the snapshot, transparently
// decompressing it, and counts its contents.
func (a *Acquisition) acquireGuide(ctx context.Context, snap *snapshot.Snapshot) (*xmltv.Stats, error) {
	body, err := a.client.GetXMLTVReader(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader, err := xmltv.DecompressReader(body)
	if err != nil {
		return nil, fmt.Errorf("decompressing guide: %w", err)
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading guide: %w", err)
	}

	stats, err := xmltv.Validate(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("validating guide: %w", err)
	}

	if err := snap.WriteArtifact("epg.xml", raw); err != nil {
		return nil, err
	}
	return stats, nil
}

// reindent pretty-prints a JSON payload. Payloads that fail to reindent
// pass through unchanged.
func reindent(payload []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return payload
	}
	return buf.Bytes()
}
