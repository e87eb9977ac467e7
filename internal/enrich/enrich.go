// Package enrich selects live channels by name and category and augments
// each with guide depth and probed media properties.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xtreamscout/xtreamscout/internal/prober"
	"github.com/xtreamscout/xtreamscout/pkg/xtream"
)

// EnrichedChannel pairs a live stream with its resolved category and
// best-effort enrichment results. Probe is nil when probing failed or was
// disabled.
type EnrichedChannel struct {
	Stream   xtream.Stream
	Category string
	EPGCount int
	Probe    *prober.StreamInfo
}

// epgFetcher is the slice of the provider client the enricher needs.
type epgFetcher interface {
	GetFullEPG(ctx context.Context, streamID int64) ([]xtream.EPGListing, error)
	LiveStreamURL(streamID int64, extension string) string
}

// matches reports whether name contains term, ignoring case. An empty term
// matches everything.
func matches(name, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(term))
}

// Select returns the live streams whose name contains nameTerm and whose
// category name contains categoryTerm, both case-insensitive. Provider
// order is preserved. Streams referencing an unknown category are kept
// when categoryTerm is empty and dropped otherwise.
func Select(streams []xtream.Stream, categories []xtream.Category, nameTerm, categoryTerm string) []EnrichedChannel {
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[string(cat.CategoryID)] = cat.CategoryName
	}

	var selected []EnrichedChannel
	for _, stream := range streams {
		if !matches(stream.Name, nameTerm) {
			continue
		}
		catName, known := names[string(stream.CategoryID)]
		if categoryTerm != "" && (!known || !matches(catName, categoryTerm)) {
			continue
		}
		selected = append(selected, EnrichedChannel{
			Stream:   stream,
			Category: catName,
		})
	}
	return selected
}

// Enricher augments selected channels with guide depth and stream probes.
type Enricher struct {
	client    epgFetcher
	prober    prober.StreamProber
	streamExt string
	skipEPG   bool
	logger    *slog.Logger
}

// NewEnricher creates an enricher. p may be nil to skip probing; skipEPG
// disables the guide-depth lookup.
func NewEnricher(client epgFetcher, p prober.StreamProber, streamExt string, skipEPG bool, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		client:    client,
		prober:    p,
		streamExt: streamExt,
		skipEPG:   skipEPG,
		logger:    logger,
	}
}

// EnrichAll enriches every channel in place, preserving order. Failures on
// one channel never abort the rest; each failed step is recorded as a
// warning and the affected field is left at its zero value.
func (e *Enricher) EnrichAll(ctx context.Context, channels []EnrichedChannel) []string {
	var warnings []string

	for i := range channels {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, fmt.Sprintf("enrichment aborted: %v", err))
			return warnings
		}

		ch := &channels[i]
		streamID := ch.Stream.StreamID.Int()

		if !e.skipEPG {
			listings, err := e.client.GetFullEPG(ctx, streamID)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("epg lookup failed for %q: %v", ch.Stream.Name, err))
				e.logger.Warn("epg lookup failed",
					slog.String("channel", ch.Stream.Name),
					slog.Int64("stream_id", streamID),
					slog.String("error", err.Error()),
				)
			} else {
				ch.EPGCount = len(listings)
			}
		}

		if e.prober == nil {
			continue
		}

		streamURL := e.client.LiveStreamURL(streamID, e.streamExt)
		info, err := e.prober.Probe(ctx, streamURL)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("probe failed for %q: %v", ch.Stream.Name, err))
			e.logger.Warn("probe failed",
				slog.String("channel", ch.Stream.Name),
				slog.Int64("stream_id", streamID),
				slog.String("error", err.Error()),
			)
			continue
		}
		ch.Probe = info
	}

	return warnings
}
