package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xtreamscout/xtreamscout/internal/cache"
	"github.com/xtreamscout/xtreamscout/internal/enrich"
	"github.com/xtreamscout/xtreamscout/internal/prober"
	"github.com/xtreamscout/xtreamscout/pkg/xtream"
)

// ChannelReport is the outcome of a channel query: the matched channels in
// provider order plus any enrichment warnings.
type ChannelReport struct {
	Channels []enrich.EnrichedChannel
	Warnings []string
}

// Channels answers filtered, enriched channel queries against the cached
// provider inventory.
type Channels struct {
	client   providerClient
	store    cache.Store
	enricher *enrich.Enricher
	logger   *slog.Logger
}

// NewChannels creates a channel query service. p may be nil to skip stream
// probing; skipEPG disables guide-depth lookups.
func NewChannels(client providerClient, store cache.Store, p prober.StreamProber, streamExt string, skipEPG bool, logger *slog.Logger) *Channels {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channels{
		client:   client,
		store:    store,
		enricher: enrich.NewEnricher(client, p, streamExt, skipEPG, logger),
		logger:   logger,
	}
}

// Query selects live channels matching nameTerm and categoryTerm and
// enriches each with guide depth and probed media properties. Enrichment
// is best effort; failures surface as warnings on the report.
func (c *Channels) Query(ctx context.Context, nameTerm, categoryTerm string) (*ChannelReport, error) {
	categories, err := c.liveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching live categories: %w", err)
	}

	streams, err := c.liveStreams(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching live streams: %w", err)
	}

	channels := enrich.Select(streams, categories, nameTerm, categoryTerm)
	c.logger.Info("channels selected",
		slog.Int("matched", len(channels)),
		slog.Int("total", len(streams)),
	)
	if len(channels) == 0 {
		return &ChannelReport{}, nil
	}

	warnings := c.enricher.EnrichAll(ctx, channels)
	return &ChannelReport{Channels: channels, Warnings: warnings}, nil
}

func (c *Channels) liveCategories(ctx context.Context) ([]xtream.Category, error) {
	payload, err := c.store.GetOrFetch(ctx, "live_categories", func(ctx context.Context) ([]byte, error) {
		return c.client.FetchListing(ctx, xtream.ActionGetLiveCategories, nil)
	})
	if err != nil {
		return nil, err
	}

	var categories []xtream.Category
	if err := json.Unmarshal(payload, &categories); err != nil {
		return nil, fmt.Errorf("%w: %v", xtream.ErrInvalidResponse, err)
	}
	return categories, nil
}

func (c *Channels) liveStreams(ctx context.Context) ([]xtream.Stream, error) {
	payload, err := c.store.GetOrFetch(ctx, "live_streams", func(ctx context.Context) ([]byte, error) {
		return c.client.FetchListing(ctx, xtream.ActionGetLiveStreams, nil)
	})
	if err != nil {
		return nil, err
	}

	var streams []xtream.Stream
	if err := json.Unmarshal(payload, &streams); err != nil {
		return nil, fmt.Errorf("%w: %v", xtream.ErrInvalidResponse, err)
	}
	return streams, nil
}
