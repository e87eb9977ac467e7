package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xtreamscout/xtreamscout/internal/version"
)

// Default configuration values.
const (
	DefaultTimeout = 2 * time.Minute

	// API endpoint paths.
	pathPlayerAPI = "/player_api.php"
	pathXMLTV     = "/xmltv.php"
	pathLive      = "/live"
	pathMovie     = "/movie"
	pathSeries    = "/series"
	pathTimeshift = "/timeshift"

	// Query parameter names.
	paramUsername = "username"
	paramPassword = "password"
	paramAction   = "action"
	paramStreamID = "stream_id"
	paramLimit    = "limit"

	defaultExtensionTS  = "ts"
	defaultExtensionMP4 = "mp4"
	defaultExtensionMKV = "mkv"

	maxErrorBodyReadSize = 1024
)

// API actions understood by Xtream providers.
const (
	ActionGetLiveCategories   = "get_live_categories"
	ActionGetLiveStreams      = "get_live_streams"
	ActionGetVODCategories    = "get_vod_categories"
	ActionGetVODStreams       = "get_vod_streams"
	ActionGetSeriesCategories = "get_series_categories"
	ActionGetSeries           = "get_series"
	ActionGetShortEPG         = "get_short_epg"
	ActionGetSimpleDataTable  = "get_simple_data_table"
)

const headerUserAgent = "User-Agent"

// Client is an Xtream Codes API client.
//
// It performs no disk I/O and keeps no state beyond its credentials;
// retry behaviour belongs to the injected HTTP client.
type Client struct {
	// BaseURL is the server base URL (e.g., "http://example.com:8080").
	BaseURL string

	// Username is the API username.
	Username string

	// Password is the API password.
	Password string

	// HTTPClient is the HTTP client used for requests. Inject a retrying
	// client (pkg/httpclient StandardClient) for transient-failure handling.
	// If nil, a default client with DefaultTimeout is used.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// NewClient creates a new Xtream Codes API client.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		UserAgent: version.UserAgent(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithHTTPClient sets a custom HTTP client. This is how retry/backoff
// middleware is injected.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// apiURL builds the player_api.php URL with the given action and parameters.
func (c *Client) apiURL(action string, params map[string]string) string {
	var u strings.Builder
	u.WriteString(fmt.Sprintf("%s%s?%s=%s&%s=%s",
		c.BaseURL,
		pathPlayerAPI,
		paramUsername, url.QueryEscape(c.Username),
		paramPassword, url.QueryEscape(c.Password)))

	if action != "" {
		u.WriteString("&" + paramAction + "=" + url.QueryEscape(action))
	}

	for k, v := range params {
		u.WriteString("&" + url.QueryEscape(k) + "=" + url.QueryEscape(v))
	}

	return u.String()
}

// get performs an HTTP GET and classifies transport and status failures
// into the package error taxonomy.
func (c *Client) get(ctx context.Context, requestURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.UserAgent != "" {
		req.Header.Set(headerUserAgent, c.UserAgent)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		// The caller backing out is not a provider failure. A client
		// timeout, on the other hand, is: it means the provider never
		// answered within budget.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyReadSize))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnreachable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

// FetchListing retrieves the raw payload for the given action and verifies
// it is well-formed JSON. Malformed payloads fail with ErrInvalidResponse
// and must not be retried.
func (c *Client) FetchListing(ctx context.Context, action string, params map[string]string) ([]byte, error) {
	resp, err := c.get(ctx, c.apiURL(action, params))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrProviderUnreachable, err)
	}

	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: action %q returned malformed JSON", ErrInvalidResponse, action)
	}

	return payload, nil
}

// decodeListing fetches a listing and decodes it into target.
func (c *Client) decodeListing(ctx context.Context, action string, params map[string]string, target any) error {
	payload, err := c.FetchListing(ctx, action, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: decoding %q: %v", ErrInvalidResponse, action, err)
	}
	return nil
}

// Authenticate retrieves account and server information and verifies the
// provider accepted the credentials. This is typically the first call of a
// run; a rejection is fatal and never retried.
func (c *Client) Authenticate(ctx context.Context) (*AuthInfo, error) {
	var info AuthInfo
	if err := c.decodeListing(ctx, "", nil, &info); err != nil {
		return nil, err
	}
	if !info.UserInfo.IsAuthenticated() {
		msg := info.UserInfo.Message
		if msg == "" {
			msg = "provider rejected credentials"
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthenticationFailed, msg)
	}
	return &info, nil
}

// GetLiveCategories retrieves all live stream categories.
func (c *Client) GetLiveCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.decodeListing(ctx, ActionGetLiveCategories, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetVODCategories retrieves all video on demand categories.
func (c *Client) GetVODCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.decodeListing(ctx, ActionGetVODCategories, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetSeriesCategories retrieves all series categories.
func (c *Client) GetSeriesCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.decodeListing(ctx, ActionGetSeriesCategories, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetLiveStreams retrieves all live streams.
func (c *Client) GetLiveStreams(ctx context.Context) ([]Stream, error) {
	var streams []Stream
	if err := c.decodeListing(ctx, ActionGetLiveStreams, nil, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// GetVODStreams retrieves all VOD content.
func (c *Client) GetVODStreams(ctx context.Context) ([]VODStream, error) {
	var streams []VODStream
	if err := c.decodeListing(ctx, ActionGetVODStreams, nil, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// GetSeries retrieves all series.
func (c *Client) GetSeries(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.decodeListing(ctx, ActionGetSeries, nil, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// GetShortEPG retrieves a short EPG listing for a stream.
// The limit parameter controls how many entries to return (0 = server default).
func (c *Client) GetShortEPG(ctx context.Context, streamID int64, limit int) ([]EPGListing, error) {
	params := map[string]string{paramStreamID: fmt.Sprintf("%d", streamID)}
	if limit > 0 {
		params[paramLimit] = fmt.Sprintf("%d", limit)
	}

	var response EPGResponse
	if err := c.decodeListing(ctx, ActionGetShortEPG, params, &response); err != nil {
		return nil, err
	}
	return response.EPGListings, nil
}

// GetFullEPG retrieves the full per-channel EPG table for a stream.
// Some providers answer with a bare array instead of the documented
// wrapper object, so both shapes are accepted.
func (c *Client) GetFullEPG(ctx context.Context, streamID int64) ([]EPGListing, error) {
	params := map[string]string{paramStreamID: fmt.Sprintf("%d", streamID)}

	payload, err := c.FetchListing(ctx, ActionGetSimpleDataTable, params)
	if err != nil {
		return nil, err
	}

	var response EPGResponse
	if err := json.Unmarshal(payload, &response); err == nil {
		return response.EPGListings, nil
	}

	var listings []EPGListing
	if err := json.Unmarshal(payload, &listings); err == nil {
		return listings, nil
	}

	return nil, fmt.Errorf("%w: unexpected EPG payload shape", ErrInvalidResponse)
}

// XMLTVURL returns the URL for the full XMLTV EPG file.
func (c *Client) XMLTVURL() string {
	return fmt.Sprintf("%s%s?%s=%s&%s=%s",
		c.BaseURL,
		pathXMLTV,
		paramUsername, url.QueryEscape(c.Username),
		paramPassword, url.QueryEscape(c.Password))
}

// GetXMLTVReader retrieves the full XMLTV EPG data as a streaming reader.
// The caller is responsible for closing the returned ReadCloser; the guide
// can be very large and should be processed in streaming fashion.
func (c *Client) GetXMLTVReader(ctx context.Context) (io.ReadCloser, error) {
	resp, err := c.get(ctx, c.XMLTVURL())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// LiveStreamURL returns the playback URL for a live stream.
// Common extensions: ts, m3u8.
func (c *Client) LiveStreamURL(streamID int64, extension string) string {
	if extension == "" {
		extension = defaultExtensionTS
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s",
		c.BaseURL, pathLive, c.Username, c.Password, streamID, extension)
}

// VODStreamURL returns the playback URL for a VOD stream.
func (c *Client) VODStreamURL(vodID int64, extension string) string {
	if extension == "" {
		extension = defaultExtensionMP4
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s",
		c.BaseURL, pathMovie, c.Username, c.Password, vodID, extension)
}

// SeriesStreamURL returns the playback URL for a series episode.
func (c *Client) SeriesStreamURL(episodeID int64, extension string) string {
	if extension == "" {
		extension = defaultExtensionMKV
	}
	return fmt.Sprintf("%s%s/%s/%s/%d.%s",
		c.BaseURL, pathSeries, c.Username, c.Password, episodeID, extension)
}

// TimeshiftURL returns the URL for timeshift/catch-up playback.
// startTime should be in "YYYY-MM-DD:HH-MM" format; duration is in minutes.
func (c *Client) TimeshiftURL(streamID int64, startTime string, duration int) string {
	return fmt.Sprintf("%s%s/%s/%s/%d/%s/%d.%s",
		c.BaseURL, pathTimeshift, c.Username, c.Password, duration, startTime, streamID, defaultExtensionTS)
}
