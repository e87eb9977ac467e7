package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtreamscout/xtreamscout/internal/cache"
	"github.com/xtreamscout/xtreamscout/internal/snapshot"
	"github.com/xtreamscout/xtreamscout/pkg/xtream"
)

type fakeClient struct {
	auth       *xtream.AuthInfo
	authErr    error
	listings   map[string]string
	listingErr map[string]error
	guide      string
	guideErr   error
	epg        map[int64][]xtream.EPGListing
	epgErr     map[int64]error

	fetchCalls int
}

func (f *fakeClient) Authenticate(ctx context.Context) (*xtream.AuthInfo, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.auth, nil
}

func (f *fakeClient) FetchListing(ctx context.Context, action string, params map[string]string) ([]byte, error) {
	f.fetchCalls++
	if err := f.listingErr[action]; err != nil {
		return nil, err
	}
	payload, ok := f.listings[action]
	if !ok {
		return []byte(`[]`), nil
	}
	return []byte(payload), nil
}

func (f *fakeClient) GetXMLTVReader(ctx context.Context) (io.ReadCloser, error) {
	if f.guideErr != nil {
		return nil, f.guideErr
	}
	return io.NopCloser(strings.NewReader(f.guide)), nil
}

func (f *fakeClient) GetFullEPG(ctx context.Context, streamID int64) ([]xtream.EPGListing, error) {
	if err := f.epgErr[streamID]; err != nil {
		return nil, err
	}
	return f.epg[streamID], nil
}

func (f *fakeClient) LiveStreamURL(streamID int64, extension string) string {
	return fmt.Sprintf("http://srv/live/u/p/%d.%s", streamID, extension)
}

const testGuide = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="tsn1.ca"><display-name>TSN 1</display-name></channel>
  <programme channel="tsn1.ca" start="20260315090000 +0000" stop="20260315100000 +0000">
    <title>Morning Sports</title>
  </programme>
</tv>`

func healthyClient() *fakeClient {
	return &fakeClient{
		auth: &xtream.AuthInfo{
			UserInfo:   xtream.UserInfo{Username: "alice", Password: "hunter2", Auth: 1},
			ServerInfo: xtream.ServerInfo{URL: "portal.example.com"},
		},
		listings: map[string]string{
			xtream.ActionGetLiveCategories: `[{"category_id":"10","category_name":"Sports Channels"}]`,
			xtream.ActionGetLiveStreams:    `[{"stream_id":1,"name":"TSN 1 HD","category_id":"10"}]`,
		},
		guide: testGuide,
	}
}

func newTestAcquisition(t *testing.T, client *fakeClient) (*Acquisition, string) {
	t.Helper()
	root := t.TempDir()
	archiver := snapshot.NewArchiver(root)
	acq := NewAcquisition(client, cache.NewMemStore(false), archiver, nil, "srv", nil)
	return acq, root
}

func TestAcquisition_FullRun(t *testing.T) {
	acq, root := newTestAcquisition(t, healthyClient())

	result, err := acq.Run(context.Background(), AcquisitionOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	// user_info + 6 listings + guide.
	assert.Equal(t, 8, result.ArtifactCount)
	require.NotNil(t, result.GuideStats)
	assert.Equal(t, 1, result.GuideStats.Channels)
	assert.Equal(t, 1, result.GuideStats.Programmes)
	assert.NotEmpty(t, result.CorrelationID)

	wantFiles := []string{
		"user_info.json",
		"live_categories.json",
		"live_streams.json",
		"vod_categories.json",
		"vod_streams.json",
		"series_categories.json",
		"series.json",
		"epg.xml",
	}
	for _, name := range wantFiles {
		_, statErr := os.Stat(filepath.Join(result.SnapshotDir, name))
		assert.NoError(t, statErr, name)
	}

	assert.True(t, strings.HasPrefix(result.SnapshotDir, filepath.Join(root, "srv")))
}

func TestAcquisition_MasksCredentialsByDefault(t *testing.T) {
	acq, _ := newTestAcquisition(t, healthyClient())

	result, err := acq.Run(context.Background(), AcquisitionOptions{})
	require.NoError(t, err)

	data, readErr := os.ReadFile(filepath.Join(result.SnapshotDir, "user_info.json"))
	require.NoError(t, readErr)
	assert.NotContains(t, string(data), "alice")
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), snapshot.MaskedUsername)
	assert.Contains(t, string(data), "UUUUU.example.com")
}

func TestAcquisition_RawKeepsCredentials(t *testing.T) {
	acq, _ := newTestAcquisition(t, healthyClient())

	result, err := acq.Run(context.Background(), AcquisitionOptions{Raw: true})
	require.NoError(t, err)

	data, readErr := os.ReadFile(filepath.Join(result.SnapshotDir, "user_info.json"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "alice")
	assert.Contains(t, string(data), "hunter2")
}

func TestAcquisition_AuthFailureAborts(t *testing.T) {
	client := healthyClient()
	client.authErr = fmt.Errorf("%w: rejected", xtream.ErrAuthenticationFailed)
	acq, root := newTestAcquisition(t, client)

	_, err := acq.Run(context.Background(), AcquisitionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, xtream.ErrAuthenticationFailed)
	assert.Zero(t, client.fetchCalls, "no listings fetched after failed auth")

	// No snapshot directory was created.
	entries, readErr := os.ReadDir(filepath.Join(root, "srv"))
	if readErr == nil {
		assert.Empty(t, entries)
	}
}

func TestAcquisition_ListingFailureAborts(t *testing.T) {
	client := healthyClient()
	client.listingErr = map[string]error{
		xtream.ActionGetVODStreams: fmt.Errorf("%w: status 502", xtream.ErrProviderUnreachable),
	}
	acq, _ := newTestAcquisition(t, client)

	result, err := acq.Run(context.Background(), AcquisitionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, xtream.ErrProviderUnreachable)
	assert.Contains(t, err.Error(), "vod_streams")

	// Artifacts acquired before the failure are kept in the sealed
	// snapshot; nothing after it was attempted.
	_, statErr := os.Stat(filepath.Join(result.SnapshotDir, "live_streams.json"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(result.SnapshotDir, "series.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAcquisition_InvalidListingAborts(t *testing.T) {
	client := healthyClient()
	client.listingErr = map[string]error{
		xtream.ActionGetSeries: fmt.Errorf("%w: malformed payload", xtream.ErrInvalidResponse),
	}
	acq, _ := newTestAcquisition(t, client)

	_, err := acq.Run(context.Background(), AcquisitionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, xtream.ErrInvalidResponse)
}

func TestAcquisition_GuideFailureIsWarning(t *testing.T) {
	client := healthyClient()
	client.guideErr = errors.New("guide endpoint down")
	acq, _ := newTestAcquisition(t, client)

	result, err := acq.Run(context.Background(), AcquisitionOptions{})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "guide")
	assert.Nil(t, result.GuideStats)
}

func TestAcquisition_SkipGuide(t *testing.T) {
	acq, _ := newTestAcquisition(t, healthyClient())

	result, err := acq.Run(context.Background(), AcquisitionOptions{SkipGuide: true})
	require.NoError(t, err)
	assert.Equal(t, 7, result.ArtifactCount)
	assert.Nil(t, result.GuideStats)

	_, statErr := os.Stat(filepath.Join(result.SnapshotDir, "epg.xml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAcquisition_PruneAfterRun(t *testing.T) {
	client := healthyClient()
	root := t.TempDir()
	archiver := snapshot.NewArchiver(root)

	// Seed older snapshots.
	base := filepath.Join(root, "srv")
	for _, name := range []string{"2026-03-10--00-00-00", "2026-03-11--00-00-00"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, name), 0o755))
	}

	acq := NewAcquisition(client, cache.NewMemStore(false), archiver, nil, "srv", nil)
	result, err := acq.Run(context.Background(), AcquisitionOptions{Keep: 2})
	require.NoError(t, err)

	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-03-11--00-00-00", entries[0].Name())
	assert.Equal(t, filepath.Base(result.SnapshotDir), entries[1].Name())
}

func TestAcquisition_Pretty(t *testing.T) {
	acq, _ := newTestAcquisition(t, healthyClient())

	result, err := acq.Run(context.Background(), AcquisitionOptions{Pretty: true})
	require.NoError(t, err)

	data, readErr := os.ReadFile(filepath.Join(result.SnapshotDir, "live_categories.json"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "\n  ", "listing should be reindented")
}
