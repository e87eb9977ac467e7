package render

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtreamscout/xtreamscout/internal/enrich"
	"github.com/xtreamscout/xtreamscout/internal/prober"
	"github.com/xtreamscout/xtreamscout/pkg/xtream"
)

func sampleChannels() []enrich.EnrichedChannel {
	return []enrich.EnrichedChannel{
		{
			Stream: xtream.Stream{
				StreamID:      42,
				Name:          "TSN 1 HD",
				TVArchive:     1,
				TVArchiveDays: 7,
			},
			Category: "Sports Channels",
			EPGCount: 120,
			Probe: &prober.StreamInfo{
				VideoCodec: "h264",
				Width:      1920,
				Height:     1080,
				FrameRate:  "30",
				AudioCodec: "aac",
				Channels:   2,
				SampleRate: 48000,
			},
		},
		{
			Stream: xtream.Stream{
				StreamID: 43,
				Name:     "TSN 4K, Backup",
			},
			Category: "Sports Channels",
			EPGCount: 0,
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleChannels()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, columns, records[0])
	assert.Equal(t, []string{
		"42", "TSN 1 HD", "Sports Channels", "7d", "120",
		"h264", "1920x1080", "30", "aac", "2", "48000",
	}, records[1])

	// Unprobed channel keeps the media columns empty; a comma inside a
	// name survives the round trip.
	assert.Equal(t, []string{
		"43", "TSN 4K, Backup", "Sports Channels", "", "0",
		"", "", "", "", "", "",
	}, records[2])
}

func TestCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, sampleChannels()))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "Stream ID")
	assert.Contains(t, lines[0], "Sample Rate")
	assert.Contains(t, lines[1], "TSN 1 HD")
	assert.Contains(t, lines[1], "1920x1080")
	assert.Contains(t, lines[2], "TSN 4K, Backup")
}

func TestArchiveCell(t *testing.T) {
	noArchive := enrich.EnrichedChannel{Stream: xtream.Stream{TVArchive: 0, TVArchiveDays: 7}}
	assert.Equal(t, "", archiveCell(noArchive))

	unknownDepth := enrich.EnrichedChannel{Stream: xtream.Stream{TVArchive: 1}}
	assert.Equal(t, "yes", archiveCell(unknownDepth))

	withDepth := enrich.EnrichedChannel{Stream: xtream.Stream{TVArchive: 1, TVArchiveDays: 3}}
	assert.Equal(t, "3d", archiveCell(withDepth))
}
