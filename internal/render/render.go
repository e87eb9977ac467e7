// Package render formats enriched channel reports for terminal and CSV
// output.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xtreamscout/xtreamscout/internal/enrich"
)

// columns is the report header, shared by the table and CSV renderers.
var columns = []string{
	"Stream ID",
	"Name",
	"Category",
	"Archive",
	"EPG",
	"Video Codec",
	"Resolution",
	"Frame Rate",
	"Audio Codec",
	"Channels",
	"Sample Rate",
}

// row flattens one enriched channel into report cells.
func row(ch enrich.EnrichedChannel) []string {
	cells := []string{
		strconv.FormatInt(ch.Stream.StreamID.Int(), 10),
		ch.Stream.Name,
		ch.Category,
		archiveCell(ch),
		strconv.Itoa(ch.EPGCount),
	}

	if ch.Probe == nil {
		return append(cells, "", "", "", "", "", "")
	}

	channels := ""
	if ch.Probe.Channels > 0 {
		channels = strconv.Itoa(ch.Probe.Channels)
	}
	sampleRate := ""
	if ch.Probe.SampleRate > 0 {
		sampleRate = strconv.Itoa(ch.Probe.SampleRate)
	}

	return append(cells,
		ch.Probe.VideoCodec,
		ch.Probe.Resolution(),
		ch.Probe.FrameRate,
		ch.Probe.AudioCodec,
		channels,
		sampleRate,
	)
}

// archiveCell formats catch-up availability as the archive depth in days,
// or empty when the channel has no archive.
func archiveCell(ch enrich.EnrichedChannel) string {
	if ch.Stream.TVArchive.Int() == 0 {
		return ""
	}
	days := ch.Stream.TVArchiveDays.Int()
	if days <= 0 {
		return "yes"
	}
	return fmt.Sprintf("%dd", days)
}

// Table writes an aligned plain-text report.
func Table(w io.Writer, channels []enrich.EnrichedChannel) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, ch := range channels {
		fmt.Fprintln(tw, strings.Join(row(ch), "\t"))
	}

	return tw.Flush()
}

// CSV writes the report as RFC 4180 CSV with a header row.
func CSV(w io.Writer, channels []enrich.EnrichedChannel) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, ch := range channels {
		if err := cw.Write(row(ch)); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
