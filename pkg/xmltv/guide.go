// Package xmltv provides streaming validation and statistics for XMLTV
// electronic program guide data, with transparent handling of gzip, bzip2,
// and xz compressed input.
package xmltv

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Stats summarizes the contents of a guide document.
type Stats struct {
	Channels   int
	Programmes int
}

// ErrEmptyGuide is returned when the guide document contains no data.
var ErrEmptyGuide = fmt.Errorf("empty guide document")

// DecompressReader wraps r with the appropriate decompressor based on the
// stream's magic bytes. Uncompressed input passes through unchanged.
func DecompressReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peeking header: %w", err)
	}

	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, nil

	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		return bzip2.NewReader(br), nil

	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' &&
		header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return xzr, nil
	}

	return br, nil
}

// Validate checks that r contains a well-formed XMLTV document and returns
// channel/programme counts. Compression is auto-detected.
//
// Xtream providers emit guides of wildly varying quality, so parsing is
// lenient: unknown elements are skipped, only XML well-formedness and the
// presence of guide content are enforced.
func Validate(r io.Reader) (*Stats, error) {
	reader, err := DecompressReader(r)
	if err != nil {
		return nil, err
	}

	decoder := xml.NewDecoder(reader)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	stats := &Stats{}
	sawAny := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		sawAny = true

		switch elem.Name.Local {
		case "channel":
			stats.Channels++
			_ = decoder.Skip()
		case "programme":
			stats.Programmes++
			_ = decoder.Skip()
		}
	}

	if !sawAny {
		return nil, ErrEmptyGuide
	}

	return stats, nil
}
