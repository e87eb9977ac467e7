package xmltv

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sampleGuide = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="tsn1.ca"><display-name>TSN 1</display-name></channel>
  <channel id="cbc.ca"><display-name>CBC</display-name></channel>
  <programme start="20240101120000 +0000" stop="20240101130000 +0000" channel="tsn1.ca">
    <title>SportsCentre</title>
  </programme>
</tv>`

func TestValidate_Plain(t *testing.T) {
	stats, err := Validate(strings.NewReader(sampleGuide))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 1, stats.Programmes)
}

func TestValidate_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleGuide))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	stats, err := Validate(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Channels)
}

func TestValidate_XZ(t *testing.T) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(sampleGuide))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	stats, err := Validate(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Programmes)
}

func TestValidate_TruncatedIsLenient(t *testing.T) {
	// Providers routinely truncate large guides mid-transfer; non-strict
	// parsing still counts what arrived.
	stats, err := Validate(strings.NewReader(`<tv><channel id="a">`))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Channels)
}

func TestValidate_NotXML(t *testing.T) {
	_, err := Validate(strings.NewReader(`{"error":"Invalid credentials"}`))
	assert.ErrorIs(t, err, ErrEmptyGuide)
}

func TestValidate_Empty(t *testing.T) {
	_, err := Validate(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyGuide)
}

func TestDecompressReader_Passthrough(t *testing.T) {
	r, err := DecompressReader(strings.NewReader("hello"))
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
