// Package prober inspects live stream media properties by sampling the
// stream with ffprobe.
package prober

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// StreamInfo describes the media properties observed on a stream.
type StreamInfo struct {
	VideoCodec string `json:"video_codec,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FrameRate  string `json:"frame_rate,omitempty"`
	AudioCodec string `json:"audio_codec,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// Resolution formats the video dimensions as WxH, or empty when unknown.
func (s *StreamInfo) Resolution() string {
	if s.Width == 0 || s.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// StreamProber inspects a stream URL and reports its media properties.
type StreamProber interface {
	Probe(ctx context.Context, streamURL string) (*StreamInfo, error)
}

// ffprobe's -show_streams JSON shape, reduced to the entries we request.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Channels     int    `json:"channels"`
	SampleRate   string `json:"sample_rate"`
}

// FFProber probes streams by running the ffprobe binary.
type FFProber struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// FFOption configures an FFProber.
type FFOption func(*FFProber)

// WithBinary overrides the ffprobe binary path.
func WithBinary(path string) FFOption {
	return func(p *FFProber) {
		p.binary = path
	}
}

// WithTimeout bounds a single probe invocation.
func WithTimeout(timeout time.Duration) FFOption {
	return func(p *FFProber) {
		p.timeout = timeout
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) FFOption {
	return func(p *FFProber) {
		p.logger = logger
	}
}

// NewFFProber creates an ffprobe-backed prober.
func NewFFProber(opts ...FFOption) *FFProber {
	p := &FFProber{
		binary:  "ffprobe",
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckBinary verifies the ffprobe binary is resolvable.
func (p *FFProber) CheckBinary() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	return nil
}

// Probe implements StreamProber.
func (p *FFProber) Probe(ctx context.Context, streamURL string) (*StreamInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,channels,sample_rate",
		"-of", "json",
		streamURL,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("probe timed out: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("ffprobe: %s", firstLine(exitErr.Stderr))
		}
		return nil, fmt.Errorf("running ffprobe: %w", err)
	}

	return ParseOutput(output)
}

// ParseOutput decodes ffprobe JSON into a StreamInfo. The first stream
// carrying video dimensions wins the video slot; the first stream carrying
// channel count wins the audio slot.
func ParseOutput(data []byte) (*StreamInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("ffprobe reported no streams")
	}

	info := &StreamInfo{}
	for _, st := range out.Streams {
		switch {
		case st.Width > 0 && st.Height > 0 && info.VideoCodec == "":
			info.VideoCodec = st.CodecName
			info.Width = st.Width
			info.Height = st.Height
			info.FrameRate = FormatFrameRate(st.AvgFrameRate)
		case st.Channels > 0 && info.AudioCodec == "":
			info.AudioCodec = st.CodecName
			info.Channels = st.Channels
			if rate, err := strconv.Atoi(st.SampleRate); err == nil {
				info.SampleRate = rate
			}
		}
	}
	return info, nil
}

// FormatFrameRate reduces an ffprobe rational frame rate ("30000/1001") to
// a rounded integer string. Unparseable or degenerate values yield empty.
func FormatFrameRate(raw string) string {
	num, denom, found := strings.Cut(raw, "/")
	if !found {
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return raw
		}
		return ""
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return ""
	}
	d, err := strconv.ParseFloat(denom, 64)
	if err != nil || d == 0 || n == 0 {
		return ""
	}

	return strconv.Itoa(int(n/d + 0.5))
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
