package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

// VideoInfo describes the first video stream of a media file. Width and
// Height are the coded (unrotated) dimensions; Rotation is the clockwise
// turn needed to display frames upright.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	Rotation int     `json:"rotation"`
}

// Prober reads stream metadata with ffprobe.
type Prober struct {
	path string
}

// NewProber returns a Prober that runs the ffprobe binary at path (looked
// up on $PATH when it has no separator).
func NewProber(path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{path: path}
}

type probeOutput struct {
	Streams []struct {
		CodecName string            `json:"codec_name"`
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Duration  string            `json:"duration"`
		Tags      map[string]string `json:"tags"`
		SideData  []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe retrieves duration, dimensions and rotation of the first video
// stream of filePath.
func (p *Prober) Probe(ctx context.Context, filePath string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	s := out.Streams[0]
	info := &VideoInfo{
		Width:  s.Width,
		Height: s.Height,
		Codec:  s.CodecName,
	}

	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	if info.Duration <= 0 {
		info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
	}

	// The legacy "rotate" tag is clockwise; display-matrix rotation is
	// counter-clockwise.
	if tag, ok := s.Tags["rotate"]; ok {
		if deg, err := strconv.Atoi(tag); err == nil {
			info.Rotation = NormalizeRotation(deg)
		}
	} else {
		for _, sd := range s.SideData {
			if sd.Rotation != nil {
				info.Rotation = NormalizeRotation(-int(math.Round(*sd.Rotation)))
				break
			}
		}
	}

	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("video stream has no dimensions")
	}
	return info, nil
}
