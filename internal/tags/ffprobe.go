package tags

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// ffprobeInfo is the subset of ffprobe's JSON output the Tag Reader needs.
type ffprobeInfo struct {
	Streams []ffprobeStream `json:"streams"`
	Format  *ffprobeFormat  `json:"format"`
}

type ffprobeStream struct {
	CodecName  string      `json:"codec_name"`
	CodecType  string      `json:"codec_type"`
	SampleRate int         `json:"sample_rate,string"`
	Channels   int         `json:"channels"`
	Duration   string      `json:"duration"`
	BitRate    string      `json:"bit_rate"`
	BitsDepth  intOrString `json:"bits_per_raw_sample"`
}

type ffprobeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// intOrString unmarshals ffprobe fields that are sometimes numbers and
// sometimes the string "N/A" depending on codec and ffmpeg build.
type intOrString struct {
	Value int
}

func (i *intOrString) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		i.Value = n
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" || s == "N/A" {
		return nil
	}
	if parsed, err := strconv.Atoi(s); err == nil {
		i.Value = parsed
	}
	return nil
}

// runFFprobe shells out to ffprobe for container/codec/bitrate facts
// dhowden/tag cannot provide. Returns errFFprobeUnavailable if ffprobe
// is not on PATH so callers can fall back cleanly rather than treat a
// missing binary as a corrupt file.
func runFFprobe(path string) (*ffprobeInfo, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, errFFprobeUnavailable
	}

	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var info ffprobeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &info, nil
}

func firstAudioStream(streams []ffprobeStream) *ffprobeStream {
	for i := range streams {
		if streams[i].CodecType == "audio" {
			return &streams[i]
		}
	}
	return nil
}
