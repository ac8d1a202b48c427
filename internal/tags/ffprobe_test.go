package tags

import (
	"encoding/json"
	"testing"
)

func TestIntOrStringUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"integer value", `{"value": 16}`, 16},
		{"string integer", `{"value": "24"}`, 24},
		{"N/A string", `{"value": "N/A"}`, 0},
		{"empty string", `{"value": ""}`, 0},
		{"zero", `{"value": 0}`, 0},
		{"invalid string", `{"value": "invalid"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result struct {
				Value intOrString `json:"value"`
			}
			if err := json.Unmarshal([]byte(tt.input), &result); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if result.Value.Value != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result.Value.Value)
			}
		})
	}
}

func TestFFprobeStreamUnmarshalStringSampleRate(t *testing.T) {
	jsonData := `{
		"codec_name": "pcm_s16le",
		"codec_type": "audio",
		"sample_rate": "44100",
		"channels": 2,
		"bits_per_raw_sample": "N/A",
		"duration": "180.5",
		"bit_rate": "1411200"
	}`

	var stream ffprobeStream
	if err := json.Unmarshal([]byte(jsonData), &stream); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stream.SampleRate != 44100 {
		t.Errorf("expected sample_rate 44100, got %d", stream.SampleRate)
	}
	if stream.BitsDepth.Value != 0 {
		t.Errorf("expected bits_per_raw_sample 0 from N/A, got %d", stream.BitsDepth.Value)
	}
}

func TestFirstAudioStreamSkipsVideoStreams(t *testing.T) {
	streams := []ffprobeStream{
		{CodecType: "video", CodecName: "mjpeg"},
		{CodecType: "audio", CodecName: "flac"},
	}

	got := firstAudioStream(streams)
	if got == nil || got.CodecName != "flac" {
		t.Fatalf("expected the flac audio stream, got %+v", got)
	}
}

func TestFirstAudioStreamNoneFound(t *testing.T) {
	streams := []ffprobeStream{{CodecType: "video", CodecName: "mjpeg"}}
	if got := firstAudioStream(streams); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
