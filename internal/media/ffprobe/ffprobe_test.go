package ffprobe

import (
	"math"
	"testing"
)

const samplePayload = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "avg_frame_rate": "30000/1001",
      "start_time": "0.000000"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "sample_rate": "48000",
      "channels": 2
    }
  ],
  "format": {
    "filename": "input.mp4",
    "nb_streams": 2,
    "duration": "120.504000",
    "size": "10485760",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2"
  }
}`

func TestParseStreams(t *testing.T) {
	result, err := Parse([]byte(samplePayload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	video, ok := result.VideoStream()
	if !ok {
		t.Fatal("expected a video stream")
	}
	if video.CodecName != "h264" || video.Width != 1920 {
		t.Fatalf("unexpected video stream: %+v", video)
	}

	audio, ok := result.AudioStream()
	if !ok {
		t.Fatal("expected an audio stream")
	}
	if audio.CodecName != "aac" || audio.Channels != 2 {
		t.Fatalf("unexpected audio stream: %+v", audio)
	}
}

func TestDurationSeconds(t *testing.T) {
	result, err := Parse([]byte(samplePayload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := result.DurationSeconds(); math.Abs(got-120.504) > 1e-9 {
		t.Fatalf("DurationSeconds() = %v", got)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	payload := `{"streams":[{"codec_type":"audio","duration":"42.25"}],"format":{}}`
	result, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := result.DurationSeconds(); got != 42.25 {
		t.Fatalf("DurationSeconds() = %v", got)
	}
}

func TestFrameInterval(t *testing.T) {
	result, err := Parse([]byte(samplePayload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := 1001.0 / 30000.0
	if got := result.FrameInterval(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("FrameInterval() = %v, want %v", got, want)
	}
}

func TestFrameIntervalUnknownRate(t *testing.T) {
	payload := `{"streams":[{"codec_type":"video","avg_frame_rate":"0/0"}],"format":{}}`
	result, err := Parse([]byte(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := result.FrameInterval(); got != 0 {
		t.Fatalf("FrameInterval() = %v, want 0", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
