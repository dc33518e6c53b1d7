package manifest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"derush/internal/logging"
	"derush/internal/manifest"
	"derush/internal/queue"
	"derush/internal/services"
	"derush/internal/testsupport"
)

func serveStageHLS(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hls/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="audio",NAME="Original",DEFAULT=YES,URI="audio.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=3200000,RESOLUTION=1920x1080
video.m3u8
`))
	})
	media := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:4.0,\nchunk-000.ts\n#EXTINF:4.0,\nchunk-001.ts\n"))
	})
	mux.Handle("/hls/video.m3u8", media)
	mux.Handle("/hls/audio.m3u8", media)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStagePrepareRequiresSourceURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := manifest.NewStage(cfg, store, logging.NewNop())

	item := &queue.Item{Title: "no-source"}
	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestStageExecutePersistsManifest(t *testing.T) {
	server := serveStageHLS(t)
	cfg := testsupport.NewConfig(t)
	cfg.HTTP.PreferredBandwidth = 3200000
	store := testsupport.MustOpenStore(t, cfg)
	handler := manifest.NewStage(cfg, store, logging.NewNop())

	item := testsupport.NewRemote(t, store, server.URL+"/hls/playlist.m3u8?Signature=sig")
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if item.ScratchDir == "" {
		t.Fatal("expected scratch directory to be assigned")
	}
	if item.ManifestJSON == "" {
		t.Fatal("expected manifest JSON to be persisted")
	}
	decoded, err := manifest.Decode(item.ManifestJSON)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Bandwidth != 3200000 {
		t.Fatalf("unexpected bandwidth %d", decoded.Bandwidth)
	}
	if len(decoded.Video.Segments) == 0 || len(decoded.Audio.Segments) == 0 {
		t.Fatalf("expected segments, got %#v", decoded)
	}
}

func TestStageExecuteClassifiesResolutionFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := manifest.NewStage(cfg, store, logging.NewNop())

	item := testsupport.NewRemote(t, store, "http://127.0.0.1:1/share/unreachable")
	err := handler.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestStageHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := manifest.NewStage(cfg, store, logging.NewNop())

	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy stage, got %#v", health)
	}
}
