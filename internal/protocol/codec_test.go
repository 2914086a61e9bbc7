package protocol

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"recwatch/internal/domain"
)

func mustEncodeServer(t *testing.T, ev domain.Event) []byte {
	t.Helper()
	frame, err := EncodeServer(ev)
	if err != nil {
		t.Fatalf("encode server frame: %v", err)
	}
	return frame
}

func TestDecodeServer_MetaUpdated(t *testing.T) {
	frame := mustEncodeServer(t, domain.MetaUpdated{Meta: domain.DownloadMeta{
		DownloadID:  "d1",
		StreamerID:  "s1",
		SessionID:   "sess-1",
		EngineType:  "ffmpeg",
		StartedAtMs: 1700000000000,
		UpdatedAtMs: 42,
		CDNHost:     "cdn-eu-3",
		DownloadURL: "https://cdn/live.flv",
	}})

	ev, err := DecodeServer(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta, ok := ev.(domain.MetaUpdated)
	if !ok {
		t.Fatalf("event type = %T, want MetaUpdated", ev)
	}
	if meta.Meta.DownloadID != "d1" || meta.Meta.StreamerID != "s1" {
		t.Fatalf("ids = %q/%q", meta.Meta.DownloadID, meta.Meta.StreamerID)
	}
	if meta.Meta.StartedAtMs != 1700000000000 {
		t.Fatalf("startedAtMs = %d", meta.Meta.StartedAtMs)
	}
	if meta.Meta.UpdatedAtMs != 42 {
		t.Fatalf("updatedAtMs = %d", meta.Meta.UpdatedAtMs)
	}
	if meta.Meta.CDNHost != "cdn-eu-3" || meta.Meta.DownloadURL != "https://cdn/live.flv" {
		t.Fatalf("cdn/url = %q/%q", meta.Meta.CDNHost, meta.Meta.DownloadURL)
	}
}

func TestDecodeServer_MetricsUpdated(t *testing.T) {
	frame := mustEncodeServer(t, domain.MetricsUpdated{Metrics: domain.DownloadMetrics{
		DownloadID:        "d1",
		Status:            "Downloading",
		BytesDownloaded:   1 << 33, // past 32 bits on purpose
		DurationSecs:      12.5,
		SpeedBytesPerSec:  17066,
		SegmentsCompleted: 5,
		MediaDurationSecs: 13.0,
		PlaybackRatio:     0.96,
	}})

	ev, err := DecodeServer(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := ev.(domain.MetricsUpdated)
	if !ok {
		t.Fatalf("event type = %T, want MetricsUpdated", ev)
	}
	if m.Metrics.BytesDownloaded != 1<<33 {
		t.Fatalf("bytesDownloaded = %d", m.Metrics.BytesDownloaded)
	}
	if m.Metrics.DurationSecs != 12.5 || m.Metrics.PlaybackRatio != 0.96 {
		t.Fatalf("duration/ratio = %v/%v", m.Metrics.DurationSecs, m.Metrics.PlaybackRatio)
	}
	if m.Metrics.SegmentsCompleted != 5 {
		t.Fatalf("segmentsCompleted = %d", m.Metrics.SegmentsCompleted)
	}
}

func TestDecodeServer_Snapshot(t *testing.T) {
	frame := mustEncodeServer(t, domain.Snapshot{Downloads: []domain.DownloadState{
		{
			Meta:    domain.DownloadMeta{DownloadID: "d1", StreamerID: "s1"},
			Metrics: domain.DownloadMetrics{DownloadID: "d1", Status: "Starting"},
		},
		{
			Meta:    domain.DownloadMeta{DownloadID: "d2", StreamerID: "s2", StartedAtMs: 99},
			Metrics: domain.DownloadMetrics{DownloadID: "d2", Status: "Downloading", BytesDownloaded: 7},
		},
	}})

	ev, err := DecodeServer(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, ok := ev.(domain.Snapshot)
	if !ok {
		t.Fatalf("event type = %T, want Snapshot", ev)
	}
	if len(snap.Downloads) != 2 {
		t.Fatalf("downloads = %d, want 2", len(snap.Downloads))
	}
	if snap.Downloads[1].Metrics.Status != "Downloading" {
		t.Fatalf("second status = %q", snap.Downloads[1].Metrics.Status)
	}
	if snap.Downloads[1].Meta.StartedAtMs != 99 {
		t.Fatalf("second startedAtMs = %d", snap.Downloads[1].Meta.StartedAtMs)
	}
}

func TestDecodeServer_EmptySnapshot(t *testing.T) {
	frame := mustEncodeServer(t, domain.Snapshot{})
	ev, err := DecodeServer(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snap, ok := ev.(domain.Snapshot)
	if !ok {
		t.Fatalf("event type = %T, want Snapshot", ev)
	}
	if len(snap.Downloads) != 0 {
		t.Fatalf("downloads = %d, want 0", len(snap.Downloads))
	}
}

func TestDecodeServer_TerminalEvents(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.Event
	}{
		{"completed", domain.DownloadCompleted{DownloadID: "d1", StreamerID: "s1", TotalBytes: 100, TotalSegments: 3}},
		{"failed", domain.DownloadFailed{DownloadID: "d1", StreamerID: "s1", Error: "connection timeout", Recoverable: true}},
		{"cancelled", domain.DownloadCancelled{DownloadID: "d1", StreamerID: "s1", Cause: "user"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeServer(mustEncodeServer(t, tt.ev))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.ev {
				t.Fatalf("got %#v, want %#v", got, tt.ev)
			}
		})
	}
}

func TestDecodeServer_Rejected(t *testing.T) {
	frame := mustEncodeServer(t, domain.DownloadRejected{
		StreamerID:     "s1",
		SessionID:      "sess-1",
		Reason:         "circuit breaker open",
		RetryAfterSecs: 60,
		Recoverable:    true,
	})
	ev, err := DecodeServer(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rej, ok := ev.(domain.DownloadRejected)
	if !ok {
		t.Fatalf("event type = %T, want DownloadRejected", ev)
	}
	if rej.RetryAfterSecs != 60 || !rej.Recoverable {
		t.Fatalf("retryAfter/recoverable = %d/%v", rej.RetryAfterSecs, rej.Recoverable)
	}
}

func TestDecodeServer_ServerError(t *testing.T) {
	ev, err := DecodeServer(mustEncodeServer(t, domain.ServerError{Code: "SERVICE_UNAVAILABLE", Message: "manager down"}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	se, ok := ev.(domain.ServerError)
	if !ok {
		t.Fatalf("event type = %T, want ServerError", ev)
	}
	if se.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("code = %q", se.Code)
	}
}

func TestDecodeServer_Malformed(t *testing.T) {
	valid := mustEncodeServer(t, domain.MetaUpdated{Meta: domain.DownloadMeta{DownloadID: "d1"}})

	// Envelope with only an event_type and no payload.
	noPayload := protowire.AppendTag(nil, fieldEventType, protowire.VarintType)
	noPayload = protowire.AppendVarint(noPayload, 2)

	// Payload field carrying a varint instead of a length-delimited message.
	wrongType := protowire.AppendTag(nil, fieldMetaUpdated, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 7)

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty frame", nil},
		{"truncated", valid[:len(valid)-3]},
		{"garbage", []byte{0xff, 0xff, 0xff}},
		{"no payload", noPayload},
		{"payload wire type mismatch", wrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeServer(tt.frame)
			if err == nil {
				t.Fatal("expected decode error")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error type = %T, want *DecodeError", err)
			}
		})
	}
}

func TestDecodeServer_SkipsUnknownEnvelopeField(t *testing.T) {
	frame := mustEncodeServer(t, domain.ServerError{Code: "X"})
	// Append an unknown field; proto3 readers must ignore it.
	frame = protowire.AppendTag(frame, 99, protowire.VarintType)
	frame = protowire.AppendVarint(frame, 1)

	ev, err := DecodeServer(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := ev.(domain.ServerError); !ok {
		t.Fatalf("event type = %T, want ServerError", ev)
	}
}

func TestEncodeClient_Subscribe(t *testing.T) {
	frame, err := EncodeClient(domain.Subscribe{StreamerID: "streamer-123"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	intent, err := DecodeClient(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sub, ok := intent.(domain.Subscribe)
	if !ok {
		t.Fatalf("intent type = %T, want Subscribe", intent)
	}
	if sub.StreamerID != "streamer-123" {
		t.Fatalf("streamerId = %q", sub.StreamerID)
	}
}

func TestEncodeClient_Unsubscribe(t *testing.T) {
	frame, err := EncodeClient(domain.Unsubscribe{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	intent, err := DecodeClient(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := intent.(domain.Unsubscribe); !ok {
		t.Fatalf("intent type = %T, want Unsubscribe", intent)
	}
}

func TestEncodeClient_EmptyStreamerID(t *testing.T) {
	_, err := EncodeClient(domain.Subscribe{StreamerID: "  "})
	if err == nil {
		t.Fatal("expected encode error")
	}
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *EncodeError", err)
	}
}

func TestDecodeClient_NoAction(t *testing.T) {
	_, err := DecodeClient(nil)
	if err == nil {
		t.Fatal("expected decode error for empty client frame")
	}
}
