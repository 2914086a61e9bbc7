package mongo

import (
	"testing"
	"time"

	"recwatch/internal/domain"
)

func TestToDocFromDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	rec := domain.EventRecord{
		Kind:        "download_failed",
		DownloadID:  "d1",
		StreamerID:  "s1",
		SessionID:   "sess-9",
		Detail:      "disk full",
		Recoverable: true,
		OccurredAt:  now,
	}

	got := fromDoc(toDoc(rec))

	if got != rec {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

func TestToDocNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	rec := domain.EventRecord{
		Kind:       "download_completed",
		DownloadID: "d2",
		OccurredAt: time.Date(2026, 8, 29, 13, 0, 0, 0, loc),
	}

	doc := toDoc(rec)

	if doc.OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt location = %v, want UTC", doc.OccurredAt.Location())
	}
	if !doc.OccurredAt.Equal(rec.OccurredAt) {
		t.Errorf("OccurredAt instant changed: %v vs %v", doc.OccurredAt, rec.OccurredAt)
	}
}

func TestRecordFromEvent(t *testing.T) {
	now := time.Now()

	rec, ok := domain.NewEventRecord(domain.DownloadRejected{
		StreamerID:  "s1",
		SessionID:   "sess-1",
		Reason:      "stream offline",
		Recoverable: true,
	}, now)
	if !ok {
		t.Fatal("rejection should produce a journal record")
	}
	doc := toDoc(rec)
	if doc.Kind != "download_rejected" || doc.StreamerID != "s1" || doc.Detail != "stream offline" || !doc.Recoverable {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.DownloadID != "" {
		t.Fatalf("rejection has no download id, got %q", doc.DownloadID)
	}

	if _, ok := domain.NewEventRecord(domain.MetricsUpdated{}, now); ok {
		t.Fatal("progress traffic must not be journaled")
	}
}
