package domain

import "time"

// EventRecord is the journal/notification form of a surfaced event: the
// terminal events plus rejections and server errors. Continuous progress
// traffic is never recorded.
type EventRecord struct {
	Kind        string     `json:"kind"`
	DownloadID  DownloadID `json:"downloadId,omitempty"`
	StreamerID  string     `json:"streamerId,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	Recoverable bool       `json:"recoverable,omitempty"`
	OccurredAt  time.Time  `json:"occurredAt"`
}

// NewEventRecord converts a surfaced event into its record form. The second
// return value is false for events that are not journaled (snapshots,
// meta/metrics updates, segment progress).
func NewEventRecord(ev Event, now time.Time) (EventRecord, bool) {
	switch e := ev.(type) {
	case DownloadCompleted:
		return EventRecord{
			Kind:       e.Tag(),
			DownloadID: e.DownloadID,
			StreamerID: e.StreamerID,
			SessionID:  e.SessionID,
			OccurredAt: now,
		}, true
	case DownloadFailed:
		return EventRecord{
			Kind:        e.Tag(),
			DownloadID:  e.DownloadID,
			StreamerID:  e.StreamerID,
			SessionID:   e.SessionID,
			Detail:      e.Error,
			Recoverable: e.Recoverable,
			OccurredAt:  now,
		}, true
	case DownloadCancelled:
		return EventRecord{
			Kind:       e.Tag(),
			DownloadID: e.DownloadID,
			StreamerID: e.StreamerID,
			SessionID:  e.SessionID,
			Detail:     e.Cause,
			OccurredAt: now,
		}, true
	case DownloadRejected:
		return EventRecord{
			Kind:        e.Tag(),
			StreamerID:  e.StreamerID,
			SessionID:   e.SessionID,
			Detail:      e.Reason,
			Recoverable: e.Recoverable,
			OccurredAt:  now,
		}, true
	case ServerError:
		return EventRecord{
			Kind:       e.Tag(),
			Detail:     e.Code + ": " + e.Message,
			OccurredAt: now,
		}, true
	default:
		return EventRecord{}, false
	}
}
