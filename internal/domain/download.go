package domain

// DownloadID uniquely identifies one download attempt for its lifetime.
type DownloadID string

// DownloadMeta holds the slow-changing attributes of a download. StartedAtMs
// is immutable once set. UpdatedAtMs is a best-effort version stamp for the
// meta half only; 0 means unversioned.
type DownloadMeta struct {
	DownloadID  DownloadID `json:"downloadId"`
	StreamerID  string     `json:"streamerId"`
	SessionID   string     `json:"sessionId"`
	EngineType  string     `json:"engineType"`
	StartedAtMs int64      `json:"startedAtMs"`
	UpdatedAtMs int64      `json:"updatedAtMs"`
	CDNHost     string     `json:"cdnHost"`
	DownloadURL string     `json:"downloadUrl"`
}

// DownloadMetrics holds the fast-changing attributes of a download. Status is
// a free-form string reported by the recorder ("Starting", "Downloading",
// terminal strings).
type DownloadMetrics struct {
	DownloadID        DownloadID `json:"downloadId"`
	Status            string     `json:"status"`
	BytesDownloaded   uint64     `json:"bytesDownloaded"`
	DurationSecs      float64    `json:"durationSecs"`
	SpeedBytesPerSec  uint64     `json:"speedBytesPerSec"`
	SegmentsCompleted uint32     `json:"segmentsCompleted"`
	MediaDurationSecs float64    `json:"mediaDurationSecs"`
	PlaybackRatio     float64    `json:"playbackRatio"`
}

// DownloadState pairs the two halves of one download, as delivered in a
// snapshot.
type DownloadState struct {
	Meta    DownloadMeta    `json:"meta"`
	Metrics DownloadMetrics `json:"metrics"`
}

// DownloadView is the read-only join of the most recently accepted Meta and
// Metrics for one download id. Absent halves contribute zero values.
type DownloadView struct {
	DownloadID        DownloadID `json:"downloadId"`
	StreamerID        string     `json:"streamerId"`
	SessionID         string     `json:"sessionId"`
	EngineType        string     `json:"engineType"`
	StartedAtMs       int64      `json:"startedAtMs"`
	UpdatedAtMs       int64      `json:"updatedAtMs"`
	CDNHost           string     `json:"cdnHost,omitempty"`
	DownloadURL       string     `json:"downloadUrl,omitempty"`
	Status            string     `json:"status"`
	BytesDownloaded   uint64     `json:"bytesDownloaded"`
	DurationSecs      float64    `json:"durationSecs"`
	SpeedBytesPerSec  uint64     `json:"speedBytesPerSec"`
	SegmentsCompleted uint32     `json:"segmentsCompleted"`
	MediaDurationSecs float64    `json:"mediaDurationSecs"`
	PlaybackRatio     float64    `json:"playbackRatio"`
}

// Join computes the view for one download. The view's id comes from the meta
// half when present, else from the metrics half.
func Join(meta DownloadMeta, metrics DownloadMetrics, hasMeta bool) DownloadView {
	id := meta.DownloadID
	if !hasMeta || id == "" {
		id = metrics.DownloadID
	}
	return DownloadView{
		DownloadID:        id,
		StreamerID:        meta.StreamerID,
		SessionID:         meta.SessionID,
		EngineType:        meta.EngineType,
		StartedAtMs:       meta.StartedAtMs,
		UpdatedAtMs:       meta.UpdatedAtMs,
		CDNHost:           meta.CDNHost,
		DownloadURL:       meta.DownloadURL,
		Status:            metrics.Status,
		BytesDownloaded:   metrics.BytesDownloaded,
		DurationSecs:      metrics.DurationSecs,
		SpeedBytesPerSec:  metrics.SpeedBytesPerSec,
		SegmentsCompleted: metrics.SegmentsCompleted,
		MediaDurationSecs: metrics.MediaDurationSecs,
		PlaybackRatio:     metrics.PlaybackRatio,
	}
}
