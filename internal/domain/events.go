package domain

// Event is one decoded message from the recorder's progress feed.
// Implementations are the payload variants of the server envelope.
type Event interface {
	// Tag returns the stable lowercase name of the event, used for logging,
	// metrics labels and journal documents.
	Tag() string
}

// Snapshot is the full-state replacement sent once at connection start. It
// supersedes all previously delivered state, including terminated ids.
type Snapshot struct {
	Downloads []DownloadState
}

// MetaUpdated delivers the slow-changing half of a download.
type MetaUpdated struct {
	Meta DownloadMeta
}

// MetricsUpdated delivers the fast-changing half of a download. Metrics carry
// no ordering token; the last one received wins.
type MetricsUpdated struct {
	Metrics DownloadMetrics
}

// SegmentCompleted is informational only; it drives no state change.
type SegmentCompleted struct {
	DownloadID   DownloadID
	StreamerID   string
	SessionID    string
	SegmentPath  string
	SegmentIndex uint32
	DurationSecs float64
	SizeBytes    uint64
}

// DownloadCompleted is a terminal event for one download.
type DownloadCompleted struct {
	DownloadID        DownloadID
	StreamerID        string
	SessionID         string
	TotalBytes        uint64
	TotalDurationSecs float64
	TotalSegments     uint32
}

// DownloadFailed is a terminal event for one download.
type DownloadFailed struct {
	DownloadID  DownloadID
	StreamerID  string
	SessionID   string
	Error       string
	Recoverable bool
}

// DownloadCancelled is a terminal event for one download.
type DownloadCancelled struct {
	DownloadID DownloadID
	StreamerID string
	SessionID  string
	Cause      string
}

// DownloadRejected reports that the recorder refused to start a download.
// It precedes assignment of a download id and never touches per-download
// state; it is surfaced to consumers only.
type DownloadRejected struct {
	StreamerID     string
	SessionID      string
	Reason         string
	RetryAfterSecs uint32
	Recoverable    bool
}

// ServerError is an error reported in-band by the recorder. It never causes
// a disconnect.
type ServerError struct {
	Code    string
	Message string
}

func (Snapshot) Tag() string          { return "snapshot" }
func (MetaUpdated) Tag() string       { return "meta_updated" }
func (MetricsUpdated) Tag() string    { return "metrics_updated" }
func (SegmentCompleted) Tag() string  { return "segment_completed" }
func (DownloadCompleted) Tag() string { return "download_completed" }
func (DownloadFailed) Tag() string    { return "download_failed" }
func (DownloadCancelled) Tag() string { return "download_cancelled" }
func (DownloadRejected) Tag() string  { return "download_rejected" }
func (ServerError) Tag() string       { return "server_error" }

// ClientIntent is one message the monitor sends upstream.
type ClientIntent interface {
	intent()
}

// Subscribe scopes the feed to a single streamer.
type Subscribe struct {
	StreamerID string
}

// Unsubscribe removes the streamer filter; the feed reverts to all downloads.
type Unsubscribe struct{}

func (Subscribe) intent()   {}
func (Unsubscribe) intent() {}
