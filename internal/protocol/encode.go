package protocol

import (
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"recwatch/internal/domain"
)

// EncodeClient serializes a client intent into one binary frame. A
// *EncodeError means the intent violates the schema (a missing required
// field); that is a bug at the call site, not a recoverable runtime state.
func EncodeClient(intent domain.ClientIntent) ([]byte, error) {
	switch it := intent.(type) {
	case domain.Subscribe:
		if strings.TrimSpace(it.StreamerID) == "" {
			return nil, &EncodeError{Reason: "subscribe requires a streamer id"}
		}
		body := appendString(nil, 1, it.StreamerID)
		return appendMessage(nil, fieldSubscribe, body), nil
	case domain.Unsubscribe:
		return appendMessage(nil, fieldUnsubscribe, nil), nil
	case nil:
		return nil, &EncodeError{Reason: "nil intent"}
	default:
		return nil, &EncodeError{Reason: "unknown intent type"}
	}
}

// EncodeServer serializes an event into one server frame, setting the
// envelope's event_type to match the payload. The monitor never sends server
// frames itself; this direction exists for the server side of the contract
// and for test harnesses that stand in for the recorder.
func EncodeServer(ev domain.Event) ([]byte, error) {
	var (
		field protowire.Number
		etype uint64
		body  []byte
	)
	switch e := ev.(type) {
	case domain.Snapshot:
		field, etype = fieldSnapshot, 1
		for _, st := range e.Downloads {
			var inner []byte
			inner = appendMessage(inner, 1, appendMeta(nil, st.Meta))
			inner = appendMessage(inner, 2, appendMetrics(nil, st.Metrics))
			body = appendMessage(body, 1, inner)
		}
	case domain.MetaUpdated:
		field, etype = fieldMetaUpdated, 2
		body = appendMeta(nil, e.Meta)
	case domain.MetricsUpdated:
		field, etype = fieldMetricsUpdated, 3
		body = appendMetrics(nil, e.Metrics)
	case domain.SegmentCompleted:
		field, etype = fieldSegmentCompleted, 4
		body = appendString(body, 1, string(e.DownloadID))
		body = appendString(body, 2, e.StreamerID)
		body = appendString(body, 3, e.SessionID)
		body = appendString(body, 4, e.SegmentPath)
		body = appendUint(body, 5, uint64(e.SegmentIndex))
		body = appendDouble(body, 6, e.DurationSecs)
		body = appendUint(body, 7, e.SizeBytes)
	case domain.DownloadCompleted:
		field, etype = fieldDownloadCompleted, 5
		body = appendString(body, 1, string(e.DownloadID))
		body = appendString(body, 2, e.StreamerID)
		body = appendString(body, 3, e.SessionID)
		body = appendUint(body, 4, e.TotalBytes)
		body = appendDouble(body, 5, e.TotalDurationSecs)
		body = appendUint(body, 6, uint64(e.TotalSegments))
	case domain.DownloadFailed:
		field, etype = fieldDownloadFailed, 6
		body = appendString(body, 1, string(e.DownloadID))
		body = appendString(body, 2, e.StreamerID)
		body = appendString(body, 3, e.SessionID)
		body = appendString(body, 4, e.Error)
		body = appendBool(body, 5, e.Recoverable)
	case domain.DownloadCancelled:
		field, etype = fieldDownloadCancelled, 7
		body = appendString(body, 1, string(e.DownloadID))
		body = appendString(body, 2, e.StreamerID)
		body = appendString(body, 3, e.SessionID)
		body = appendString(body, 4, e.Cause)
	case domain.DownloadRejected:
		field, etype = fieldDownloadRejected, 8
		body = appendString(body, 1, e.StreamerID)
		body = appendString(body, 2, e.SessionID)
		body = appendString(body, 3, e.Reason)
		body = appendUint(body, 4, uint64(e.RetryAfterSecs))
		body = appendBool(body, 5, e.Recoverable)
	case domain.ServerError:
		field, etype = fieldError, 9
		body = appendString(body, 1, e.Code)
		body = appendString(body, 2, e.Message)
	case nil:
		return nil, &EncodeError{Reason: "nil event"}
	default:
		return nil, &EncodeError{Reason: "unknown event type"}
	}

	out := protowire.AppendTag(nil, fieldEventType, protowire.VarintType)
	out = protowire.AppendVarint(out, etype)
	return appendMessage(out, field, body), nil
}

func appendMeta(b []byte, m domain.DownloadMeta) []byte {
	b = appendString(b, 1, string(m.DownloadID))
	b = appendString(b, 2, m.StreamerID)
	b = appendString(b, 3, m.SessionID)
	b = appendString(b, 4, m.EngineType)
	b = appendInt(b, 5, m.StartedAtMs)
	b = appendInt(b, 6, m.UpdatedAtMs)
	b = appendString(b, 7, m.CDNHost)
	b = appendString(b, 8, m.DownloadURL)
	return b
}

func appendMetrics(b []byte, m domain.DownloadMetrics) []byte {
	b = appendString(b, 1, string(m.DownloadID))
	b = appendString(b, 2, m.Status)
	b = appendUint(b, 3, m.BytesDownloaded)
	b = appendDouble(b, 4, m.DurationSecs)
	b = appendUint(b, 5, m.SpeedBytesPerSec)
	b = appendUint(b, 6, uint64(m.SegmentsCompleted))
	b = appendDouble(b, 7, m.MediaDurationSecs)
	b = appendDouble(b, 8, m.PlaybackRatio)
	return b
}

// ---- scalar writers; zero values are omitted, matching proto3 ----

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}
