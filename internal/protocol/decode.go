// Package protocol implements the binary codec for the recorder's
// download-progress feed. The wire schema lives in downloadprogress.proto;
// messages are read and written directly with protowire so the package stays
// free of generated code while speaking the exact same format.
package protocol

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"recwatch/internal/domain"
)

// WsMessage envelope field numbers.
const (
	fieldEventType         = 1
	fieldSnapshot          = 2
	fieldMetaUpdated       = 3
	fieldMetricsUpdated    = 4
	fieldSegmentCompleted  = 5
	fieldDownloadCompleted = 6
	fieldDownloadFailed    = 7
	fieldDownloadCancelled = 8
	fieldDownloadRejected  = 9
	fieldError             = 10
)

// ClientMessage envelope field numbers.
const (
	fieldSubscribe   = 1
	fieldUnsubscribe = 2
)

// DecodeServer parses one server frame into its event. It returns a
// *DecodeError for anything malformed: truncated varints, wire-type
// mismatches on known fields, or an envelope with no recognizable payload.
// The envelope's event_type field is informational; the populated payload
// field is authoritative for the variant.
func DecodeServer(frame []byte) (domain.Event, error) {
	if len(frame) == 0 {
		return nil, &DecodeError{Reason: "empty frame"}
	}
	var ev domain.Event
	b := frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, &DecodeError{Reason: "envelope tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]
		switch num {
		case fieldEventType:
			_, n2, err := consumeVarint(b, typ)
			if err != nil {
				return nil, &DecodeError{Reason: "event_type", Err: err}
			}
			n = n2
		case fieldSnapshot, fieldMetaUpdated, fieldMetricsUpdated, fieldSegmentCompleted,
			fieldDownloadCompleted, fieldDownloadFailed, fieldDownloadCancelled,
			fieldDownloadRejected, fieldError:
			payload, n2, err := consumeBytesValue(b, typ)
			if err != nil {
				return nil, &DecodeError{Reason: "payload", Err: err}
			}
			parsed, err := parsePayload(num, payload)
			if err != nil {
				return nil, &DecodeError{Reason: "payload body", Err: err}
			}
			ev = parsed
			n = n2
		default:
			// Unknown envelope fields are skipped, matching proto3 semantics.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, &DecodeError{Reason: "unknown field", Err: protowire.ParseError(n)}
			}
		}
		b = b[n:]
	}
	if ev == nil {
		return nil, &DecodeError{Reason: "envelope has no payload"}
	}
	return ev, nil
}

// DecodeClient parses one client frame into its intent. The server side of
// the contract uses this; the monitor itself only encodes client frames, but
// test harnesses acting as the upstream need the inverse direction.
func DecodeClient(frame []byte) (domain.ClientIntent, error) {
	var intent domain.ClientIntent
	b := frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, &DecodeError{Reason: "envelope tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]
		switch num {
		case fieldSubscribe:
			payload, n2, err := consumeBytesValue(b, typ)
			if err != nil {
				return nil, &DecodeError{Reason: "subscribe", Err: err}
			}
			sub, err := parseSubscribe(payload)
			if err != nil {
				return nil, &DecodeError{Reason: "subscribe body", Err: err}
			}
			intent = sub
			n = n2
		case fieldUnsubscribe:
			_, n2, err := consumeBytesValue(b, typ)
			if err != nil {
				return nil, &DecodeError{Reason: "unsubscribe", Err: err}
			}
			intent = domain.Unsubscribe{}
			n = n2
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, &DecodeError{Reason: "unknown field", Err: protowire.ParseError(n)}
			}
		}
		b = b[n:]
	}
	if intent == nil {
		return nil, &DecodeError{Reason: "envelope has no action"}
	}
	return intent, nil
}

func parsePayload(num protowire.Number, payload []byte) (domain.Event, error) {
	switch num {
	case fieldSnapshot:
		return parseSnapshot(payload)
	case fieldMetaUpdated:
		meta, err := parseMeta(payload)
		if err != nil {
			return nil, err
		}
		return domain.MetaUpdated{Meta: meta}, nil
	case fieldMetricsUpdated:
		metrics, err := parseMetrics(payload)
		if err != nil {
			return nil, err
		}
		return domain.MetricsUpdated{Metrics: metrics}, nil
	case fieldSegmentCompleted:
		return parseSegmentCompleted(payload)
	case fieldDownloadCompleted:
		return parseDownloadCompleted(payload)
	case fieldDownloadFailed:
		return parseDownloadFailed(payload)
	case fieldDownloadCancelled:
		return parseDownloadCancelled(payload)
	case fieldDownloadRejected:
		return parseDownloadRejected(payload)
	case fieldError:
		return parseServerError(payload)
	}
	return nil, &DecodeError{Reason: "unhandled payload field"}
}

func parseSnapshot(b []byte) (domain.Snapshot, error) {
	var snap domain.Snapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return snap, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var body []byte
			body, n, err = consumeBytesValue(b, typ)
			if err == nil {
				var state domain.DownloadState
				state, err = parseDownloadState(body)
				snap.Downloads = append(snap.Downloads, state)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return snap, err
		}
		b = b[n:]
	}
	return snap, nil
}

func parseDownloadState(b []byte) (domain.DownloadState, error) {
	var state domain.DownloadState
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return state, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var body []byte
			body, n, err = consumeBytesValue(b, typ)
			if err == nil {
				state.Meta, err = parseMeta(body)
			}
		case 2:
			var body []byte
			body, n, err = consumeBytesValue(b, typ)
			if err == nil {
				state.Metrics, err = parseMetrics(body)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return state, err
		}
		b = b[n:]
	}
	return state, nil
}

func parseMeta(b []byte) (domain.DownloadMeta, error) {
	var m domain.DownloadMeta
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var s string
			s, n, err = consumeString(b, typ)
			m.DownloadID = domain.DownloadID(s)
		case 2:
			m.StreamerID, n, err = consumeString(b, typ)
		case 3:
			m.SessionID, n, err = consumeString(b, typ)
		case 4:
			m.EngineType, n, err = consumeString(b, typ)
		case 5:
			var v uint64
			v, n, err = consumeVarint(b, typ)
			m.StartedAtMs = int64(v)
		case 6:
			var v uint64
			v, n, err = consumeVarint(b, typ)
			m.UpdatedAtMs = int64(v)
		case 7:
			m.CDNHost, n, err = consumeString(b, typ)
		case 8:
			m.DownloadURL, n, err = consumeString(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return m, err
		}
		b = b[n:]
	}
	return m, nil
}

func parseMetrics(b []byte) (domain.DownloadMetrics, error) {
	var m domain.DownloadMetrics
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var s string
			s, n, err = consumeString(b, typ)
			m.DownloadID = domain.DownloadID(s)
		case 2:
			m.Status, n, err = consumeString(b, typ)
		case 3:
			m.BytesDownloaded, n, err = consumeVarint(b, typ)
		case 4:
			m.DurationSecs, n, err = consumeDouble(b, typ)
		case 5:
			m.SpeedBytesPerSec, n, err = consumeVarint(b, typ)
		case 6:
			var v uint64
			v, n, err = consumeVarint(b, typ)
			m.SegmentsCompleted = uint32(v)
		case 7:
			m.MediaDurationSecs, n, err = consumeDouble(b, typ)
		case 8:
			m.PlaybackRatio, n, err = consumeDouble(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return m, err
		}
		b = b[n:]
	}
	return m, nil
}

func parseSegmentCompleted(b []byte) (domain.SegmentCompleted, error) {
	var e domain.SegmentCompleted
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var s string
			s, n, err = consumeString(b, typ)
			e.DownloadID = domain.DownloadID(s)
		case 2:
			e.StreamerID, n, err = consumeString(b, typ)
		case 3:
			e.SessionID, n, err = consumeString(b, typ)
		case 4:
			e.SegmentPath, n, err = consumeString(b, typ)
		case 5:
			var v uint64
			v, n, err = consumeVarint(b, typ)
			e.SegmentIndex = uint32(v)
		case 6:
			e.DurationSecs, n, err = consumeDouble(b, typ)
		case 7:
			e.SizeBytes, n, err = consumeVarint(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return e, err
		}
		b = b[n:]
	}
	return e, nil
}

func parseDownloadCompleted(b []byte) (domain.DownloadCompleted, error) {
	var e domain.DownloadCompleted
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var s string
			s, n, err = consumeString(b, typ)
			e.DownloadID = domain.DownloadID(s)
		case 2:
			e.StreamerID, n, err = consumeString(b, typ)
		case 3:
			e.SessionID, n, err = consumeString(b, typ)
		case 4:
			e.TotalBytes, n, err = consumeVarint(b, typ)
		case 5:
			e.TotalDurationSecs, n, err = consumeDouble(b, typ)
		case 6:
			var v uint64
			v, n, err = consumeVarint(b, typ)
			e.TotalSegments = uint32(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return e, err
		}
		b = b[n:]
	}
	return e, nil
}

func parseDownloadFailed(b []byte) (domain.DownloadFailed, error) {
	var e domain.DownloadFailed
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var s string
			s, n, err = consumeString(b, typ)
			e.DownloadID = domain.DownloadID(s)
		case 2:
			e.StreamerID, n, err = consumeString(b, typ)
		case 3:
			e.SessionID, n, err = consumeString(b, typ)
		case 4:
			e.Error, n, err = consumeString(b, typ)
		case 5:
			e.Recoverable, n, err = consumeBool(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return e, err
		}
		b = b[n:]
	}
	return e, nil
}

func parseDownloadCancelled(b []byte) (domain.DownloadCancelled, error) {
	var e domain.DownloadCancelled
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			var s string
			s, n, err = consumeString(b, typ)
			e.DownloadID = domain.DownloadID(s)
		case 2:
			e.StreamerID, n, err = consumeString(b, typ)
		case 3:
			e.SessionID, n, err = consumeString(b, typ)
		case 4:
			e.Cause, n, err = consumeString(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return e, err
		}
		b = b[n:]
	}
	return e, nil
}

func parseDownloadRejected(b []byte) (domain.DownloadRejected, error) {
	var e domain.DownloadRejected
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			e.StreamerID, n, err = consumeString(b, typ)
		case 2:
			e.SessionID, n, err = consumeString(b, typ)
		case 3:
			e.Reason, n, err = consumeString(b, typ)
		case 4:
			var v uint64
			v, n, err = consumeVarint(b, typ)
			e.RetryAfterSecs = uint32(v)
		case 5:
			e.Recoverable, n, err = consumeBool(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return e, err
		}
		b = b[n:]
	}
	return e, nil
}

func parseServerError(b []byte) (domain.ServerError, error) {
	var e domain.ServerError
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			e.Code, n, err = consumeString(b, typ)
		case 2:
			e.Message, n, err = consumeString(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return e, err
		}
		b = b[n:]
	}
	return e, nil
}

func parseSubscribe(b []byte) (domain.Subscribe, error) {
	var sub domain.Subscribe
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return sub, protowire.ParseError(n)
		}
		b = b[n:]
		var err error
		switch num {
		case 1:
			sub.StreamerID, n, err = consumeString(b, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return sub, err
		}
		b = b[n:]
	}
	return sub, nil
}

// ---- scalar readers ----

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	v, n, err := consumeBytesValue(b, typ)
	return string(v), n, err
}

func consumeBytesValue(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, &DecodeError{Reason: "unexpected wire type for length-delimited field"}
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, &DecodeError{Reason: "unexpected wire type for varint field"}
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBool(b []byte, typ protowire.Type) (bool, int, error) {
	v, n, err := consumeVarint(b, typ)
	return v != 0, n, err
}

func consumeDouble(b []byte, typ protowire.Type) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, &DecodeError{Reason: "unexpected wire type for double field"}
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), n, nil
}
