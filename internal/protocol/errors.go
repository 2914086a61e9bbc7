package protocol

// DecodeError reports a malformed inbound frame. Callers must drop the frame
// and continue reading; a decode failure never terminates the stream.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "decode " + e.Reason + ": " + e.Err.Error()
	}
	return "decode " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an outbound intent that violates the wire schema. This
// is a contract error on the caller's side, not a runtime condition.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string { return "encode " + e.Reason }
