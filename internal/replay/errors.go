package replay

import "errors"

// Sentinel errors for the ATPCAP01 codec's failure taxonomy (spec.md §4.10). Wrapped with
// fmt.Errorf("...: %w", ...) at the call site so errors.Is still matches after context is
// added (e.g. the offending sequence number or payload length).
var (
	ErrInvalidHeader            = errors.New("invalid_header")
	ErrUnsupportedVersion       = errors.New("unsupported_version")
	ErrTruncatedRecordHeader    = errors.New("truncated_record_header")
	ErrTruncatedRecordPayload   = errors.New("truncated_record_payload")
	ErrInvalidPayloadLength     = errors.New("invalid_payload_length")
	ErrFramePayloadMagicMismatch = errors.New("frame_payload_magic_mismatch")
	ErrInvalidStateCode         = errors.New("invalid_state_code")
	ErrMetaFrameCountMismatch   = errors.New("meta_frame_count_mismatch")
	ErrInvalidSequence          = errors.New("invalid_sequence")
	ErrNonMonotonicArrivalTicks = errors.New("non_monotonic_arrival_ticks")
)
