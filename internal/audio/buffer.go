// Package audio implements the per-client framing state machine that turns
// many small binary frames arriving over a mobile WebSocket into
// transcription-ready WAV payloads.
package audio

import (
	"sync"
	"time"
)

// Params are the admin-tunable framing parameters (see C1 Config).
type Params struct {
	SmallThresholdBytes int
	AccumulateCount     int
	MaxDurationMs       int
	SampleRate          int
	Channels            int
	SampleWidth         int
}

// DefaultParams mirror the configured fallbacks applied when an admin has
// not overridden them.
func DefaultParams() Params {
	return Params{
		SmallThresholdBytes: 2048,
		AccumulateCount:     3,
		MaxDurationMs:       500,
		SampleRate:          16000,
		Channels:            1,
		SampleWidth:         2,
	}
}

// ClientBuffer is the per-client accumulator described by C3: pending byte
// segments, total bytes, first/last chunk time, and a pending-frame counter
// that each flush resets. It is
// safe for concurrent use; callers on different clients never share one.
type ClientBuffer struct {
	params Params

	mu        sync.Mutex
	pending   [][]byte
	totalSize int
	firstAt   time.Time
	lastAt    time.Time
	count     int
}

func NewClientBuffer(params Params) *ClientBuffer {
	return &ClientBuffer{params: params}
}

// AddChunk implements add_chunk: a frame larger than small_threshold flushes
// any pending prefix together with the incoming bytes immediately. A small
// frame accumulates until accumulate_count frames are pending or
// max_duration_ms has elapsed since the first pending frame.
func (b *ClientBuffer) AddChunk(chunk []byte) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(chunk) > b.params.SmallThresholdBytes {
		combined := b.concatLocked(chunk)
		b.resetLocked()
		return combined, true
	}

	b.appendLocked(chunk)

	elapsed := b.lastAt.Sub(b.firstAt)
	if b.count >= b.params.AccumulateCount ||
		elapsed >= time.Duration(b.params.MaxDurationMs)*time.Millisecond {
		combined := b.concatLocked(nil)
		b.resetLocked()
		return combined, true
	}
	return nil, false
}

// ForceFlush implements force_flush, used on session close or an explicit
// client command: emits and clears whatever is pending, even if below the
// accumulate_count/max_duration_ms thresholds.
func (b *ClientBuffer) ForceFlush() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.totalSize == 0 {
		return nil, false
	}
	combined := b.concatLocked(nil)
	b.resetLocked()
	return combined, true
}

func (b *ClientBuffer) appendLocked(chunk []byte) {
	if b.count == 0 {
		b.firstAt = time.Now()
	}
	b.lastAt = time.Now()
	b.pending = append(b.pending, chunk)
	b.totalSize += len(chunk)
	b.count++
}

// concatLocked joins every pending segment, plus an optional trailing extra
// frame (the triggering oversized chunk), into one contiguous payload.
func (b *ClientBuffer) concatLocked(extra []byte) []byte {
	size := b.totalSize + len(extra)
	out := make([]byte, 0, size)
	for _, seg := range b.pending {
		out = append(out, seg...)
	}
	if extra != nil {
		out = append(out, extra...)
	}
	return out
}

func (b *ClientBuffer) resetLocked() {
	b.pending = nil
	b.totalSize = 0
	b.count = 0
	b.firstAt = time.Time{}
	b.lastAt = time.Time{}
}
