package audio

import (
	"bytes"
	"testing"
	"time"
)

func TestClientBufferAccumulatesUntilCount(t *testing.T) {
	params := DefaultParams()
	params.AccumulateCount = 3
	params.MaxDurationMs = 10_000
	b := NewClientBuffer(params)

	if out, flushed := b.AddChunk([]byte("a")); flushed {
		t.Fatalf("expected no flush on first chunk, got %v", out)
	}
	if out, flushed := b.AddChunk([]byte("b")); flushed {
		t.Fatalf("expected no flush on second chunk, got %v", out)
	}
	out, flushed := b.AddChunk([]byte("c"))
	if !flushed {
		t.Fatal("expected flush on third chunk reaching accumulate_count")
	}
	if !bytes.Equal(out, []byte("abc")) {
		t.Errorf("expected concatenated payload %q, got %q", "abc", out)
	}
}

func TestClientBufferFlushesOnMaxDuration(t *testing.T) {
	params := DefaultParams()
	params.AccumulateCount = 100
	params.MaxDurationMs = 1
	b := NewClientBuffer(params)

	b.AddChunk([]byte("x"))
	time.Sleep(5 * time.Millisecond)

	out, flushed := b.AddChunk([]byte("y"))
	if !flushed {
		t.Fatal("expected flush once max_duration_ms elapsed")
	}
	if !bytes.Equal(out, []byte("xy")) {
		t.Errorf("expected %q, got %q", "xy", out)
	}
}

func TestClientBufferOversizedFrameFlushesPrefixImmediately(t *testing.T) {
	params := DefaultParams()
	params.SmallThresholdBytes = 4
	params.AccumulateCount = 100
	params.MaxDurationMs = 100_000
	b := NewClientBuffer(params)

	b.AddChunk([]byte("ab"))

	large := bytes.Repeat([]byte("z"), 10)
	out, flushed := b.AddChunk(large)
	if !flushed {
		t.Fatal("expected immediate flush for an oversized frame")
	}
	want := append([]byte("ab"), large...)
	if !bytes.Equal(out, want) {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestClientBufferForceFlush(t *testing.T) {
	params := DefaultParams()
	b := NewClientBuffer(params)

	if _, ok := b.ForceFlush(); ok {
		t.Fatal("expected no flush when nothing is pending")
	}

	b.AddChunk([]byte("partial"))
	out, ok := b.ForceFlush()
	if !ok {
		t.Fatal("expected force flush to emit pending data")
	}
	if !bytes.Equal(out, []byte("partial")) {
		t.Errorf("expected %q, got %q", "partial", out)
	}

	if _, ok := b.ForceFlush(); ok {
		t.Error("expected buffer to be empty after force flush")
	}
}

func TestWAVRoundTripsPCM(t *testing.T) {
	params := DefaultParams()
	pcm1 := []byte{1, 2, 3, 4, 5, 6}
	pcm2 := []byte{7, 8, 9, 10}

	wav1 := params.ToWAV(pcm1)
	wav2 := params.ToWAV(pcm2)

	combined, warnings := params.CombineWAV([][]byte{wav1, wav2})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings combining compatible chunks, got %v", warnings)
	}

	_, pcm, err := parseWAV(combined)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	want := append(append([]byte{}, pcm1...), pcm2...)
	if !bytes.Equal(pcm, want) {
		t.Errorf("expected combined PCM %v, got %v", want, pcm)
	}
}

func TestCombineWAVSkipsMismatchedFormat(t *testing.T) {
	params := DefaultParams()
	wav1 := params.ToWAV([]byte{1, 2, 3, 4})

	mismatched := params
	mismatched.SampleRate = 8000
	wav2 := mismatched.ToWAV([]byte{9, 9, 9, 9})

	combined, warnings := params.CombineWAV([][]byte{wav1, wav2})
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning for the mismatched chunk, got %v", warnings)
	}

	_, pcm, err := parseWAV(combined)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if !bytes.Equal(pcm, []byte{1, 2, 3, 4}) {
		t.Errorf("expected only the first chunk's PCM to survive, got %v", pcm)
	}
}
