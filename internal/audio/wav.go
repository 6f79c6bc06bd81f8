package audio

import (
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// ToWAV implements to_wav: wraps raw 16 kHz mono 16-bit PCM samples in a
// standards-compliant RIFF/WAVE header.
func (p Params) ToWAV(pcm []byte) []byte {
	byteRate := p.SampleRate * p.Channels * p.SampleWidth * 8 / 8
	blockAlign := p.Channels * p.SampleWidth
	bitsPerSample := p.SampleWidth * 8

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(wavHeaderSize-8+len(pcm)))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	out := make([]byte, 0, wavHeaderSize+len(pcm))
	out = append(out, header...)
	out = append(out, pcm...)
	return out
}

type wavFmt struct {
	sampleRate    uint32
	channels      uint16
	bitsPerSample uint16
}

// parseWAV extracts the PCM payload and format fields of a RIFF/WAVE file,
// walking the chunk list rather than assuming the canonical 44-byte layout.
func parseWAV(data []byte) (wavFmt, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return wavFmt{}, nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var format wavFmt
	var pcm []byte
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			break
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return wavFmt{}, nil, fmt.Errorf("fmt chunk too small")
			}
			chunk := data[body : body+chunkSize]
			format.channels = binary.LittleEndian.Uint16(chunk[2:4])
			format.sampleRate = binary.LittleEndian.Uint32(chunk[4:8])
			format.bitsPerSample = binary.LittleEndian.Uint16(chunk[14:16])
		case "data":
			pcm = data[body : body+chunkSize]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if format.sampleRate == 0 || pcm == nil {
		return wavFmt{}, nil, fmt.Errorf("incomplete WAV: missing fmt or data chunk")
	}
	return format, pcm, nil
}

// CombineWAV implements combine_wav: parses each chunk, extracts its PCM
// frames, and re-emits a single WAV containing the union of samples.
// A chunk whose format parameters don't match the first valid chunk is
// skipped; the caller is expected to log the returned warnings.
func (p Params) CombineWAV(chunks [][]byte) ([]byte, []string) {
	var warnings []string
	var reference *wavFmt
	combined := make([]byte, 0)

	for i, chunk := range chunks {
		format, pcm, err := parseWAV(chunk)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("chunk %d: %v", i, err))
			continue
		}
		if reference == nil {
			reference = &format
		} else if format != *reference {
			warnings = append(warnings, fmt.Sprintf("chunk %d: mismatched format %+v, skipped", i, format))
			continue
		}
		combined = append(combined, pcm...)
	}

	if reference == nil {
		return p.ToWAV(nil), warnings
	}
	out := Params{
		SampleRate:  int(reference.sampleRate),
		Channels:    int(reference.channels),
		SampleWidth: int(reference.bitsPerSample / 8),
	}.ToWAV(combined)
	return out, warnings
}
